// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// waitForExit blocks until the process should stop and returns its exit
// status. A signal exits 0. Abandoned storage reconnection exits 1 once the
// grace delay has passed. treeStopped reports whether the supervisor tree's
// result was already received from errCh.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func waitForExit(ctx context.Context, terminal <-chan struct{}, errCh <-chan error, grace time.Duration, logger zerolog.Logger) (code int, treeStopped bool) {
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		return 0, false

	case <-terminal:
		logger.Error().Dur("grace", grace).Msg("storage did not recover, shutting down")
		if grace > 0 {
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
			}
		}
		return 1, false

	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("supervisor tree stopped")
			return 1, true
		}
		return 0, true
	}
}
