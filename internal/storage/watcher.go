// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// HealthWatcher pings the store while the pipeline is idle so that an outage
// is noticed even when no query is running. It raises one fault per
// healthy-to-failed transition.
type HealthWatcher struct {
	gateway  *Gateway
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewHealthWatcher returns a watcher probing every interval.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHealthWatcher(g *Gateway, interval, timeout time.Duration, logger zerolog.Logger) *HealthWatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthWatcher{
		gateway:  g,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Serve implements suture.Service.
func (w *HealthWatcher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			healthy = w.check(ctx, healthy)
		}
	}
}

func (w *HealthWatcher) check(ctx context.Context, wasHealthy bool) bool {
	probeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.gateway.Probe(probeCtx)
	if err == nil {
		if !wasHealthy {
			w.logger.Info().Msg("storage reachable again")
		}
		return true
	}
	if ctx.Err() != nil {
		return wasHealthy
	}
	if wasHealthy {
		w.logger.Error().Err(err).Msg("storage health check failed")
		w.gateway.raiseFault(err)
	}
	return false
}

// String implements fmt.Stringer for suture logs.
func (w *HealthWatcher) String() string {
	return "storage-health-watcher"
}
