// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/petabencana/sitioss-reports/internal/metrics"
	"github.com/petabencana/sitioss-reports/internal/models"
)

// ErrEmptyPayload is returned by Decode for a zero-length message.
var ErrEmptyPayload = errors.New("empty payload")

// Decode parses a JSON event received on source. Missing ids and timestamps
// are filled in and the result is validated.
func Decode(source string, data []byte) (models.IncomingEvent, error) {
	if len(data) == 0 {
		return models.IncomingEvent{}, ErrEmptyPayload
	}

	var ev models.IncomingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.IncomingEvent{}, fmt.Errorf("decode %s event: %w", source, err)
	}

	now := time.Now().UTC()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Source = source
	ev.ReceivedAt = now
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}

	if err := ev.Validate(); err != nil {
		return models.IncomingEvent{}, fmt.Errorf("invalid %s event: %w", source, err)
	}
	return ev, nil
}

// decodeAndEmit decodes data and emits the event, counting drops.
func decodeAndEmit(source string, data []byte, emit func(models.IncomingEvent)) error {
	ev, err := Decode(source, data)
	if err != nil {
		metrics.RecordEventDropped(source, "decode")
		return err
	}
	emit(ev)
	return nil
}
