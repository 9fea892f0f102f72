// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"errors"

	"github.com/petabencana/sitioss-reports/internal/metrics"
	"github.com/petabencana/sitioss-reports/internal/models"
)

// ErrQueueFull is returned by WebhookFeed.Push when the queue is saturated.
var ErrQueueFull = errors.New("webhook queue full")

const defaultWebhookQueue = 1024

// WebhookFeed receives events pushed over HTTP. Events pushed while the feed
// is not running wait in the queue.
type WebhookFeed struct {
	queue chan models.IncomingEvent
}

// NewWebhookFeed returns a feed with room for size pending events.
func NewWebhookFeed(size int) *WebhookFeed {
	if size <= 0 {
		size = defaultWebhookQueue
	}
	return &WebhookFeed{queue: make(chan models.IncomingEvent, size)}
}

// Name implements Feed.
func (f *WebhookFeed) Name() string {
	return "webhook"
}

// Push queues a decoded event without blocking.
func (f *WebhookFeed) Push(ev models.IncomingEvent) error {
	select {
	case f.queue <- ev:
		return nil
	default:
		metrics.RecordEventDropped(f.Name(), "queue_full")
		return ErrQueueFull
	}
}

// PushRaw decodes a JSON payload and queues it.
func (f *WebhookFeed) PushRaw(data []byte) (models.IncomingEvent, error) {
	ev, err := Decode(f.Name(), data)
	if err != nil {
		metrics.RecordEventDropped(f.Name(), "decode")
		return models.IncomingEvent{}, err
	}
	return ev, f.Push(ev)
}

// Run implements Feed.
func (f *WebhookFeed) Run(ctx context.Context, emit func(models.IncomingEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.queue:
			emit(ev)
		}
	}
}
