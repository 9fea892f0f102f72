// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/metrics"
	"github.com/petabencana/sitioss-reports/internal/models"
)

// NATSFeed consumes events published on a NATS subject through a watermill
// subscriber. Messages are acked once routed; a message that cannot be
// decoded is acked and dropped so that it is not redelivered forever.
type NATSFeed struct {
	subscriber message.Subscriber
	topic      string
	logger     zerolog.Logger
}

// NewNATSFeed returns a feed reading topic from subscriber.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewNATSFeed(subscriber message.Subscriber, topic string, logger zerolog.Logger) *NATSFeed {
	return &NATSFeed{
		subscriber: subscriber,
		topic:      topic,
		logger:     logger.With().Str("feed", "nats").Str("topic", topic).Logger(),
	}
}

// Name implements Feed.
func (f *NATSFeed) Name() string {
	return "nats"
}

// Run implements Feed.
func (f *NATSFeed) Run(ctx context.Context, emit func(models.IncomingEvent)) error {
	messages, err := f.subscriber.Subscribe(ctx, f.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", f.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("nats subscription closed")
			}
			metrics.RecordNATSConsume()
			if err := decodeAndEmit(f.Name(), msg.Payload, emit); err != nil {
				f.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping nats message")
			}
			msg.Ack()
		}
	}
}
