// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subscriber consumes core NATS subjects as watermill messages. Payloads
// from producers that do not speak watermill arrive unchanged with an
// empty message UUID.
type Subscriber struct {
	subscriber message.Subscriber
	logger     zerolog.Logger
}

var _ message.Subscriber = (*Subscriber)(nil)

// NewSubscriber connects a subscriber to the configured NATS URL.
func NewSubscriber(cfg *SubscriberConfig, logger zerolog.Logger) (*Subscriber, error) {
	if cfg.URL == "" {
		return nil, errors.New("subscriber: NATS URL is required")
	}
	logger = logger.With().Str("component", "nats-subscriber").Logger()

	natsOpts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS subscriber disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS subscriber reconnected")
		}),
	}

	count := cfg.SubscribersCount
	if count < 1 {
		count = 1
	}

	sub, err := wmNats.NewSubscriber(
		wmNats.SubscriberConfig{
			URL:              cfg.URL,
			QueueGroupPrefix: cfg.QueueGroup,
			SubscribersCount: count,
			AckWaitTimeout:   cfg.AckWaitTimeout,
			CloseTimeout:     cfg.CloseTimeout,
			NatsOptions:      natsOpts,
			Unmarshaler:      &wmNats.NATSMarshaler{},
			JetStream:        wmNats.JetStreamConfig{Disabled: true},
		},
		NewWatermillLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &Subscriber{subscriber: sub, logger: logger}, nil
}

// Subscribe returns the message channel for topic. The channel closes when
// ctx ends or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	messages, err := s.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	s.logger.Debug().Str("topic", topic).Msg("subscribed")
	return messages, nil
}

// Close stops all subscriptions.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
