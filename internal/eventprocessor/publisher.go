// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package eventprocessor

import (
	"errors"
	"fmt"
	"sync"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/metrics"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher publishes watermill messages to core NATS subjects.
type Publisher struct {
	publisher message.Publisher
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ message.Publisher = (*Publisher)(nil)

// NewPublisher connects a publisher to the configured NATS URL.
func NewPublisher(cfg *PublisherConfig, logger zerolog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("publisher: NATS URL is required")
	}
	logger = logger.With().Str("component", "nats-publisher").Logger()

	natsOpts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS publisher disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS publisher reconnected")
		}),
	}
	if cfg.ReconnectBuffer > 0 {
		natsOpts = append(natsOpts, nats.ReconnectBufSize(cfg.ReconnectBuffer))
	}

	pub, err := wmNats.NewPublisher(
		wmNats.PublisherConfig{
			URL:         cfg.URL,
			NatsOptions: natsOpts,
			Marshaler:   &wmNats.NATSMarshaler{},
			JetStream:   wmNats.JetStreamConfig{Disabled: true},
		},
		NewWatermillLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	return &Publisher{publisher: pub, logger: logger}, nil
}

// Publish sends messages to topic, which is used as the NATS subject.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	if err := p.publisher.Publish(topic, messages...); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	for range messages {
		metrics.RecordNATSPublish()
	}
	return nil
}

// Close flushes and closes the connection. It is safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
