// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package main

import (
	"errors"
	"io"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/api"
	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/datasource"
)

// defaultMaxBackoff caps feed reconnect delays when the source config does
// not set one.
const defaultMaxBackoff = time.Minute

// builtSources is the result of buildSources.
type builtSources struct {
	sources []datasource.DataSource
	// webhook is nil unless the webhook source is enabled.
	webhook api.WebhookReceiver
	closers []io.Closer
	logger  zerolog.Logger
}

// Close releases clients owned by the sources.
func (b *builtSources) Close() {
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("error closing data source client")
		}
	}
}

// buildSources creates one adapter per enabled feed, in a fixed order.
// subscriber may be nil when the NATS source is disabled.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func buildSources(cfg *config.Config, strategy datasource.Strategy, subscriber message.Subscriber, logger zerolog.Logger) (*builtSources, error) {
	built := &builtSources{logger: logger}
	sources := &cfg.Sources

	add := func(feed datasource.Feed, maxBackoff time.Duration) {
		if maxBackoff <= 0 {
			maxBackoff = defaultMaxBackoff
		}
		built.sources = append(built.sources, datasource.NewAdapter(feed, strategy, logger,
			datasource.WithBackoff(time.Second, maxBackoff),
			datasource.WithEventTimeout(sources.EventTimeout)))
	}

	if sources.Websocket.Enabled {
		add(datasource.NewWebsocketFeed(&sources.Websocket, logger), sources.Websocket.MaxBackoff)
	}

	if sources.Webhook.Enabled {
		feed := datasource.NewWebhookFeed(sources.Webhook.QueueSize)
		built.webhook = feed
		add(feed, 0)
	}

	if sources.NATS.Enabled {
		if subscriber == nil {
			return nil, errors.New("nats source enabled without a subscriber")
		}
		add(datasource.NewNATSFeed(subscriber, sources.NATS.Subject, logger), 0)
	}

	if sources.Redis.Enabled {
		client := datasource.NewRedisClient(&sources.Redis)
		built.closers = append(built.closers, client)
		add(datasource.NewRedisFeed(client, sources.Redis.Channel, logger), 0)
	}

	if sources.Kafka.Enabled {
		add(datasource.NewKafkaFeed(&sources.Kafka, logger), 0)
	}

	return built, nil
}
