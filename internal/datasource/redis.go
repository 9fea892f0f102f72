// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/models"
)

// RedisFeed reads events from a Redis pub/sub channel.
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisClient builds a client for cfg.
func NewRedisClient(cfg *config.RedisSourceConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisFeed returns a feed subscribed to channel on client.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRedisFeed(client *redis.Client, channel string, logger zerolog.Logger) *RedisFeed {
	return &RedisFeed{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("feed", "redis").Str("channel", channel).Logger(),
	}
}

// Name implements Feed.
func (f *RedisFeed) Name() string {
	return "redis"
}

// Run implements Feed.
func (f *RedisFeed) Run(ctx context.Context, emit func(models.IncomingEvent)) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	// Receive blocks until the subscription is confirmed or fails.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", f.channel, err)
	}
	f.logger.Info().Msg("redis subscription active")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			if err := decodeAndEmit(f.Name(), []byte(msg.Payload), emit); err != nil {
				f.logger.Warn().Err(err).Msg("dropping redis message")
			}
		}
	}
}

// Close releases the client.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}
