// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/models"
)

// KafkaReader is the part of *kafka.Reader the feed uses.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaFeed reads events from a Kafka topic as a member of a consumer group.
// Offsets are committed by the reader after each message is returned.
type KafkaFeed struct {
	newReader func() KafkaReader
	topic     string
	logger    zerolog.Logger
}

// NewKafkaReader builds a consumer group reader for cfg.
func NewKafkaReader(cfg *config.KafkaSourceConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		StartOffset:    kafka.LastOffset,
		MinBytes:       1 << 10,
		MaxBytes:       10 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
	})
}

// NewKafkaFeed returns a feed for cfg. A new reader is built on every run so
// that a restart after a broker failure starts from a clean connection.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewKafkaFeed(cfg *config.KafkaSourceConfig, logger zerolog.Logger) *KafkaFeed {
	c := *cfg
	return newKafkaFeed(func() KafkaReader { return NewKafkaReader(&c) }, c.Topic, logger)
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newKafkaFeed(newReader func() KafkaReader, topic string, logger zerolog.Logger) *KafkaFeed {
	return &KafkaFeed{
		newReader: newReader,
		topic:     topic,
		logger:    logger.With().Str("feed", "kafka").Str("topic", topic).Logger(),
	}
}

// Name implements Feed.
func (f *KafkaFeed) Name() string {
	return "kafka"
}

// Run implements Feed.
func (f *KafkaFeed) Run(ctx context.Context, emit func(models.IncomingEvent)) error {
	reader := f.newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to close kafka reader")
		}
	}()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("read %s: %w", f.topic, err)
		}

		if err := decodeAndEmit(f.Name(), msg.Value, emit); err != nil {
			f.logger.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("dropping kafka message")
		}
	}
}
