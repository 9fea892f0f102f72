// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package notify is the outbound reply channel. It sends addressed replies to
// users who submitted reports and warning messages to the operators.
//
// A Sender delivers one message over a transport. Replier adds the reply
// rules on top: the recipient blacklist, the "@user " prefix, the optional
// timestamp suffix and test mode. Admin sends operator warnings.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/metrics"
)

// ErrBlacklisted is returned by Replier.Reply for a blacklisted recipient.
var ErrBlacklisted = errors.New("recipient is blacklisted")

// Message is one outbound message. Text is the final text, prefix and
// timestamp included.
type Message struct {
	To     string            `json:"to"`
	Text   string            `json:"text"`
	Params map[string]string `json:"params,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender returns a LogSender.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("to", msg.To).
		Str("text", msg.Text).
		Interface("params", msg.Params).
		Msg("outbound message")
	return nil
}

// PublisherSender publishes messages as JSON on a watermill topic, for
// delivery by a downstream gateway.
type PublisherSender struct {
	publisher message.Publisher
	topic     string
}

// NewPublisherSender returns a sender publishing on topic.
func NewPublisherSender(publisher message.Publisher, topic string) *PublisherSender {
	return &PublisherSender{publisher: publisher, topic: topic}
}

// Send implements Sender.
func (s *PublisherSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	wm := message.NewMessage(watermill.NewUUID(), payload)
	wm.Metadata.Set("to", msg.To)
	wm.SetContext(ctx)

	if err := s.publisher.Publish(s.topic, wm); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

// BreakerSender stops calling the wrapped sender after repeated failures.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerSender wraps next in a circuit breaker that opens after
// maxFailures consecutive failures and probes again after timeout.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBreakerSender(next Sender, name string, maxFailures uint32, timeout time.Duration, logger zerolog.Logger) *BreakerSender {
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return &BreakerSender{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[interface{}](settings),
	}
}

// Send implements Sender.
func (s *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.next.Send(ctx, msg)
	})
	return err
}

// State returns the breaker state.
func (s *BreakerSender) State() gobreaker.State {
	return s.breaker.State()
}

// LimitedSender paces messages to stay under upstream rate limits.
type LimitedSender struct {
	next    Sender
	limiter *rate.Limiter
}

// NewLimitedSender allows perSecond messages with the given burst.
func NewLimitedSender(next Sender, perSecond float64, burst int) *LimitedSender {
	if burst < 1 {
		burst = 1
	}
	return &LimitedSender{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Send implements Sender. It waits for a token or for ctx to end.
func (s *LimitedSender) Send(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return s.next.Send(ctx, msg)
}

// NewSender builds the transport chain for cfg. publisher is required for
// the nats transport and ignored otherwise.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSender(cfg *config.NotifyConfig, publisher message.Publisher, logger zerolog.Logger) (Sender, error) {
	var s Sender
	switch cfg.Transport {
	case "log", "":
		s = NewLogSender(logger)
	case "nats":
		if publisher == nil {
			return nil, errors.New("nats transport requires a publisher")
		}
		s = NewPublisherSender(publisher, cfg.Subject)
	default:
		return nil, fmt.Errorf("unknown notify transport %q", cfg.Transport)
	}

	s = NewBreakerSender(s, "notify-"+cfg.Transport, cfg.BreakerMaxFailures, cfg.BreakerTimeout, logger)
	if cfg.RatePerSecond > 0 {
		s = NewLimitedSender(s, cfg.RatePerSecond, cfg.Burst)
	}
	return s, nil
}
