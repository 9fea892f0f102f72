// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package notify

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/metrics"
)

// Replier sends addressed replies to users.
type Replier struct {
	sender       Sender
	blacklist    []string
	addTimestamp bool
	sendEnabled  bool
	logger       zerolog.Logger
	now          func() time.Time
}

// NewReplier returns a replier over sender configured by cfg.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewReplier(sender Sender, cfg *config.NotifyConfig, logger zerolog.Logger) *Replier {
	return &Replier{
		sender:       sender,
		blacklist:    ParseBlacklist(cfg.ReplyBlacklist),
		addTimestamp: cfg.AddTimestamp,
		sendEnabled:  cfg.SendEnabled,
		logger:       logger,
		now:          time.Now,
	}
}

// ParseBlacklist splits a comma-separated list and trims each entry.
// Empty entries are dropped.
func ParseBlacklist(raw string) []string {
	var out []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Blacklisted reports whether to is on the blacklist. Matching is exact and
// case-sensitive.
func (r *Replier) Blacklisted(to string) bool {
	for _, name := range r.blacklist {
		if name == to {
			return true
		}
	}
	return false
}

// Reply sends text to user to, in reply to the upstream message inReplyTo.
// onSent runs after a successful send, and also in test mode where nothing
// is sent. It does not run for blacklisted recipients or failed sends.
func (r *Replier) Reply(ctx context.Context, to, inReplyTo, text string, onSent func()) error {
	if r.Blacklisted(to) {
		metrics.RecordReply("blacklisted")
		r.logger.Info().Str("to", to).Msg("recipient is in the reply blacklist, not sending")
		return ErrBlacklisted
	}

	msg := Message{
		To:     to,
		Text:   "@" + to + " " + text,
		SentAt: r.now(),
	}
	if inReplyTo != "" {
		msg.Params = map[string]string{"in_reply_to_status_id": inReplyTo}
	}
	if r.addTimestamp {
		msg.Text += " " + strconv.FormatInt(msg.SentAt.UnixMilli(), 10)
	}

	if !r.sendEnabled {
		metrics.RecordReply("test_mode")
		r.logger.Info().
			Str("text", msg.Text).
			Interface("params", msg.Params).
			Msg("test mode, reply not sent; continuation still runs")
		if onSent != nil {
			onSent()
		}
		return nil
	}

	if err := r.sender.Send(ctx, msg); err != nil {
		metrics.RecordReply("failed")
		r.logger.Error().Err(err).Str("text", msg.Text).Interface("params", msg.Params).Msg("sending reply failed")
		return err
	}

	metrics.RecordReply("sent")
	r.logger.Debug().Str("text", msg.Text).Interface("params", msg.Params).Msg("reply sent")
	if onSent != nil {
		onSent()
	}
	return nil
}
