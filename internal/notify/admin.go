// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package notify

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Admin sends warnings to the operator accounts. Admin messages bypass the
// reply blacklist and test mode, and always carry a timestamp so that
// repeated warnings are not rejected as duplicates upstream.
type Admin struct {
	sender    Sender
	usernames []string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdmin returns an Admin notifying usernames.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAdmin(sender Sender, usernames []string, logger zerolog.Logger) *Admin {
	names := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if u = strings.TrimSpace(u); u != "" {
			names = append(names, u)
		}
	}
	return &Admin{
		sender:    sender,
		usernames: names,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify sends text to every admin. Failures are logged and returned joined;
// one failed recipient does not stop the others.
func (a *Admin) Notify(ctx context.Context, text string) error {
	if len(a.usernames) == 0 {
		a.logger.Warn().Str("text", text).Msg("no admin usernames configured, warning not sent")
		return nil
	}

	var errs []error
	for _, name := range a.usernames {
		now := a.now()
		msg := Message{
			To:     name,
			Text:   "@" + name + " " + text + " " + strconv.FormatInt(now.UnixMilli(), 10),
			SentAt: now,
		}
		a.logger.Warn().Str("text", msg.Text).Msg("notifying admin")
		if err := a.sender.Send(ctx, msg); err != nil {
			a.logger.Error().Err(err).Str("to", name).Msg("admin notification failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
