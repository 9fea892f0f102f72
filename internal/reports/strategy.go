// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/models"
	"github.com/petabencana/sitioss-reports/internal/notify"
	"github.com/petabencana/sitioss-reports/internal/storage"
)

// Querier runs storage queries; *Reports satisfies it.
type Querier interface {
	DBQuery(ctx context.Context, q storage.Query, onSuccess func(storage.Result)) error
}

// Replier sends addressed replies.
type Replier interface {
	Reply(ctx context.Context, to, inReplyTo, text string, onSent func()) error
}

// ErrMissingReportKey is returned when an insert does not return its key.
var ErrMissingReportKey = errors.New("insert returned no report key")

// reportSource is the all_reports.source value for reports stored here.
const reportSource = "twitter"

// Strategy decides what to do with each accepted event:
//
//   - located and addressed to us: stored as a confirmed report, the author
//     is upserted and thanked with the report id;
//   - located but not addressed: stored as an unconfirmed point, and a new
//     author is invited;
//   - addressed without a location: stored as a non-spatial report and the
//     author is asked to enable location;
//   - otherwise a new author matching the keywords is invited.
//
// Events from our own account and events matching neither the account nor
// any keyword are ignored.
type Strategy struct {
	querier  Querier
	replier  Replier
	messages Messages
	tables   config.TablesConfig
	account  string
	keywords []string
	known    *KnownUsers
	logger   zerolog.Logger
}

// NewStrategy builds the report strategy.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStrategy(querier Querier, replier Replier, cfg *config.Config, logger zerolog.Logger) *Strategy {
	keywords := make([]string, 0, len(cfg.Reports.Keywords))
	for _, k := range cfg.Reports.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Strategy{
		querier:  querier,
		replier:  replier,
		messages: NewMessages(cfg.Notify.Messages, cfg.Notify.DefaultLanguage),
		tables:   cfg.Database.Tables,
		account:  strings.TrimPrefix(strings.TrimSpace(cfg.Reports.AccountName), "@"),
		keywords: keywords,
		known:    NewKnownUsers(cfg.Reports.KnownUserCacheSize, cfg.Reports.KnownUserTTL),
		logger:   logger.With().Str("component", "report-strategy").Logger(),
	}
}

// Accept implements datasource.Strategy.
func (s *Strategy) Accept(ctx context.Context, ev models.IncomingEvent) error {
	author := ev.Author.ScreenName
	if s.account != "" && strings.EqualFold(author, s.account) {
		s.logger.Debug().Str("event_id", ev.ID).Msg("ignoring our own message")
		return nil
	}

	addressed := s.Addressed(ev)
	if !addressed && !s.MatchesKeyword(ev) {
		s.logger.Debug().Str("event_id", ev.ID).Msg("event not relevant, ignoring")
		return nil
	}

	switch {
	case ev.HasLocation() && addressed:
		return s.InsertConfirmed(ctx, ev)
	case ev.HasLocation():
		if err := s.InsertUnconfirmed(ctx, ev); err != nil {
			return err
		}
		return s.InviteIfNew(ctx, ev)
	case addressed:
		if err := s.InsertNonSpatial(ctx, ev); err != nil {
			return err
		}
		return s.reply(ctx, ev, MessageAskForGeo, "", nil)
	default:
		return s.InviteIfNew(ctx, ev)
	}
}

// Addressed reports whether the event mentions our account.
func (s *Strategy) Addressed(ev models.IncomingEvent) bool {
	if s.account == "" {
		return false
	}
	for _, m := range ev.Mentions {
		if strings.EqualFold(strings.TrimPrefix(m, "@"), s.account) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(ev.Text), "@"+strings.ToLower(s.account))
}

// MatchesKeyword reports whether the text or hashtags contain a keyword.
func (s *Strategy) MatchesKeyword(ev models.IncomingEvent) bool {
	text := strings.ToLower(ev.Text)
	for _, k := range s.keywords {
		if strings.Contains(text, k) {
			return true
		}
		for _, h := range ev.Hashtags {
			if strings.EqualFold(strings.TrimPrefix(h, "#"), k) {
				return true
			}
		}
	}
	return false
}

// InsertConfirmed stores a located, addressed report, upserts its author and
// thanks them with the report id.
func (s *Strategy) InsertConfirmed(ctx context.Context, ev models.IncomingEvent) error {
	res, err := s.query(ctx, storage.Query{
		Name: "insert_confirmed",
		Text: "INSERT INTO " + s.tables.Tweets + " " +
			"(created_at, text, hashtags, text_urls, user_mentions, lang, url, tweet_id, the_geom) " +
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ST_GeomFromText('POINT(' || $9 || ')',4326)) RETURNING pkey;",
		Args: []any{
			ev.CreatedAt, ev.Text, jsonList(ev.Hashtags), jsonList(ev.URLs), jsonList(ev.Mentions),
			ev.Lang, ev.URL, externalID(ev), ev.Location.WKT(),
		},
	})
	if err != nil {
		return err
	}
	fkey, ok := res.Value("pkey")
	if !ok {
		return ErrMissingReportKey
	}
	s.logger.Info().Str("event_id", ev.ID).Msg("logged confirmed report")

	if _, err := s.query(ctx, storage.Query{
		Name: "upsert_user",
		Text: "SELECT upsert_tweet_users(md5($1));",
		Args: []any{ev.Author.ScreenName},
	}); err != nil {
		return err
	}
	s.known.Remember(ev.Author.ScreenName)
	s.logger.Info().Str("event_id", ev.ID).Msg("logged confirmed report user")

	res, err = s.query(ctx, storage.Query{
		Name: "select_report_id",
		Text: "SELECT pkey FROM " + s.tables.AllReports + " WHERE fkey = $1 AND source = '" + reportSource + "';",
		Args: []any{fkey},
	})
	if err != nil {
		return err
	}
	reportID, ok := res.Value("pkey")
	if !ok {
		return fmt.Errorf("report %v: %w", fkey, ErrMissingReportKey)
	}

	// The report id makes every thank-you unique.
	return s.reply(ctx, ev, MessageThanks, fmt.Sprint(reportID), nil)
}

// InsertUnconfirmed stores the point of a located report that was not
// addressed to us.
func (s *Strategy) InsertUnconfirmed(ctx context.Context, ev models.IncomingEvent) error {
	_, err := s.query(ctx, storage.Query{
		Name: "insert_unconfirmed",
		Text: "INSERT INTO " + s.tables.Unconfirmed + " (created_at, the_geom) " +
			"VALUES ($1, ST_GeomFromText('POINT(' || $2 || ')',4326));",
		Args: []any{ev.CreatedAt, ev.Location.WKT()},
	})
	if err == nil {
		s.logger.Info().Str("event_id", ev.ID).Msg("logged unconfirmed report")
	}
	return err
}

// InsertNonSpatial stores an addressed report without a location and records
// its author when new.
func (s *Strategy) InsertNonSpatial(ctx context.Context, ev models.IncomingEvent) error {
	if _, err := s.query(ctx, storage.Query{
		Name: "insert_nonspatial",
		Text: "INSERT INTO " + s.tables.NonSpatialTweets + " " +
			"(created_at, text, hashtags, urls, user_mentions, lang) VALUES ($1, $2, $3, $4, $5, $6);",
		Args: []any{ev.CreatedAt, ev.Text, jsonList(ev.Hashtags), jsonList(ev.URLs), jsonList(ev.Mentions), ev.Lang},
	}); err != nil {
		return err
	}
	s.logger.Info().Str("event_id", ev.ID).Msg("inserted non-spatial report")

	isNew, err := s.IsNewUser(ctx, ev.Author.ScreenName)
	if err != nil || !isNew {
		return err
	}
	if _, err := s.query(ctx, storage.Query{
		Name: "insert_nonspatial_user",
		Text: "INSERT INTO " + s.tables.NonSpatialUsers + " (user_hash) VALUES (md5($1));",
		Args: []any{ev.Author.ScreenName},
	}); err != nil {
		return err
	}
	s.known.Remember(ev.Author.ScreenName)
	s.logger.Info().Msg("inserted non-spatial user")
	return nil
}

// InviteIfNew invites an author we have never heard from and records them as
// invited once the invitation went out.
func (s *Strategy) InviteIfNew(ctx context.Context, ev models.IncomingEvent) error {
	isNew, err := s.IsNewUser(ctx, ev.Author.ScreenName)
	if err != nil || !isNew {
		return err
	}

	var insertErr error
	replyErr := s.reply(ctx, ev, MessageInvite, "", func() {
		insertErr = s.InsertInvitee(ctx, ev.Author.ScreenName)
	})
	if replyErr != nil {
		return replyErr
	}
	return insertErr
}

// InsertInvitee records that screenName was invited.
func (s *Strategy) InsertInvitee(ctx context.Context, screenName string) error {
	if _, err := s.query(ctx, storage.Query{
		Name: "insert_invitee",
		Text: "INSERT INTO " + s.tables.Invitees + " (user_hash) VALUES (md5($1));",
		Args: []any{screenName},
	}); err != nil {
		return err
	}
	s.known.Remember(screenName)
	s.logger.Info().Str("user", screenName).Msg("logged new invitee")
	return nil
}

// reply resolves kind for the event's languages, appends suffix and sends it.
// A blacklisted author is not an error.
func (s *Strategy) reply(ctx context.Context, ev models.IncomingEvent, kind, suffix string, onSent func()) error {
	text, ok := s.messages.Get(kind, ev.Languages())
	if !ok {
		s.logger.Warn().Str("kind", kind).Strs("langs", ev.Languages()).Msg("message could not be resolved")
		return fmt.Errorf("no %s message configured", kind)
	}

	err := s.replier.Reply(ctx, ev.Author.ScreenName, externalID(ev), text+suffix, onSent)
	if errors.Is(err, notify.ErrBlacklisted) {
		return nil
	}
	return err
}

// query runs q and returns its result.
func (s *Strategy) query(ctx context.Context, q storage.Query) (storage.Result, error) {
	var res storage.Result
	err := s.querier.DBQuery(ctx, q, func(r storage.Result) { res = r })
	return res, err
}

func externalID(ev models.IncomingEvent) string {
	if ev.ExternalID != "" {
		return ev.ExternalID
	}
	return ev.ID
}

// jsonList encodes a list column as JSON text, the representation used by
// the report tables for hashtags, urls and mentions.
func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
