// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package reports

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/logging"
	"github.com/petabencana/sitioss-reports/internal/models"
	"github.com/petabencana/sitioss-reports/internal/notify"
	"github.com/petabencana/sitioss-reports/internal/storage"
)

// scriptedQuerier answers queries by name.
type scriptedQuerier struct {
	results map[string]storage.Result
	errs    map[string]error
	names   []string
	args    map[string][]any
}

func newScriptedQuerier() *scriptedQuerier {
	return &scriptedQuerier{
		results: map[string]storage.Result{},
		errs:    map[string]error{},
		args:    map[string][]any{},
	}
}

func (q *scriptedQuerier) DBQuery(_ context.Context, query storage.Query, onSuccess func(storage.Result)) error {
	q.names = append(q.names, query.Name)
	q.args[query.Name] = query.Args
	if err := q.errs[query.Name]; err != nil {
		return err
	}
	onSuccess(q.results[query.Name])
	return nil
}

func (q *scriptedQuerier) sequence() string {
	return strings.Join(q.names, ",")
}

type sentReply struct {
	to, inReplyTo, text string
}

type fakeReplier struct {
	replies []sentReply
	err     error
}

func (r *fakeReplier) Reply(_ context.Context, to, inReplyTo, text string, onSent func()) error {
	if r.err != nil {
		return r.err
	}
	r.replies = append(r.replies, sentReply{to, inReplyTo, text})
	if onSent != nil {
		onSent()
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Tables: config.TablesConfig{
			AllReports:       "all_reports",
			Tweets:           "tweet_reports",
			Invitees:         "tweet_invitees",
			Unconfirmed:      "tweet_reports_unconfirmed",
			NonSpatialUsers:  "nonspatial_tweet_users",
			NonSpatialTweets: "nonspatial_tweet_reports",
			AllUsers:         "tweet_all_users",
		}},
		Notify: config.NotifyConfig{
			DefaultLanguage: "en",
			Messages: map[string]map[string]string{
				MessageInvite:    {"en": "Join us", "id": "Gabung"},
				MessageAskForGeo: {"en": "Enable location"},
				MessageThanks:    {"en": "Thanks! Report #", "id": "Terima kasih! Laporan #"},
			},
		},
		Reports: config.ReportsConfig{
			AccountName:        "@petabencana",
			Keywords:           []string{"Banjir", "flood"},
			KnownUserCacheSize: 100,
			KnownUserTTL:       time.Minute,
		},
	}
}

func newTestStrategy() (*Strategy, *scriptedQuerier, *fakeReplier) {
	q := newScriptedQuerier()
	r := &fakeReplier{}
	return NewStrategy(q, r, testConfig(), logging.Nop()), q, r
}

func located(text string) models.IncomingEvent {
	return models.IncomingEvent{
		ID:         "ev-1",
		ExternalID: "tw-99",
		Author:     models.Author{ScreenName: "warga", Lang: "id"},
		Text:       text,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Location:   &models.Coordinates{Lat: -6.2, Lng: 106.8},
	}
}

func TestStrategyConfirmedReport(t *testing.T) {
	s, q, r := newTestStrategy()
	q.results["insert_confirmed"] = storage.Result{Rows: []storage.Row{{"pkey": int64(7)}}}
	q.results["select_report_id"] = storage.Result{Rows: []storage.Row{{"pkey": int64(1234)}}}

	if err := s.Accept(context.Background(), located("banjir di sini @petabencana")); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if got, want := q.sequence(), "insert_confirmed,upsert_user,select_report_id"; got != want {
		t.Errorf("queries = %s, want %s", got, want)
	}
	if geom := q.args["insert_confirmed"][8]; geom != "106.8 -6.2" {
		t.Errorf("geometry arg = %v", geom)
	}
	if fkey := q.args["select_report_id"][0]; fkey != int64(7) {
		t.Errorf("fkey arg = %v, want 7", fkey)
	}
	if len(r.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(r.replies))
	}
	if got := r.replies[0]; got.text != "Terima kasih! Laporan #1234" || got.inReplyTo != "tw-99" || got.to != "warga" {
		t.Errorf("unexpected reply %+v", got)
	}
}

func TestStrategyConfirmedMissingKey(t *testing.T) {
	s, _, r := newTestStrategy()
	err := s.Accept(context.Background(), located("@petabencana banjir"))
	if !errors.Is(err, ErrMissingReportKey) {
		t.Fatalf("expected ErrMissingReportKey, got %v", err)
	}
	if len(r.replies) != 0 {
		t.Error("no reply expected without a report key")
	}
}

func TestStrategyUnconfirmedInvitesNewUser(t *testing.T) {
	s, q, r := newTestStrategy()

	if err := s.Accept(context.Background(), located("banjir setinggi lutut")); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got, want := q.sequence(), "insert_unconfirmed,select_user,insert_invitee"; got != want {
		t.Errorf("queries = %s, want %s", got, want)
	}
	if len(r.replies) != 1 || r.replies[0].text != "Gabung" {
		t.Errorf("replies = %+v", r.replies)
	}

	// The invitee is now known; a second report costs no user lookup.
	q.names = nil
	if err := s.Accept(context.Background(), located("banjir lagi")); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := q.sequence(); got != "insert_unconfirmed" {
		t.Errorf("queries = %s, want insert_unconfirmed", got)
	}
}

func TestStrategyNonSpatial(t *testing.T) {
	s, q, r := newTestStrategy()
	ev := located("@PetaBencana tolong")
	ev.Location = nil
	ev.Author.Lang = "en"

	if err := s.Accept(context.Background(), ev); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got, want := q.sequence(), "insert_nonspatial,select_user,insert_nonspatial_user"; got != want {
		t.Errorf("queries = %s, want %s", got, want)
	}
	if len(r.replies) != 1 || r.replies[0].text != "Enable location" {
		t.Errorf("replies = %+v", r.replies)
	}
}

func TestStrategyExistingUserNotInvited(t *testing.T) {
	s, q, r := newTestStrategy()
	q.results["select_user"] = storage.Result{Rows: []storage.Row{{"user_hash": UserHash("warga")}}}
	ev := located("flood warning")
	ev.Location = nil

	if err := s.Accept(context.Background(), ev); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := q.sequence(); got != "select_user" {
		t.Errorf("queries = %s, want select_user", got)
	}
	if len(r.replies) != 0 {
		t.Errorf("existing user should not be invited: %+v", r.replies)
	}
}

func TestStrategyIgnores(t *testing.T) {
	tests := []struct {
		name string
		ev   models.IncomingEvent
	}{
		{"own account", models.IncomingEvent{Author: models.Author{ScreenName: "PetaBencana"}, Text: "banjir"}},
		{"irrelevant", models.IncomingEvent{Author: models.Author{ScreenName: "warga"}, Text: "selamat pagi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, q, r := newTestStrategy()
			if err := s.Accept(context.Background(), tt.ev); err != nil {
				t.Fatalf("Accept: %v", err)
			}
			if len(q.names) != 0 || len(r.replies) != 0 {
				t.Errorf("expected no work, got queries=%v replies=%v", q.names, r.replies)
			}
		})
	}
}

func TestStrategyHashtagMatchesKeyword(t *testing.T) {
	s, _, _ := newTestStrategy()
	ev := models.IncomingEvent{Text: "air naik", Hashtags: []string{"#Banjir"}}
	if !s.MatchesKeyword(ev) {
		t.Error("hashtag should match keyword")
	}
}

func TestStrategyBlacklistedReplyIsNotAnError(t *testing.T) {
	s, q, r := newTestStrategy()
	r.err = notify.ErrBlacklisted
	ev := located("flood")
	ev.Location = nil

	if err := s.Accept(context.Background(), ev); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := q.sequence(); got != "select_user" {
		t.Errorf("invitee must not be recorded without an invitation: %s", got)
	}
}

func TestStrategyStopsOnQueryError(t *testing.T) {
	s, q, r := newTestStrategy()
	q.errs["insert_unconfirmed"] = &storage.Error{Class: storage.ClassQuery, Err: errors.New("relation missing")}

	if err := s.Accept(context.Background(), located("banjir")); err == nil {
		t.Fatal("expected error")
	}
	if got := q.sequence(); got != "insert_unconfirmed" {
		t.Errorf("queries = %s", got)
	}
	if len(r.replies) != 0 {
		t.Error("no reply after a failed insert")
	}
}

func TestMessagesGet(t *testing.T) {
	m := NewMessages(testConfig().Notify.Messages, "en")

	tests := []struct {
		kind  string
		langs []string
		want  string
		ok    bool
	}{
		{MessageThanks, []string{"id"}, "Terima kasih! Laporan #", true},
		{MessageThanks, []string{"fr", "id"}, "Terima kasih! Laporan #", true},
		{MessageAskForGeo, []string{"id"}, "Enable location", true},
		{MessageInvite, nil, "Join us", true},
		{"unknown_text", []string{"en"}, "", false},
	}
	for _, tt := range tests {
		got, ok := m.Get(tt.kind, tt.langs)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Get(%s, %v) = %q,%v want %q,%v", tt.kind, tt.langs, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUserHash(t *testing.T) {
	if got := UserHash("warga"); len(got) != 32 {
		t.Errorf("UserHash length = %d, want 32", len(got))
	}
	if UserHash("a") == UserHash("b") {
		t.Error("distinct users must hash differently")
	}
}
