// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/petabencana/sitioss-reports/internal/models"
)

// recordingStrategy remembers the ids of accepted events in order.
type recordingStrategy struct {
	mu   sync.Mutex
	ids  []string
	fail map[string]error
}

func (s *recordingStrategy) Accept(_ context.Context, ev models.IncomingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, ev.ID)
	if err, ok := s.fail[ev.ID]; ok {
		return err
	}
	return nil
}

func (s *recordingStrategy) accepted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// chanFeed emits whatever is sent on events.
type chanFeed struct {
	events chan models.IncomingEvent
	runs   chan struct{}
	err    error
}

func newChanFeed() *chanFeed {
	return &chanFeed{
		events: make(chan models.IncomingEvent, 16),
		runs:   make(chan struct{}, 16),
	}
}

func (f *chanFeed) Name() string { return "test" }

func (f *chanFeed) Run(ctx context.Context, emit func(models.IncomingEvent)) error {
	f.runs <- struct{}{}
	if f.err != nil {
		return f.err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.events:
			emit(ev)
		}
	}
}

func event(id string) models.IncomingEvent {
	return models.IncomingEvent{ID: id, Source: "test", Author: models.Author{ScreenName: "user"}}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
