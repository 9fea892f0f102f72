// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petabencana/sitioss-reports/internal/logging"
	"github.com/petabencana/sitioss-reports/internal/models"
)

// Compile-time interface checks.
var (
	_ DataSource  = (*Adapter)(nil)
	_ Bufferable  = (*Adapter)(nil)
	_ Inspectable = (*Adapter)(nil)
	_ Feed        = (*WebsocketFeed)(nil)
	_ Feed        = (*NATSFeed)(nil)
	_ Feed        = (*RedisFeed)(nil)
	_ Feed        = (*KafkaFeed)(nil)
	_ Feed        = (*WebhookFeed)(nil)
)

func TestAdapterProcessesInOrder(t *testing.T) {
	strategy := &recordingStrategy{}
	a := NewAdapter(newChanFeed(), strategy, logging.Nop())

	want := []string{"1", "2", "3", "4"}
	for _, id := range want {
		a.Filter(event(id))
	}
	a.Wait()

	if got := strategy.accepted(); !equalIDs(got, want) {
		t.Errorf("accepted = %v, want %v", got, want)
	}
}

func TestAdapterBufferingReplay(t *testing.T) {
	strategy := &recordingStrategy{}
	a := NewAdapter(newChanFeed(), strategy, logging.Nop())

	a.Filter(event("before"))
	a.Wait()

	a.EnableBufferingMode()
	var buffered []string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("b%d", i)
		buffered = append(buffered, id)
		a.Filter(event(id))
	}
	a.Wait()

	if got := strategy.accepted(); !equalIDs(got, []string{"before"}) {
		t.Fatalf("events processed while buffering: %v", got)
	}
	if !a.Buffering() || a.Buffered() != 10 {
		t.Fatalf("Buffering()=%v Buffered()=%d, want true/10", a.Buffering(), a.Buffered())
	}

	a.DisableBufferingMode()
	a.Filter(event("after"))
	a.Wait()

	want := append(append([]string{"before"}, buffered...), "after")
	if got := strategy.accepted(); !equalIDs(got, want) {
		t.Errorf("accepted = %v, want %v", got, want)
	}
	if a.Buffered() != 0 {
		t.Errorf("Buffered() = %d after replay, want 0", a.Buffered())
	}
}

func TestAdapterDoubleEnableKeepsBuffer(t *testing.T) {
	strategy := &recordingStrategy{}
	a := NewAdapter(newChanFeed(), strategy, logging.Nop())

	a.EnableBufferingMode()
	a.Filter(event("x"))
	a.EnableBufferingMode()

	if a.Buffered() != 1 {
		t.Fatalf("Buffered() = %d, want 1", a.Buffered())
	}
	a.DisableBufferingMode()
	a.Wait()
	if got := strategy.accepted(); !equalIDs(got, []string{"x"}) {
		t.Errorf("accepted = %v, want [x]", got)
	}
}

func TestAdapterReplayContinuesPastErrors(t *testing.T) {
	strategy := &recordingStrategy{fail: map[string]error{"2": errors.New("insert failed")}}
	panicky := StrategyFunc(func(ctx context.Context, ev models.IncomingEvent) error {
		if ev.ID == "3" {
			panic("bad event")
		}
		return strategy.Accept(ctx, ev)
	})
	a := NewAdapter(newChanFeed(), panicky, logging.Nop())

	a.EnableBufferingMode()
	for _, id := range []string{"1", "2", "3", "4"} {
		a.Filter(event(id))
	}
	a.DisableBufferingMode()
	a.Wait()

	if got := strategy.accepted(); !equalIDs(got, []string{"1", "2", "4"}) {
		t.Errorf("accepted = %v, want [1 2 4]", got)
	}
}

func TestAdapterStartStop(t *testing.T) {
	t.Run("stop without start", func(t *testing.T) {
		a := NewAdapter(newChanFeed(), &recordingStrategy{}, logging.Nop())
		a.Stop()
	})

	t.Run("start is idempotent", func(t *testing.T) {
		feed := newChanFeed()
		strategy := &recordingStrategy{}
		a := NewAdapter(feed, strategy, logging.Nop())

		a.Start(context.Background())
		a.Start(context.Background())

		feed.events <- event("live")
		waitFor(t, time.Second, func() bool { return len(strategy.accepted()) == 1 }, "live event")

		a.Stop()
		a.Stop()

		if len(feed.runs) != 1 {
			t.Errorf("feed ran %d times, want 1", len(feed.runs))
		}
	})
}

func TestAdapterRestartsFailedFeed(t *testing.T) {
	feed := newChanFeed()
	feed.err = errors.New("upstream refused")

	a := NewAdapter(feed, &recordingStrategy{}, logging.Nop(), WithBackoff(5*time.Millisecond, 20*time.Millisecond))
	a.Start(context.Background())
	defer a.Stop()

	waitFor(t, 2*time.Second, func() bool { return len(feed.runs) >= 3 }, "feed restarts")
}

func TestAdapterFilterDoesNotBlockOnStrategy(t *testing.T) {
	release := make(chan struct{})
	var accepted atomic.Int32
	slow := StrategyFunc(func(context.Context, models.IncomingEvent) error {
		<-release
		accepted.Add(1)
		return nil
	})
	a := NewAdapter(newChanFeed(), slow, logging.Nop(), WithName("slow"))

	done := make(chan struct{})
	go func() {
		a.Filter(event("1"))
		a.Filter(event("2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Filter blocked on the strategy")
	}

	close(release)
	a.Wait()
	if accepted.Load() != 2 {
		t.Errorf("accepted = %d, want 2", accepted.Load())
	}
	if a.Name() != "slow" {
		t.Errorf("Name() = %q, want slow", a.Name())
	}
}

func TestAdapterEventTimeoutUnblocksDrain(t *testing.T) {
	var processed atomic.Int32
	hung := StrategyFunc(func(ctx context.Context, ev models.IncomingEvent) error {
		defer processed.Add(1)
		if ev.ID == "hangs" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	a := NewAdapter(newChanFeed(), hung, logging.Nop(), WithEventTimeout(20*time.Millisecond))
	a.Start(context.Background())

	a.Filter(event("hangs"))
	a.Filter(event("next"))

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked behind a strategy call that never returns")
	}
	if processed.Load() != 2 {
		t.Errorf("processed = %d, want 2", processed.Load())
	}
}
