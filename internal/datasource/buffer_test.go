// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"fmt"
	"sync"
	"testing"

	"github.com/petabencana/sitioss-reports/internal/models"
)

func TestBufferRoute(t *testing.T) {
	var b Buffer
	var submitted []string
	submit := func(ev models.IncomingEvent) { submitted = append(submitted, ev.ID) }

	if b.Route(event("a"), submit) {
		t.Fatal("event should not be buffered while mode is off")
	}
	b.Enable()
	if !b.Route(event("b"), submit) {
		t.Fatal("event should be buffered while mode is on")
	}
	if !equalIDs(submitted, []string{"a"}) {
		t.Errorf("submitted = %v, want [a]", submitted)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestBufferReplayIsFIFO(t *testing.T) {
	for _, n := range []int{0, 1, 5, 100} {
		t.Run(fmt.Sprintf("%d events", n), func(t *testing.T) {
			var b Buffer
			b.Enable()

			want := make([]string, 0, n)
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("ev-%03d", i)
				want = append(want, id)
				b.Route(event(id), func(models.IncomingEvent) { t.Fatal("must not submit while buffering") })
			}

			var got []string
			replayed := b.Disable(func(ev models.IncomingEvent) { got = append(got, ev.ID) })

			if replayed != n {
				t.Errorf("replayed = %d, want %d", replayed, n)
			}
			if !equalIDs(got, want) {
				t.Errorf("replay order = %v, want %v", got, want)
			}
			if b.Len() != 0 {
				t.Errorf("buffer not empty after replay: %d", b.Len())
			}
			if b.Buffering() {
				t.Error("buffering should be off after Disable")
			}
		})
	}
}

func TestBufferEnableIsIdempotent(t *testing.T) {
	var b Buffer

	if !b.Enable() {
		t.Fatal("first Enable should change the mode")
	}
	b.Route(event("a"), nil)
	b.Route(event("b"), nil)

	if b.Enable() {
		t.Error("second Enable should be a no-op")
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d after re-enable, want 2", b.Len())
	}
}

func TestBufferDisableWhenNotBuffering(t *testing.T) {
	var b Buffer
	if n := b.Disable(func(models.IncomingEvent) { t.Fatal("nothing to replay") }); n != 0 {
		t.Errorf("replayed = %d, want 0", n)
	}
}

func TestBufferConcurrentRoutePreservesEveryEvent(t *testing.T) {
	var b Buffer
	b.Enable()

	var mu sync.Mutex
	var submitted int
	submit := func(models.IncomingEvent) {
		mu.Lock()
		submitted++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Route(event(fmt.Sprintf("%d-%d", g, i)), submit)
			}
		}(g)
	}

	// Flip the mode while producers are running.
	replayed := b.Disable(submit)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if submitted != 400 {
		t.Errorf("submitted = %d (replayed %d), want 400", submitted, replayed)
	}
}
