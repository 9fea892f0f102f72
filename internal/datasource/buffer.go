// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"sync"

	"github.com/petabencana/sitioss-reports/internal/models"
)

// Buffer holds the buffering mode flag and the FIFO of events received while
// it is set. The flag and the slice share one mutex so that an event is
// either buffered or submitted, never lost between the two, and so that a
// replay cannot interleave with newer events.
type Buffer struct {
	mu        sync.Mutex
	buffering bool
	events    []models.IncomingEvent
}

// Route buffers ev when buffering mode is on, otherwise passes it to submit.
// submit runs under the buffer lock and must not block.
func (b *Buffer) Route(ev models.IncomingEvent, submit func(models.IncomingEvent)) (buffered bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffering {
		b.events = append(b.events, ev)
		return true
	}
	submit(ev)
	return false
}

// Enable turns buffering mode on. It reports whether the mode changed;
// enabling twice leaves the buffered events untouched.
func (b *Buffer) Enable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffering {
		return false
	}
	b.buffering = true
	return true
}

// Disable turns buffering mode off and submits every buffered event in
// arrival order before returning. The buffer is empty afterwards. It returns
// the number of events replayed.
func (b *Buffer) Disable(submit func(models.IncomingEvent)) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffering = false
	events := b.events
	b.events = nil

	for i := range events {
		submit(events[i])
	}
	return len(events)
}

// Buffering reports whether buffering mode is on.
func (b *Buffer) Buffering() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffering
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
