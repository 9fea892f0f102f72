// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package datasource defines the contract every upstream feed satisfies and
// the generic adapter that turns a transport plus a report strategy into a
// data source with buffering mode.
//
// A data source receives raw events from one feed and hands each accepted
// event to Filter. While buffering mode is on, Filter appends the event to a
// per-source FIFO instead of processing it. Turning buffering mode off
// resubmits the buffered events in arrival order before any newer event is
// processed.
package datasource

import (
	"context"

	"github.com/petabencana/sitioss-reports/internal/models"
)

// DataSource is one upstream feed plugged into the pipeline.
type DataSource interface {
	// Name identifies the source in logs, metrics and the status endpoint.
	Name() string

	// Filter is the single entry point for every accepted upstream event.
	// It never blocks on storage I/O.
	Filter(ev models.IncomingEvent)

	// Start begins receiving from the feed. Calling it again is a no-op.
	// Connection failures are logged and retried, never returned.
	Start(ctx context.Context)

	// Stop ceases receiving and releases the feed. It is safe to call
	// without a prior Start.
	Stop()
}

// Bufferable is implemented by sources that can ride out a storage outage.
type Bufferable interface {
	EnableBufferingMode()
	DisableBufferingMode()
}

// Inspectable exposes buffering state for the status endpoint.
type Inspectable interface {
	Buffering() bool
	Buffered() int
}

// Strategy is the per-feed accept, reject and persist logic.
type Strategy interface {
	Accept(ctx context.Context, ev models.IncomingEvent) error
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, ev models.IncomingEvent) error

// Accept calls f.
func (f StrategyFunc) Accept(ctx context.Context, ev models.IncomingEvent) error {
	return f(ctx, ev)
}

// Feed is a transport that delivers raw events. Run blocks until ctx is
// canceled or the transport fails; the adapter restarts it with backoff.
type Feed interface {
	Name() string
	Run(ctx context.Context, emit func(models.IncomingEvent)) error
}
