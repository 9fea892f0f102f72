// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/metrics"
	"github.com/petabencana/sitioss-reports/internal/models"
)

const (
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 32 * time.Second

	defaultEventTimeout = 2 * time.Minute
)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithBackoff sets the feed restart backoff bounds.
func WithBackoff(minDelay, maxDelay time.Duration) AdapterOption {
	return func(a *Adapter) {
		if minDelay > 0 {
			a.minBackoff = minDelay
		}
		if maxDelay >= a.minBackoff {
			a.maxBackoff = maxDelay
		}
	}
}

// WithEventTimeout bounds the strategy call for one event.
func WithEventTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.eventTimeout = d
		}
	}
}

// WithName overrides the source name, which defaults to the feed name.
func WithName(name string) AdapterOption {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

type pending struct {
	ev     models.IncomingEvent
	replay bool
}

// Adapter is the generic DataSource: a Feed supplies events and a Strategy
// processes them. Accepted events are processed one at a time, in the order
// they were routed, by a drain goroutine that exists only while work is
// queued. Filter therefore never waits on the strategy.
type Adapter struct {
	name     string
	feed     Feed
	strategy Strategy
	logger   zerolog.Logger
	buffer   Buffer

	minBackoff   time.Duration
	maxBackoff   time.Duration
	eventTimeout time.Duration

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	queueMu  sync.Mutex
	idle     *sync.Cond
	queue    []pending
	draining bool
}

// NewAdapter returns a data source reading feed and processing with strategy.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAdapter(feed Feed, strategy Strategy, logger zerolog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		name:       feed.Name(),
		feed:       feed,
		strategy:   strategy,
		minBackoff:   defaultMinBackoff,
		maxBackoff:   defaultMaxBackoff,
		eventTimeout: defaultEventTimeout,
	}
	a.idle = sync.NewCond(&a.queueMu)
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.With().Str("source", a.name).Logger()
	return a
}

// Name implements DataSource.
func (a *Adapter) Name() string {
	return a.name
}

// Filter implements DataSource.
func (a *Adapter) Filter(ev models.IncomingEvent) {
	metrics.RecordEventReceived(a.name)

	if a.buffer.Route(ev, a.enqueue) {
		n := a.buffer.Len()
		metrics.SetBuffering(a.name, true, n)
		a.logger.Debug().Str("event_id", ev.ID).Int("buffered", n).Msg("event buffered")
	}
}

// EnableBufferingMode implements Bufferable.
func (a *Adapter) EnableBufferingMode() {
	if a.buffer.Enable() {
		a.logger.Info().Msg("buffering mode enabled")
	} else {
		a.logger.Info().Msg("buffering mode already enabled")
	}
	metrics.SetBuffering(a.name, true, a.buffer.Len())
}

// DisableBufferingMode implements Bufferable. Every buffered event has been
// resubmitted in arrival order by the time it returns.
func (a *Adapter) DisableBufferingMode() {
	n := a.buffer.Disable(a.enqueueReplay)
	metrics.SetBuffering(a.name, false, 0)
	metrics.RecordReplay(a.name, n, 0)
	a.logger.Info().Int("replayed", n).Msg("buffering mode disabled")
}

// Buffering implements Inspectable.
func (a *Adapter) Buffering() bool {
	return a.buffer.Buffering()
}

// Buffered implements Inspectable.
func (a *Adapter) Buffered() int {
	return a.buffer.Len()
}

// Start implements DataSource.
func (a *Adapter) Start(ctx context.Context) {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	if a.cancel != nil {
		a.logger.Debug().Msg("source already started")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go a.run(runCtx, a.done)
	a.logger.Info().Msg("source started")
}

// Stop implements DataSource. It waits for the feed to return and for
// queued events to finish processing.
func (a *Adapter) Stop() {
	a.lifeMu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.lifeMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		a.logger.Info().Msg("source stopped")
	}
	a.Wait()
}

// Wait blocks until every routed event has been processed.
func (a *Adapter) Wait() {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	for a.draining {
		a.idle.Wait()
	}
}

// run keeps the feed alive until ctx is canceled.
func (a *Adapter) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	delay := a.minBackoff
	for {
		emitted := false
		err := a.runFeed(ctx, func(ev models.IncomingEvent) {
			emitted = true
			a.Filter(ev)
		})
		if ctx.Err() != nil {
			return
		}
		if emitted {
			delay = a.minBackoff
		}

		a.logger.Warn().Err(err).Dur("retry_in", delay).Msg("feed stopped, restarting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > a.maxBackoff {
			delay = a.maxBackoff
		}
	}
}

func (a *Adapter) runFeed(ctx context.Context, emit func(models.IncomingEvent)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feed panic: %v", r)
		}
	}()
	err = a.feed.Run(ctx, emit)
	if err == nil {
		err = fmt.Errorf("feed %s returned", a.feed.Name())
	}
	return err
}

func (a *Adapter) enqueue(ev models.IncomingEvent) {
	a.push(pending{ev: ev})
}

func (a *Adapter) enqueueReplay(ev models.IncomingEvent) {
	a.push(pending{ev: ev, replay: true})
}

func (a *Adapter) push(p pending) {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()

	a.queue = append(a.queue, p)
	if a.draining {
		return
	}
	a.draining = true
	go a.drain()
}

func (a *Adapter) drain() {
	for {
		a.queueMu.Lock()
		if len(a.queue) == 0 {
			a.draining = false
			a.idle.Broadcast()
			a.queueMu.Unlock()
			return
		}
		p := a.queue[0]
		a.queue[0] = pending{}
		a.queue = a.queue[1:]
		a.queueMu.Unlock()

		a.process(p)
	}
}

// process runs the strategy on one event. In-flight writes are not tied to
// the source lifetime, only to the event timeout, so a hung store cannot
// hold the drain goroutine.
func (a *Adapter) process(p pending) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("event_id", p.ev.ID).
				Str("panic", fmt.Sprint(r)).
				Msg("strategy panicked")
			if p.replay {
				metrics.RecordReplay(a.name, 0, 1)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), a.eventTimeout)
	defer cancel()

	if err := a.strategy.Accept(ctx, p.ev); err != nil {
		a.logger.Error().Err(err).Str("event_id", p.ev.ID).Bool("replay", p.replay).Msg("event processing failed")
		if p.replay {
			metrics.RecordReplay(a.name, 0, 1)
		}
	}
}
