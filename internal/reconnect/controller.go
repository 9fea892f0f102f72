// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package reconnect drives recovery from storage outages.
//
// A connection-level fault moves the controller from HEALTHY to
// OUTAGE_BUFFERING and puts every data source into buffering mode. The store
// is then probed, first immediately and afterwards at a fixed delay. A
// successful probe takes the sources out of buffering mode, which replays
// what they held, and returns to HEALTHY once every source has been told.
// A fault during that replay puts the sources back into buffering mode and
// starts a new outage. When the attempts run out the controller notifies
// the operators once and exits the process.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/petabencana/sitioss-reports/internal/metrics"
)

// ErrTerminal is returned by Serve once reconnection has been abandoned.
var ErrTerminal = errors.New("storage reconnection attempts exhausted")

// State is the controller state.
type State int

const (
	Healthy State = iota
	OutageBuffering
	Recovering
	FailedTerminal
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "HEALTHY"
	case OutageBuffering:
		return "OUTAGE_BUFFERING"
	case Recovering:
		return "RECOVERING"
	case FailedTerminal:
		return "FAILED_TERMINAL"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pipeline is the orchestrator side the controller calls back into.
type Pipeline interface {
	EnableCacheMode()
	DisableCacheMode()
	NotifyAdmin(ctx context.Context, text string) error
}

// ProbeFunc makes one reconnection attempt.
type ProbeFunc func(ctx context.Context) error

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config holds the retry policy.
type Config struct {
	Delay        time.Duration
	MaxAttempts  int
	ProbeTimeout time.Duration
	ExitGrace    time.Duration
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithExit replaces the process exit.
func WithExit(exit func(code int)) Option {
	return func(ctl *Controller) { ctl.exit = exit }
}

// Controller is the reconnection state machine.
type Controller struct {
	pipeline Pipeline
	probe    ProbeFunc
	cfg      Config
	logger   zerolog.Logger
	clock    Clock
	exit     func(code int)

	mu       sync.Mutex
	state    State
	attempts int
	timer    Timer
	baseCtx  context.Context
	// replaying is set while sources are being taken out of buffering mode;
	// refault records a fault seen during that window.
	replaying bool
	refault   bool
	stopped  bool
	terminal chan struct{}
}

// NewController returns a controller in the HEALTHY state. exit defaults to
// a no-op so that only the process entry point can end the process.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewController(pipeline Pipeline, probe ProbeFunc, cfg Config, logger zerolog.Logger, opts ...Option) *Controller {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	c := &Controller{
		pipeline: pipeline,
		probe:    probe,
		cfg:      cfg,
		logger:   logger,
		clock:    realClock{},
		exit:     func(int) {},
		baseCtx:  context.Background(),
		terminal: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.SetReconnectState(int(Healthy), 0)
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of failed probes in the current outage.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Terminal is closed when the controller gives up.
func (c *Controller) Terminal() <-chan struct{} {
	return c.terminal
}

// HandleFault is the storage fault handler. Only the first fault of an
// outage changes anything; later ones are logged and ignored.
func (c *Controller) HandleFault(err error) {
	c.mu.Lock()
	if c.replaying && !c.stopped {
		first := !c.refault
		c.refault = true
		c.mu.Unlock()
		if first {
			c.logger.Error().Err(err).Msg("storage connection error during replay, buffering again")
			c.pipeline.EnableCacheMode()
		}
		return
	}
	if c.state != Healthy || c.stopped {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Err(err).Str("state", state.String()).Msg("storage fault during outage ignored")
		return
	}
	c.state = OutageBuffering
	c.attempts = 0
	c.mu.Unlock()

	metrics.RecordOutage()
	metrics.SetReconnectState(int(OutageBuffering), 0)
	c.logger.Error().Err(err).Msg("storage connection error, enabling buffering mode and attempting to reconnect")

	c.pipeline.EnableCacheMode()
	c.scheduleFirstProbe()
}

func (c *Controller) scheduleFirstProbe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == OutageBuffering && !c.stopped {
		c.timer = c.clock.AfterFunc(0, c.attempt)
	}
}

// runProbe turns a probe panic into a failed attempt.
func (c *Controller) runProbe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("panic", fmt.Sprint(r)).Msg("reconnection probe panicked")
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	return c.probe(ctx)
}

// attempt runs one probe and decides the next step.
func (c *Controller) attempt() {
	c.mu.Lock()
	if c.stopped || c.state == Healthy || c.state == FailedTerminal {
		c.mu.Unlock()
		return
	}
	ctx := c.baseCtx
	c.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	err := c.runProbe(probeCtx)
	cancel()
	metrics.RecordProbe(err == nil)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}

	if err == nil {
		c.state = Recovering
		c.attempts = 0
		c.timer = nil
		c.replaying = true
		c.refault = false
		c.mu.Unlock()

		c.logger.Info().Msg("storage reconnection succeeded, resuming real time processing")
		c.resume()
		return
	}

	c.attempts++
	attempts := c.attempts
	if attempts >= c.cfg.MaxAttempts {
		c.state = FailedTerminal
		c.timer = nil
		c.mu.Unlock()

		metrics.SetReconnectState(int(FailedTerminal), attempts)
		c.terminate(ctx, err, attempts)
		return
	}

	c.state = Recovering
	c.timer = c.clock.AfterFunc(c.cfg.Delay, c.attempt)
	c.mu.Unlock()

	metrics.SetReconnectState(int(Recovering), attempts)
	c.logger.Error().
		Err(err).
		Int("attempt", attempts).
		Int("max_attempts", c.cfg.MaxAttempts).
		Dur("retry_in", c.cfg.Delay).
		Msg("storage reconnection failed, queuing next attempt")
}

// resume takes every source out of buffering mode. The state stays
// RECOVERING until all of them have replayed; a fault in the meantime opens
// a new outage once the fan-out is done.
func (c *Controller) resume() {
	c.pipeline.DisableCacheMode()

	c.mu.Lock()
	c.replaying = false
	refault := c.refault
	c.refault = false
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if !refault {
		c.state = Healthy
		c.mu.Unlock()
		metrics.SetReconnectState(int(Healthy), 0)
		return
	}
	c.state = OutageBuffering
	c.mu.Unlock()

	metrics.RecordOutage()
	metrics.SetReconnectState(int(OutageBuffering), 0)
	c.logger.Error().Msg("storage failed again during replay, re-entering buffering mode")

	c.pipeline.EnableCacheMode()
	c.scheduleFirstProbe()
}

// terminate runs once: the transition to FailedTerminal happens under the
// lock and nothing leaves that state.
func (c *Controller) terminate(ctx context.Context, cause error, attempts int) {
	c.logger.Error().
		Err(cause).
		Int("attempts", attempts).
		Msg("maximum storage reconnection attempts reached, exiting")

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ProbeTimeout)
	text := fmt.Sprintf("Storage unreachable after %d reconnection attempts, reports ingestion is shutting down", attempts)
	if err := c.notifyAdmin(notifyCtx, text); err != nil {
		c.logger.Error().Err(err).Msg("admin notification failed")
	}
	cancel()

	close(c.terminal)

	c.logger.Info().Int("status", 1).Dur("grace", c.cfg.ExitGrace).Msg("exiting with status")
	if c.cfg.ExitGrace > 0 {
		time.Sleep(c.cfg.ExitGrace)
	}
	c.exit(1)
}

func (c *Controller) notifyAdmin(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("admin notification panic: %v", r)
		}
	}()
	return c.pipeline.NotifyAdmin(ctx, text)
}

// Serve implements suture.Service. Probes run under ctx; cancelling it
// stops any pending probe.
func (c *Controller) Serve(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.stopped = false
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		c.stopped = true
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.mu.Unlock()
		return ctx.Err()
	case <-c.terminal:
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, ErrTerminal)
	}
}

// String implements fmt.Stringer for suture logs.
func (c *Controller) String() string {
	return "reconnect-controller"
}
