// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petabencana/sitioss-reports/internal/logging"
	"github.com/petabencana/sitioss-reports/internal/reconnect"
)

// failingPipeline stands in for the orchestrator when the store never returns.
type failingPipeline struct{ notified int }

func (p *failingPipeline) EnableCacheMode()  {}
func (p *failingPipeline) DisableCacheMode() {}
func (p *failingPipeline) NotifyAdmin(context.Context, string) error {
	p.notified++
	return nil
}

func TestWaitForExit(t *testing.T) {
	t.Run("signal exits zero", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		code, stopped := waitForExit(ctx, make(chan struct{}), make(chan error), time.Second, logging.Nop())
		if code != 0 || stopped {
			t.Errorf("got (%d, %v), want (0, false)", code, stopped)
		}
	})

	t.Run("terminal exits one after grace", func(t *testing.T) {
		terminal := make(chan struct{})
		close(terminal)

		start := time.Now()
		code, stopped := waitForExit(context.Background(), terminal, make(chan error), 50*time.Millisecond, logging.Nop())
		if code != 1 || stopped {
			t.Errorf("got (%d, %v), want (1, false)", code, stopped)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("returned after %v, before the grace delay", elapsed)
		}
	})

	t.Run("tree failure exits one", func(t *testing.T) {
		errCh := make(chan error, 1)
		errCh <- errors.New("root supervisor gave up")
		code, stopped := waitForExit(context.Background(), make(chan struct{}), errCh, 0, logging.Nop())
		if code != 1 || !stopped {
			t.Errorf("got (%d, %v), want (1, true)", code, stopped)
		}
	})

	t.Run("tree canceled exits zero", func(t *testing.T) {
		errCh := make(chan error, 1)
		errCh <- context.Canceled
		code, stopped := waitForExit(context.Background(), make(chan struct{}), errCh, 0, logging.Nop())
		if code != 0 || !stopped {
			t.Errorf("got (%d, %v), want (0, true)", code, stopped)
		}
	})
}

func TestExhaustedReconnectionExitsOne(t *testing.T) {
	pipeline := &failingPipeline{}
	probe := func(context.Context) error { return errors.New("connection refused") }
	// Same construction as run(): no exit hook, the status comes from waitForExit.
	controller := reconnect.NewController(pipeline, probe, reconnect.Config{
		Delay:       time.Millisecond,
		MaxAttempts: 2,
		ExitGrace:   10 * time.Millisecond,
	}, logging.Nop())

	controller.HandleFault(errors.New("terminating connection"))

	done := make(chan int, 1)
	go func() {
		code, _ := waitForExit(context.Background(), controller.Terminal(), make(chan error), 10*time.Millisecond, logging.Nop())
		done <- code
	}()

	select {
	case code := <-done:
		if code != 1 {
			t.Errorf("exit status = %d, want 1", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("process would not exit after reconnection was abandoned")
	}
	if controller.State() != reconnect.FailedTerminal {
		t.Errorf("state = %v, want FAILED_TERMINAL", controller.State())
	}
	if pipeline.notified != 1 {
		t.Errorf("admin notifications = %d, want 1", pipeline.notified)
	}
}
