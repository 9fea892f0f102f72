// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*NATSServerService)(nil)

type mockNATSServer struct {
	running   atomic.Bool
	shutdowns atomic.Int32
}

func (m *mockNATSServer) IsRunning() bool { return m.running.Load() }

func (m *mockNATSServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	m.running.Store(false)
	return nil
}

func TestNATSServerServiceShutsDownOnCancel(t *testing.T) {
	server := &mockNATSServer{}
	server.running.Store(true)
	svc := NewNATSServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", server.shutdowns.Load())
	}
}

func TestNATSServerServiceDetectsStoppedServer(t *testing.T) {
	server := &mockNATSServer{}
	svc := NewNATSServerService(server, time.Second)
	svc.checkInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, ErrNATSServerStopped) {
		t.Errorf("Serve() = %v, want ErrNATSServerStopped", err)
	}
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() = %v, want suture.ErrDoNotRestart", err)
	}
}
