// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

//go:build integration

package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/logging"
	"github.com/petabencana/sitioss-reports/internal/testinfra"
)

func TestPostgresGatewayIntegration(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("NewPostgresContainer() error = %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg)

	db, err := Open(&config.DatabaseConfig{
		Driver:       "pgx",
		DSN:          pg.DSN,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	gw := NewGateway(NewSQLConnector(db), logging.Nop())
	var faults atomic.Int32
	gw.OnFault(func(error) { faults.Add(1) })

	t.Run("probe and query", func(t *testing.T) {
		if err := gw.Probe(ctx); err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		var got any
		err := gw.Execute(ctx, Query{Name: "one", Text: "SELECT 1 AS one"}, func(r Result) {
			got, _ = r.Value("one")
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got != int64(1) {
			t.Errorf("one = %#v, want int64(1)", got)
		}
	})

	t.Run("statement error is not a fault", func(t *testing.T) {
		err := gw.Execute(ctx, Query{Name: "missing", Text: "SELECT * FROM no_such_table"}, nil)
		if !errors.Is(err, ErrQuery) {
			t.Fatalf("Execute() error = %v, want ErrQuery", err)
		}
		if faults.Load() != 0 {
			t.Errorf("faults = %d, want 0", faults.Load())
		}
	})

	t.Run("terminated backend raises a fault", func(t *testing.T) {
		err := pg.Exec(ctx, "SELECT pg_terminate_backend(pid) FROM pg_stat_activity "+
			"WHERE datname = current_database() AND pid <> pg_backend_pid()")
		if err != nil {
			t.Fatalf("terminate backends: %v", err)
		}
		time.Sleep(200 * time.Millisecond)

		err = gw.Execute(ctx, Query{Name: "after_kill", Text: "SELECT 1"}, nil)
		if !errors.Is(err, ErrConnection) {
			t.Fatalf("Execute() error = %v, want ErrConnection", err)
		}
		if faults.Load() != 1 {
			t.Errorf("faults = %d, want 1", faults.Load())
		}

		if err := gw.Probe(ctx); err != nil {
			t.Errorf("Probe() after reconnect error = %v", err)
		}
	})
}
