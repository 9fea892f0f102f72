// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/logging"
)

func openDuckDB(t *testing.T) *Gateway {
	t.Helper()

	db, err := Open(&config.DatabaseConfig{
		Driver:          "duckdb",
		DSN:             "",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewGateway(NewSQLConnector(db), logging.Nop())
}

func TestSQLConnectorRoundTrip(t *testing.T) {
	gw := openDuckDB(t)
	ctx := context.Background()

	if err := gw.Probe(ctx); err != nil {
		t.Fatalf("probe: %v", err)
	}

	var rows int
	err := gw.Execute(ctx, Query{Name: "literal", Text: "SELECT 42 AS pkey, 'twitter' AS source"}, func(r Result) {
		rows = len(r.Rows)
		if v, ok := r.Value("source"); !ok || v != "twitter" {
			t.Errorf("source = %v, want twitter", v)
		}
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestSQLConnectorQueryError(t *testing.T) {
	gw := openDuckDB(t)

	err := gw.Execute(context.Background(), Query{Name: "missing", Text: "SELECT * FROM tweet_reports"}, func(Result) {
		t.Error("onSuccess must not run")
	})
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	if Classify(err) != ClassQuery {
		t.Errorf("missing table should be a query error, got %v", Classify(err))
	}
}
