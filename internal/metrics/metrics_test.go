// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordStorageQuery(t *testing.T) {
	before := testutil.ToFloat64(StorageQueryErrors.WithLabelValues("insert_tweet", "query"))

	RecordStorageQuery("insert_tweet", 5*time.Millisecond, "")
	RecordStorageQuery("insert_tweet", 7*time.Millisecond, "query")

	if got := testutil.ToFloat64(StorageQueryErrors.WithLabelValues("insert_tweet", "query")); got != before+1 {
		t.Errorf("query errors = %v, want %v", got, before+1)
	}

	m := &dto.Metric{}
	hist, ok := StorageQueryDuration.WithLabelValues("insert_tweet").(interface{ Write(*dto.Metric) error })
	if !ok {
		t.Fatal("histogram does not expose Write")
	}
	if err := hist.Write(m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if m.GetHistogram().GetSampleCount() < 2 {
		t.Errorf("expected at least 2 observations, got %d", m.GetHistogram().GetSampleCount())
	}
}

func TestRecordStorageQueryUnnamed(t *testing.T) {
	RecordStorageQuery("", time.Millisecond, "connection")
	if got := testutil.ToFloat64(StorageQueryErrors.WithLabelValues("unnamed", "connection")); got < 1 {
		t.Errorf("expected unnamed connection error to be counted, got %v", got)
	}
}

func TestTrackStorageConnection(t *testing.T) {
	base := testutil.ToFloat64(StorageConnectionsInUse)

	TrackStorageConnection(true)
	TrackStorageConnection(true)
	TrackStorageConnection(false)

	if got := testutil.ToFloat64(StorageConnectionsInUse); got != base+1 {
		t.Errorf("connections in use = %v, want %v", got, base+1)
	}
	TrackStorageConnection(false)
}

func TestSetBuffering(t *testing.T) {
	SetBuffering("kafka", true, 12)
	if got := testutil.ToFloat64(SourceBuffering.WithLabelValues("kafka")); got != 1 {
		t.Errorf("buffering = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SourceBufferedEvents.WithLabelValues("kafka")); got != 12 {
		t.Errorf("buffered = %v, want 12", got)
	}

	SetBuffering("kafka", false, 0)
	if got := testutil.ToFloat64(SourceBuffering.WithLabelValues("kafka")); got != 0 {
		t.Errorf("buffering = %v, want 0", got)
	}
}

func TestRecordReplay(t *testing.T) {
	before := testutil.ToFloat64(SourceReplayedEvents.WithLabelValues("redis"))
	beforeErr := testutil.ToFloat64(SourceReplayErrors.WithLabelValues("redis"))

	RecordReplay("redis", 4, 1)
	RecordReplay("redis", 2, 0)

	if got := testutil.ToFloat64(SourceReplayedEvents.WithLabelValues("redis")); got != before+6 {
		t.Errorf("replayed = %v, want %v", got, before+6)
	}
	if got := testutil.ToFloat64(SourceReplayErrors.WithLabelValues("redis")); got != beforeErr+1 {
		t.Errorf("replay errors = %v, want %v", got, beforeErr+1)
	}
}

func TestReconnectMetrics(t *testing.T) {
	SetReconnectState(2, 3)
	if got := testutil.ToFloat64(ReconnectState); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ReconnectAttempts); got != 3 {
		t.Errorf("attempts = %v, want 3", got)
	}

	before := testutil.ToFloat64(ReconnectProbes.WithLabelValues("failure"))
	RecordProbe(false)
	if got := testutil.ToFloat64(ReconnectProbes.WithLabelValues("failure")); got != before+1 {
		t.Errorf("failed probes = %v, want %v", got, before+1)
	}
}

func TestRecordReply(t *testing.T) {
	for _, outcome := range []string{"sent", "blacklisted", "test_mode", "failed"} {
		t.Run(outcome, func(t *testing.T) {
			before := testutil.ToFloat64(RepliesTotal.WithLabelValues(outcome))
			RecordReply(outcome)
			if got := testutil.ToFloat64(RepliesTotal.WithLabelValues(outcome)); got != before+1 {
				t.Errorf("%s = %v, want %v", outcome, got, before+1)
			}
		})
	}
}
