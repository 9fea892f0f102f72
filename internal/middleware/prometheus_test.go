// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/petabencana/sitioss-reports/internal/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	t.Run("labels by route pattern and first status", func(t *testing.T) {
		counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418")
		before := testutil.ToFloat64(counter)

		for _, id := range []string{"1", "2"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		}

		if got := testutil.ToFloat64(counter) - before; got != 2 {
			t.Errorf("requests counted = %v, want 2", got)
		}
	})

	t.Run("implicit 200", func(t *testing.T) {
		counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/ok", "200")
		before := testutil.ToFloat64(counter)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("requests counted = %v, want 1", got)
		}
	})

	t.Run("unmatched route", func(t *testing.T) {
		counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
		before := testutil.ToFloat64(counter)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("requests counted = %v, want 1", got)
		}
	})

	t.Run("active gauge returns to zero", func(t *testing.T) {
		if got := testutil.ToFloat64(metrics.APIActiveRequests); got != 0 {
			t.Errorf("active requests = %v, want 0", got)
		}
	})
}
