// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package reports owns the registered data sources and the processing rules
// that turn accepted events into stored reports and replies.
//
// Reports is the single point the reconnection controller calls back into:
// it fans buffering mode out to every source and passes queries through to
// the storage gateway.
package reports

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/datasource"
	"github.com/petabencana/sitioss-reports/internal/models"
	"github.com/petabencana/sitioss-reports/internal/storage"
)

// Executor runs storage queries.
type Executor interface {
	Execute(ctx context.Context, q storage.Query, onSuccess func(storage.Result)) error
}

// AdminNotifier warns the operators.
type AdminNotifier interface {
	Notify(ctx context.Context, text string) error
}

// Reports is the orchestrator. Sources are kept in registration order and
// every fan-out visits them in that order.
type Reports struct {
	executor Executor
	admin    AdminNotifier
	logger   zerolog.Logger

	mu      sync.RWMutex
	sources []datasource.DataSource
}

// New returns an orchestrator with no sources.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(executor Executor, admin AdminNotifier, logger zerolog.Logger) *Reports {
	return &Reports{
		executor: executor,
		admin:    admin,
		logger:   logger,
	}
}

// AddDataSource appends ds to the registry.
func (r *Reports) AddDataSource(ds datasource.DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, ds)
	r.logger.Info().Str("source", ds.Name()).Msg("data source loaded")
}

// Sources returns a snapshot of the registry.
func (r *Reports) Sources() []datasource.DataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]datasource.DataSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Start starts every source. One failing source does not stop the others.
func (r *Reports) Start(ctx context.Context) {
	r.each("start", func(ds datasource.DataSource) { ds.Start(ctx) })
}

// Stop stops every source.
func (r *Reports) Stop() {
	r.each("stop", func(ds datasource.DataSource) { ds.Stop() })
}

// EnableCacheMode puts every bufferable source into buffering mode.
func (r *Reports) EnableCacheMode() {
	r.each("enable buffering", func(ds datasource.DataSource) {
		if b, ok := ds.(datasource.Bufferable); ok {
			b.EnableBufferingMode()
		}
	})
}

// DisableCacheMode takes every bufferable source out of buffering mode,
// which replays its buffer.
func (r *Reports) DisableCacheMode() {
	r.each("disable buffering", func(ds datasource.DataSource) {
		if b, ok := ds.(datasource.Bufferable); ok {
			b.DisableBufferingMode()
		}
	})
}

// DBQuery passes q through to the storage gateway.
func (r *Reports) DBQuery(ctx context.Context, q storage.Query, onSuccess func(storage.Result)) error {
	return r.executor.Execute(ctx, q, onSuccess)
}

// NotifyAdmin passes text through to the admin channel.
func (r *Reports) NotifyAdmin(ctx context.Context, text string) error {
	if r.admin == nil {
		r.logger.Warn().Str("text", text).Msg("no admin channel, warning dropped")
		return nil
	}
	return r.admin.Notify(ctx, text)
}

// Status reports the buffering state of every source.
func (r *Reports) Status() []models.SourceStatus {
	sources := r.Sources()
	out := make([]models.SourceStatus, 0, len(sources))
	for _, ds := range sources {
		st := models.SourceStatus{Name: ds.Name()}
		if in, ok := ds.(datasource.Inspectable); ok {
			st.Buffering = in.Buffering()
			st.Buffered = in.Buffered()
		}
		out = append(out, st)
	}
	return out
}

// Serve implements suture.Service: sources run for the lifetime of ctx.
func (r *Reports) Serve(ctx context.Context) error {
	r.Start(ctx)
	<-ctx.Done()
	r.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (r *Reports) String() string {
	return "reports"
}

func (r *Reports) each(op string, fn func(datasource.DataSource)) {
	for _, ds := range r.Sources() {
		r.call(op, ds, fn)
	}
}

func (r *Reports) call(op string, ds datasource.DataSource, fn func(datasource.DataSource)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("source", ds.Name()).
				Str("op", op).
				Str("panic", fmt.Sprint(rec)).
				Msg("data source call panicked")
		}
	}()
	fn(ds)
}
