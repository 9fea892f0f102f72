// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package storage is the gateway to the relational report store.
//
// Every call to Execute takes its own connection from the pool and gives it
// back before returning, whatever the outcome. Connection-level failures are
// additionally announced to registered FaultHandlers; that announcement is
// what moves the pipeline into buffering mode.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/metrics"
)

// Query is a parameterised statement. Name labels logs and metrics.
type Query struct {
	Name string
	Text string
	Args []any
}

// Row is one result row keyed by column name.
type Row map[string]any

// Result holds the rows returned by a statement.
type Result struct {
	Rows []Row
}

// Value returns column col of the first row.
func (r Result) Value(col string) (any, bool) {
	if len(r.Rows) == 0 {
		return nil, false
	}
	v, ok := r.Rows[0][col]
	return v, ok
}

// Conn is one connection checked out of the pool. Close returns it.
type Conn interface {
	Run(ctx context.Context, q Query) (Result, error)
	Ping(ctx context.Context) error
	Close() error
}

// Connector hands out connections.
type Connector interface {
	Conn(ctx context.Context) (Conn, error)
}

// FaultHandler is told about connection-level failures.
type FaultHandler func(err error)

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithQueryTimeout bounds each Execute call, connection checkout included.
// A statement that outlives it fails as a connection error.
func WithQueryTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.queryTimeout = d }
}

// Gateway executes queries against the store.
type Gateway struct {
	connector    Connector
	logger       zerolog.Logger
	queryTimeout time.Duration

	mu       sync.RWMutex
	handlers []FaultHandler
}

// NewGateway returns a gateway over connector.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewGateway(connector Connector, logger zerolog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		connector: connector,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnFault registers h for connection-level failures.
func (g *Gateway) OnFault(h FaultHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, h)
}

// Execute runs q. On success onSuccess is called exactly once with the
// result, after the connection has been released. On failure the error is
// logged and returned and onSuccess is not called.
func (g *Gateway) Execute(ctx context.Context, q Query, onSuccess func(Result)) error {
	start := time.Now()

	if g.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.queryTimeout)
		defer cancel()
	}

	res, err := g.run(ctx, q)
	if err != nil {
		metrics.RecordStorageQuery(q.Name, time.Since(start), err.Class.String())
		g.logger.Error().
			Err(err.Err).
			Str("query", q.Name).
			Str("class", err.Class.String()).
			Msg("storage query failed")
		if err.Class == ClassConnection {
			g.raiseFault(err)
		}
		return err
	}

	metrics.RecordStorageQuery(q.Name, time.Since(start), "")
	if onSuccess != nil {
		g.deliver(q, res, onSuccess)
	}
	return nil
}

// run holds the connection only for the duration of the statement.
func (g *Gateway) run(ctx context.Context, q Query) (Result, *Error) {
	conn, err := g.connector.Conn(ctx)
	if err != nil {
		return Result{}, &Error{Class: ClassConnection, Query: q.Name, Err: err}
	}
	metrics.TrackStorageConnection(true)
	defer g.release(conn)

	res, err := conn.Run(ctx, q)
	if err != nil {
		return Result{}, &Error{Class: Classify(err), Query: q.Name, Err: err}
	}
	return res, nil
}

func (g *Gateway) release(conn Conn) {
	metrics.TrackStorageConnection(false)
	closeWithLog(conn, g.logger, "storage connection")
}

func (g *Gateway) deliver(q Query, res Result, onSuccess func(Result)) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().
				Str("query", q.Name).
				Str("panic", fmt.Sprint(r)).
				Msg("query success handler panicked")
		}
	}()
	onSuccess(res)
}

// Probe takes a connection, pings the server and releases the connection.
// It is one reconnection attempt.
func (g *Gateway) Probe(ctx context.Context) error {
	conn, err := g.connector.Conn(ctx)
	if err != nil {
		return &Error{Class: ClassConnection, Err: err}
	}
	metrics.TrackStorageConnection(true)
	defer g.release(conn)

	if err := conn.Ping(ctx); err != nil {
		return &Error{Class: ClassConnection, Err: err}
	}
	return nil
}

func (g *Gateway) raiseFault(err error) {
	metrics.RecordConnectionFault()

	g.mu.RLock()
	handlers := make([]FaultHandler, len(g.handlers))
	copy(handlers, g.handlers)
	g.mu.RUnlock()

	for _, h := range handlers {
		h(err)
	}
}
