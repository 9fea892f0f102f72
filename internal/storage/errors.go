// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// Class separates connection-level failures from failures of one statement.
type Class int

const (
	ClassQuery Class = iota
	ClassConnection
)

func (c Class) String() string {
	if c == ClassConnection {
		return "connection"
	}
	return "query"
}

// Sentinels for errors.Is.
var (
	ErrConnection = errors.New("storage connection error")
	ErrQuery      = errors.New("storage query error")
)

// Error is returned by Execute and Probe.
type Error struct {
	Class Class
	Query string
	Err   error
}

func (e *Error) Error() string {
	if e.Query != "" {
		return e.Class.String() + " error in " + e.Query + ": " + e.Err.Error()
	}
	return e.Class.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches ErrConnection or ErrQuery by class.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Class == ClassConnection
	case ErrQuery:
		return e.Class == ClassQuery
	}
	return false
}

// connectionMessages are driver error texts that indicate the link to the
// server is gone rather than a problem with one statement.
var connectionMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"bad connection",
	"database is closed",
	"no such host",
	"i/o timeout",
	"server closed the connection",
	"terminating connection",
	"the database system is shutting down",
	"the database system is starting up",
	"failed to connect",
	"conn closed",
}

// Classify decides whether err is a connection-level failure.
func Classify(err error) Class {
	if err == nil {
		return ClassQuery
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ClassConnection
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ClassConnection
	}

	// SQLSTATE class 08 is connection exception; 57P0x are operator
	// shutdowns and crash recovery.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") {
			return ClassConnection
		}
		return ClassQuery
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassConnection
	}

	msg := strings.ToLower(err.Error())
	for _, m := range connectionMessages {
		if strings.Contains(msg, m) {
			return ClassConnection
		}
	}
	return ClassQuery
}

// closeWithLog closes c and logs a failure.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func closeWithLog(c io.Closer, logger zerolog.Logger, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Str("resource", resource).Msg("failed to close resource")
	}
}
