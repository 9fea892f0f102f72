// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package datasource

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/models"
)

// WebsocketFeed reads JSON events from a streaming websocket endpoint.
type WebsocketFeed struct {
	url         string
	token       string
	readTimeout time.Duration
	dialer      websocket.Dialer
	logger      zerolog.Logger
}

// NewWebsocketFeed returns a feed for cfg.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWebsocketFeed(cfg *config.WebsocketSourceConfig, logger zerolog.Logger) *WebsocketFeed {
	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	return &WebsocketFeed{
		url:         cfg.URL,
		token:       cfg.Token,
		readTimeout: cfg.ReadTimeout,
		dialer: websocket.Dialer{
			HandshakeTimeout:  handshake,
			EnableCompression: true,
		},
		logger: logger.With().Str("feed", "websocket").Logger(),
	}
}

// Name implements Feed.
func (f *WebsocketFeed) Name() string {
	return "websocket"
}

// Run implements Feed. It returns when the connection drops.
func (f *WebsocketFeed) Run(ctx context.Context, emit func(models.IncomingEvent)) error {
	header := http.Header{}
	if f.token != "" {
		header.Set("Authorization", "Bearer "+f.token)
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.url, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	f.logger.Info().Str("url", f.url).Msg("websocket connected")

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		})
	}
	defer closeConn()

	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	for {
		if f.readTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(f.readTimeout)); err != nil {
				f.logger.Debug().Err(err).Msg("failed to set read deadline")
			}
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("websocket closed by server: %w", err)
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		if err := decodeAndEmit(f.Name(), data, emit); err != nil {
			f.logger.Warn().Err(err).Msg("dropping websocket message")
		}
	}
}
