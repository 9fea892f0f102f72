// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package models holds the data types shared between feeds, the report
// pipeline and the HTTP surface.
package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/petabencana/sitioss-reports/internal/validation"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// WKT returns the "lng lat" pair used inside a POINT() literal.
func (c Coordinates) WKT() string {
	return strconv.FormatFloat(c.Lng, 'f', -1, 64) + " " + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// Author identifies the sender of an event on its upstream network.
type Author struct {
	ScreenName string `json:"screen_name" validate:"required,max=64"`
	Lang       string `json:"lang,omitempty"`
}

// IncomingEvent is one raw message received from an upstream feed.
// It is handed from owner to owner by value and never mutated after decode.
type IncomingEvent struct {
	ID         string            `json:"id" validate:"required"`
	Source     string            `json:"source" validate:"required"`
	ExternalID string            `json:"external_id,omitempty"`
	Author     Author            `json:"author"`
	Text       string            `json:"text" validate:"max=4096"`
	CreatedAt  time.Time         `json:"created_at"`
	ReceivedAt time.Time         `json:"received_at"`
	Location   *Coordinates      `json:"location,omitempty"`
	Lang       string            `json:"lang,omitempty"`
	URL        string            `json:"url,omitempty"`
	Hashtags   []string          `json:"hashtags,omitempty"`
	URLs       []string          `json:"urls,omitempty"`
	Mentions   []string          `json:"mentions,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// NewIncomingEvent returns an event stamped with a fresh id and receive time.
func NewIncomingEvent(source string) IncomingEvent {
	now := time.Now().UTC()
	return IncomingEvent{
		ID:         uuid.NewString(),
		Source:     source,
		CreatedAt:  now,
		ReceivedAt: now,
	}
}

// Validate checks required fields and coordinate ranges.
func (e *IncomingEvent) Validate() error {
	return validation.Struct(e)
}

// HasLocation reports whether the event carries a point.
func (e *IncomingEvent) HasLocation() bool {
	return e.Location != nil
}

// Languages returns the language preference list for replies:
// the message language first, then the author's profile language.
func (e *IncomingEvent) Languages() []string {
	langs := make([]string, 0, 2)
	if e.Lang != "" {
		langs = append(langs, e.Lang)
	}
	if e.Author.Lang != "" && e.Author.Lang != e.Lang {
		langs = append(langs, e.Author.Lang)
	}
	return langs
}
