// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package models

import (
	"reflect"
	"testing"
)

func TestNewIncomingEvent(t *testing.T) {
	t.Parallel()

	a := NewIncomingEvent("websocket")
	b := NewIncomingEvent("websocket")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if a.ReceivedAt.IsZero() {
		t.Error("expected ReceivedAt to be set")
	}
}

func TestIncomingEventValidate(t *testing.T) {
	t.Parallel()

	ev := NewIncomingEvent("webhook")
	ev.Author.ScreenName = "warga"
	ev.Location = &Coordinates{Lat: -6.2, Lng: 106.8}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev.Location = &Coordinates{Lat: -100, Lng: 106.8}
	if err := ev.Validate(); err == nil {
		t.Error("expected latitude error")
	}

	ev.Location = nil
	ev.Author.ScreenName = ""
	if err := ev.Validate(); err == nil {
		t.Error("expected missing screen name error")
	}
}

func TestCoordinatesWKT(t *testing.T) {
	t.Parallel()

	c := Coordinates{Lat: -6.175, Lng: 106.8272}
	if got, want := c.WKT(), "106.8272 -6.175"; got != want {
		t.Errorf("WKT() = %q, want %q", got, want)
	}
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   IncomingEvent
		want []string
	}{
		{"both", IncomingEvent{Lang: "id", Author: Author{Lang: "en"}}, []string{"id", "en"}},
		{"same", IncomingEvent{Lang: "en", Author: Author{Lang: "en"}}, []string{"en"}},
		{"none", IncomingEvent{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Languages(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Languages() = %v, want %v", got, tt.want)
			}
		})
	}
}
