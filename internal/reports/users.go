// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package reports

import (
	"context"
	"crypto/md5" //nolint:gosec // matches the md5 user_hash column, not used for security
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/petabencana/sitioss-reports/internal/storage"
)

// UserHash returns the md5 hex digest stored for a screen name, the same
// value the database computes with md5($1).
func UserHash(screenName string) string {
	sum := md5.Sum([]byte(screenName)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// KnownUsers remembers user hashes already present in the users table so that
// repeat authors do not cost a query each.
type KnownUsers struct {
	cache *expirable.LRU[string, struct{}]
}

// NewKnownUsers returns a cache of size entries expiring after ttl.
func NewKnownUsers(size int, ttl time.Duration) *KnownUsers {
	if size <= 0 {
		size = 10000
	}
	return &KnownUsers{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Known reports whether the user was seen recently.
func (k *KnownUsers) Known(screenName string) bool {
	return k.cache.Contains(UserHash(screenName))
}

// Remember marks the user as present.
func (k *KnownUsers) Remember(screenName string) {
	k.cache.Add(UserHash(screenName), struct{}{})
}

// IsNewUser reports whether screenName has no row in the all-users table.
func (s *Strategy) IsNewUser(ctx context.Context, screenName string) (bool, error) {
	if s.known.Known(screenName) {
		return false, nil
	}

	res, err := s.query(ctx, storage.Query{
		Name: "select_user",
		Text: "SELECT user_hash FROM " + s.tables.AllUsers + " WHERE user_hash = md5($1);",
		Args: []any{screenName},
	})
	if err != nil {
		return false, err
	}
	if len(res.Rows) > 0 {
		s.known.Remember(screenName)
		return false, nil
	}
	return true, nil
}
