/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reference

import (
	"context"
	"sync"
)

// Store hands out the reference database active for a request.
//
// The base database is shared by all requests and can be swapped with
// Replace. WithOverride installs a temporary database for the scope of one
// call; the override travels in the context, so concurrent requests never
// see each other's overrides.
type Store struct {
	mu   sync.RWMutex
	base *Database
}

// NewStore returns a store whose base database is db. A nil db is treated
// as empty.
func NewStore(db *Database) *Store {
	if db == nil {
		db = NewDatabase()
	}
	return &Store{base: db}
}

type overrideKey struct{}

// Current returns the database active for ctx: the innermost override, or
// the base database.
func (s *Store) Current(ctx context.Context) *Database {
	if db, ok := ctx.Value(overrideKey{}).(*Database); ok {
		return db
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Replace swaps the base database. Requests already holding the previous
// database keep using it.
func (s *Store) Replace(db *Database) {
	if db == nil {
		db = NewDatabase()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = db
}

// WithOverride runs fn with tmp as the current database. Once fn returns,
// errors, or panics, Current reports the previous database again; a panic
// is propagated after that.
func (s *Store) WithOverride(ctx context.Context, tmp *Database, fn func(context.Context) error) error {
	if tmp == nil {
		tmp = NewDatabase()
	}
	// The scope ends with fn: the override lives only in the derived
	// context, so nothing needs restoring on any exit path.
	return fn(context.WithValue(ctx, overrideKey{}, tmp))
}
