// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kvstore provides the durable string key-value store that backs
// conversations and settings.
//
// Two backends are provided:
//
//   - SQLite: a single-file database under the data directory (default)
//   - Memory: process-local, used by tests and --ephemeral runs
//
// All read-modify-write sequences go through Update so that no reader ever
// observes a partially applied change.
package kvstore

import (
	"errors"
	"sort"
	"strings"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Reader is the read side shared by stores and transactions.
type Reader interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)

	// Keys returns all keys starting with prefix, sorted ascending.
	Keys(prefix string) ([]string, error)
}

// Tx is a read-write view valid only for the duration of an Update callback.
type Tx interface {
	Reader

	// Set writes value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// Store is a durable string key-value store.
type Store interface {
	Tx

	// Update runs fn inside a transaction. Changes are committed only if fn
	// returns nil; otherwise they are discarded.
	Update(fn func(tx Tx) error) error

	// View runs fn against a consistent snapshot.
	View(fn func(tx Reader) error) error

	// Close releases the store's resources.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvstore: store is closed")

	// ErrEmptyKey is returned when writing an empty key.
	ErrEmptyKey = errors.New("kvstore: empty key")

	// ErrReadOnly is returned when writing through a View transaction.
	ErrReadOnly = errors.New("kvstore: read-only transaction")
)

// =============================================================================
// HELPERS
// =============================================================================

// filterKeys returns the sorted subset of keys that start with prefix.
func filterKeys(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
