// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"sync"
)

// Memory is an in-process Store. Transactions stage their writes in an
// overlay that is merged into the map only when the callback succeeds.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get implements Reader.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Keys implements Reader.
func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return filterKeys(m.keysLocked(), prefix), nil
}

// Set implements Tx.
func (m *Memory) Set(key, value string) error {
	return m.Update(func(tx Tx) error { return tx.Set(key, value) })
}

// Delete implements Tx.
func (m *Memory) Delete(key string) error {
	return m.Update(func(tx Tx) error { return tx.Delete(key) })
}

// Update implements Store.
func (m *Memory) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	tx := &memoryTx{base: m.data, writes: make(map[string]*string)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.writes {
		if v == nil {
			delete(m.data, k)
		} else {
			m.data[k] = *v
		}
	}
	return nil
}

// View implements Store.
func (m *Memory) View(fn func(tx Reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return fn(&memoryTx{base: m.data})
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) keysLocked() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// memoryTx reads through its own pending writes before the base map.
// A nil entry in writes marks a deletion.
type memoryTx struct {
	base   map[string]string
	writes map[string]*string
}

func (t *memoryTx) Get(key string) (string, bool, error) {
	if v, staged := t.writes[key]; staged {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	v, ok := t.base[key]
	return v, ok, nil
}

func (t *memoryTx) Keys(prefix string) ([]string, error) {
	seen := make(map[string]bool, len(t.base))
	for k := range t.base {
		seen[k] = true
	}
	for k, v := range t.writes {
		seen[k] = v != nil
	}
	keys := make([]string, 0, len(seen))
	for k, present := range seen {
		if present {
			keys = append(keys, k)
		}
	}
	return filterKeys(keys, prefix), nil
}

func (t *memoryTx) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if t.writes == nil {
		return ErrReadOnly
	}
	v := value
	t.writes[key] = &v
	return nil
}

func (t *memoryTx) Delete(key string) error {
	if t.writes == nil {
		return ErrReadOnly
	}
	t.writes[key] = nil
	return nil
}
