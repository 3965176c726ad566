// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), DefaultDBName))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set("jiyu_user_name", "Ana"))
			v, ok, err := store.Get("jiyu_user_name")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "Ana", v)

			require.NoError(t, store.Set("jiyu_user_name", "Bo"))
			v, _, _ = store.Get("jiyu_user_name")
			assert.Equal(t, "Bo", v)

			require.NoError(t, store.Delete("jiyu_user_name"))
			require.NoError(t, store.Delete("jiyu_user_name"), "delete must be idempotent")
			_, ok, _ = store.Get("jiyu_user_name")
			assert.False(t, ok)
		})
	}
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Set("", "x"), ErrEmptyKey)
		})
	}
}

func TestStore_KeysByPrefix(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"jiyu_conv_b", "jiyu_conv_a", "jiyu_user_name", "other"} {
				require.NoError(t, store.Set(k, "v"))
			}

			keys, err := store.Keys("jiyu_conv_")
			require.NoError(t, err)
			assert.Equal(t, []string{"jiyu_conv_a", "jiyu_conv_b"}, keys)

			all, err := store.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set("a", "1"))

			err := store.Update(func(tx Tx) error {
				require.NoError(t, tx.Set("a", "2"))
				require.NoError(t, tx.Set("b", "3"))
				return boom
			})
			assert.ErrorIs(t, err, boom)

			v, _, _ := store.Get("a")
			assert.Equal(t, "1", v)
			_, ok, _ := store.Get("b")
			assert.False(t, ok)
		})
	}
}

func TestStore_UpdateSeesOwnWrites(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set("gone", "x"))

			err := store.Update(func(tx Tx) error {
				if err := tx.Set("new", "y"); err != nil {
					return err
				}
				if err := tx.Delete("gone"); err != nil {
					return err
				}

				v, ok, err := tx.Get("new")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "y", v)

				_, ok, err = tx.Get("gone")
				require.NoError(t, err)
				assert.False(t, ok)

				keys, err := tx.Keys("")
				require.NoError(t, err)
				assert.Equal(t, []string{"new"}, keys)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.View(func(r Reader) error {
				tx, ok := r.(Tx)
				if !ok {
					return nil
				}
				return tx.Set("k", "v")
			})
			assert.ErrorIs(t, err, ErrReadOnly)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Close())
			assert.ErrorIs(t, store.Set("k", "v"), ErrClosed)
			_, _, err := store.Get("k")
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBName)

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("jiyu_conversations", `["a"]`))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Get("jiyu_conversations")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["a"]`, v)
}
