// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for jiyu.
//
// Conversations are ordered lists of turns kept in the key-value store under
// jiyu_conv_<id>, with their ids listed in creation order under
// jiyu_conversations. Both caps are enforced on write:
//
//   - at most 200 turns per conversation (oldest dropped first)
//   - at most 50 conversations (earliest created evicted first)
//
// # Key Types
//
//   - Store: capped conversation store over a kvstore.Store
//   - Turn: one user or assistant message with an epoch-ms timestamp
//   - ConversationMeta: lightweight metadata for listing
//
// # Usage
//
//	store := storage.New(kv)
//	id := store.CreateConversation()
//	err := store.AppendTurn(id, storage.RoleUser, "hi")
//	history := storage.ContextWindow(store, id, storage.DefaultWindowSize)
//
// Reads never fail: unknown ids and corrupt records read as empty.
package storage
