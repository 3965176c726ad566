// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// WindowSource is the subset of Store the context builder reads from.
type WindowSource interface {
	RecentWindow(id string, n int) []Turn
}

// ContextWindow returns the prior turns to send alongside the newest user
// message: the last n turns of id with the final one removed, since the
// caller has just appended that message and sends it separately.
// Fewer than two stored turns yields an empty context.
func ContextWindow(src WindowSource, id string, n int) []Turn {
	recent := src.RecentWindow(id, n)
	if len(recent) < 2 {
		return []Turn{}
	}
	history := make([]Turn, len(recent)-1)
	copy(history, recent[:len(recent)-1])
	return history
}
