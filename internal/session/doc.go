// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates turn-taking between the user, the
// conversation store and the model gateway.
//
// # Key Types
//
//   - Controller: owns the "current conversation" pointer and the send guard
//   - State: Idle, AwaitingResponse or ErrorDisplayed
//   - Reply: what a submission produced and where it was stored
//
// # Usage
//
//	ctrl := session.New(store, gw, speaker, settings)
//	reply, err := ctrl.Submit(ctx, "hi")
//	if err != nil {
//	    fmt.Println(reply.Display) // "Oops, something went wrong ..."
//	}
//
// Only one submission is in flight per Controller. A Submit while a reply is
// pending returns a skipped Reply and does nothing else.
package session
