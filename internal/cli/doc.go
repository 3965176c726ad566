// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the jiyu command line.
//
// # Commands
//
//   - chat: interactive conversation (default when no command is given)
//   - ask: send one message and print the reply
//   - conversations: list, show, export, search and delete history
//   - settings: show and change the stored settings and API keys
//   - voices: list the remote voices
//   - login / logout: manage the signed-in identity
//   - onboard: set your name and receive Jiyu's first message
//   - reset: delete all conversations and settings
//   - version
//
// Every command returns its error; Execute maps it to an exit code (see
// errors.go) and prints it once.
package cli
