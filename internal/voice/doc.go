// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice speaks replies aloud.
//
// Two engines are supported:
//
//   - remote: ElevenLabs text-to-speech, audio piped to a player command
//   - local: a speech command on the machine (espeak by default)
//
// The remote engine falls back to the local one when no speech key is set or
// the request fails. Adapter.Speak never blocks on playback; a new Speak or a
// Stop cancels whatever is playing.
package voice
