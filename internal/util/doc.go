// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across jiyu packages.
//
// String helpers are width-aware (github.com/mattn/go-runewidth) so previews
// of CJK and emoji content line up in terminal listings. AtomicWriteFile is
// used for every file jiyu writes outside the database: config, exports and
// the secrets key.
//
//	preview := util.TruncateWidth(util.SingleLine(content), 60)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
