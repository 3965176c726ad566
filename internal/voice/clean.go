// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxRemoteChars is the longest text sent to the remote engine.
const MaxRemoteChars = 1000

var (
	codeBlockRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*]+)\*`)
	headerRe     = regexp.MustCompile(`#{1,6}\s`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	symbolRe     = regexp.MustCompile("[*_~`#]")
)

// CleanForSpeech strips markdown so it is not read out loud. Code blocks are
// replaced by a spoken placeholder.
func CleanForSpeech(text string) string {
	text = norm.NFC.String(text)
	text = codeBlockRe.ReplaceAllString(text, "... code block ...")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = symbolRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// truncateForRemote caps text at MaxRemoteChars characters plus "...".
func truncateForRemote(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxRemoteChars {
		return text
	}
	return string(runes[:MaxRemoteChars]) + "..."
}
