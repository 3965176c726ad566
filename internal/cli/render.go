// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/jiyu/internal/config"
)

// Renderer turns reply markdown into terminal output. It is safe for
// concurrent use; Update swaps settings after a config reload.
type Renderer struct {
	mu   sync.RWMutex
	term *glamour.TermRenderer
}

// NewRenderer builds a renderer. Markdown is rendered only when enabled and
// the UI config allows it; otherwise text passes through unchanged.
func NewRenderer(ui config.UIConfig, enabled bool) *Renderer {
	r := &Renderer{}
	if enabled {
		r.Update(ui)
	}
	return r
}

// Update rebuilds the renderer from ui.
func (r *Renderer) Update(ui config.UIConfig) {
	var term *glamour.TermRenderer
	if ui.Markdown {
		width := ui.Width
		if width <= 0 {
			width = TerminalWidth() - 4
		}
		styleOpt := glamour.WithAutoStyle()
		if ui.GlamourStyle != "" && ui.GlamourStyle != "auto" {
			styleOpt = glamour.WithStandardStyle(ui.GlamourStyle)
		}
		if t, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width), glamour.WithEmoji()); err == nil {
			term = t
		}
	}
	r.mu.Lock()
	r.term = term
	r.mu.Unlock()
}

// Render returns text formatted for the terminal.
func (r *Renderer) Render(text string) string {
	r.mu.RLock()
	term := r.term
	r.mu.RUnlock()
	if term == nil {
		return text
	}
	out, err := term.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
