// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// COLORS
// =============================================================================

var (
	Purple        = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Cyan          = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	Emerald       = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	Rose          = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	Amber         = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
)

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	LabelStyle   = lipgloss.NewStyle().Foreground(TextSecondary).Width(18)
	ValueStyle   = lipgloss.NewStyle()
	SuccessStyle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Amber)
	MutedStyle   = lipgloss.NewStyle().Foreground(TextSecondary)

	// Chat
	PromptStyle  = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	JiyuStyle    = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	UserStyle    = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	CommandStyle = lipgloss.NewStyle().Foreground(Emerald)
)

// labelValue renders one "label  value" row.
func labelValue(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}
