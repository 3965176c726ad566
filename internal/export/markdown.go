// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/jiyu/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// frontMatter is the YAML header of an exported transcript.
type frontMatter struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`
	Turns   int    `yaml:"turns"`
}

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(tr *storage.Transcript) ([]byte, error) {
	if tr == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	if len(tr.Turns) == 0 {
		return nil, fmt.Errorf("conversation has no turns")
	}

	header, err := yaml.Marshal(frontMatter{
		ID:      tr.ID,
		Title:   tr.Title,
		Created: tr.CreatedAt.Format(time.RFC3339),
		Updated: tr.UpdatedAt.Format(time.RFC3339),
		Turns:   len(tr.Turns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n\n")

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(tr.Title)))

	for i, turn := range tr.Turns {
		label := e.roleLabel(turn.Role)
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, turn.Time().Format("Jan 2 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")
		if i < len(tr.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	now := e.options.Now
	if now == nil {
		now = time.Now
	}
	sb.WriteString(fmt.Sprintf("*Exported from jiyu on %s*\n", now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func (e *MarkdownExporter) roleLabel(role storage.Role) string {
	switch role {
	case storage.RoleUser:
		if e.options.UserName != "" {
			return e.options.UserName
		}
		return "You"
	case storage.RoleAssistant:
		if e.options.AssistantName != "" {
			return e.options.AssistantName
		}
		return "Jiyu"
	default:
		return string(role)
	}
}

// escapeMarkdown neutralizes characters that would restyle a heading.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"#", `\#`,
		"[", `\[`,
		"]", `\]`,
	)
	return replacer.Replace(strings.ReplaceAll(s, "\n", " "))
}
