// Package report renders the final Markdown document. Image references are
// relative so the report and its images directory move together.
package report

import (
	"fmt"
	"strings"
	"time"

	"bugbrief/internal/domain"
)

// Metadata is the report header block.
type Metadata struct {
	SessionID string
	Recorded  time.Time
	Duration  time.Duration
	Tier      domain.Tier
	Generated time.Time
}

// Render assembles the feedback items into a Markdown report.
func Render(meta Metadata, items []domain.FeedbackItem, narration string) string {
	var b strings.Builder

	b.WriteString("# Issue Report\n\n")
	fmt.Fprintf(&b, "- Session: `%s`\n", meta.SessionID)
	if !meta.Recorded.IsZero() {
		fmt.Fprintf(&b, "- Recorded: %s\n", meta.Recorded.Format(time.RFC3339))
	}
	if meta.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", Timestamp(meta.Duration.Milliseconds()))
	}
	if meta.Tier != "" {
		fmt.Fprintf(&b, "- Transcription: `%s`\n", meta.Tier)
	}
	if !meta.Generated.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", meta.Generated.Format(time.RFC3339))
	}
	b.WriteString("\n---\n\n")

	if len(items) == 0 {
		b.WriteString("No key moments were identified in this recording.\n")
		return b.String()
	}

	for _, item := range items {
		fmt.Fprintf(&b, "## %s [%s]\n\n", item.ID, Timestamp(item.TimestampMs))
		if text := strings.TrimSpace(item.Text); text != "" {
			fmt.Fprintf(&b, "> %s\n\n", text)
		}
		if item.Screenshot != "" {
			fmt.Fprintf(&b, "![%s](%s)\n\n", item.ID, item.Screenshot)
		}
	}

	if narration = strings.TrimSpace(narration); narration != "" {
		b.WriteString("---\n\n## Full narration\n\n")
		b.WriteString(narration)
		b.WriteString("\n")
	}

	return b.String()
}

// Timestamp renders milliseconds as mm:ss, or hh:mm:ss past an hour.
func Timestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
