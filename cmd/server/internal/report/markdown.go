// Package report renders a completed analysis into downloadable artifacts.
// Both renderers are pure functions of their inputs: the same analysis and
// transcript always produce the same bytes, so artifacts can be re-rendered
// on demand instead of being treated as precious.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// Meta carries the job-level fields stamped into the report header. CreatedAt
// comes from the job row, never from the clock, so re-renders are stable.
type Meta struct {
	JobID      string
	Title      string
	Language   string
	CreatedAt  time.Time
	DurationMs int64
}

// RenderMarkdown produces the Markdown report: header metadata, executive
// summary, topics, decisions, action items, optional follow-ups, and the
// full speaker-labeled transcript with timestamps.
func RenderMarkdown(meta Meta, result *pipeline.AnalysisResult, transcript []pipeline.Utterance) []byte {
	var b strings.Builder

	if meta.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	} else {
		b.WriteString("# Meeting Report\n\n")
	}
	fmt.Fprintf(&b, "- Job: `%s`\n", meta.JobID)
	fmt.Fprintf(&b, "- Date: %s\n", meta.CreatedAt.UTC().Format("2006-01-02 15:04"))
	if meta.Language != "" {
		fmt.Fprintf(&b, "- Language: %s\n", meta.Language)
	}
	if meta.DurationMs > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", formatTimestamp(meta.DurationMs))
	}
	b.WriteString("\n---\n\n")

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "%s\n", strings.TrimSpace(result.Summary))

	writeList(&b, "Topics Discussed", result.Topics)
	writeList(&b, "Decisions Made", result.Decisions)

	b.WriteString("\n## Action Items\n\n")
	if len(result.ActionItems) == 0 {
		b.WriteString("_None recorded._\n")
	}
	for _, item := range result.ActionItems {
		if item.Owner != "" {
			fmt.Fprintf(&b, "* %s (%s)\n", item.Text, item.Owner)
		} else {
			fmt.Fprintf(&b, "* %s\n", item.Text)
		}
	}

	if len(result.FollowUps) > 0 {
		writeList(&b, "Follow-up Items", result.FollowUps)
	}

	b.WriteString("\n## Full Transcript\n\n")
	for _, u := range transcript {
		fmt.Fprintf(&b, "[%s-%s] **%s**: %s\n\n",
			formatTimestamp(u.StartMs), formatTimestamp(u.EndMs), u.Speaker, strings.TrimSpace(u.Text))
	}

	return []byte(b.String())
}

func writeList(b *strings.Builder, heading string, items []string) {
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	if len(items) == 0 {
		b.WriteString("_None recorded._\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "* %s\n", item)
	}
}

// formatTimestamp renders milliseconds as mm:ss, or hh:mm:ss past the hour.
func formatTimestamp(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
