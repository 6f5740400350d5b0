package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

func fixtureMeta() Meta {
	return Meta{
		JobID:      "7f3c9a1e-0000-4000-8000-000000000001",
		Language:   "en",
		CreatedAt:  time.Date(2025, 6, 12, 14, 30, 0, 0, time.UTC),
		DurationMs: 40_000,
	}
}

func fixtureResult() *pipeline.AnalysisResult {
	return &pipeline.AnalysisResult{
		Summary:   "Short planning sync about the Q3 launch.",
		Topics:    []string{"Launch timeline", "Hiring"},
		Decisions: []string{"Ship on September 15"},
		ActionItems: []pipeline.ActionItem{
			{Owner: "Alice", Text: "Prepare the migration runbook"},
			{Text: "Schedule the go/no-go review"},
		},
		FollowUps: []string{"Revisit headcount in October"},
	}
}

func fixtureTranscript() []pipeline.Utterance {
	return []pipeline.Utterance{
		{Speaker: "Speaker 1", StartMs: 0, EndMs: 12_000, Text: "Let's get started."},
		{Speaker: "Speaker 2", StartMs: 12_000, EndMs: 40_000, Text: "Agreed, timeline first."},
	}
}

func TestRenderMarkdownSections(t *testing.T) {
	md := string(RenderMarkdown(fixtureMeta(), fixtureResult(), fixtureTranscript()))

	assert.True(t, strings.HasPrefix(md, "# Meeting Report\n"))
	assert.Contains(t, md, "- Date: 2025-06-12 14:30\n")
	assert.Contains(t, md, "- Language: en\n")
	assert.Contains(t, md, "- Duration: 00:40\n")

	// Section ordering.
	sections := []string{
		"## Executive Summary",
		"## Topics Discussed",
		"## Decisions Made",
		"## Action Items",
		"## Follow-up Items",
		"## Full Transcript",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(md, s)
		require.Greater(t, idx, last, "section %q out of order", s)
		last = idx
	}

	assert.Contains(t, md, "* Launch timeline\n* Hiring\n")
	assert.Contains(t, md, "* Prepare the migration runbook (Alice)\n")
	assert.Contains(t, md, "* Schedule the go/no-go review\n")
	assert.Contains(t, md, "[00:00-00:12] **Speaker 1**: Let's get started.\n")
	assert.Contains(t, md, "[00:12-00:40] **Speaker 2**: Agreed, timeline first.\n")
}

func TestRenderMarkdownDeterministic(t *testing.T) {
	first := RenderMarkdown(fixtureMeta(), fixtureResult(), fixtureTranscript())
	second := RenderMarkdown(fixtureMeta(), fixtureResult(), fixtureTranscript())
	assert.True(t, bytes.Equal(first, second))
}

func TestRenderMarkdownOmitsEmptyFollowUps(t *testing.T) {
	result := fixtureResult()
	result.FollowUps = nil
	md := string(RenderMarkdown(fixtureMeta(), result, fixtureTranscript()))
	assert.NotContains(t, md, "## Follow-up Items")
}

func TestRenderMarkdownEmptyLists(t *testing.T) {
	result := &pipeline.AnalysisResult{Summary: "Nothing decided."}
	md := string(RenderMarkdown(fixtureMeta(), result, nil))
	assert.Contains(t, md, "## Decisions Made\n\n_None recorded._\n")
	assert.Contains(t, md, "## Action Items\n\n_None recorded._\n")
}

func TestRenderMarkdownCustomTitle(t *testing.T) {
	meta := fixtureMeta()
	meta.Title = "Q3 Launch Sync"
	md := string(RenderMarkdown(meta, fixtureResult(), nil))
	assert.True(t, strings.HasPrefix(md, "# Q3 Launch Sync\n"))
}

func TestFormatTimestamp(t *testing.T) {
	cases := map[int64]string{
		0:         "00:00",
		12_000:    "00:12",
		65_000:    "01:05",
		3_599_999: "59:59",
		3_600_000: "01:00:00",
		7_322_000: "02:02:02",
	}
	for ms, want := range cases {
		assert.Equal(t, want, formatTimestamp(ms), "ms=%d", ms)
	}
}

func TestRenderPDF(t *testing.T) {
	data, err := RenderPDF(fixtureMeta(), fixtureResult(), fixtureTranscript())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	again, err := RenderPDF(fixtureMeta(), fixtureResult(), fixtureTranscript())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, again))
}
