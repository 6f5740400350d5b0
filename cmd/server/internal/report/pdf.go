package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// RenderPDF produces the PDF report with the same sections as the Markdown
// artifact. The creation date is pinned to the job's timestamp so repeated
// renders of the same job stay byte-identical.
func RenderPDF(meta Meta, result *pipeline.AnalysisResult, transcript []pipeline.Utterance) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(meta.CreatedAt.UTC())
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := meta.Title
	if title == "" {
		title = "Meeting Report"
	}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Job: %s", meta.JobID)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Date: %s", meta.CreatedAt.UTC().Format("2006-01-02 15:04"))), "", 1, "L", false, 0, "")
	if meta.Language != "" {
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Language: %s", meta.Language)), "", 1, "L", false, 0, "")
	}
	if meta.DurationMs > 0 {
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Duration: %s", formatTimestamp(meta.DurationMs))), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	sectionHeader(pdf, "Executive Summary")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5, tr(strings.TrimSpace(result.Summary)), "", "L", false)
	pdf.Ln(3)

	pdfList(pdf, tr, "Topics Discussed", result.Topics)
	pdfList(pdf, tr, "Decisions Made", result.Decisions)

	actions := make([]string, 0, len(result.ActionItems))
	for _, item := range result.ActionItems {
		if item.Owner != "" {
			actions = append(actions, fmt.Sprintf("%s (%s)", item.Text, item.Owner))
		} else {
			actions = append(actions, item.Text)
		}
	}
	pdfList(pdf, tr, "Action Items", actions)

	if len(result.FollowUps) > 0 {
		pdfList(pdf, tr, "Follow-up Items", result.FollowUps)
	}

	sectionHeader(pdf, "Full Transcript")
	pdf.SetFont("Helvetica", "", 10)
	for _, u := range transcript {
		line := fmt.Sprintf("[%s-%s] %s: %s",
			formatTimestamp(u.StartMs), formatTimestamp(u.EndMs), u.Speaker, strings.TrimSpace(u.Text))
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
		pdf.Ln(1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, pipeline.NewStageError(pipeline.KindInternal, "render", "pdf generation failed", err)
	}
	return buf.Bytes(), nil
}

func sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func pdfList(pdf *fpdf.Fpdf, tr func(string) string, title string, items []string) {
	sectionHeader(pdf, title)
	pdf.SetFont("Helvetica", "", 11)
	if len(items) == 0 {
		pdf.MultiCell(0, 5, "None recorded.", "", "L", false)
	}
	for _, item := range items {
		pdf.MultiCell(0, 5, tr("- "+item), "", "L", false)
	}
	pdf.Ln(3)
}
