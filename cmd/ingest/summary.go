package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/humanoid-academy/coursebot/engine/ingest"
)

var (
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// maxListedFailures caps the failure lines under the table.
const maxListedFailures = 10

// renderSummary draws the end-of-run table.
func renderSummary(s ingest.Summary, dryRun bool) string {
	title := "Ingestion complete"
	if dryRun {
		title += " (dry run)"
	}

	rows := [][2]string{
		{"Docs", s.Root},
		{"Collection", s.Collection},
		{"Embedder", s.Embedder},
		{"Files found", fmt.Sprint(s.FilesFound)},
		{"Files processed", fmt.Sprint(s.FilesProcessed)},
		{"Chunks produced", fmt.Sprint(s.ChunksProduced)},
		{"Chunks upserted", fmt.Sprint(s.ChunksUpserted)},
		{"Failed batches", fmt.Sprint(s.FailedBatches)},
		{"Errors", fmt.Sprint(s.Errors)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}

	labels := make([]string, len(rows))
	values := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = labelStyle.Render(r[0])
		values[i] = r[1]
	}
	table := lipgloss.JoinHorizontal(lipgloss.Top,
		strings.Join(labels, "\n"),
		"  ",
		strings.Join(values, "\n"),
	)

	status := okStyle.Render("ok")
	if s.Errors > 0 || s.FailedBatches > 0 {
		status = errStyle.Render(fmt.Sprintf("%d errors, %d failed batches", s.Errors, s.FailedBatches))
	}

	parts := []string{titleStyle.Render(title) + "  " + status, "", table}
	if len(s.Failures) > 0 {
		parts = append(parts, "")
		for i, f := range s.Failures {
			if i == maxListedFailures {
				parts = append(parts, labelStyle.Render(fmt.Sprintf("... and %d more", len(s.Failures)-i)))
				break
			}
			parts = append(parts, errStyle.Render("✗ ")+f.Path+": "+f.Error)
		}
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
