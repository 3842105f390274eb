package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

var (
	passBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("28")).
			Padding(0, 1)

	failBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("124")).
			Padding(0, 1)

	abortBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("130")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	violationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// WriteJSON writes the report as indented JSON, the machine-readable
// output format.
func WriteJSON(w io.Writer, report models.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// Render returns the human-readable terminal summary of a run.
func Render(report models.RunReport) string {
	var b strings.Builder

	b.WriteString(verdictBadge(report.Verdict))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Target    "))
	b.WriteString(report.Target.String())
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Run       "))
	b.WriteString(fmt.Sprintf("%s  started %s  duration %s  samples %d\n",
		report.RunID,
		report.StartedAt.Format("2006-01-02 15:04:05"),
		report.Duration().Round(time.Second),
		report.SampleCount))

	if len(report.Phases) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Load Phases"))
		b.WriteString("\n")
		renderPhases(&b, report.Phases)
	}

	if len(report.Violations) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Violations"))
		b.WriteString("\n")
		for _, v := range report.Violations {
			b.WriteString(violationStyle.Render(fmt.Sprintf("  %s  %s", v.Timestamp.Format("15:04:05"), v.Kind)))
			b.WriteString(fmt.Sprintf("  expected %s, observed %s\n", v.Expected, v.Observed))
		}
	}

	if len(report.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Warnings"))
		b.WriteString("\n")
		for _, w := range report.Warnings {
			b.WriteString(warningStyle.Render("  ! " + w))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func verdictBadge(v models.Verdict) string {
	switch v {
	case models.VerdictPass:
		return passBadge.Render("PASS")
	case models.VerdictFail:
		return failBadge.Render("FAIL")
	default:
		return abortBadge.Render("ABORTED")
	}
}

func renderPhases(b *strings.Builder, phases []models.PhaseResult) {
	header := []string{"NAME", "KIND", "DURATION", "REQUESTS", "FAILURES", "STATUS"}
	rows := make([][]string, 0, len(phases))
	for _, p := range phases {
		requests, failures := "-", "-"
		if p.Kind == models.LoadHTTP {
			requests = fmt.Sprintf("%d", p.Requests)
			failures = fmt.Sprintf("%d", p.Failures)
		}
		rows = append(rows, []string{
			p.Name,
			p.KindLabel,
			p.Duration().Round(time.Second).String(),
			requests,
			failures,
			phaseStatus(p),
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	b.WriteString("  " + labelStyle.Render(padRow(header, widths)) + "\n")
	for _, row := range rows {
		b.WriteString("  " + padRow(row, widths) + "\n")
	}
}

func phaseStatus(p models.PhaseResult) string {
	switch {
	case p.Failed():
		return "failed"
	case p.ResourceLeaked:
		return "leaked"
	default:
		return "ok"
	}
}

func padRow(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = cell + strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}
