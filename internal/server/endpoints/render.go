package endpoints

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/joblog"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/output"
)

const barWidth = 30

// RenderSummary renders a run summary for terminals.
func RenderSummary(s *job.Summary) string {
	status := string(s.Status)
	if s.Cancelled {
		status += " " + api.Warn("(cancelled)")
	}
	pairs := []string{
		"Job", s.JobID + " " + api.Muted(s.RunID),
		"Mode", string(s.Mode),
		"Status", status,
		"Progress", api.ProgressBar(s.Percentage, barWidth),
		"Units", fmt.Sprintf("%d/%d done, %d remaining", s.Completed, s.TotalUnits, s.Remaining),
		"This run", fmt.Sprintf("%d processed in %s", s.NewlyProcessed, s.FinishedAt.Sub(s.StartedAt).Round(time.Second)),
	}
	if s.Failed > 0 {
		pairs = append(pairs, "Failed", api.Warn(fmt.Sprint(s.Failed)))
	}
	if s.QualityFlagged > 0 {
		pairs = append(pairs, "Quality flags", api.Warn(fmt.Sprint(s.QualityFlagged)))
	}
	pairs = append(pairs, "Output", fmt.Sprintf("%s (%d bytes)", s.OutputPath, s.OutputSize))
	if len(s.Backups) > 0 {
		pairs = append(pairs, "Backups", fmt.Sprint(len(s.Backups)))
	}
	return api.Fields(pairs...)
}

// RenderView renders a job's persisted progress for terminals.
func RenderView(v *job.View) string {
	status := string(v.Status)
	if v.Running {
		status += " " + api.Muted("(running)")
	}
	pairs := []string{
		"Job", v.JobID,
		"Status", status,
		"Progress", api.ProgressBar(v.Percentage, barWidth),
		"Units", fmt.Sprintf("%d/%d done, %d remaining", v.Completed, v.TotalUnits, v.Remaining),
	}
	if len(v.Failed) > 0 {
		pairs = append(pairs, "Failed", api.Warn(joinInts(v.Failed)))
	}
	if v.QualityFlagged > 0 {
		pairs = append(pairs, "Quality flags", api.Warn(fmt.Sprint(v.QualityFlagged)))
	}
	if len(v.RetryCounts) > 0 {
		total := 0
		for _, n := range v.RetryCounts {
			total += n
		}
		pairs = append(pairs, "Retries", fmt.Sprintf("%d across %d units", total, len(v.RetryCounts)))
	}
	pairs = append(pairs,
		"Created", v.CreatedAt.Format(time.RFC3339),
		"Updated", v.UpdatedAt.Format(time.RFC3339),
	)
	if v.CompletedAt != nil {
		pairs = append(pairs, "Completed", v.CompletedAt.Format(time.RFC3339))
	}
	pairs = append(pairs, "Output", fmt.Sprintf("%s (%d bytes)", v.OutputPath, v.OutputSize))
	return api.Fields(pairs...)
}

// RenderListing renders one line per job followed by the totals.
func RenderListing(l *job.Listing) string {
	if len(l.Jobs) == 0 {
		return api.Muted("no jobs")
	}
	width := 0
	for _, v := range l.Jobs {
		width = max(width, lipgloss.Width(v.JobID))
	}
	name := lipgloss.NewStyle().Width(width + 2)
	lines := make([]string, 0, len(l.Jobs)+2)
	for _, v := range l.Jobs {
		var detail string
		switch {
		case v.Error != "":
			detail = api.Warn("unreadable: " + v.Error)
		default:
			detail = fmt.Sprintf("%s  %d/%d", api.ProgressBar(v.Percentage, barWidth), v.Completed, v.TotalUnits)
			if v.Running {
				detail += " " + api.Muted("(running)")
			}
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, name.Render(v.JobID), detail))
	}
	lines = append(lines, "", fmt.Sprintf("%d jobs: %d completed, %d in progress", l.Total, l.Completed, l.InProgress))
	return strings.Join(lines, "\n")
}

// RenderLogs renders job log entries one per line.
func RenderLogs(entries []joblog.Entry) string {
	if len(entries) == 0 {
		return api.Muted("no log entries")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %-5s %s", e.Time.Format(time.TimeOnly), e.Level, e.Message)
		for _, k := range slices.Sorted(maps.Keys(e.Attrs)) {
			fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// RenderCalls renders recorded generation attempts one per line.
func RenderCalls(calls []llmcall.Call) string {
	if len(calls) == 0 {
		return api.Muted("no calls recorded")
	}
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		line := fmt.Sprintf("unit %-4d attempt %d  %-8s %6dms  %s", c.Unit, c.Attempt, c.Provider, c.LatencyMs, c.Timestamp.Format(time.RFC3339))
		if c.Success {
			line += fmt.Sprintf("  ok %d chars", c.ResponseLen)
		} else {
			line += "  " + api.Warn("failed: "+c.Error)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderOutput renders output entries the way they appear in the artifact.
func RenderOutput(entries []output.Entry) string {
	if len(entries) == 0 {
		return api.Muted("no output yet")
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Failed {
			parts = append(parts, api.Warn(fmt.Sprintf("unit %d failed after %d retries: %s", e.Unit, e.Retries, e.Error)))
			continue
		}
		parts = append(parts, api.Muted(fmt.Sprintf("--- Unit %d ---", e.Unit))+"\n"+e.Text)
	}
	return strings.Join(parts, "\n\n")
}

func joinInts(ns []int) string {
	s := make([]string, len(ns))
	for i, n := range ns {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, ", ")
}
