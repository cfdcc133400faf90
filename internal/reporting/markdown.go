package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const timestampLayout = "02/01/2006 15:04"

// fmt2 formats v rounded half away from zero to 2 decimal places.
func fmt2(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// fmtPtr2 formats an optional value, "-" when nil.
func fmtPtr2(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt2(*v)
}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Movement Analysis Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Outcome != "" {
		sb.WriteString(fmt.Sprintf("Outcome: **%s**\n\n", r.Outcome))
	}
	if r.Message != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", r.Message))
	}

	// Data Summary
	d := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Input Rows | %d |\n", d.InputRows))
	sb.WriteString(fmt.Sprintf("| Kept Rows | %d |\n", d.KeptRows))
	sb.WriteString(fmt.Sprintf("| Dropped Rows | %d |\n", d.DroppedRows))
	sb.WriteString(fmt.Sprintf("| Timestamp Layout | %s |\n", d.AcceptedLayout))
	sb.WriteString(fmt.Sprintf("| Projects | %d |\n", len(d.Projects)))
	sb.WriteString(fmt.Sprintf("| Selected | %s |\n", strings.Join(d.Selected, ", ")))
	if !d.Start.IsZero() {
		sb.WriteString(fmt.Sprintf("| Period | %s to %s |\n", d.Start, d.End))
	}
	sb.WriteString("\n")

	// Overview
	ov := r.Overview
	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Records | Projects | Span (days) | Total | Inflow | Outflow |\n")
	sb.WriteString("|---------|----------|-------------|-------|--------|---------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %s | %s | %s |\n\n",
		ov.Records, ov.Projects, ov.SpanDays, fmt2(ov.TotalQuantity), fmt2(ov.Inflow), fmt2(ov.Outflow)))

	// Project Summary
	sb.WriteString("## Project Summary\n\n")
	if len(r.ProjectSummaries) > 0 {
		sb.WriteString("| Project | Total | Mean | Std | Min | Max | Count | First | Last | Days |\n")
		sb.WriteString("|---------|-------|------|-----|-----|-----|-------|-------|------|------|\n")
		for _, s := range r.ProjectSummaries {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %d | %s | %s | %d |\n",
				s.ProjectID, fmt2(s.Total), fmt2(s.Mean), fmt2(s.Std), fmt2(s.Min), fmt2(s.Max),
				s.Count, s.First.Format(timestampLayout), s.Last.Format(timestampLayout), s.SpanDays))
		}
	} else {
		sb.WriteString("No project data available.\n")
	}
	sb.WriteString("\n")

	// Peaks
	sb.WriteString("## Detected Peaks\n\n")
	if len(r.Peaks) > 0 {
		sb.WriteString("| Timestamp | Project | Direction | Type | Quantity |\n")
		sb.WriteString("|-----------|---------|-----------|------|----------|\n")
		for _, p := range r.Peaks {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				p.Timestamp.Format(timestampLayout), p.ProjectID, p.Direction, p.Label, fmt2(p.Value)))
		}
	} else {
		sb.WriteString("No peaks detected.\n")
	}
	sb.WriteString("\n")
	if len(r.Insufficient) > 0 {
		sb.WriteString(fmt.Sprintf("Insufficient hourly data for peak detection: %s\n\n", strings.Join(r.Insufficient, ", ")))
	}

	// Busiest hours
	if len(r.BusiestHours) > 0 {
		sb.WriteString("## Busiest Hours\n\n")
		sb.WriteString("| Project | Hour | Sum | Mean | Count |\n")
		sb.WriteString("|---------|------|-----|------|-------|\n")
		for _, h := range r.BusiestHours {
			sb.WriteString(fmt.Sprintf("| %s | %02d:00 | %s | %s | %d |\n",
				h.ProjectID, h.Hour, fmt2(h.Sum), fmt2(h.Mean), h.Count))
		}
		sb.WriteString("\n")
	}

	// Weekdays
	if len(r.Weekdays) > 0 {
		sb.WriteString("## By Weekday\n\n")
		sb.WriteString("| Project | Weekday | Sum | Mean | Count |\n")
		sb.WriteString("|---------|---------|-----|------|-------|\n")
		for _, w := range r.Weekdays {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d |\n",
				w.ProjectID, w.Label, fmt2(w.Sum), fmt2(w.Mean), w.Count))
		}
		sb.WriteString("\n")
	}

	if r.Coverage != nil {
		renderCoverage(&sb, r.Coverage)
	}

	// History
	sb.WriteString("## Critical Item History\n\n")
	if len(r.History) > 0 {
		sb.WriteString("| Date | Percentage | Total Items | Critical Items |\n")
		sb.WriteString("|------|------------|-------------|----------------|\n")
		for _, e := range r.History {
			sb.WriteString(fmt.Sprintf("| %s | %s%% | %d | %d |\n",
				e.Date, fmt2(e.Percentage), e.TotalItems, e.CriticalItems))
		}
	} else {
		sb.WriteString("No history recorded.\n")
	}
	sb.WriteString("\n")

	// Warnings
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func renderCoverage(sb *strings.Builder, c *CoverageSection) {
	s := c.Summary
	sb.WriteString("## Coverage\n\n")
	sb.WriteString(fmt.Sprintf("Critical items: %d of %d (%s%%)\n\n", s.TotalCritical, s.TotalItems, fmt2(s.CriticalPercent)))
	if !c.HistoryDurable {
		sb.WriteString("History was not written to the durable store.\n\n")
	}

	if len(s.CriticalByLine) > 0 {
		sb.WriteString("### Critical by Line\n\n")
		sb.WriteString("| Line | Critical |\n")
		sb.WriteString("|------|----------|\n")
		for _, cnt := range s.CriticalByLine {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", cnt.Name, cnt.Count))
		}
		sb.WriteString("\n")
	}
	if len(s.CriticalByArea) > 0 {
		sb.WriteString("### Critical by Area\n\n")
		sb.WriteString("| Area | Critical |\n")
		sb.WriteString("|------|----------|\n")
		for _, cnt := range s.CriticalByArea {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", cnt.Name, cnt.Count))
		}
		sb.WriteString("\n")
	}
	if len(c.LevelCounts) > 0 {
		sb.WriteString("### Coverage Levels\n\n")
		sb.WriteString("| Level | Items |\n")
		sb.WriteString("|-------|-------|\n")
		for _, cnt := range c.LevelCounts {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", cnt.Name, cnt.Count))
		}
		sb.WriteString("\n")
	}
	for _, line := range c.CriticalByLine {
		sb.WriteString(fmt.Sprintf("### Critical Materials: %s\n\n", line.Line))
		sb.WriteString("| Material | Level | Balance | Requirement | Coverage % |\n")
		sb.WriteString("|----------|-------|---------|-------------|------------|\n")
		for _, m := range line.Materials {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				m.Material, m.Level, fmtPtr2(m.Balance), fmtPtr2(m.Requirement), fmtPtr2(m.CoveragePercentage)))
		}
		sb.WriteString("\n")
	}
}
