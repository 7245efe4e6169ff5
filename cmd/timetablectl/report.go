package main

import (
	"fmt"
	"io"

	"github.com/noah-isme/timetable-engine/internal/timetable"
)

func printReport(w io.Writer, sessions int, report timetable.Report) {
	fmt.Fprintf(w, "sessions: %d\n", sessions)
	fmt.Fprintf(w, "conflicts: %d (high %d, medium %d, low %d)\n",
		len(report.Conflicts),
		report.BySeverity[timetable.SeverityHigh],
		report.BySeverity[timetable.SeverityMedium],
		report.BySeverity[timetable.SeverityLow],
	)
	fmt.Fprintf(w, "weighted score: %d\n", report.WeightedScore)
	fmt.Fprintf(w, "satisfaction: %.2f\n", report.Satisfaction)
	for _, c := range report.Conflicts {
		fmt.Fprintf(w, "  [%s] %s: %s\n", c.Severity, c.Type, c.Description)
	}
}

func printRun(w io.Writer, result timetable.OptimizeResult) {
	m := result.Metrics
	fmt.Fprintf(w, "%s: %s after %d iterations in %dms, score %d -> %d, conflicts %d -> %d\n",
		m.Algorithm, result.Status, m.Iterations, m.ElapsedMillis,
		m.InitialScore, m.FinalScore, m.InitialConflicts, m.FinalConflicts,
	)
	if result.Note != "" {
		fmt.Fprintf(w, "  note: %s\n", result.Note)
	}
}

func printUnassignable(w io.Writer, blocks []timetable.UnassignableBlock) {
	if len(blocks) == 0 {
		return
	}
	fmt.Fprintf(w, "unassignable: %d\n", len(blocks))
	for _, b := range blocks {
		fmt.Fprintf(w, "  %s group %s block %d (%s, %d min): %s\n", b.UnitCode, b.GroupID, b.Block, b.Mode, b.Minutes, b.Reason)
	}
}
