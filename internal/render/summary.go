// Package render formats human-readable evaluation summaries for the
// terminal. Everything here writes to the caller-supplied writer (stderr in
// practice); stdout is reserved for the response document.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/promptlabs/evalharness/internal/harness"
)

var (
	// titleStyle for the summary header
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// successStyle for passing examples
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// errorStyle for failed examples
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// boxStyle for the aggregate box with rounded border
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// Summary renders a per-example breakdown followed by an aggregate box.
func Summary(w io.Writer, report *harness.Report) {
	for i, res := range report.Results {
		if res.Error != nil {
			fmt.Fprintf(w, "%s example %d: %s\n", errorStyle.Render("FAIL"), i, *res.Error)
			continue
		}
		line := fmt.Sprintf("%s example %d: score %.3f", successStyle.Render("  OK"), i, res.Score)
		if res.Feedback != nil {
			line += "  " + dimStyle.Render(*res.Feedback)
		}
		fmt.Fprintln(w, line)
	}

	failed := 0
	for _, res := range report.Results {
		if res.Error != nil {
			failed++
		}
	}
	traced := 0
	for _, entries := range report.Traces {
		traced += len(entries)
	}

	line1 := fmt.Sprintf("%s %d  %s %d  %s %d",
		dimStyle.Render("Examples:"), len(report.Results),
		dimStyle.Render("Failed:"), failed,
		dimStyle.Render("Trace steps:"), traced,
	)
	line2 := fmt.Sprintf("%s %.4f", dimStyle.Render("Average score:"), report.AverageScore)

	content := titleStyle.Render("Evaluation Complete") + "\n" + line1 + "\n" + line2
	fmt.Fprintln(w, boxStyle.Render(content))
}

// FailureNotice renders a load-level failure notice.
func FailureNotice(w io.Writer, f *harness.Failure) {
	fmt.Fprintln(w, errorStyle.Render("Evaluation failed: ")+f.Error)
	if f.Traceback != "" {
		fmt.Fprintln(w, dimStyle.Render(strings.TrimRight(f.Traceback, "\n")))
	}
}
