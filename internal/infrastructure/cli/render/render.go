package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/doeshing/opsguard/internal/domain"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorOrange = lipgloss.Color("#fe8019")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
	colorFg     = lipgloss.Color("#ebdbb2")

	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleBold   = lipgloss.NewStyle().Foreground(colorFg).Bold(true)
	styleHeader = lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	styleOK     = lipgloss.NewStyle().Foreground(colorGreen)
	styleBad    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorOrange).Padding(0, 1)
)

// RiskStyle returns the style for a risk level.
func RiskStyle(level domain.RiskLevel) lipgloss.Style {
	switch level {
	case domain.RiskCritical:
		return lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	case domain.RiskHigh:
		return lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	case domain.RiskMedium:
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Foreground(colorGreen)
	}
}

// RiskBadge renders "● HIGH" in the level's color.
func RiskBadge(level domain.RiskLevel) string {
	return RiskStyle(level).Render("● " + strings.ToUpper(string(level)))
}

// Assessment prints one assessment with its reasons.
func Assessment(out io.Writer, title string, a domain.RiskAssessment) {
	fmt.Fprintf(out, "%s  %s\n", styleBold.Render(title), RiskBadge(a.Level))
	if a.Command != "" {
		fmt.Fprintf(out, "  %s %s\n", styleDim.Render("command:"), a.Command)
	}
	for _, reason := range a.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
	switch {
	case a.Blocked:
		fmt.Fprintf(out, "  %s\n", styleBad.Render("BLOCKED: refused regardless of confirmation"))
	case a.RequiresConfirmation:
		fmt.Fprintf(out, "  %s\n", styleDim.Render("requires confirmation"))
	}
}

// Confirmation prints the summary shown before a decision is asked for.
func Confirmation(out io.Writer, req domain.ConfirmationRequest) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", styleHeader.Render("Confirmation required"), RiskBadge(req.Assessment.Level))
	for i, call := range req.ToolCalls {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, call.Name, formatArguments(call.Arguments))
	}
	if req.Assessment.Command != "" {
		fmt.Fprintf(&b, "%s %s\n", styleDim.Render("runs:"), req.Assessment.Command)
	}
	for _, reason := range req.Assessment.Reasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}
	fmt.Fprintf(&b, "%s", styleDim.Render(fmt.Sprintf("expires %s (request %s)", humanize.Time(req.ExpiresAt), req.ID)))
	fmt.Fprintln(out, styleBox.Render(b.String()))
}

// Outcome prints the result of an operation run.
func Outcome(out io.Writer, outcome domain.OperationOutcome) {
	Assessment(out, "Assessment", outcome.Assessment)
	fmt.Fprintln(out)

	switch outcome.Status {
	case domain.StatusBlocked:
		fmt.Fprintln(out, styleBad.Render("Operation blocked by policy."))
		return
	case domain.StatusDenied:
		fmt.Fprintln(out, styleBad.Render("Operation denied."))
		return
	case domain.StatusTimedOut:
		fmt.Fprintln(out, styleBad.Render("Confirmation timed out; operation not executed."))
		return
	}

	for _, result := range outcome.Results {
		mark := styleOK.Render("ok  ")
		if !result.Success {
			mark = styleBad.Render("FAIL")
		}
		fmt.Fprintf(out, "%s %s %s\n", mark, result.Command, styleDim.Render(result.Duration.Round(time.Millisecond).String()))
		if output := strings.TrimRight(result.Output, "\n"); output != "" {
			fmt.Fprintln(out, indent(output, "     "))
		}
		if result.Err != nil {
			fmt.Fprintf(out, "     %s\n", styleBad.Render(result.Err.Error()))
		}
	}

	fmt.Fprintf(out, "\nStatus: %s in %s\n", outcome.Status, outcome.ExecutionTime.Round(time.Millisecond))
	if outcome.OperationID != "" {
		fmt.Fprintf(out, "Operation: %s\n", styleBold.Render(outcome.OperationID))
	}
	if outcome.DryRun {
		fmt.Fprintln(out, styleDim.Render("Dry run: not recorded in the audit ledger."))
	}
	if outcome.AuditError != nil {
		fmt.Fprintf(out, "%s %v\n", styleBad.Render("Audit record not written:"), outcome.AuditError)
	}
	switch {
	case outcome.RollbackNote != "":
		fmt.Fprintf(out, "Rollback: %s\n", outcome.RollbackNote)
	case len(outcome.RollbackCommands) > 0:
		fmt.Fprintln(out, "Rollback:")
		for _, c := range outcome.RollbackCommands {
			fmt.Fprintf(out, "  %s\n", c)
		}
	}
}

// RecordLine prints a ledger record as a single row.
func RecordLine(out io.Writer, rec domain.OperationRecord) {
	status := styleOK.Render("ok  ")
	if !rec.Success {
		status = styleBad.Render("FAIL")
	}
	rolled := ""
	if rec.RolledBack {
		rolled = styleDim.Render(" (rolled back)")
	}
	fmt.Fprintf(out, "%s  %s  %-14s %s  %s%s\n",
		rec.OperationID,
		status,
		RiskBadge(rec.RiskLevel),
		styleDim.Render(humanize.Time(rec.Timestamp)),
		strings.Join(rec.ToolNames(), ","),
		rolled)
}

// Record prints every field of a ledger record.
func Record(out io.Writer, rec domain.OperationRecord) {
	fmt.Fprintf(out, "%s %s\n", styleHeader.Render("Operation"), rec.OperationID)
	fmt.Fprintf(out, "Time:      %s (%s)\n", rec.Timestamp.Format(time.RFC3339), humanize.Time(rec.Timestamp))
	if rec.UserInput != "" {
		fmt.Fprintf(out, "Input:     %s\n", rec.UserInput)
	}
	fmt.Fprintf(out, "Risk:      %s\n", RiskBadge(rec.RiskLevel))
	fmt.Fprintf(out, "Success:   %t\n", rec.Success)
	fmt.Fprintf(out, "Duration:  %s\n", rec.ExecutionTime.Round(time.Millisecond))
	fmt.Fprintln(out, "Tool calls:")
	for i, call := range rec.ToolCalls {
		fmt.Fprintf(out, "  %d. %s %s\n", i+1, call.Name, formatArguments(call.Arguments))
	}
	if len(rec.RollbackCommands) > 0 {
		fmt.Fprintln(out, "Rollback commands:")
		for _, c := range rec.RollbackCommands {
			fmt.Fprintf(out, "  %s\n", c)
		}
	}
	if rec.RolledBack && rec.RolledBackAt != nil {
		fmt.Fprintf(out, "Rolled back %s\n", humanize.Time(*rec.RolledBackAt))
	}
}

// RollbackReport prints the result of rolling back one operation.
func RollbackReport(out io.Writer, report domain.RollbackReport) {
	switch {
	case report.Skipped:
		fmt.Fprintf(out, "%s skipped: %s\n", report.OperationID, report.Reason)
	case report.DryRun && report.Succeeded():
		fmt.Fprintf(out, "%s %s\n", report.OperationID, styleDim.Render("dry run, record left unchanged"))
		for _, c := range report.Commands {
			fmt.Fprintf(out, "  %s\n", c)
		}
	case report.Succeeded():
		fmt.Fprintf(out, "%s %s\n", report.OperationID, styleOK.Render("rolled back"))
		for _, c := range report.Commands {
			fmt.Fprintf(out, "  %s\n", c)
		}
	default:
		fmt.Fprintf(out, "%s %s\n", report.OperationID, styleBad.Render("rollback incomplete"))
		for _, c := range report.Commands {
			if err, failed := report.Failed[c]; failed {
				fmt.Fprintf(out, "  %s  %s\n", c, styleBad.Render(err.Error()))
				continue
			}
			fmt.Fprintf(out, "  %s  %s\n", c, styleOK.Render("ok"))
		}
	}
}

// HealthReport prints doctor checks.
func HealthReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		var label string
		switch check.Status {
		case domain.HealthOK:
			label = styleOK.Render("[OK]   ")
		case domain.HealthWarn:
			label = RiskStyle(domain.RiskMedium).Render("[WARN] ")
		default:
			label = styleBad.Render("[ERROR]")
		}
		fmt.Fprintf(out, "%s %s - %s\n", label, check.Name, check.Details)
	}
}

func formatArguments(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, " ")
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
