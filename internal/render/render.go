// Package render produces output from a finished schema.Report.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dshills/nfdiff/internal/document"
	"github.com/dshills/nfdiff/internal/schema"
	"github.com/dshills/nfdiff/internal/verdict"
)

// RenderJSON produces a pretty-printed JSON representation of the report.
// The output round-trips through json.Unmarshal back to an equal Report.
func RenderJSON(report *schema.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a GitHub-flavoured Markdown summary of the report.
// Every mismatched path appears in the output.
func RenderMarkdown(report *schema.Report) string {
	if report == nil {
		return ""
	}
	var sb strings.Builder

	crit, mod, low := verdict.CountSeverities(report.Outcomes)
	sb.WriteString("## nfdiff Verdict\n\n")
	fmt.Fprintf(&sb, "**Identifier:** %s  \n", mdEscape(report.ID()))
	fmt.Fprintf(&sb, "**Verdict:** %s  \n", report.Verdict)
	fmt.Fprintf(&sb, "**Assessed:** %s  \n", timestamp(report.Timestamp))
	fmt.Fprintf(&sb, "**Critical:** %d | **Moderate:** %d | **Low:** %d\n\n", crit, mod, low)

	if len(report.Outcomes) == 0 {
		sb.WriteString("No mismatches.\n")
		return sb.String()
	}

	sb.WriteString("## Mismatches\n\n")
	sb.WriteString("| Path | Severity | Value A | Value B | Reason |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, o := range report.Outcomes {
		fmt.Fprintf(&sb, "| `%s` | %s | `%s` | `%s` | %s |\n",
			mdEscape(o.Path), o.Severity,
			mdEscape(compact(o.ValueA)), mdEscape(compact(o.ValueB)),
			mdEscape(o.Reason))
	}
	sb.WriteString("\n")
	return sb.String()
}

// TextOptions controls RenderText.
type TextOptions struct {
	// Color enables ANSI colouring regardless of the terminal.
	Color bool
}

// RenderText writes a terminal summary of the report to w.
func RenderText(w io.Writer, report *schema.Report, opts TextOptions) error {
	if report == nil {
		return fmt.Errorf("render: nil report")
	}
	paint := func(c *color.Color) *color.Color {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	bold := paint(color.New(color.Bold))
	faint := paint(color.New(color.Faint))

	fmt.Fprintf(w, "%s %s\n", bold.Sprint("identifier:"), report.ID())
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("verdict:   "), paint(verdictColor(report.Verdict)).Sprint(report.Verdict))
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("assessed:  "), timestamp(report.Timestamp))

	if len(report.Outcomes) == 0 {
		_, err := fmt.Fprintln(w, faint.Sprint("no mismatches"))
		return err
	}
	fmt.Fprintf(w, "%s\n", bold.Sprintf("mismatches (%d):", len(report.Outcomes)))
	for _, o := range report.Outcomes {
		sev := paint(severityColor(o.Severity)).Sprintf("%-8s", o.Severity)
		fmt.Fprintf(w, "  %s %s\n", sev, o.Path)
		fmt.Fprintf(w, "           a: %s\n", compact(o.ValueA))
		fmt.Fprintf(w, "           b: %s\n", compact(o.ValueB))
		if _, err := fmt.Fprintf(w, "           %s\n", faint.Sprint(o.Reason)); err != nil {
			return err
		}
	}
	return nil
}

func verdictColor(v schema.Verdict) *color.Color {
	switch v {
	case schema.VerdictOK:
		return color.New(color.FgGreen, color.Bold)
	case schema.VerdictWarning:
		return color.New(color.FgYellow, color.Bold)
	case schema.VerdictSuspicious:
		return color.New(color.FgMagenta, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func severityColor(s schema.Severity) *color.Color {
	switch s {
	case schema.SeverityCritical:
		return color.New(color.FgRed)
	case schema.SeverityModerate:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// compact renders a value as single-line JSON.
func compact(v document.Value) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(b)
}

func timestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
