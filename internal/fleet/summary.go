package fleet

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/ui"
)

// RenderSummary prints a per-host summary of result to w, in input order.
func RenderSummary(w io.Writer, result *Result) {
	if result == nil {
		return
	}

	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	warnStyle := lipgloss.NewStyle().Foreground(ui.ColorWarning)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Foreground(ui.ColorSecondary).Bold(true)

	divider := mutedStyle.Render(strings.Repeat("─", 60))

	fmt.Fprintln(w)
	fmt.Fprintln(w, divider)
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Fleet Summary"))
	fmt.Fprintln(w)

	for i := range result.Hosts {
		hr := &result.Hosts[i]
		symbol, style := ui.SymbolSuccess, successStyle
		if !hr.Success {
			symbol, style = ui.SymbolFail, errorStyle
		}

		// [symbol] name (address) 3 run, 1 skipped (1.2s)
		counts := fmt.Sprintf("%d run", hr.Executed)
		if hr.Skipped > 0 {
			counts += ", " + warnStyle.Render(fmt.Sprintf("%s %d skipped", ui.SymbolSkipped, hr.Skipped))
		}
		fmt.Fprintf(w, "  %s %s  %s %s\n",
			style.Render(symbol),
			hr.Host.String(),
			counts,
			mutedStyle.Render(fmt.Sprintf("(%s)", formatDuration(hr.Duration))),
		)

		if !hr.Success && hr.Err != nil {
			fmt.Fprintf(w, "    %s\n", mutedStyle.Render(errors.Brief(hr.Err)))
		}
	}

	fmt.Fprintln(w)

	failedStyle := mutedStyle
	if result.Failed > 0 {
		failedStyle = errorStyle
	}
	fmt.Fprintf(w, "  %s %d passed  %s %d failed  %s %d hosts  %s\n",
		successStyle.Render(ui.SymbolSuccess),
		result.Passed,
		failedStyle.Render(ui.SymbolFail),
		result.Failed,
		mutedStyle.Render(ui.SymbolComplete),
		len(result.Hosts),
		mutedStyle.Render(fmt.Sprintf("(%s)", formatDuration(result.Duration))),
	)
	if result.RunID != "" {
		fmt.Fprintf(w, "  %s\n", mutedStyle.Render("Run: "+result.RunID))
	}
}

func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	remainingSecs := secs - float64(mins)*60
	return fmt.Sprintf("%dm%.1fs", mins, remainingSecs)
}
