package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-focused Bubbles table with the CLI's styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Nothing is selectable in CLI output, so the cursor row looks like the rest.
	s.Selected = lipgloss.NewStyle()

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string. Column widths
// grow to fit the widest cell.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := make([]TableColumn, len(columns))
	copy(cols, columns)
	for _, row := range rows {
		for i, cell := range row {
			if i < len(cols) {
				if w := lipgloss.Width(cell); w > cols[i].Width {
					cols[i].Width = w
				}
			}
		}
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	return NewTable(cols, tableRows).View()
}

// PlanRow is one command in a dry-run listing.
type PlanRow struct {
	Command string
	Skip    bool
	Reason  string // matching danger fragment for skipped commands
}

// RenderPlan renders a dry-run command list: a run/skip marker, the command
// and why it would be skipped.
func RenderPlan(rows []PlanRow) string {
	if len(rows) == 0 {
		return "No commands to run"
	}

	runStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	skipStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	width := 0
	for _, row := range rows {
		if w := lipgloss.Width(row.Command); w > width {
			width = w
		}
	}

	var b strings.Builder
	for _, row := range rows {
		marker := runStyle.Render(SymbolSuccess + " run ")
		reason := ""
		if row.Skip {
			marker = skipStyle.Render(SymbolSkipped + " skip")
			reason = mutedStyle.Render("matches \"" + row.Reason + "\"")
		}
		line := "  " + marker + "  " + padRight(row.Command, width+2) + reason
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteString("\n")
	}
	return b.String()
}

func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
