// Package tui is the terminal front-end for the portal: a pipeline kanban
// board driven by the crm controllers.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ignite/agency-portal/internal/crm"
)

// Theme holds the lipgloss styles used by the board.
type Theme struct {
	Header       lipgloss.Style
	ColumnTitle  lipgloss.Style
	Column       lipgloss.Style
	ColumnHover  lipgloss.Style
	Card         lipgloss.Style
	CardCursor   lipgloss.Style
	CardSelected lipgloss.Style
	CardDragging lipgloss.Style
	Money        lipgloss.Style
	Detail       lipgloss.Style
	DetailTitle  lipgloss.Style
	StatusBar    lipgloss.Style
	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style
	ToastInfo    lipgloss.Style
	Help         lipgloss.Style
}

// DefaultTheme returns the standard board styling.
func DefaultTheme() Theme {
	return Theme{
		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		ColumnTitle: lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("15")),
		Column: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		ColumnHover: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1),
		Card: lipgloss.NewStyle().Padding(0, 1),
		CardCursor: lipgloss.NewStyle().Padding(0, 1).
			Background(lipgloss.Color("237")).Bold(true),
		CardSelected: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.Color("212")),
		CardDragging: lipgloss.NewStyle().Padding(0, 1).
			Background(lipgloss.Color("205")).Foreground(lipgloss.Color("0")),
		Money: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		Detail: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		DetailTitle: lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("63")),
		StatusBar: lipgloss.NewStyle().Padding(0, 1),
		ToastSuccess: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.Color("42")),
		ToastError: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.Color("196")),
		ToastInfo: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.Color("75")),
		Help: lipgloss.NewStyle().Faint(true).Padding(0, 1),
	}
}

// iconGlyphs maps stage icons onto single-cell terminal glyphs.
var iconGlyphs = map[crm.Icon]string{
	crm.IconSparkles:  "✦",
	crm.IconPhone:     "☎",
	crm.IconBadge:     "✓",
	crm.IconFileText:  "▤",
	crm.IconHandshake: "⇄",
	crm.IconTrophy:    "★",
	crm.IconXCircle:   "✗",
	crm.IconTarget:    "◎",
	crm.IconMail:      "✉",
	crm.IconCalendar:  "▦",
	crm.IconDollar:    "$",
}

func iconGlyph(icon crm.Icon) string {
	if g, ok := iconGlyphs[icon]; ok {
		return g
	}
	return "◎"
}

// stageColor maps a stage's configured hex color onto a lipgloss color,
// falling back to the default foreground for anything unparseable.
func stageColor(hex string) lipgloss.Color {
	if len(hex) == 7 && hex[0] == '#' {
		return lipgloss.Color(hex)
	}
	return lipgloss.Color("252")
}
