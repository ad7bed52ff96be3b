package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

const defaultWidth = 80

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	selectedCardStyle = cardStyle.BorderForeground(lipgloss.Color("12"))
	brokenCardStyle   = cardStyle.BorderForeground(lipgloss.Color("9"))

	pickerItemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	pickerSelectedStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(lipgloss.Color("12")).Bold(true)
)

// View implements tea.Model.
func (m Model) View() string {
	switch {
	case m.showHelp:
		return m.renderHelp()
	case m.picking:
		return m.renderPicker()
	}
	return m.renderMain()
}

func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if len(m.dash.Widgets) == 0 {
		b.WriteString(mutedStyle.Render("No widgets yet. Press a to add one."))
	} else {
		b.WriteString(m.renderWidgets())
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	mode := "view"
	if m.dash.EditMode {
		mode = "edit"
	}
	return titleStyle.Render(m.ns) + mutedStyle.Render(fmt.Sprintf("  layout=%s  mode=%s  widgets=%d",
		m.dash.Layout.Type, mode, len(m.dash.Widgets)))
}

func (m Model) renderFooter() string {
	if m.err != nil {
		return errorStyle.Render("error: " + m.err.Error())
	}
	if m.status != "" {
		return statusStyle.Render(m.status) + mutedStyle.Render("  ? for help")
	}
	return mutedStyle.Render("? for help")
}

// renderWidgets lays cards out row by row as the active layout placed them.
func (m Model) renderWidgets() string {
	rows := map[int][]dto.WidgetView{}
	for _, w := range m.dash.Widgets {
		if w.Placement.Hidden {
			continue
		}
		if w.Placement.Fullscreen {
			return m.renderCard(w, m.width-2)
		}
		rows[w.Placement.Row] = append(rows[w.Placement.Row], w)
	}

	order := make([]int, 0, len(rows))
	for r := range rows {
		order = append(order, r)
	}
	slices.Sort(order)

	lines := make([]string, 0, len(order))
	for _, r := range order {
		row := rows[r]
		slices.SortFunc(row, func(a, b dto.WidgetView) int { return a.Placement.Column - b.Placement.Column })
		cards := make([]string, len(row))
		for i, w := range row {
			cards[i] = m.renderCard(w, m.cardWidth(w))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// cardWidth scales a grid widget's column span to the terminal; flow cards
// split the row evenly.
func (m Model) cardWidth(w dto.WidgetView) int {
	total := m.width
	if total <= 0 {
		total = defaultWidth
	}
	l := m.dash.Layout
	if l.Type == models.LayoutFlow {
		cols := max(1, l.Flow.Columns)
		if l.Flow.Direction == models.FlowRow {
			cols = max(1, len(m.dash.Widgets))
		}
		return max(16, total/cols-2)
	}
	cols := max(1, l.Grid.Cols)
	return max(16, total*w.Placement.Position.W/cols-2)
}

func (m Model) renderCard(w dto.WidgetView, width int) string {
	style := cardStyle
	switch {
	case !w.Rendered:
		style = brokenCardStyle
	case w.Widget.ID == m.selectedID:
		style = selectedCardStyle
	}
	if width > 0 {
		style = style.Width(width)
	}

	title := w.View.Title
	body := w.View.Lines
	if !w.Rendered {
		title = w.Widget.ComponentKey
		body = []string{errorStyle.Render("this widget could not be displayed")}
	}
	if w.Widget.ID == m.selectedID {
		title = "▸ " + title
	}

	parts := []string{titleStyle.Render(title)}
	parts = append(parts, body...)
	if m.dash.EditMode {
		parts = append(parts, mutedStyle.Render(shortID(w.Widget.ID)+"  "+w.Widget.ComponentKey))
		for _, o := range w.Options {
			parts = append(parts, mutedStyle.Render(fmt.Sprintf("%s: %v", o.Label, o.Value)))
		}
	}
	return style.Render(strings.Join(parts, "\n"))
}

func (m Model) renderPicker() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Add widget"))
	b.WriteString("\n\n")
	for i, e := range m.catalog {
		line := fmt.Sprintf("%-16s %s", e.Key, e.Title)
		if i == m.pickIdx {
			b.WriteString(pickerSelectedStyle.Render("> " + line))
		} else {
			b.WriteString(pickerItemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter to add, esc to cancel"))
	return b.String()
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys"))
	b.WriteString("\n\n")
	for _, k := range m.keys.helpBindings() {
		h := k.Help()
		fmt.Fprintf(&b, "  %-8s %s\n", h.Key, h.Desc)
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("press any key to close"))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
