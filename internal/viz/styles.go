package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Theme    Theme
	Header   lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Ownship  lipgloss.Style
	Intruder lipgloss.Style
	Safe     lipgloss.Style
	Warning  lipgloss.Style
	Alert    lipgloss.Style
	Panel    lipgloss.Style
	Graph    lipgloss.Style
}

func NewStyles(t Theme) Styles {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return Styles{
		Theme: t,
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Title).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Muted),
		Label:    fg(t.Muted).Width(16),
		Value:    fg(t.Text).Bold(true),
		Muted:    fg(t.Muted),
		Ownship:  fg(t.Ownship).Bold(true),
		Intruder: fg(t.Intruder).Bold(true),
		Safe:     fg(t.Safe).Bold(true),
		Warning:  fg(t.Warning).Bold(true),
		Alert:    fg(t.Alert).Bold(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		Graph: fg(t.Ownship).Padding(1, 0),
	}
}

// Row renders one label/value line.
func (s Styles) Row(label, value string) string {
	return s.Label.Render(label) + s.Value.Render(value)
}

// Margin colors a barrier value by how close it is to the boundary.
func (s Styles) Margin(h, maxVal float64) lipgloss.Style {
	switch {
	case h <= 0:
		return s.Alert
	case h < 0.1*maxVal:
		return s.Warning
	}
	return s.Safe
}

// ProgressBar renders percent in [0, 1] as a bar of width cells.
func (s Styles) ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	filled = max(0, min(width, filled))
	return s.Safe.Render(strings.Repeat("█", filled)) + s.Muted.Render(strings.Repeat("░", width-filled))
}

// Sparkline renders the last width values on an eight-level scale.
func (s Styles) Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return s.Muted.Render(strings.Repeat("─", width))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / rng * float64(len(chars)-1))
		b.WriteRune(chars[max(0, min(len(chars)-1, idx))])
	}
	return s.Ownship.Render(b.String())
}

func (s Styles) Separator(width int) string {
	mid := width / 2
	return s.Muted.Render(strings.Repeat("─", max(0, mid-3)) + " ◆ " + strings.Repeat("─", max(0, width-mid-3)))
}
