package viz

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of the report and the live view.
type Theme struct {
	Name     string
	Title    lipgloss.Color
	Text     lipgloss.Color
	Muted    lipgloss.Color
	Ownship  lipgloss.Color
	Intruder lipgloss.Color
	Safe     lipgloss.Color
	Warning  lipgloss.Color
	Alert    lipgloss.Color
}

var (
	ThemeRadar = Theme{
		Name:     "radar",
		Title:    lipgloss.Color("#88ff88"),
		Text:     lipgloss.Color("#00ff00"),
		Muted:    lipgloss.Color("#005500"),
		Ownship:  lipgloss.Color("#00ff00"),
		Intruder: lipgloss.Color("#ffff00"),
		Safe:     lipgloss.Color("#88ff88"),
		Warning:  lipgloss.Color("#ffcc00"),
		Alert:    lipgloss.Color("#ff4444"),
	}

	ThemeNight = Theme{
		Name:     "night",
		Title:    lipgloss.Color("#00ffff"),
		Text:     lipgloss.Color("#e0f0ff"),
		Muted:    lipgloss.Color("#666688"),
		Ownship:  lipgloss.Color("#00ccff"),
		Intruder: lipgloss.Color("#ff00ff"),
		Safe:     lipgloss.Color("#00ff88"),
		Warning:  lipgloss.Color("#ffaa00"),
		Alert:    lipgloss.Color("#ff4757"),
	}

	ThemeMinimal = Theme{
		Name:     "minimal",
		Title:    lipgloss.Color("#ffffff"),
		Text:     lipgloss.Color("#ffffff"),
		Muted:    lipgloss.Color("#888888"),
		Ownship:  lipgloss.Color("#0088ff"),
		Intruder: lipgloss.Color("#cccccc"),
		Safe:     lipgloss.Color("#00ff00"),
		Warning:  lipgloss.Color("#ffaa00"),
		Alert:    lipgloss.Color("#ff0000"),
	}

	Themes = []Theme{ThemeRadar, ThemeNight, ThemeMinimal}
)

func GetTheme(name string) (Theme, error) {
	for _, t := range Themes {
		if t.Name == name {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("unknown theme %q", name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
