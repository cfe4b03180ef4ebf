package theme

import "github.com/charmbracelet/lipgloss"

var (
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(0, 1)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Label = lipgloss.NewStyle().Foreground(Lavender)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Pass  = lipgloss.NewStyle().Foreground(Green)
	Fail  = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

// ForOverall picks the style for a NORMAL, REMEDIATION or BLOCKED aggregate.
func ForOverall(overall string) lipgloss.Style {
	switch overall {
	case "NORMAL":
		return Pass
	case "BLOCKED":
		return Fail
	default:
		return Hot
	}
}
