package cli

import "github.com/charmbracelet/lipgloss"

type tuiTheme struct {
	canvas       lipgloss.Style
	panel        lipgloss.Style
	title        lipgloss.Style
	subtitle     lipgloss.Style
	text         lipgloss.Style
	muted        lipgloss.Style
	ok           lipgloss.Style
	warn         lipgloss.Style
	danger       lipgloss.Style
	info         lipgloss.Style
	highlight    lipgloss.Style
	help         lipgloss.Style
	stageDone    lipgloss.Style
	stageCurrent lipgloss.Style
	stagePending lipgloss.Style
}

func newTUITheme() tuiTheme {
	return tuiTheme{
		canvas: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DCE3EA")).
			Background(lipgloss.Color("#101418")),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#46525E")).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7FE0C3")),
		subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#B9C4D0")),
		text: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DCE3EA")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#76838F")),
		ok: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7CCE88")),
		warn: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D9A94C")),
		danger: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D96A6A")),
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6FA8E8")),
		highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#101418")).
			Background(lipgloss.Color("#7FE0C3")),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87929E")),
		stageDone: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7CCE88")),
		stageCurrent: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#6FA8E8")),
		stagePending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#76838F")),
	}
}
