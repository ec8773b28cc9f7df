package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// The ledger records lifecycle activity (submissions, poll results,
// failures) while the TUI owns the terminal and nothing can go to stdout.

type ledgerEntry struct {
	at    time.Time
	level string
	text  string
}

type ledgerModel struct {
	viewport viewport.Model
	entries  []ledgerEntry
	theme    tuiTheme
}

const panelLedgerLimit = 200

func newLedgerModel(theme tuiTheme) ledgerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	return ledgerModel{
		viewport: vp,
		entries:  make([]ledgerEntry, 0, 64),
		theme:    theme,
	}
}

func (m ledgerModel) Update(msg tea.Msg) (ledgerModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *ledgerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h
	m.updateContent()
}

func (m *ledgerModel) add(level, text string) {
	m.entries = append(m.entries, ledgerEntry{at: time.Now(), level: level, text: text})
	if len(m.entries) > panelLedgerLimit {
		m.entries = m.entries[len(m.entries)-panelLedgerLimit:]
	}
	m.updateContent()
}

func (m *ledgerModel) updateContent() {
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()
}

func (m ledgerModel) renderContent() string {
	var b strings.Builder
	for _, ev := range m.entries {
		levelStyle := m.theme.info
		switch ev.level {
		case "warn":
			levelStyle = m.theme.warn
		case "error":
			levelStyle = m.theme.danger
		case "ok":
			levelStyle = m.theme.ok
		}

		line := fmt.Sprintf("%s %s %s",
			m.theme.muted.Render(ev.at.Format("15:04:05")),
			levelStyle.Render(strings.ToUpper(ev.level)),
			ev.text)
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m ledgerModel) View() string {
	return m.viewport.View()
}
