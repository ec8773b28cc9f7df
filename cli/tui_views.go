package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/contextos/ctxos/api"
	"github.com/contextos/ctxos/state"
)

func (m panelModel) View() string {
	if m.quitting {
		return ""
	}
	if m.collapsed {
		return m.theme.panel.Render(
			m.theme.title.Render("ctxos") + " " +
				m.theme.muted.Render("collapsed, press enter to expand"))
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	inner := width - 4
	if inner < 30 {
		inner = 30
	}

	var sections []string
	sections = append(sections, m.renderHeader(inner))

	switch m.store.CurrentView {
	case state.ViewHistory:
		sections = append(sections, m.renderHistory(inner))
	case state.ViewSettings:
		sections = append(sections, m.renderSettings(inner))
	default:
		sections = append(sections, m.renderFetch(inner))
	}

	if m.store.Err != "" {
		sections = append(sections, renderErrorCard(m.theme, m.store.Err, inner))
	}
	if len(m.ledger.entries) > 0 {
		sections = append(sections, m.theme.panel.Width(inner).Render(m.ledger.View()))
	}
	sections = append(sections, m.renderHelp(inner))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m panelModel) renderHeader(width int) string {
	title := m.theme.title.Render("ctxos")
	tabs := m.renderTabs()
	rail := renderStageRail(m.theme, panelStages, m.stageIndex())

	line := title + "  " + tabs
	return m.theme.panel.Width(width).Render(line + "\n" + rail)
}

func (m panelModel) renderTabs() string {
	labels := []struct {
		view state.View
		text string
	}{
		{state.ViewFetch, "Fetch"},
		{state.ViewHistory, "History"},
		{state.ViewSettings, "Settings"},
	}
	rendered := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.view == m.store.CurrentView {
			rendered = append(rendered, m.theme.highlight.Render(" "+l.text+" "))
		} else {
			rendered = append(rendered, m.theme.muted.Render(" "+l.text+" "))
		}
	}
	return strings.Join(rendered, " ")
}

func (m panelModel) renderFetch(width int) string {
	if !m.store.Authenticated {
		return m.renderAuthGate(width)
	}

	var parts []string
	parts = append(parts, m.renderComposer(width))

	if m.store.ShowContextPicker {
		parts = append(parts, m.renderPicker(width))
	}
	if m.store.ShowQuestions {
		parts = append(parts, m.renderQuestions(width))
	}
	if m.store.ShowFileContext {
		parts = append(parts, m.renderExtracts(width))
	}
	if banner := m.renderStatusBanner(); banner != "" {
		parts = append(parts, banner)
	}
	if m.store.EnhancedPrompt != "" && !m.store.Loading {
		parts = append(parts, m.renderComposite(width))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m panelModel) renderAuthGate(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.subtitle.Render("Connect"))
	b.WriteString("\n")
	b.WriteString(m.theme.text.Render("Paste your API key to connect to the enhancement service."))
	b.WriteString("\n\n")
	b.WriteString(m.connectInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.theme.help.Render("enter connect"))
	return m.theme.panel.Width(width).Render(b.String())
}

func (m panelModel) renderComposer(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.subtitle.Render("Prompt"))
	b.WriteString("\n")
	b.WriteString(m.promptInput.View())
	b.WriteString("\n")

	selected := m.store.SelectedSchemas()
	if len(selected) == 0 {
		b.WriteString(m.theme.muted.Render("No contexts selected, press ctrl+o to choose"))
	} else {
		chips := make([]string, 0, len(selected))
		for _, schema := range selected {
			chips = append(chips, m.theme.info.Render("["+schema.Name+"]"))
		}
		b.WriteString(m.theme.muted.Render("Contexts: ") + strings.Join(chips, " "))
	}

	if n := m.store.SelectedExtractCount(); n > 0 {
		b.WriteString("\n")
		b.WriteString(m.theme.muted.Render(fmt.Sprintf("%d supplementary extract(s) selected", n)))
	}

	return m.theme.panel.Width(width).Render(b.String())
}

func (m panelModel) renderPicker(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.subtitle.Render("Select context"))
	b.WriteString("\n")
	b.WriteString(m.searchInput.View())
	b.WriteString("\n")

	filtered := m.store.FilteredSchemas()
	if len(filtered) == 0 {
		b.WriteString(m.theme.muted.Render("No contexts match"))
	}
	for i, schema := range filtered {
		marker := "  "
		if m.store.IsSchemaSelected(schema.ID) {
			marker = m.theme.ok.Render("* ")
		}
		line := fmt.Sprintf("%s%s %s %s",
			marker,
			m.theme.text.Render(schema.Name),
			schemaTypeStyle(m.theme, schema.Type),
			m.theme.muted.Render(schema.CompanyName))
		if i == m.pickerCursor {
			line = m.theme.highlight.Render(">") + " " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(m.theme.help.Render("up/down move . enter select . esc close"))
	return m.theme.panel.Width(width).Render(b.String())
}

func (m panelModel) renderQuestions(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.subtitle.Render("Clarifying questions"))
	b.WriteString("\n")
	b.WriteString(m.theme.muted.Render("Answer what you can; blank answers are skipped."))
	b.WriteString("\n\n")

	for i, qa := range m.store.Questions {
		q := m.theme.text.Render(fmt.Sprintf("%d. %s", i+1, qa.Question))
		if i == m.answerFocus && m.focus == focusAnswers {
			q = m.theme.info.Render(fmt.Sprintf("%d. %s", i+1, qa.Question))
		}
		b.WriteString(q + "\n")
		if i < len(m.answerInputs) {
			b.WriteString("   " + m.answerInputs[i].View() + "\n")
		}
	}

	if m.store.SubmittingAnswers {
		b.WriteString("\n" + m.spin.View() + m.theme.info.Render(" Submitting answers..."))
	} else {
		b.WriteString("\n" + m.theme.help.Render("tab next . ctrl+s submit . esc hide"))
	}
	return m.theme.panel.Width(width).Render(b.String())
}

func (m panelModel) renderExtracts(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.subtitle.Render("Supplementary extracts"))
	b.WriteString("\n")

	for i, extract := range m.store.FileContexts {
		box := "[ ]"
		if extract.Selected {
			box = m.theme.ok.Render("[x]")
		}
		source := extract.Source
		if source == "" {
			source = "extract"
		}
		line := fmt.Sprintf("%s %s  %s",
			box,
			m.theme.text.Render(source),
			m.theme.muted.Render(truncateRunes(firstLine(extract.Content), 60)))
		if i == m.extractCursor && m.focus == focusExtracts {
			line = m.theme.highlight.Render(">") + " " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(m.theme.help.Render("up/down move . enter toggle . esc close"))
	return m.theme.panel.Width(width).Render(b.String())
}

// renderStatusBanner shows in-flight progress under the composer.
func (m panelModel) renderStatusBanner() string {
	st := m.store
	if !st.Loading || st.Current == nil {
		return ""
	}
	var text string
	switch {
	case st.Current.ID == "":
		text = "Submitting prompt..."
	case st.SubmittingAnswers:
		text = "Submitting answers..."
	case st.Current.Status == api.StatusProcessing:
		text = "Enhancing with context..."
	default:
		text = "Processing your prompt..."
	}
	return m.spin.View() + m.theme.info.Render(" "+text)
}

func (m panelModel) renderComposite(width int) string {
	var b strings.Builder
	header := m.theme.subtitle.Render("Enhanced prompt")
	if m.store.CopiedPrompt {
		header += "  " + m.theme.ok.Render("Copied!")
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.theme.text.Render(m.store.Composite()))
	b.WriteString("\n\n")
	b.WriteString(m.theme.help.Render("ctrl+y copy . ctrl+n new prompt"))
	return m.theme.panel.Width(width).Render(b.String())
}

func (m panelModel) renderHistory(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.subtitle.Render("Prompt history"))
	b.WriteString("\n")
	b.WriteString(m.historyInput.View())
	b.WriteString("\n")

	switch {
	case m.store.HistoryLoading:
		b.WriteString(m.spin.View() + m.theme.info.Render(" Loading history..."))
	case len(m.store.History) == 0:
		b.WriteString(m.theme.muted.Render("No completed prompts yet"))
	default:
		for i, entry := range m.store.History {
			preview := truncateRunes(firstLine(entry.OriginalPrompt), 70)
			line := fmt.Sprintf("%s  %s",
				m.theme.muted.Render(formatHistoryDate(entry.CreatedAt)),
				m.theme.text.Render(preview))
			if i == m.historyCursor && m.focus == focusHistoryList {
				line = m.theme.highlight.Render(">") + " " + line
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n" + m.theme.help.Render("enter search/open . down list . ctrl+r refresh"))
	return m.theme.panel.Width(width).Render(b.String())
}

func (m panelModel) renderSettings(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.subtitle.Render("Settings"))
	b.WriteString("\n")

	if m.store.Authenticated {
		b.WriteString(m.theme.ok.Render("Connected"))
	} else {
		b.WriteString(m.theme.warn.Render("Not connected"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.theme.text.Render("API key"))
	b.WriteString("\n")
	b.WriteString(m.settingsInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.theme.muted.Render("Service: " + apiBase))
	b.WriteString("\n")
	b.WriteString(m.theme.help.Render("ctrl+s save . ctrl+d disconnect . esc back"))
	return m.theme.panel.Width(width).Render(b.String())
}

func (m panelModel) renderHelp(width int) string {
	var keys string
	switch m.store.CurrentView {
	case state.ViewHistory:
		keys = "tab settings . ctrl+r refresh . ctrl+c quit"
	case state.ViewSettings:
		keys = "tab fetch . ctrl+c quit"
	default:
		keys = "ctrl+s submit . ctrl+o contexts . ctrl+n new . ctrl+b collapse . tab history . ctrl+c quit"
	}
	return m.theme.help.Width(width).Render(keys)
}
