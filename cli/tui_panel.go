package cli

import (
	"context"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/contextos/ctxos/api"
	"github.com/contextos/ctxos/config"
	"github.com/contextos/ctxos/lifecycle"
	"github.com/contextos/ctxos/state"
)

const copyFlashDuration = 2 * time.Second

// Messages
type lifecycleEventMsg struct {
	ev lifecycle.Event
}

type prefetchMsg struct {
	schemas []api.Schema
	history []api.Prompt
	err     error
}

type schemasLoadedMsg struct {
	schemas []api.Schema
	err     error
}

type historyLoadedMsg struct {
	prompts []api.Prompt
	err     error
}

type copyResultMsg struct {
	err error
}

type copyFlashExpiredMsg struct{}

type configReloadedMsg struct {
	cfg *config.Config
}

// panelFocus selects which interactive element owns keystrokes.
type panelFocus int

const (
	focusPrompt panelFocus = iota
	focusConnectKey
	focusPickerSearch
	focusHistorySearch
	focusHistoryList
	focusSettingsKey
	focusAnswers
	focusExtracts
)

type panelModel struct {
	theme tuiTheme

	width     int
	height    int
	collapsed bool

	store  *state.Store
	client *api.Client
	ctrl   *lifecycle.Controller
	ctx    context.Context

	focus         panelFocus
	promptInput   textarea.Model
	connectInput  textinput.Model
	searchInput   textinput.Model
	historyInput  textinput.Model
	settingsInput textinput.Model
	answerInputs  []textinput.Model
	answerFocus   int
	pickerCursor  int
	historyCursor int
	extractCursor int

	spin   spinner.Model
	ledger ledgerModel

	quitting bool
}

func newPanelModel(ctx context.Context, store *state.Store, client *api.Client, ctrl *lifecycle.Controller) panelModel {
	theme := newTUITheme()

	prompt := textarea.New()
	prompt.Placeholder = "Write a prompt to get started"
	prompt.SetHeight(3)
	prompt.CharLimit = 0
	prompt.Focus()

	connect := textinput.New()
	connect.Placeholder = "Enter your API key"
	connect.EchoMode = textinput.EchoPassword
	connect.Width = 50

	search := textinput.New()
	search.Placeholder = "Search contexts..."
	search.Width = 40

	history := textinput.New()
	history.Placeholder = "Search prompts..."
	history.Width = 40

	settings := textinput.New()
	settings.Placeholder = "Enter your API key"
	settings.EchoMode = textinput.EchoPassword
	settings.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := panelModel{
		theme:         theme,
		store:         store,
		client:        client,
		ctrl:          ctrl,
		ctx:           ctx,
		promptInput:   prompt,
		connectInput:  connect,
		searchInput:   search,
		historyInput:  history,
		settingsInput: settings,
		spin:          sp,
		ledger:        newLedgerModel(theme),
	}

	if store.Authenticated {
		m.focus = focusPrompt
		m.settingsInput.SetValue(store.Credential)
	} else {
		m.focus = focusConnectKey
		m.connectInput.Focus()
		m.promptInput.Blur()
	}
	return m
}

func (m panelModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, textinput.Blink}
	if m.store.Authenticated {
		cmds = append(cmds, prefetchCmd(m.ctx, m.client, m.store.HistorySearch))
	}
	return tea.Batch(cmds...)
}

// Commands

func prefetchCmd(ctx context.Context, client *api.Client, search string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		var (
			schemas []api.Schema
			history []api.Prompt
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			loaded, err := client.ListSchemas(gctx)
			if err != nil {
				return err
			}
			schemas = loaded
			return nil
		})
		g.Go(func() error {
			loaded, err := client.ListHistory(gctx, search)
			if err != nil {
				return err
			}
			history = loaded
			return nil
		})
		if err := g.Wait(); err != nil {
			return prefetchMsg{err: err}
		}
		return prefetchMsg{schemas: schemas, history: history}
	}
}

func loadSchemasCmd(ctx context.Context, client *api.Client) tea.Cmd {
	return func() tea.Msg {
		schemas, err := client.ListSchemas(ctx)
		return schemasLoadedMsg{schemas: schemas, err: err}
	}
}

func loadHistoryCmd(ctx context.Context, client *api.Client, search string) tea.Cmd {
	return func() tea.Msg {
		prompts, err := client.ListHistory(ctx, search)
		return historyLoadedMsg{prompts: prompts, err: err}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{err: clipboard.WriteAll(text)}
	}
}

func copyFlashCmd() tea.Cmd {
	return tea.Tick(copyFlashDuration, func(time.Time) tea.Msg {
		return copyFlashExpiredMsg{}
	})
}

// Update

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalculateLayout()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case lifecycleEventMsg:
		cmds = append(cmds, m.applyLifecycleEvent(msg.ev)...)

	case prefetchMsg:
		if msg.err != nil {
			m.handleRemoteError(msg.err, "Failed to load schemas")
		} else {
			m.store.ClearError()
			m.store.SetSchemas(msg.schemas)
			m.store.SetHistory(msg.history)
			m.ledger.add("ok", "Loaded schemas and history")
		}

	case schemasLoadedMsg:
		if msg.err != nil {
			m.handleRemoteError(msg.err, "Failed to load schemas")
		} else {
			m.store.ClearError()
			m.store.SetSchemas(msg.schemas)
		}

	case historyLoadedMsg:
		if msg.err != nil {
			m.store.SetHistory(nil)
			m.handleRemoteError(msg.err, "Failed to load history")
		} else {
			m.store.SetHistory(msg.prompts)
			if m.historyCursor >= len(msg.prompts) {
				m.historyCursor = 0
			}
		}

	case copyResultMsg:
		if msg.err != nil {
			m.store.SetError("Failed to copy to clipboard")
		} else {
			m.store.CopiedPrompt = true
			cmds = append(cmds, copyFlashCmd())
		}

	case copyFlashExpiredMsg:
		m.store.CopiedPrompt = false

	case configReloadedMsg:
		cmds = append(cmds, m.applyReloadedConfig(msg.cfg)...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			m.ctrl.Cancel()
			return m, tea.Quit
		}
		next, keyCmds := m.handleKey(msg)
		m = next
		cmds = append(cmds, keyCmds...)
	}

	var cmd tea.Cmd
	m.ledger, cmd = m.ledger.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// applyLifecycleEvent folds a controller event into the store. Events from
// a superseded cycle are discarded so a stale poll never overwrites the
// current prompt.
func (m *panelModel) applyLifecycleEvent(ev lifecycle.Event) []tea.Cmd {
	if ev.Generation() != m.ctrl.Generation() {
		return nil
	}

	switch ev := ev.(type) {
	case lifecycle.Submitted:
		m.store.AttachPromptID(ev.PromptID)
		m.ledger.add("info", "Prompt accepted, id "+ev.PromptID)

	case lifecycle.PollUpdate:
		m.store.ApplyPoll(ev.Prompt)

	case lifecycle.Completed:
		m.store.FinishCompleted(ev.Prompt)
		if ev.QuestionsPending {
			m.rebuildAnswerInputs()
			m.setFocus(focusAnswers)
			m.ledger.add("warn", "Server needs clarification answers")
		} else {
			m.ledger.add("ok", "Enhanced prompt ready")
		}

	case lifecycle.Failed:
		m.handleRemoteError(ev.Err, "Failed to retrieve prompt")
		m.store.FailSubmit(m.store.Err)
		m.ledger.add("error", m.store.Err)

	case lifecycle.TimedOut:
		m.store.TimeoutSubmit()
		m.ledger.add("error", "Prompt processing timed out")

	case lifecycle.AnswersAccepted:
		m.store.AnswersSubmitted()
		m.setFocus(focusPrompt)
		m.ledger.add("ok", "Answers submitted, re-polling for enhancement")

	case lifecycle.AnswersRejected:
		m.handleRemoteError(ev.Err, "Failed to submit answers")
		m.store.AnswersFailed(m.store.Err)
		m.ledger.add("error", m.store.Err)
	}
	return nil
}

// handleRemoteError surfaces the message and, on an auth-kind failure,
// deauthenticates and drops the persisted credential.
func (m *panelModel) handleRemoteError(err error, fallback string) {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	m.store.SetError(msg)

	if api.IsAuth(err) {
		m.store.Deauthenticate()
		m.client.SetCredential("")
		if saveErr := config.Save(&config.Config{APIBase: apiBase}); saveErr != nil {
			m.ledger.add("warn", "Could not clear stored credential: "+saveErr.Error())
		}
		m.setFocus(focusConnectKey)
		m.ledger.add("error", "Credential rejected, disconnected")
	}
}

func (m *panelModel) applyReloadedConfig(cfg *config.Config) []tea.Cmd {
	if cfg == nil || cfg.APIKey == m.store.Credential {
		return nil
	}
	m.client.SetCredential(cfg.APIKey)
	if m.store.Connect(cfg.APIKey) {
		m.ledger.add("info", "Credential reloaded from config file")
		m.setFocus(focusPrompt)
		return []tea.Cmd{prefetchCmd(m.ctx, m.client, m.store.HistorySearch)}
	}
	m.store.Disconnect()
	m.setFocus(focusConnectKey)
	m.ledger.add("warn", "Credential removed from config file")
	return nil
}

func (m *panelModel) setFocus(focus panelFocus) {
	m.focus = focus

	m.promptInput.Blur()
	m.connectInput.Blur()
	m.searchInput.Blur()
	m.historyInput.Blur()
	m.settingsInput.Blur()
	for i := range m.answerInputs {
		m.answerInputs[i].Blur()
	}

	switch focus {
	case focusPrompt:
		m.promptInput.Focus()
	case focusConnectKey:
		m.connectInput.Focus()
	case focusPickerSearch:
		m.searchInput.Focus()
	case focusHistorySearch:
		m.historyInput.Focus()
	case focusSettingsKey:
		m.settingsInput.Focus()
	case focusAnswers:
		if m.answerFocus >= 0 && m.answerFocus < len(m.answerInputs) {
			m.answerInputs[m.answerFocus].Focus()
		}
	}
}

func (m *panelModel) rebuildAnswerInputs() {
	m.answerInputs = make([]textinput.Model, 0, len(m.store.Questions))
	for _, qa := range m.store.Questions {
		ti := textinput.New()
		ti.Placeholder = "Enter your answer..."
		if len(m.store.SubmittedAnswers) > 0 {
			ti.Placeholder = "Update your answer..."
		}
		ti.SetValue(qa.Answer)
		ti.CharLimit = 0
		ti.Width = 60
		m.answerInputs = append(m.answerInputs, ti)
	}
	m.answerFocus = 0
}

func (m *panelModel) recalculateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	inner := m.width - 6
	if inner < 20 {
		inner = 20
	}
	m.promptInput.SetWidth(inner)
	m.connectInput.Width = inner
	m.searchInput.Width = inner
	m.historyInput.Width = inner
	m.settingsInput.Width = inner
	for i := range m.answerInputs {
		m.answerInputs[i].Width = inner
	}

	ledgerHeight := 5
	if m.height < 30 {
		ledgerHeight = 3
	}
	m.ledger.setSize(inner, ledgerHeight)
}

func (m *panelModel) cycleView() {
	switch m.store.CurrentView {
	case state.ViewFetch:
		m.store.SetView(state.ViewHistory)
	case state.ViewHistory:
		m.store.SetView(state.ViewSettings)
	default:
		m.store.SetView(state.ViewFetch)
	}
}

// handleKey routes keystrokes by view and focus.
func (m panelModel) handleKey(msg tea.KeyMsg) (panelModel, []tea.Cmd) {
	key := msg.String()

	// Collapsed mode only listens for expand and quit.
	if m.collapsed {
		if key == "ctrl+b" || key == "enter" {
			m.collapsed = false
		}
		return m, nil
	}
	if key == "ctrl+b" {
		m.collapsed = true
		return m, nil
	}

	switch m.store.CurrentView {
	case state.ViewHistory:
		return m.handleHistoryKey(msg)
	case state.ViewSettings:
		return m.handleSettingsKey(msg)
	default:
		return m.handleFetchKey(msg)
	}
}

func (m panelModel) handleFetchKey(msg tea.KeyMsg) (panelModel, []tea.Cmd) {
	key := msg.String()

	if !m.store.Authenticated {
		if key == "enter" {
			return m.connect(m.connectInput.Value())
		}
		var cmd tea.Cmd
		m.connectInput, cmd = m.connectInput.Update(msg)
		return m, []tea.Cmd{cmd}
	}

	switch m.focus {
	case focusPickerSearch:
		return m.handlePickerKey(msg)
	case focusAnswers:
		return m.handleAnswersKey(msg)
	case focusExtracts:
		return m.handleExtractsKey(msg)
	}

	switch key {
	case "tab":
		m.switchView(state.ViewHistory)
		return m, []tea.Cmd{loadHistoryCmd(m.ctx, m.client, m.store.HistorySearch)}
	case "ctrl+s":
		return m.submitPrompt()
	case "ctrl+o":
		m.store.ToggleContextPicker()
		if m.store.ShowContextPicker {
			m.pickerCursor = 0
			m.searchInput.SetValue("")
			m.store.ContextSearch = ""
			m.setFocus(focusPickerSearch)
		} else {
			m.setFocus(focusPrompt)
		}
		return m, nil
	case "ctrl+n":
		m.store.ResetPrompt()
		m.promptInput.Reset()
		m.answerInputs = nil
		m.setFocus(focusPrompt)
		return m, nil
	case "ctrl+f":
		if len(m.store.FileContexts) == 0 {
			return m, nil
		}
		m.store.ToggleFileContextPanel()
		if m.store.ShowFileContext {
			m.extractCursor = 0
			m.setFocus(focusExtracts)
		} else {
			m.setFocus(focusPrompt)
		}
		return m, nil
	case "ctrl+g":
		if len(m.store.Questions) == 0 {
			return m, nil
		}
		m.store.ToggleQuestions()
		if m.store.ShowQuestions {
			m.rebuildAnswerInputs()
			m.setFocus(focusAnswers)
		} else {
			m.setFocus(focusPrompt)
		}
		return m, nil
	case "ctrl+y":
		if m.store.EnhancedPrompt == "" {
			return m, nil
		}
		return m, []tea.Cmd{copyCmd(m.store.Composite())}
	case "ctrl+r":
		// Drop a schema: remove the most recently selected one.
		if n := len(m.store.SelectedSchemaIDs); n > 0 {
			m.store.RemoveSchema(m.store.SelectedSchemaIDs[n-1])
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	m.store.SetPromptText(m.promptInput.Value())
	return m, []tea.Cmd{cmd}
}

func (m panelModel) handlePickerKey(msg tea.KeyMsg) (panelModel, []tea.Cmd) {
	filtered := m.store.FilteredSchemas()

	switch msg.String() {
	case "esc":
		m.store.CloseContextPicker()
		m.searchInput.SetValue("")
		m.setFocus(focusPrompt)
		return m, nil
	case "up":
		if m.pickerCursor > 0 {
			m.pickerCursor--
		}
		return m, nil
	case "down":
		if m.pickerCursor < len(filtered)-1 {
			m.pickerCursor++
		}
		return m, nil
	case "enter":
		if m.pickerCursor >= 0 && m.pickerCursor < len(filtered) {
			m.store.AddSchema(filtered[m.pickerCursor].ID)
			m.searchInput.SetValue("")
			m.setFocus(focusPrompt)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.store.ContextSearch = m.searchInput.Value()
	if m.pickerCursor >= len(m.store.FilteredSchemas()) {
		m.pickerCursor = 0
	}
	return m, []tea.Cmd{cmd}
}

func (m panelModel) handleAnswersKey(msg tea.KeyMsg) (panelModel, []tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.store.HideQuestions()
		m.setFocus(focusPrompt)
		return m, nil
	case "tab", "down":
		if m.answerFocus < len(m.answerInputs)-1 {
			m.answerFocus++
		}
		m.setFocus(focusAnswers)
		return m, nil
	case "shift+tab", "up":
		if m.answerFocus > 0 {
			m.answerFocus--
		}
		m.setFocus(focusAnswers)
		return m, nil
	case "ctrl+s":
		return m.submitAnswers()
	}

	if m.answerFocus < 0 || m.answerFocus >= len(m.answerInputs) {
		return m, nil
	}
	var cmd tea.Cmd
	m.answerInputs[m.answerFocus], cmd = m.answerInputs[m.answerFocus].Update(msg)
	m.store.SetAnswer(m.answerFocus, m.answerInputs[m.answerFocus].Value())
	return m, []tea.Cmd{cmd}
}

func (m panelModel) handleExtractsKey(msg tea.KeyMsg) (panelModel, []tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.store.ShowFileContext = false
		m.setFocus(focusPrompt)
	case "up":
		if m.extractCursor > 0 {
			m.extractCursor--
		}
	case "down":
		if m.extractCursor < len(m.store.FileContexts)-1 {
			m.extractCursor++
		}
	case "enter", " ":
		if m.extractCursor >= 0 && m.extractCursor < len(m.store.FileContexts) {
			m.store.ToggleFileExtract(m.store.FileContexts[m.extractCursor].ID)
		}
	}
	return m, nil
}

func (m panelModel) handleHistoryKey(msg tea.KeyMsg) (panelModel, []tea.Cmd) {
	key := msg.String()

	switch key {
	case "tab":
		m.switchView(state.ViewSettings)
		return m, nil
	case "ctrl+r":
		m.store.SetHistoryLoading(true)
		return m, []tea.Cmd{loadHistoryCmd(m.ctx, m.client, m.store.HistorySearch)}
	}

	if m.focus == focusHistoryList {
		switch key {
		case "up":
			if m.historyCursor > 0 {
				m.historyCursor--
			} else {
				m.setFocus(focusHistorySearch)
			}
			return m, nil
		case "down":
			if m.historyCursor < len(m.store.History)-1 {
				m.historyCursor++
			}
			return m, nil
		case "enter":
			if m.historyCursor >= 0 && m.historyCursor < len(m.store.History) {
				m.openHistoryEntry(m.store.History[m.historyCursor])
			}
			return m, nil
		case "esc":
			m.setFocus(focusHistorySearch)
			return m, nil
		}
		return m, nil
	}

	switch key {
	case "enter":
		m.store.SetHistoryLoading(true)
		return m, []tea.Cmd{loadHistoryCmd(m.ctx, m.client, m.store.HistorySearch)}
	case "down":
		if len(m.store.History) > 0 {
			m.historyCursor = 0
			m.setFocus(focusHistoryList)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.historyInput, cmd = m.historyInput.Update(msg)
	m.store.SetHistorySearch(m.historyInput.Value())
	return m, []tea.Cmd{cmd}
}

func (m panelModel) handleSettingsKey(msg tea.KeyMsg) (panelModel, []tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.switchView(state.ViewFetch)
		return m, nil
	case "esc":
		m.settingsInput.SetValue(m.store.Credential)
		m.switchView(state.ViewFetch)
		return m, nil
	case "ctrl+s":
		return m.connect(m.settingsInput.Value())
	case "ctrl+d":
		m.store.Disconnect()
		m.client.SetCredential("")
		if err := config.Save(&config.Config{APIBase: apiBase}); err != nil {
			m.store.SetError("Failed to clear stored credential")
		}
		m.settingsInput.SetValue("")
		m.switchView(state.ViewFetch)
		m.ledger.add("warn", "Disconnected, credential removed")
		return m, nil
	}

	var cmd tea.Cmd
	m.settingsInput, cmd = m.settingsInput.Update(msg)
	return m, []tea.Cmd{cmd}
}

// openHistoryEntry maps a completed prompt back onto the live editing
// surface so its composite can be reviewed or re-copied.
func (m *panelModel) openHistoryEntry(entry api.Prompt) {
	m.store.Rehydrate(entry)
	m.promptInput.SetValue(entry.OriginalPrompt)
	m.rebuildAnswerInputs()
	m.setFocus(focusPrompt)
	m.ledger.add("info", "Opened prompt from history")
}

func (m *panelModel) switchView(v state.View) {
	m.store.SetView(v)
	switch v {
	case state.ViewHistory:
		m.setFocus(focusHistorySearch)
	case state.ViewSettings:
		m.settingsInput.SetValue(m.store.Credential)
		m.setFocus(focusSettingsKey)
	default:
		if m.store.Authenticated {
			m.setFocus(focusPrompt)
		} else {
			m.setFocus(focusConnectKey)
		}
	}
}

// connect stores the credential, persists it and prefetches remote state.
func (m panelModel) connect(key string) (panelModel, []tea.Cmd) {
	if !m.store.Connect(key) {
		m.store.SetError("API key required")
		return m, nil
	}
	m.client.SetCredential(key)
	if err := config.Save(&config.Config{APIBase: apiBase, APIKey: key}); err != nil {
		m.store.SetError("Failed to persist credential")
	}
	m.store.SetView(state.ViewFetch)
	m.setFocus(focusPrompt)
	m.ledger.add("ok", "Connected")
	return m, []tea.Cmd{prefetchCmd(m.ctx, m.client, m.store.HistorySearch)}
}

// submitPrompt runs the state preconditions and, only when they pass,
// starts a lifecycle cycle. The cycle goroutine gets copies; the store's
// slices stay owned by the UI thread.
func (m panelModel) submitPrompt() (panelModel, []tea.Cmd) {
	if !m.store.BeginSubmit() {
		return m, nil
	}
	text := strings.TrimSpace(m.store.OriginalPrompt)
	schemaIDs := append([]string(nil), m.store.SelectedSchemaIDs...)
	m.ctrl.Submit(m.ctx, text, schemaIDs)
	m.ledger.add("info", "Submitting prompt")
	return m, nil
}

func (m panelModel) submitAnswers() (panelModel, []tea.Cmd) {
	if m.store.Current == nil || m.store.Current.ID == "" || m.store.SubmittingAnswers {
		return m, nil
	}
	m.store.BeginAnswers()
	answers := append([]api.QuestionAnswer(nil), m.store.Questions...)
	m.ctrl.SubmitAnswers(m.ctx, m.store.Current.ID, answers)
	m.ledger.add("info", "Submitting answers")
	return m, nil
}

// stageIndex maps the store onto the lifecycle rail.
func (m panelModel) stageIndex() int {
	st := m.store
	if st.Current == nil {
		if st.EnhancedPrompt != "" {
			return 4
		}
		return 0
	}
	if st.Current.Status == api.StatusFailed {
		return 0
	}
	if st.Current.ID == "" {
		return 1
	}
	if st.Current.Status.InFlight() || st.Loading {
		return 2
	}
	if st.ShowQuestions {
		return 3
	}
	return 4
}
