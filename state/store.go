// Package state holds the single mutable snapshot behind the panel UI.
// Every mutation goes through a named action method and leaves the snapshot
// consistent before the next render; no other component keeps its own copy.
package state

import (
	"fmt"
	"strings"

	"github.com/contextos/ctxos/api"
	"github.com/contextos/ctxos/compose"
)

// View selects the active top-level panel view.
type View int

const (
	ViewFetch View = iota
	ViewHistory
	ViewSettings
)

func (v View) String() string {
	switch v {
	case ViewHistory:
		return "history"
	case ViewSettings:
		return "settings"
	default:
		return "fetch"
	}
}

// FileExtract is a selectable supplementary snippet derived from a
// retrieved prompt's context array. The ID is stable per retrieval.
type FileExtract struct {
	ID       string
	Source   string
	Content  string
	Selected bool
}

// Store is the process-wide snapshot of the panel's truth.
type Store struct {
	Authenticated bool
	Credential    string
	CurrentView   View
	Err           string
	Loading       bool

	OriginalPrompt string
	EnhancedPrompt string
	Current        *api.Prompt

	Schemas           []api.Schema
	SelectedSchemaIDs []string
	ContextSearch     string
	ShowContextPicker bool

	History        []api.Prompt
	HistoryLoading bool
	HistorySearch  string

	Questions         []api.QuestionAnswer
	SubmittedAnswers  []api.QuestionAnswer
	SubmittingAnswers bool
	ShowQuestions     bool

	FileContexts         []FileExtract
	SelectedFileExtracts []string
	ShowFileContext      bool

	CopiedPrompt bool
}

// New builds the startup snapshot from the persisted credential.
func New(credential string) *Store {
	return &Store{
		Authenticated: strings.TrimSpace(credential) != "",
		Credential:    credential,
		CurrentView:   ViewFetch,
	}
}

func (s *Store) SetView(v View) {
	s.CurrentView = v
}

// Connect stores the credential and flips the auth gate. Returns whether
// the store is now authenticated.
func (s *Store) Connect(credential string) bool {
	s.Credential = credential
	s.Authenticated = strings.TrimSpace(credential) != ""
	s.Err = ""
	return s.Authenticated
}

// Deauthenticate drops the credential without touching prompt state. Used
// when the service reports an invalid credential mid-flight.
func (s *Store) Deauthenticate() {
	s.Authenticated = false
	s.Credential = ""
}

// Disconnect clears the credential and everything fetched with it.
func (s *Store) Disconnect() {
	s.Deauthenticate()
	s.Schemas = nil
	s.Current = nil
	s.EnhancedPrompt = ""
	s.Questions = nil
	s.SubmittedAnswers = nil
	s.History = nil
	s.FileContexts = nil
	s.SelectedFileExtracts = nil
	s.Loading = false
}

func (s *Store) SetError(msg string) {
	s.Err = msg
}

func (s *Store) ClearError() {
	s.Err = ""
}

func (s *Store) SetPromptText(text string) {
	s.OriginalPrompt = text
}

// SetSchemas replaces the schema collection wholesale.
func (s *Store) SetSchemas(schemas []api.Schema) {
	s.Schemas = schemas
}

func (s *Store) ToggleContextPicker() {
	s.ShowContextPicker = !s.ShowContextPicker
}

func (s *Store) CloseContextPicker() {
	s.ShowContextPicker = false
	s.ContextSearch = ""
}

// AddSchema selects a schema and closes the picker, matching the
// pick-one-then-dismiss interaction.
func (s *Store) AddSchema(id string) {
	for _, existing := range s.SelectedSchemaIDs {
		if existing == id {
			s.CloseContextPicker()
			return
		}
	}
	s.SelectedSchemaIDs = append(s.SelectedSchemaIDs, id)
	s.CloseContextPicker()
}

func (s *Store) RemoveSchema(id string) {
	kept := s.SelectedSchemaIDs[:0]
	for _, existing := range s.SelectedSchemaIDs {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	s.SelectedSchemaIDs = kept
}

// SelectedSchemas resolves the selected ids against the schema collection,
// preserving selection order.
func (s *Store) SelectedSchemas() []api.Schema {
	byID := make(map[string]api.Schema, len(s.Schemas))
	for _, schema := range s.Schemas {
		byID[schema.ID] = schema
	}
	selected := make([]api.Schema, 0, len(s.SelectedSchemaIDs))
	for _, id := range s.SelectedSchemaIDs {
		if schema, ok := byID[id]; ok {
			selected = append(selected, schema)
		}
	}
	return selected
}

// FilteredSchemas filters the collection by the picker search term across
// name, company and type.
func (s *Store) FilteredSchemas() []api.Schema {
	q := strings.ToLower(strings.TrimSpace(s.ContextSearch))
	if q == "" {
		return s.Schemas
	}
	matched := make([]api.Schema, 0, len(s.Schemas))
	for _, schema := range s.Schemas {
		if strings.Contains(strings.ToLower(schema.Name), q) ||
			strings.Contains(strings.ToLower(schema.CompanyName), q) ||
			strings.Contains(strings.ToLower(string(schema.Type)), q) {
			matched = append(matched, schema)
		}
	}
	return matched
}

// IsSchemaSelected reports whether the given schema id is selected.
func (s *Store) IsSchemaSelected(id string) bool {
	for _, existing := range s.SelectedSchemaIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// BeginSubmit runs the submit preconditions. On violation it records a
// validation error and reports false without any side effect that would
// warrant a network call. On success it marks the prompt in flight so the
// UI shows progress immediately.
func (s *Store) BeginSubmit() bool {
	if s.Loading {
		// One in-flight prompt at a time; resubmitting is a no-op.
		return false
	}
	if strings.TrimSpace(s.OriginalPrompt) == "" {
		s.Err = "Please enter a prompt"
		return false
	}
	if !s.Authenticated {
		s.Err = "API key required"
		return false
	}
	if len(s.SelectedSchemaIDs) == 0 {
		s.Err = "Please select at least one context"
		return false
	}
	s.Loading = true
	s.Err = ""
	s.EnhancedPrompt = ""
	s.SubmittedAnswers = nil
	s.Questions = nil
	s.ShowQuestions = false
	s.Current = &api.Prompt{Status: api.StatusPending}
	return true
}

// AttachPromptID records the server-assigned id once submission succeeds.
func (s *Store) AttachPromptID(id string) {
	if s.Current == nil {
		s.Current = &api.Prompt{Status: api.StatusPending}
	}
	s.Current.ID = id
}

// ApplyPoll replaces the current prompt with a poll response in full and
// rebuilds the file-context extracts. Extract identity is scoped to a
// retrieval, so previous selections are dropped to keep the selected-set
// invariant intact.
func (s *Store) ApplyPoll(p *api.Prompt) {
	s.Current = p
	s.FileContexts = buildExtracts(p)
	s.SelectedFileExtracts = nil
}

// FinishCompleted captures the enhanced text and, when the server attached
// clarifying questions, opens the Q&A panel.
func (s *Store) FinishCompleted(p *api.Prompt) {
	s.EnhancedPrompt = p.EnrichedPrompt
	if len(p.QuestionsAnswers) > 0 {
		s.Questions = append([]api.QuestionAnswer(nil), p.QuestionsAnswers...)
		s.ShowQuestions = true
	}
	s.Loading = false
}

// FailSubmit records a terminal failure for the in-flight prompt.
func (s *Store) FailSubmit(msg string) {
	s.Err = msg
	s.Current = nil
	s.Loading = false
}

// TimeoutSubmit records poll-budget exhaustion.
func (s *Store) TimeoutSubmit() {
	s.Err = "Prompt processing timed out"
	s.Loading = false
}

// SetAnswer mutates one editable answer in place.
func (s *Store) SetAnswer(idx int, text string) {
	if idx < 0 || idx >= len(s.Questions) {
		return
	}
	s.Questions[idx].Answer = text
}

func (s *Store) BeginAnswers() {
	s.SubmittingAnswers = true
}

// AnswersSubmitted freezes the just-submitted list into the immutable
// snapshot, collapses the panel and marks the prompt in flight again for
// the follow-up poll cycle.
func (s *Store) AnswersSubmitted() {
	s.ShowQuestions = false
	s.SubmittedAnswers = append([]api.QuestionAnswer(nil), s.Questions...)
	s.Err = ""
	s.SubmittingAnswers = false
	s.Loading = true
}

// AnswersFailed keeps the editable answers so the user can retry.
func (s *Store) AnswersFailed(msg string) {
	s.Err = msg
	s.SubmittingAnswers = false
}

func (s *Store) ToggleQuestions() {
	s.ShowQuestions = !s.ShowQuestions
}

func (s *Store) HideQuestions() {
	s.ShowQuestions = false
}

// ToggleFileExtract flips one extract's selection and keeps the
// selected-content set exactly in sync.
func (s *Store) ToggleFileExtract(id string) {
	for i := range s.FileContexts {
		if s.FileContexts[i].ID != id {
			continue
		}
		s.FileContexts[i].Selected = !s.FileContexts[i].Selected
		s.rebuildSelectedExtracts()
		return
	}
}

func (s *Store) rebuildSelectedExtracts() {
	selected := make([]string, 0, len(s.FileContexts))
	for _, ctx := range s.FileContexts {
		if ctx.Selected {
			selected = append(selected, ctx.Content)
		}
	}
	s.SelectedFileExtracts = selected
}

func (s *Store) ToggleFileContextPanel() {
	s.ShowFileContext = !s.ShowFileContext
}

// SelectedExtractCount returns how many extracts are currently selected.
func (s *Store) SelectedExtractCount() int {
	n := 0
	for _, ctx := range s.FileContexts {
		if ctx.Selected {
			n++
		}
	}
	return n
}

func (s *Store) SetHistoryLoading(loading bool) {
	s.HistoryLoading = loading
}

// SetHistory replaces the history collection wholesale.
func (s *Store) SetHistory(prompts []api.Prompt) {
	s.History = prompts
	s.HistoryLoading = false
}

func (s *Store) SetHistorySearch(term string) {
	s.HistorySearch = term
}

// Rehydrate maps a history entry back onto the live prompt shape. Q&A pairs
// come in as already submitted, and file-extract selections are cleared
// because extract identity does not survive across retrievals.
func (s *Store) Rehydrate(p api.Prompt) {
	entry := p
	s.OriginalPrompt = entry.OriginalPrompt
	s.Current = &entry
	s.EnhancedPrompt = entry.EnrichedPrompt
	s.SelectedSchemaIDs = append([]string(nil), entry.SchemasUsed...)
	if len(entry.QuestionsAnswers) > 0 {
		s.Questions = append([]api.QuestionAnswer(nil), entry.QuestionsAnswers...)
		s.SubmittedAnswers = append([]api.QuestionAnswer(nil), entry.QuestionsAnswers...)
	} else {
		s.Questions = nil
		s.SubmittedAnswers = nil
	}
	s.FileContexts = buildExtracts(&entry)
	s.SelectedFileExtracts = nil
	s.ShowQuestions = false
	s.ShowFileContext = false
	s.CurrentView = ViewFetch
}

// ResetPrompt clears everything scoped to the current prompt, returning the
// panel to a blank compose state.
func (s *Store) ResetPrompt() {
	s.OriginalPrompt = ""
	s.EnhancedPrompt = ""
	s.Current = nil
	s.Questions = nil
	s.SubmittedAnswers = nil
	s.SelectedSchemaIDs = nil
	s.Err = ""
	s.FileContexts = nil
	s.SelectedFileExtracts = nil
	s.ShowFileContext = false
	s.ShowQuestions = false
}

// InFlight reports whether a prompt is currently pending or processing.
func (s *Store) InFlight() bool {
	return s.Current != nil && s.Current.Status.InFlight()
}

// Composite derives the final composed text for the current snapshot.
func (s *Store) Composite() string {
	return compose.Composite(s.EnhancedPrompt, s.SelectedSchemas(), s.SelectedFileExtracts, s.SubmittedAnswers)
}

func buildExtracts(p *api.Prompt) []FileExtract {
	if p == nil || len(p.Context) == 0 {
		return nil
	}
	extracts := make([]FileExtract, 0, len(p.Context))
	for i, ctx := range p.Context {
		extracts = append(extracts, FileExtract{
			ID:      fmt.Sprintf("%s_%d", p.ID, i),
			Source:  ctx.Source,
			Content: ctx.Content,
		})
	}
	return extracts
}
