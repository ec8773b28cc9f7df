package api

import (
	"encoding/json"
	"strings"
	"time"
)

// PromptStatus is the lifecycle status reported by the enhancement service.
type PromptStatus string

const (
	StatusPending    PromptStatus = "pending"
	StatusProcessing PromptStatus = "processing"
	StatusCompleted  PromptStatus = "completed"
	StatusFailed     PromptStatus = "failed"
)

// ParsePromptStatus normalizes a raw status string into the closed status set.
// Unknown values map to pending so the poll loop keeps observing them until
// the attempt budget runs out.
func ParsePromptStatus(raw string) PromptStatus {
	switch PromptStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusProcessing:
		return StatusProcessing
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

func (s *PromptStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParsePromptStatus(raw)
	return nil
}

// InFlight reports whether the status still warrants polling.
func (s PromptStatus) InFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

// SchemaType classifies a context schema.
type SchemaType string

const (
	SchemaBusiness SchemaType = "business"
	SchemaRole     SchemaType = "role-specific"
	SchemaProject  SchemaType = "project-specific"
	SchemaOther    SchemaType = "other"
)

// ParseSchemaType normalizes a raw type string. An empty value stays empty
// so downstream rendering treats the field as absent; anything else outside
// the closed set becomes SchemaOther.
func ParseSchemaType(raw string) SchemaType {
	switch t := SchemaType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return ""
	case SchemaBusiness, SchemaRole, SchemaProject:
		return t
	default:
		return SchemaOther
	}
}

func (t *SchemaType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseSchemaType(raw)
	return nil
}

// Schema is a server-defined context profile selectable to enrich a prompt.
type Schema struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	CompanyName    string     `json:"companyName"`
	Type           SchemaType `json:"type"`
	TargetAudience []string   `json:"targetAudience"`
	KeyGoals       []string   `json:"keyGoals"`
	Description    string     `json:"description"`
	IsPublished    bool       `json:"isPublished"`
}

// QuestionAnswer is one clarification exchange. The question comes from the
// server; the answer is filled in locally before submission.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ContextExtract is a supplementary snippet surfaced alongside a processed
// prompt.
type ContextExtract struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Prompt is the unit of work: original text plus its server-computed
// enhancement and lifecycle status.
type Prompt struct {
	ID               string           `json:"id"`
	Status           PromptStatus     `json:"status"`
	OriginalPrompt   string           `json:"original_prompt"`
	EnrichedPrompt   string           `json:"enriched_prompt"`
	SchemasUsed      []string         `json:"schemas_used"`
	QuestionsAnswers []QuestionAnswer `json:"questions_answers"`
	Context          []ContextExtract `json:"context"`
	CreatedAt        time.Time        `json:"created_at"`
}
