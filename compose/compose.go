// Package compose derives the final composite prompt text from the enhanced
// prompt plus locally selected context. Every function here is pure so the
// same composition runs identically for live and rehydrated prompts.
package compose

import (
	"strings"

	"github.com/contextos/ctxos/api"
)

// Composite concatenates the enhanced text with the three optional context
// sections. A section whose source collection is empty contributes nothing,
// not even its heading.
func Composite(enhanced string, schemas []api.Schema, extracts []string, answers []api.QuestionAnswer) string {
	return enhanced + AdditionalContext(schemas) + FileContext(extracts) + QAContext(answers)
}

// AdditionalContext renders one semicolon-joined line per selected schema,
// schemas separated by " | ".
func AdditionalContext(schemas []api.Schema) string {
	if len(schemas) == 0 {
		return ""
	}
	parts := make([]string, 0, len(schemas))
	for _, schema := range schemas {
		fields := []string{"Business Name: " + schema.CompanyName}
		if len(schema.TargetAudience) > 0 {
			fields = append(fields, "Target Personas: "+strings.Join(schema.TargetAudience, ", "))
		}
		if schema.Type != "" {
			fields = append(fields, "Context Type: "+string(schema.Type))
		}
		if len(schema.KeyGoals) > 0 {
			fields = append(fields, "Key Goals: "+strings.Join(schema.KeyGoals, ", "))
		}
		parts = append(parts, strings.Join(fields, "; "))
	}
	return "\n\nADDITIONAL CONTEXT: " + strings.Join(parts, " | ")
}

// FileContext renders the selected extract contents separated by blank lines.
func FileContext(extracts []string) string {
	if len(extracts) == 0 {
		return ""
	}
	joined := strings.Join(extracts, "\n\n")
	if joined == "" {
		return ""
	}
	return "\n\nSUPPLEMENTARY EXTRACTS:\n" + joined
}

// QAContext renders submitted answers as Q/A blocks. Entries with blank
// trimmed answers are skipped; if nothing survives the section is omitted.
func QAContext(answers []api.QuestionAnswer) string {
	if len(answers) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(answers))
	for _, qa := range answers {
		if strings.TrimSpace(qa.Answer) == "" {
			continue
		}
		blocks = append(blocks, "Q: "+qa.Question+"\nA: "+qa.Answer)
	}
	if len(blocks) == 0 {
		return ""
	}
	return "\n\nQ&A CONTEXT:\n" + strings.Join(blocks, "\n\n")
}
