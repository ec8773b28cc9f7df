package compose

import (
	"strings"
	"testing"

	"github.com/contextos/ctxos/api"
)

func TestAdditionalContext(t *testing.T) {
	tests := []struct {
		name    string
		schemas []api.Schema
		want    string
	}{
		{
			name:    "no schemas yields nothing",
			schemas: nil,
			want:    "",
		},
		{
			name: "all fields",
			schemas: []api.Schema{{
				CompanyName:    "Acme",
				Type:           api.SchemaBusiness,
				TargetAudience: []string{"founders", "ops leads"},
				KeyGoals:       []string{"grow revenue"},
			}},
			want: "\n\nADDITIONAL CONTEXT: Business Name: Acme; Target Personas: founders, ops leads; Context Type: business; Key Goals: grow revenue",
		},
		{
			name: "optional fields omitted",
			schemas: []api.Schema{{
				CompanyName: "Acme",
				Type:        api.SchemaOther,
			}},
			want: "\n\nADDITIONAL CONTEXT: Business Name: Acme; Context Type: other",
		},
		{
			name: "empty type contributes no field",
			schemas: []api.Schema{{
				CompanyName: "Acme",
			}},
			want: "\n\nADDITIONAL CONTEXT: Business Name: Acme",
		},
		{
			name: "multiple schemas joined with pipe",
			schemas: []api.Schema{
				{CompanyName: "Acme", Type: api.SchemaBusiness},
				{CompanyName: "Globex", Type: api.SchemaProject, KeyGoals: []string{"ship v2"}},
			},
			want: "\n\nADDITIONAL CONTEXT: Business Name: Acme; Context Type: business | Business Name: Globex; Context Type: project-specific; Key Goals: ship v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdditionalContext(tt.schemas); got != tt.want {
				t.Errorf("AdditionalContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQAContext(t *testing.T) {
	tests := []struct {
		name    string
		answers []api.QuestionAnswer
		want    string
	}{
		{
			name: "blank answers skipped",
			answers: []api.QuestionAnswer{
				{Question: "Who is the audience?", Answer: "developers"},
				{Question: "What tone?", Answer: "   "},
			},
			want: "\n\nQ&A CONTEXT:\nQ: Who is the audience?\nA: developers",
		},
		{
			name: "all blank yields nothing",
			answers: []api.QuestionAnswer{
				{Question: "Who?", Answer: ""},
				{Question: "Why?", Answer: " "},
			},
			want: "",
		},
		{
			name: "multiple blocks separated by blank line",
			answers: []api.QuestionAnswer{
				{Question: "Who?", Answer: "devs"},
				{Question: "Why?", Answer: "speed"},
			},
			want: "\n\nQ&A CONTEXT:\nQ: Who?\nA: devs\n\nQ: Why?\nA: speed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QAContext(tt.answers); got != tt.want {
				t.Errorf("QAContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileContext(t *testing.T) {
	if got := FileContext(nil); got != "" {
		t.Errorf("FileContext(nil) = %q, want empty", got)
	}
	got := FileContext([]string{"alpha", "beta"})
	want := "\n\nSUPPLEMENTARY EXTRACTS:\nalpha\n\nbeta"
	if got != want {
		t.Errorf("FileContext() = %q, want %q", got, want)
	}
}

func TestCompositeSectionOrder(t *testing.T) {
	got := Composite(
		"Enhanced text.",
		[]api.Schema{{CompanyName: "Acme", Type: api.SchemaBusiness}},
		[]string{"extract body"},
		[]api.QuestionAnswer{{Question: "Who?", Answer: "devs"}},
	)

	if !strings.HasPrefix(got, "Enhanced text.") {
		t.Fatalf("composite does not start with enhanced text: %q", got)
	}
	idxAdditional := strings.Index(got, "ADDITIONAL CONTEXT:")
	idxExtracts := strings.Index(got, "SUPPLEMENTARY EXTRACTS:")
	idxQA := strings.Index(got, "Q&A CONTEXT:")
	if idxAdditional < 0 || idxExtracts < 0 || idxQA < 0 {
		t.Fatalf("composite missing a section: %q", got)
	}
	if !(idxAdditional < idxExtracts && idxExtracts < idxQA) {
		t.Errorf("sections out of order: additional=%d extracts=%d qa=%d", idxAdditional, idxExtracts, idxQA)
	}
}

func TestCompositeEmptySectionsContributeNothing(t *testing.T) {
	if got := Composite("Just the text", nil, nil, nil); got != "Just the text" {
		t.Errorf("Composite() = %q, want bare enhanced text", got)
	}
}
