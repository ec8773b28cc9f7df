package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListSchemasFiltersUnpublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "secret" {
			t.Errorf("api_key = %q, want secret", got)
		}
		if r.URL.Path != "/functions/v1/user-schemas-api" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"schemas": []map[string]any{
				{"id": "s1", "name": "Marketing", "companyName": "Acme", "type": "business", "isPublished": true},
				{"id": "s2", "name": "Draft", "companyName": "Acme", "type": "business", "isPublished": false},
				{"id": "s3", "name": "Odd", "companyName": "Acme", "type": "something-new", "isPublished": true},
			},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "secret")
	schemas, err := client.ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if len(schemas) != 2 {
		t.Fatalf("got %d schemas, want 2 published", len(schemas))
	}
	if schemas[0].ID != "s1" || schemas[1].ID != "s3" {
		t.Errorf("schema ids = %q, %q", schemas[0].ID, schemas[1].ID)
	}
	if schemas[1].Type != SchemaOther {
		t.Errorf("unknown type normalized to %q, want %q", schemas[1].Type, SchemaOther)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "401 is auth",
			status:   http.StatusUnauthorized,
			body:     `{"error":"Unauthorized"}`,
			wantKind: KindAuth,
			wantMsg:  "Unauthorized",
		},
		{
			name:     "403 is auth",
			status:   http.StatusForbidden,
			body:     `{}`,
			wantKind: KindAuth,
			wantMsg:  "Failed to load schemas",
		},
		{
			name:     "invalid api key message is auth",
			status:   http.StatusBadRequest,
			body:     `{"error":"Invalid API key provided"}`,
			wantKind: KindAuth,
			wantMsg:  "Invalid API key provided",
		},
		{
			name:     "500 is network",
			status:   http.StatusInternalServerError,
			body:     `{"error":"boom"}`,
			wantKind: KindNetwork,
			wantMsg:  "boom",
		},
		{
			name:     "unparseable body falls back",
			status:   http.StatusBadGateway,
			body:     `not json`,
			wantKind: KindNetwork,
			wantMsg:  "Failed to load schemas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := New(srv.URL, "secret")
			_, err := client.ListSchemas(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			apiErr, ok := err.(*Error)
			if !ok {
				t.Fatalf("error type %T, want *Error", err)
			}
			if apiErr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", apiErr.Kind, tt.wantKind)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
			if (tt.wantKind == KindAuth) != IsAuth(err) {
				t.Errorf("IsAuth = %v for kind %v", IsAuth(err), apiErr.Kind)
			}
		})
	}
}

func TestTransportFailureIsNetworkKind(t *testing.T) {
	client := New("http://127.0.0.1:1", "secret")
	_, err := client.ListSchemas(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*Error)
	if !ok || apiErr.Kind != KindNetwork {
		t.Errorf("got %v, want network-kind *Error", err)
	}
	if apiErr.Message != "Failed to load schemas" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSubmitPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/functions/v1/submit-prompt" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Prompt    string   `json:"prompt"`
			SchemaIDs []string `json:"schemaIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Prompt != "hello" || len(body.SchemaIDs) != 2 {
			t.Errorf("body = %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p42"})
	}))
	defer srv.Close()

	client := New(srv.URL, "secret")
	id, err := client.SubmitPrompt(context.Background(), "hello", []string{"s1", "s2"})
	if err != nil {
		t.Fatalf("SubmitPrompt: %v", err)
	}
	if id != "p42" {
		t.Errorf("prompt id = %q, want p42", id)
	}
}

func TestRetrievePromptNormalizesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/retrieve-prompts/p1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"id": "p1",
			"status": "QUEUED",
			"original_prompt": "orig",
			"enriched_prompt": "",
			"context": [{"source": "notes.md", "content": "alpha"}]
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "secret")
	prompt, err := client.RetrievePrompt(context.Background(), "p1")
	if err != nil {
		t.Fatalf("RetrievePrompt: %v", err)
	}
	if prompt.Status != StatusPending {
		t.Errorf("unknown status normalized to %q, want pending", prompt.Status)
	}
	if len(prompt.Context) != 1 || prompt.Context[0].Source != "notes.md" {
		t.Errorf("context = %+v", prompt.Context)
	}
}

func TestListHistoryShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":"a"},{"id":"b"}]`, 2},
		{"wrapped object", `{"prompts":[{"id":"a"}]}`, 1},
		{"empty wrapped", `{"prompts":[]}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("status"); got != "completed" {
					t.Errorf("status query = %q, want completed", got)
				}
				if got := r.URL.Query().Get("search"); got != "email" {
					t.Errorf("search query = %q, want email", got)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := New(srv.URL, "secret")
			prompts, err := client.ListHistory(context.Background(), "  email  ")
			if err != nil {
				t.Fatalf("ListHistory: %v", err)
			}
			if len(prompts) != tt.want {
				t.Errorf("got %d prompts, want %d", len(prompts), tt.want)
			}
		})
	}
}

func TestSubmitAnswersPostsFullList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/respond-prompt/p1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var answers []QuestionAnswer
		if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(answers) != 2 || answers[1].Answer != "" {
			t.Errorf("answers = %+v, blank answers must be preserved", answers)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret")
	err := client.SubmitAnswers(context.Background(), "p1", []QuestionAnswer{
		{Question: "Who?", Answer: "devs"},
		{Question: "Why?", Answer: ""},
	})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
}

func TestSetCredentialAffectsSubsequentCalls(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"schemas":[]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "old")
	if _, err := client.ListSchemas(context.Background()); err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	client.SetCredential("new")
	if _, err := client.ListSchemas(context.Background()); err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}

	if len(seen) != 2 || seen[0] != "old" || seen[1] != "new" {
		t.Errorf("credentials seen = %v", seen)
	}
}
