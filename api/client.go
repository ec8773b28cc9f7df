package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Kind classifies a remote failure so callers never have to string-match
// error messages.
type Kind int

const (
	// KindNetwork covers transport failures and non-2xx responses that do
	// not signal a credential problem.
	KindNetwork Kind = iota
	// KindAuth signals a missing or invalid credential. Callers react by
	// deauthenticating and dropping the stored credential.
	KindAuth
)

// Error is the single error type all client operations return for remote
// failures.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsAuth reports whether err carries an auth-kind API error.
func IsAuth(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

const requestTimeout = 30 * time.Second

// Client performs the remote operations against the enhancement service.
// The credential travels as an api_key query parameter on every call.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu     sync.RWMutex
	apiKey string
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// SetCredential swaps the credential used for subsequent calls. Requests
// already in flight keep the key they were built with.
func (c *Client) SetCredential(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	c.mu.RLock()
	query.Set("api_key", c.apiKey)
	c.mu.RUnlock()
	return c.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + query.Encode()
}

// do issues the request and decodes a 2xx body into out (when non-nil).
// Non-2xx bodies are parsed for an {"error": "..."} field, falling back to
// fallbackMsg.
func (c *Client) do(ctx context.Context, method, rawurl string, body, out any, fallbackMsg string) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: fallbackMsg}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: fallbackMsg}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classify(resp, fallbackMsg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: fallbackMsg}
	}
	return nil
}

// classify turns a non-2xx response into a structured *Error. Credential
// failures are recognized here, once, so the rest of the program can rely
// on the Kind instead of matching message text.
func (c *Client) classify(resp *http.Response, fallbackMsg string) *Error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	msg := payload.Error
	if msg == "" {
		msg = fallbackMsg
	}

	kind := KindNetwork
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = KindAuth
	} else if strings.Contains(strings.ToLower(payload.Error), "invalid api key") {
		kind = KindAuth
	}

	return &Error{Kind: kind, Status: resp.StatusCode, Message: msg}
}

// ListSchemas fetches the caller's context schemas. Only published entries
// are retained.
func (c *Client) ListSchemas(ctx context.Context) ([]Schema, error) {
	var payload struct {
		Schemas []Schema `json:"schemas"`
	}
	u := c.endpoint("functions/v1/user-schemas-api", nil)
	if err := c.do(ctx, http.MethodGet, u, nil, &payload, "Failed to load schemas"); err != nil {
		return nil, err
	}
	published := make([]Schema, 0, len(payload.Schemas))
	for _, s := range payload.Schemas {
		if s.IsPublished {
			published = append(published, s)
		}
	}
	return published, nil
}

// SubmitPrompt sends the prompt text with its selected schema ids and
// returns the server-assigned prompt id.
func (c *Client) SubmitPrompt(ctx context.Context, text string, schemaIDs []string) (string, error) {
	body := struct {
		Prompt    string   `json:"prompt"`
		SchemaIDs []string `json:"schemaIds,omitempty"`
	}{Prompt: text, SchemaIDs: schemaIDs}

	var payload struct {
		PromptID string `json:"prompt_id"`
	}
	u := c.endpoint("functions/v1/submit-prompt", nil)
	if err := c.do(ctx, http.MethodPost, u, body, &payload, "Failed to submit prompt"); err != nil {
		return "", err
	}
	return payload.PromptID, nil
}

// RetrievePrompt fetches the current server-side state of one prompt.
func (c *Client) RetrievePrompt(ctx context.Context, id string) (*Prompt, error) {
	var prompt Prompt
	u := c.endpoint("functions/v1/retrieve-prompts/"+url.PathEscape(id), nil)
	if err := c.do(ctx, http.MethodGet, u, nil, &prompt, "Failed to retrieve prompt"); err != nil {
		return nil, err
	}
	return &prompt, nil
}

// ListHistory fetches completed prompts, optionally filtered by a search
// term. The service answers either a bare array or {"prompts": [...]}.
func (c *Client) ListHistory(ctx context.Context, search string) ([]Prompt, error) {
	query := url.Values{}
	query.Set("status", "completed")
	if s := strings.TrimSpace(search); s != "" {
		query.Set("search", s)
	}

	u := c.endpoint("functions/v1/retrieve-prompts", query)

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, u, nil, &raw, "Failed to load history"); err != nil {
		return nil, err
	}

	var prompts []Prompt
	if err := json.Unmarshal(raw, &prompts); err == nil {
		return prompts, nil
	}
	var wrapped struct {
		Prompts []Prompt `json:"prompts"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "Failed to load history"}
	}
	return wrapped.Prompts, nil
}

// SubmitAnswers posts the full question/answer list for a prompt. Blank
// answers are allowed; the server decides what to do with them.
func (c *Client) SubmitAnswers(ctx context.Context, id string, answers []QuestionAnswer) error {
	u := c.endpoint("functions/v1/respond-prompt/"+url.PathEscape(id), nil)
	return c.do(ctx, http.MethodPost, u, answers, nil, "Failed to submit answers")
}
