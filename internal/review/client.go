// Package review obtains peer-review feedback from the Gemini
// generateContent API.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/peerreview/peerreview/internal/feedback"
)

// DefaultModel and DefaultBaseURL match the hosted Gemini REST API.
const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Request is a peer-review request. Fields are validated once at the
// boundary and not mutated afterwards.
type Request struct {
	UserQuestion string `json:"user_question"`
	MyAnswer     string `json:"my_answer"`
}

// Validate checks that both fields are present and non-empty.
func (r Request) Validate() error {
	if r.UserQuestion == "" || r.MyAnswer == "" {
		return ErrMissingArgument
	}
	return nil
}

// guidance holds the bracketed instruction shown under each section
// header in the prompt, indexed to match feedback.Headers.
var guidance = []string{
	"[Evaluate factual correctness and identify any errors]",
	"[Identify important points or perspectives that are missing]",
	"[Suggest ways to improve explanation clarity and structure]",
	"[Provide specific, actionable suggestions for enhancement]",
	"[Provide a brief overall assessment: Excellent/Good/Needs Improvement/Poor]",
}

// BuildPrompt renders the fixed review prompt for req. It is a pure
// function of the request: the question and answer are embedded
// verbatim, and the section headers come from feedback.Headers so the
// prompt and the parser stay in lockstep.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("PEER REVIEW REQUEST:\n\n")
	fmt.Fprintf(&b, "Original Question: \"%s\"\n\n", req.UserQuestion)
	fmt.Fprintf(&b, "Initial AI Response: \"%s\"\n\n", req.MyAnswer)
	b.WriteString("Please provide constructive peer review feedback in the following format:\n")
	for i, header := range feedback.Headers {
		b.WriteString("\n")
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(guidance[i])
		b.WriteString("\n")
	}
	b.WriteString("\nBe constructive, specific, and helpful in your feedback.")
	return b.String()
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Gemini review client. The HTTP client carries no
// timeout of its own: reviews are manually triggered one-shot calls, so
// deadlines are left to the transport defaults and to the caller's
// context.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

// Gemini REST wire types, reduced to the fields this client touches.

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// Review sends one peer-review request and returns the reviewer's raw
// text. There are no retries and no caching; failures are classified
// for the caller to report.
func (c *Client) Review(ctx context.Context, req Request) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingCredential
	}

	body, err := json.Marshal(generateContentRequest{
		Contents: []content{{Parts: []part{{Text: BuildPrompt(req)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, c.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-goog-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to get Gemini review: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var gen generateContentResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(gen.Candidates) == 0 || gen.Candidates[0].Content == nil || len(gen.Candidates[0].Content.Parts) == 0 {
		return "", ErrMalformedResponse
	}
	return gen.Candidates[0].Content.Parts[0].Text, nil
}
