package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/peerreview/peerreview/internal/audit"
	"github.com/peerreview/peerreview/internal/feedback"
	"github.com/peerreview/peerreview/internal/review"
)

// ToolName is the single tool this server exposes.
const ToolName = "ai_peer_review"

// Fixed client-facing strings of the tool contract.
const (
	reviewerName = "Google Gemini"

	usageNote = "Use this feedback to identify areas for improvement in your response. " +
		"Consider revising your answer to address the points raised in the peer review."

	errorSuggestion = "The peer review service encountered an error. Please check the logs."
)

// Reviewer produces raw review text for a request. *review.Client is
// the production implementation; tests substitute stubs.
type Reviewer interface {
	Review(ctx context.Context, req review.Request) (string, error)
}

// Tool is an MCP tool descriptor.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// peerReviewTool returns the descriptor served by tools/list.
func peerReviewTool() Tool {
	return Tool{
		Name:        ToolName,
		Description: "Get peer review feedback from Google Gemini on your response to help improve accuracy and completeness",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_question": map[string]any{
					"type":        "string",
					"description": "The original question asked by the user",
				},
				"my_answer": map[string]any{
					"type":        "string",
					"description": "Your initial response that needs peer review",
				},
			},
			"required": []string{"user_question", "my_answer"},
		},
	}
}

// peerReviewFeedback is the structured block inside the success envelope.
type peerReviewFeedback struct {
	feedback.Feedback
	RawFeedback string `json:"raw_feedback"`
	Reviewer    string `json:"reviewer"`
	Timestamp   string `json:"timestamp"`
}

// reviewEnvelope is the success payload carried as tool content text.
type reviewEnvelope struct {
	PeerReviewFeedback peerReviewFeedback `json:"peer_review_feedback"`
	UsageNote          string             `json:"usage_note"`
}

// errorEnvelope is the failure payload carried as tool content text.
type errorEnvelope struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// runPeerReview executes the review pipeline for one tools/call and
// assembles the reply envelope. Every failure, including an unknown
// tool name, becomes an error envelope with isError set; pipeline
// failures never escalate to protocol errors.
func (s *Server) runPeerReview(ctx context.Context, reqID, name string, args json.RawMessage) toolCallResult {
	if name != ToolName {
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}

	var req review.Request
	if len(args) > 0 {
		if err := json.Unmarshal(args, &req); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err))
		}
	}
	if err := req.Validate(); err != nil {
		return errorResult(err.Error())
	}

	s.sink.Append(audit.Entry{
		Message: "Starting peer review process",
		Data:    map[string]any{"request_id": reqID},
	})

	raw, err := s.reviewer().Review(ctx, req)
	if err != nil {
		s.sink.Append(audit.Entry{
			Message: "Error in ai_peer_review tool",
			Data:    map[string]any{"request_id": reqID, "error": truncate(err.Error(), 500)},
		})
		return errorResult(err.Error())
	}

	parsed := feedback.Parse(raw)
	s.sink.Append(audit.Entry{
		Message: "Parsed feedback",
		Data:    map[string]any{"request_id": reqID, "feedback": parsed},
	})

	env := reviewEnvelope{
		PeerReviewFeedback: peerReviewFeedback{
			Feedback:    parsed,
			RawFeedback: raw,
			Reviewer:    reviewerName,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
		UsageNote: usageNote,
	}
	text, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}
	return toolCallResult{Content: []contentBlock{{Type: "text", Text: string(text)}}}
}

// errorResult wraps a pipeline failure in the error envelope. The
// message keeps its full length; only audit copies are truncated.
func errorResult(msg string) toolCallResult {
	text, _ := json.MarshalIndent(errorEnvelope{Error: msg, Suggestion: errorSuggestion}, "", "  ")
	return toolCallResult{
		Content: []contentBlock{{Type: "text", Text: string(text)}},
		IsError: true,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
