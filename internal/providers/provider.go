// Package providers contains the LLM client abstraction used by the
// rewrite and QA stages, plus concrete implementations (OpenAI-compatible
// HTTP backends and a mock for tests).
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LLMClient is the interface for chat/completion requests. The writer and
// checker each hold their own client, so the two capabilities can point at
// different vendors independently.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openai").
	Name() string

	// RequestsPerSecond returns the provider's rate limit.
	RequestsPerSecond() float64
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	Name       string          `json:"name,omitempty"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// RepairHint carries structured corrective context for a retry after a
// failed attempt. It replaces free-form prompt patching: the executor
// records what went wrong and the client renders it into the request
// deterministically, which keeps retry behavior testable.
type RepairHint struct {
	Attempt      int    `json:"attempt"`
	FailureType  string `json:"failure_type"`
	FailureMsg   string `json:"failure_message"`
	Instructions string `json:"instructions"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"-"`

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Corrective context from a prior failed attempt, rendered into the
	// final user message when present.
	Repair *RepairHint `json:"repair,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // Parsed if ResponseFormat was set

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	// Success/error
	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RenderRepair appends the repair hint as a diagnostic block on a user
// message body. Clients call this when building the outbound request so
// every backend sees the same corrective text.
func RenderRepair(content string, hint *RepairHint) string {
	if hint == nil {
		return content
	}
	return fmt.Sprintf("%s\n\nRETRY ATTEMPT %d: previous attempt failed (%s: %s).\n%s",
		content, hint.Attempt, hint.FailureType, hint.FailureMsg, hint.Instructions)
}
