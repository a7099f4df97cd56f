package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Timeouts for LLM operations.
const (
	TimeoutLLMCall = 60 * time.Second
)

// Domain errors for the LLM package.
var (
	ErrNoChoices = errors.New("no choices returned")
	ErrNoAPIKey  = errors.New("no api key configured")
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Provider is the conversational agent the guardrail talks to. It only ever
// receives redacted text.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai").
	Name() string
	// Generate sends a completion request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request represents an LLM generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []Tool
}

// Message represents a chat message. Assistant messages may carry tool
// calls; tool messages answer one call by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Tool is a function declaration offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Response represents an LLM generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
	ToolCalls    []ToolCall
}

// ToolCall is the model asking for a tool to be run. Arguments is the raw
// JSON object the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}
