// Package llm provides a narrow completion contract over the supported
// model providers. Agents consume the Client interface; the anthropic and
// openai implementations handle provider-specific wire formats, including
// tool use.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles in the provider-neutral transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one transcript entry. Assistant messages may carry tool calls;
// tool messages carry the result for a single call, keyed by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDefinition describes a callable tool in JSON Schema terms.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single completion round.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// Response is the model's reply for one round. A non-empty ToolCalls slice
// means the model wants tools executed before it can finish.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Client performs one completion round against a language model.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	ProviderName() string
}
