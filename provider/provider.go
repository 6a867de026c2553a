package provider

import (
	"context"

	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// Provider is a chat completion backend such as OpenAI or Anthropic.
// Implementations must be safe for concurrent use.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (Completion, error)
}

// Func adapts a function to the Provider interface.
type Func func(context.Context, CompletionParams) (Completion, error)

func (f Func) ChatCompletion(ctx context.Context, params CompletionParams) (Completion, error) {
	return f(ctx, params)
}

// CompletionParams is a single chat completion request.
type CompletionParams struct {
	// RunID correlates the request with the invocation that issued it.
	RunID uuid.UUID

	// Model is the provider-specific model id, e.g. "gpt-4o-mini".
	Model string

	Temperature float64
	// MaxTokens caps the completion length; zero leaves it to the provider.
	MaxTokens int

	Messages []messages.Message

	// Tools the model may call. Empty means plain generation.
	Tools []ToolSpec

	// ResponseSchema requests JSON output conforming to the schema.
	ResponseSchema *StructuredOutput

	// Prevents unkeyed literals
	_ struct{}
}

// ToolSpec is the model-facing description of a callable tool.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// StructuredOutput names and describes a JSON schema the response must follow.
type StructuredOutput struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Completion is the model's reply: either text, tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []messages.ToolCall
	Usage     Usage
}

// Message converts the completion into the assistant message that records it
// in a conversation.
func (c Completion) Message() messages.Message {
	if len(c.ToolCalls) > 0 {
		return messages.AssistantToolCalls(c.Content, c.ToolCalls...)
	}
	return messages.Assistant(c.Content)
}

// Usage counts tokens consumed by a completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
