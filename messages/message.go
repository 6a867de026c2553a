package messages

import (
	"time"

	"github.com/go-openapi/strfmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single chat message.
type Message struct {
	Role       Role            `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Timestamp  strfmt.DateTime `json:"timestamp"`
}

func now() strfmt.DateTime { return strfmt.DateTime(time.Now()) }

func System(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: now()}
}

func User(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: now()}
}

func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: now()}
}

// AssistantToolCalls records the model's request to call tools. Content is
// whatever text the model produced alongside the calls, usually empty.
func AssistantToolCalls(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls, Timestamp: now()}
}

// ToolResponse answers the tool call with the given id.
func ToolResponse(callID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: toolName, Timestamp: now()}
}

// HasToolCalls reports whether the message requests tool calls.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Pair is one turn of prior conversation, as callers usually store history.
type Pair struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// FromPairs expands stored history into alternating user and assistant
// messages, skipping empty sides.
func FromPairs(pairs []Pair) []Message {
	out := make([]Message, 0, len(pairs)*2)
	for _, p := range pairs {
		if p.User != "" {
			out = append(out, User(p.User))
		}
		if p.Assistant != "" {
			out = append(out, Assistant(p.Assistant))
		}
	}
	return out
}
