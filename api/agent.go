package api

import (
	"context"
	"time"

	"github.com/aparry3/gymtext-sub007/pkg/jsonx"
	"github.com/tidwall/sjson"
)

// Agent is anything that turns a text input into a Result.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, input string) (Result, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc struct {
	AgentName string
	Fn        func(ctx context.Context, input string) (Result, error)
}

func (a AgentFunc) Name() string { return a.AgentName }

func (a AgentFunc) Invoke(ctx context.Context, input string) (Result, error) {
	return a.Fn(ctx, input)
}

// ToolCallRecord describes one tool execution inside a tool loop.
type ToolCallRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments string         `json:"arguments"`
	Response  string         `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
	Skipped   bool           `json:"skipped,omitempty"`
	Duration  time.Duration  `json:"duration"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Result is the output of an agent invocation.
//
// Response is a string for free-form agents and a structured value for
// schema-bound agents. SubAgents holds the flattened outputs of sub-agent
// batches, keyed by the batch entry key; it never contains "response".
type Result struct {
	Response  any
	Messages  []string
	ToolCalls []ToolCallRecord
	SubAgents map[string]any
}

// ResponseText returns the response as a string, serializing structured
// responses to JSON.
func (r Result) ResponseText() (string, error) {
	return jsonx.Stringify(r.Response)
}

// MarshalJSON renders the merged shape
// {"response": ..., "messages": [...], "<sub agent key>": ...}.
func (r Result) MarshalJSON() ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "response", r.Response)
	if err != nil {
		return nil, err
	}
	if len(r.Messages) > 0 {
		if out, err = sjson.SetBytes(out, "messages", r.Messages); err != nil {
			return nil, err
		}
	}
	for key, value := range r.SubAgents {
		if key == "response" || key == "messages" {
			continue
		}
		if out, err = sjson.SetBytes(out, sjsonKey(key), value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sjsonKey escapes the path characters sjson treats specially so sub-agent
// keys land as literal object keys.
func sjsonKey(key string) string {
	var b []byte
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b = append(b, '\\')
		}
		b = append(b, key[i])
	}
	return string(b)
}
