// Package store defines where agent prompts and versioned agent
// configurations come from, with in-memory and SQLite backends in the
// subpackages and a TTL cache in front of configuration lookups.
package store

import (
	"context"
	"errors"

	"github.com/go-openapi/strfmt"
)

// ErrNotFound is returned when a prompt or configuration does not exist.
var ErrNotFound = errors.New("not found")

// Prompts are the prompt texts of one agent. User is an optional template;
// when set, the invocation input is appended to it after a blank line.
type Prompts struct {
	System string `json:"system" yaml:"system"`
	User   string `json:"user,omitempty" yaml:"user,omitempty"`
}

// PromptStore returns the prompts registered for an agent.
type PromptStore interface {
	GetPrompts(ctx context.Context, agent string) (Prompts, error)
}

// AgentConfig is one stored version of an agent's configuration. Zero
// values mean "not overridden".
type AgentConfig struct {
	ID            string          `json:"id"`
	Version       int             `json:"version"`
	SystemPrompt  string          `json:"system_prompt"`
	UserPrompt    string          `json:"user_prompt,omitempty"`
	Model         string          `json:"model,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	MaxIterations int             `json:"max_iterations,omitempty"`
	CreatedAt     strfmt.DateTime `json:"created_at"`
}

// NewAgentConfig is the input to AgentConfigStore.Create.
type NewAgentConfig struct {
	ID            string   `json:"id"`
	SystemPrompt  string   `json:"system_prompt"`
	UserPrompt    string   `json:"user_prompt,omitempty"`
	Model         string   `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

// Validate checks the fields every stored configuration needs.
func (n NewAgentConfig) Validate() error {
	if n.ID == "" {
		return errors.New("agent config id is required")
	}
	if n.SystemPrompt == "" {
		return errors.New("agent config system prompt is required")
	}
	return nil
}

// AgentConfigStore keeps versioned agent configurations. Create assigns the
// next version for the id; GetLatest returns the highest version or
// ErrNotFound.
type AgentConfigStore interface {
	GetLatest(ctx context.Context, id string) (AgentConfig, error)
	Create(ctx context.Context, cfg NewAgentConfig) (AgentConfig, error)
}
