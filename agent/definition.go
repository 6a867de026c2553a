// Package agent resolves declarative agent definitions into runnable agents.
//
// A Definition references tools, callbacks, validators and other agents by
// name. The Factory looks those names up in its registries, merges the
// persisted configuration for the agent, and returns a ConfigurableAgent that
// runs either a single model call or a tool loop, optionally followed by
// batches of sub-agents.
package agent

import (
	"context"
	"slices"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/callback"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/store"
)

// Definition declares an agent.
type Definition struct {
	Name        string
	Description string
	Model       provider.Settings
	// MaxIterations bounds the tool loop. Zero means the executor default.
	MaxIterations int
	Tools         []string
	// SubAgents run after the main call, one batch after the other.
	SubAgents []Batch
	Callbacks []callback.Ref
	// Validator names a registered Validator checked against every result.
	Validator string
	// MaxRetries is the number of extra attempts after a failed validation.
	MaxRetries int
	// Prompts, when set, replace the persisted and stored prompts.
	Prompts *store.Prompts
	// Schema switches a tool-less agent to structured output.
	Schema *provider.StructuredOutput
}

func (d Definition) clone() Definition {
	d.Tools = slices.Clone(d.Tools)
	d.Callbacks = slices.Clone(d.Callbacks)
	if d.SubAgents != nil {
		batches := make([]Batch, len(d.SubAgents))
		for i, b := range d.SubAgents {
			batches[i] = make(Batch, len(b))
			for k, e := range b {
				batches[i][k] = e
			}
		}
		d.SubAgents = batches
	}
	if d.Prompts != nil {
		p := *d.Prompts
		d.Prompts = &p
	}
	return d
}

// Batch maps an output key to the sub-agent producing it. Entries of one
// batch run concurrently.
type Batch map[string]Entry

// Condition decides from the main result whether an entry runs.
type Condition func(main api.Result) bool

// Transform computes an entry's input from the main result and the input the
// parent agent was invoked with.
type Transform func(main api.Result, parentInput string) (string, error)

// Entry references the agent behind one batch key. It is either a
// SimpleEntry or a ConfiguredEntry.
type Entry interface {
	agentName() string
}

// SimpleEntry runs its agent with the main response as input.
type SimpleEntry struct {
	Agent string
}

// ConfiguredEntry runs its agent only when Condition holds, with the input
// computed by Transform. Both are optional.
type ConfiguredEntry struct {
	Agent     string
	Condition Condition
	Transform Transform
}

func (e SimpleEntry) agentName() string     { return e.Agent }
func (e ConfiguredEntry) agentName() string { return e.Agent }

// Simple references an agent that receives the main response as input.
func Simple(agent string) Entry {
	return SimpleEntry{Agent: agent}
}

// Configured references an agent with an optional condition and transform.
func Configured(agent string, condition Condition, transform Transform) Entry {
	return ConfiguredEntry{Agent: agent, Condition: condition, Transform: transform}
}

// Validator checks an agent result. A non-nil error triggers a retry.
type Validator func(ctx context.Context, result api.Result) error
