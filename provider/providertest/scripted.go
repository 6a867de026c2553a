// Package providertest has in-memory providers for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/provider"
)

// Step is one scripted reply: a completion or an error.
type Step struct {
	Completion provider.Completion
	Err        error
}

// Text scripts a plain text reply.
func Text(content string) Step {
	return Step{Completion: provider.Completion{Content: content}}
}

// Calls scripts a reply requesting the given tool calls.
func Calls(calls ...messages.ToolCall) Step {
	return Step{Completion: provider.Completion{ToolCalls: calls}}
}

// Fail scripts an error.
func Fail(err error) Step {
	return Step{Err: err}
}

// Scripted replays steps in order and records every request. It fails the
// call once the script is exhausted.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	calls []provider.CompletionParams
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) ChatCompletion(ctx context.Context, params provider.CompletionParams) (provider.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, params)
	if err := ctx.Err(); err != nil {
		return provider.Completion{}, err
	}
	if len(s.steps) == 0 {
		return provider.Completion{}, fmt.Errorf("providertest: script exhausted after %d call(s)", len(s.calls))
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.Completion, step.Err
}

// Calls returns a copy of the recorded requests.
func (s *Scripted) Calls() []provider.CompletionParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.CompletionParams(nil), s.calls...)
}

// Remaining returns the number of unused steps.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
