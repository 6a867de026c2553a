// Package callback runs named post-invocation hooks, such as sending the
// agent's reply to the user or recording the conversation, after an agent
// finishes.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/internal/registry"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/tool"
)

// Timing selects when a callback runs relative to the invocation outcome.
type Timing string

const (
	OnSuccess Timing = "on_success"
	OnFailure Timing = "on_failure"
	Always    Timing = "always"
)

func (t Timing) matches(succeeded bool) bool {
	switch t {
	case Always:
		return true
	case OnFailure:
		return !succeeded
	case OnSuccess, "":
		return succeeded
	default:
		return false
	}
}

// Ref names a registered callback and when to run it. An empty When means
// OnSuccess.
type Ref struct {
	Name string `json:"name" yaml:"name"`
	When Timing `json:"when,omitempty" yaml:"when,omitempty"`
}

// Context is passed to every callback.
type Context struct {
	AgentName string
	Input     string
	Result    api.Result
	Err       error
	Runtime   tool.RuntimeContext
}

// Func is the body of a callback.
type Func func(ctx context.Context, cc Context) error

// Definition is a registered callback.
type Definition struct {
	Name        string
	Description string
	Execute     Func
}

// Registry holds callbacks by name.
type Registry struct {
	defs   registry.Registry[Definition]
	logger *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		defs:   registry.New[Definition]("callback"),
		logger: slog.Default().With(slogx.LoggerName("gymtext.callback")),
	}
}

func (r *Registry) Register(def Definition) error {
	if def.Execute == nil {
		return &api.ConfigurationError{Kind: "callback", Name: def.Name, Reason: "no execute function"}
	}
	return r.defs.Register(def.Name, def)
}

func (r *Registry) Replace(def Definition) error {
	if def.Execute == nil {
		return &api.ConfigurationError{Kind: "callback", Name: def.Name, Reason: "no execute function"}
	}
	r.defs.Replace(def.Name, def)
	return nil
}

func (r *Registry) Has(name string) bool { return r.defs.Has(name) }

func (r *Registry) Get(name string) (Definition, bool) { return r.defs.Get(name) }

// Execute runs, in order, every referenced callback whose timing matches the
// outcome. Unknown names and failing callbacks are logged and skipped; the
// return value counts the callbacks that ran to completion.
func (r *Registry) Execute(ctx context.Context, refs []Ref, cc Context, succeeded bool) int {
	completed := 0
	for _, ref := range refs {
		if !ref.When.matches(succeeded) {
			continue
		}
		def, ok := r.defs.Get(ref.Name)
		if !ok {
			r.logger.WarnContext(ctx, "skipping unknown callback", slogx.Agent(cc.AgentName), slog.String("callback", ref.Name))
			continue
		}
		start := time.Now()
		if err := run(ctx, def, cc); err != nil {
			r.logger.ErrorContext(ctx, "callback failed",
				slogx.Agent(cc.AgentName), slog.String("callback", ref.Name), slogx.Elapsed(start), slogx.Error(err))
			continue
		}
		completed++
	}
	return completed
}

func run(ctx context.Context, def Definition, cc Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &api.CallbackError{Callback: def.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := def.Execute(ctx, cc); err != nil {
		return &api.CallbackError{Callback: def.Name, Err: err}
	}
	return nil
}
