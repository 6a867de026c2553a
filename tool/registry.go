package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/internal/registry"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// UnknownToolError lists tool names that were requested but never registered.
type UnknownToolError struct {
	Missing   []string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool(s): %s (available: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Unwrap exposes the failure as a configuration error.
func (e *UnknownToolError) Unwrap() error {
	return &api.ConfigurationError{Kind: "tool", Name: strings.Join(e.Missing, ","), Reason: "not registered"}
}

// Registry holds tool definitions by name.
type Registry struct {
	defs   registry.Registry[Definition]
	logger *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		defs:   registry.New[Definition]("tool"),
		logger: slog.Default().With(slogx.LoggerName("gymtext.tool")),
	}
}

// Register adds a definition, failing if the name is taken.
func (r *Registry) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return &api.ConfigurationError{Kind: "tool", Name: def.Name, Reason: err.Error()}
	}
	return r.defs.Register(def.Name, def)
}

// Replace adds or overwrites a definition.
func (r *Registry) Replace(def Definition) error {
	if err := def.validate(); err != nil {
		return &api.ConfigurationError{Kind: "tool", Name: def.Name, Reason: err.Error()}
	}
	r.defs.Replace(def.Name, def)
	return nil
}

func (r *Registry) Has(name string) bool { return r.defs.Has(name) }

func (r *Registry) Get(name string) (Definition, bool) { return r.defs.Get(name) }

func (r *Registry) Names() []string { return r.defs.Names() }

// Priority returns the registered priority of a tool, or LowestPriority for
// unknown names.
func (r *Registry) Priority(name string) int {
	def, ok := r.defs.Get(name)
	if !ok {
		return LowestPriority
	}
	return def.Priority
}

// CreateTools resolves names into callables bound to rc, sorted by priority.
// Ties keep the requested order. Every requested name yields one callable.
func (r *Registry) CreateTools(names []string, rc RuntimeContext) ([]Callable, error) {
	var missing []string
	out := make([]Callable, 0, len(names))
	for _, name := range names {
		def, ok := r.defs.Get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, Callable{def: def, rc: rc, logger: r.logger})
	}
	if len(missing) > 0 {
		return nil, &UnknownToolError{Missing: missing, Available: r.Names()}
	}
	slices.SortStableFunc(out, func(a, b Callable) int {
		switch {
		case a.def.Priority < b.def.Priority:
			return -1
		case a.def.Priority > b.def.Priority:
			return 1
		}
		return 0
	})
	return out, nil
}

// Callable is a tool bound to the runtime context of one invocation.
type Callable struct {
	def    Definition
	rc     RuntimeContext
	logger *slog.Logger
}

func (c Callable) Name() string  { return c.def.Name }
func (c Callable) Priority() int { return c.def.Priority }
func (c Callable) Type() Type    { return c.def.Type }

// Spec is the model-facing description of the tool.
func (c Callable) Spec() provider.ToolSpec {
	schema := c.def.Schema
	if c.def.ImmediateMessage {
		schema = withMessageProperty(schema)
	} else if schema == nil {
		schema = emptyObjectSchema()
	}
	return provider.ToolSpec{
		Name:        c.def.Name,
		Description: c.def.Description,
		Parameters:  schema,
	}
}

// Call runs the tool with the model's raw JSON arguments. Failures are
// returned as *api.ToolExecutionError.
func (c Callable) Call(ctx context.Context, arguments string) (Result, error) {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	if !gjson.Valid(arguments) {
		return Result{}, &api.ToolExecutionError{Tool: c.def.Name, Err: errors.New("arguments are not valid JSON")}
	}

	var sent []string
	if c.def.ImmediateMessage {
		if msg := gjson.Get(arguments, messageProperty).String(); strings.TrimSpace(msg) != "" {
			if c.rc.Sender != nil {
				if err := c.rc.Sender.SendMessage(ctx, msg); err != nil {
					c.logger.WarnContext(ctx, "failed to send immediate message", slog.String("tool", c.def.Name), slogx.Error(err))
				} else {
					sent = append(sent, msg)
				}
			}
		}
		stripped, err := sjson.Delete(arguments, messageProperty)
		if err == nil {
			arguments = stripped
		}
	}

	start := time.Now()
	res, err := c.execute(ctx, gjson.Parse(arguments))
	if err != nil {
		c.logger.ErrorContext(ctx, "tool failed", slog.String("tool", c.def.Name), slogx.Elapsed(start), slogx.Error(err))
		return Result{Sent: sent}, &api.ToolExecutionError{Tool: c.def.Name, Err: err}
	}
	if res.Type == "" {
		res.Type = c.def.Type
	}
	res.Sent = append(sent, res.Sent...)
	c.logger.DebugContext(ctx, "tool finished", slog.String("tool", c.def.Name), slogx.Elapsed(start))
	return res, nil
}

func (c Callable) execute(ctx context.Context, args gjson.Result) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.def.Execute(ctx, args, c.rc)
}
