package agent

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/internal/executor"
	"github.com/aparry3/gymtext-sub007/invocationlog"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/pkg/uuidx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/aparry3/gymtext-sub007/types"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
)

var _ api.Agent = (*ConfigurableAgent)(nil)

// invocation holds the per-call options of an agent.
type invocation struct {
	contextEntries []string
	history        []messages.Message
	runtime        tool.RuntimeContext
	timeout        time.Duration
	prompts        *store.Prompts
}

type Option = opts.Option[invocation]

var (
	// Runtime is handed to tools and callbacks, and its Vars fill prompt
	// templates.
	Runtime = opts.ForName[invocation, tool.RuntimeContext]("runtime")
	// Timeout bounds each model call of the invocation.
	Timeout = opts.ForName[invocation, time.Duration]("timeout")
)

// ContextEntries adds system messages after the system prompt.
func ContextEntries(entries ...string) Option {
	return opts.Type[invocation](func(o *invocation) error {
		o.contextEntries = append(o.contextEntries, entries...)
		return nil
	})
}

// History adds prior turns between the context and the user's message.
func History(msgs ...messages.Message) Option {
	return opts.Type[invocation](func(o *invocation) error {
		o.history = append(o.history, msgs...)
		return nil
	})
}

// Prompts overrides every other source of prompts for the invocation.
func Prompts(system, user string) Option {
	return opts.Type[invocation](func(o *invocation) error {
		if system == "" {
			return errors.New("prompt override requires a system prompt")
		}
		o.prompts = &store.Prompts{System: system, User: user}
		return nil
	})
}

// ConfigurableAgent is a resolved definition ready to be invoked.
type ConfigurableAgent struct {
	factory   *Factory
	def       Definition
	inv       invocation
	tools     []tool.Callable
	validator Validator
	batches   []map[string]SubAgent
	logger    *slog.Logger
}

func (a *ConfigurableAgent) Name() string { return a.def.Name }

// Definition returns a copy of the resolved definition.
func (a *ConfigurableAgent) Definition() Definition { return a.def.clone() }

// Invoke runs the agent on input.
func (a *ConfigurableAgent) Invoke(ctx context.Context, input string) (api.Result, error) {
	start := time.Now()

	plan, err := a.plan(ctx, input)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to prepare agent invocation", slogx.Error(err))
		return api.Result{}, err
	}

	result, stats, err := a.runValidated(ctx, plan)
	a.record(ctx, input, plan.messages, result, stats, err, start)
	if err != nil {
		a.logger.ErrorContext(ctx, "agent invocation failed", slogx.Error(err), slogx.Elapsed(start))
		return api.Result{}, err
	}

	if len(a.batches) == 0 {
		return api.Result{Response: result.Response, Messages: result.Messages, ToolCalls: result.ToolCalls}, nil
	}

	outputs, err := RunBatches(ctx, a.batches, result, input)
	if err != nil {
		a.logger.ErrorContext(ctx, "sub-agent batches failed", slogx.Error(err), slogx.Elapsed(start))
		return api.Result{}, err
	}
	result.SubAgents = outputs
	a.logger.DebugContext(ctx, "agent invocation finished", slog.Int("sub_agents", len(outputs)), slogx.Elapsed(start))
	return result, nil
}

// runStats describes the model work behind one invocation, across retries.
type runStats struct {
	iterations int
	exhausted  bool
	usage      provider.Usage
}

type plan struct {
	settings      provider.Settings
	maxIterations int
	messages      []messages.Message
}

func (a *ConfigurableAgent) plan(ctx context.Context, input string) (plan, error) {
	p := plan{
		settings:      a.def.Model,
		maxIterations: a.def.MaxIterations,
	}

	var persisted *store.AgentConfig
	if a.factory.configs != nil {
		cfg, err := a.factory.configs.GetLatest(ctx, a.def.Name)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return plan{}, fmt.Errorf("load config for agent %s: %w", a.def.Name, err)
		default:
			persisted = &cfg
		}
	}

	if persisted != nil {
		p.settings.Model = cmp.Or(persisted.Model, p.settings.Model)
		if persisted.Temperature != nil {
			p.settings.Temperature = *persisted.Temperature
		}
		p.settings.MaxTokens = cmp.Or(persisted.MaxTokens, p.settings.MaxTokens)
		p.maxIterations = cmp.Or(persisted.MaxIterations, p.maxIterations)
	}
	p.settings.Timeout = cmp.Or(a.inv.timeout, p.settings.Timeout, a.factory.callTimeout)

	prompts, err := a.prompts(ctx, persisted)
	if err != nil {
		return plan{}, err
	}

	vars := a.inv.runtime.Vars
	system, err := renderTemplate(a.def.Name+".system", prompts.System, vars)
	if err != nil {
		return plan{}, &api.ConfigurationError{Kind: "prompt", Name: a.def.Name, Reason: "system prompt: " + err.Error()}
	}
	userTurn := input
	if prompts.User != "" {
		user, err := renderTemplate(a.def.Name+".user", prompts.User, vars)
		if err != nil {
			return plan{}, &api.ConfigurationError{Kind: "prompt", Name: a.def.Name, Reason: "user prompt: " + err.Error()}
		}
		userTurn = user + "\n\n" + input
	}

	msgs := make([]messages.Message, 0, 2+len(a.inv.contextEntries)+len(a.inv.history))
	msgs = append(msgs, messages.System(system))
	for _, entry := range a.inv.contextEntries {
		msgs = append(msgs, messages.System(entry))
	}
	msgs = append(msgs, a.inv.history...)
	msgs = append(msgs, messages.User(userTurn))
	p.messages = msgs
	return p, nil
}

// prompts resolves the invocation override, then the definition's static
// prompts, then the persisted config, then the prompt store.
func (a *ConfigurableAgent) prompts(ctx context.Context, persisted *store.AgentConfig) (store.Prompts, error) {
	switch {
	case a.inv.prompts != nil:
		return *a.inv.prompts, nil
	case a.def.Prompts != nil && a.def.Prompts.System != "":
		return *a.def.Prompts, nil
	case persisted != nil && persisted.SystemPrompt != "":
		return store.Prompts{System: persisted.SystemPrompt, User: persisted.UserPrompt}, nil
	}

	if a.factory.prompts == nil {
		return store.Prompts{}, &api.ConfigurationError{Kind: "prompt", Name: a.def.Name, Reason: "no prompt source configured"}
	}
	p, err := a.factory.prompts.GetPrompts(ctx, a.def.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.Prompts{}, &api.ConfigurationError{Kind: "prompt", Name: a.def.Name, Reason: "no prompts found"}
	case err != nil:
		return store.Prompts{}, fmt.Errorf("load prompts for agent %s: %w", a.def.Name, err)
	case p.System == "":
		return store.Prompts{}, &api.ConfigurationError{Kind: "prompt", Name: a.def.Name, Reason: "system prompt is empty"}
	}
	return p, nil
}

// runValidated runs the agent once plus up to MaxRetries more times while
// the validator, or the structured output check, rejects the result.
func (a *ConfigurableAgent) runValidated(ctx context.Context, p plan) (api.Result, runStats, error) {
	attempts := 1 + max(a.def.MaxRetries, 0)
	var lastErr error
	var stats runStats
	for attempt := 1; attempt <= attempts; attempt++ {
		result, attemptStats, err := a.run(ctx, p)
		stats.iterations = attemptStats.iterations
		stats.exhausted = attemptStats.exhausted
		stats.usage.Add(attemptStats.usage)
		if err == nil && a.validator != nil {
			err = a.validator(ctx, result)
			if err != nil {
				err = &api.ValidationError{Subject: "agent " + a.def.Name, Err: err}
			}
		}
		if err == nil {
			return result, stats, nil
		}

		var verr *api.ValidationError
		if !errors.As(err, &verr) {
			return api.Result{}, stats, err
		}
		lastErr = verr.Err
		if attempt < attempts {
			a.logger.WarnContext(ctx, "agent result failed validation, retrying",
				slog.Int("attempt", attempt), slogx.Error(verr))
		}
	}
	return api.Result{}, stats, &api.ValidationError{Subject: "agent " + a.def.Name, Attempts: attempts, Err: lastErr}
}

func (a *ConfigurableAgent) run(ctx context.Context, p plan) (api.Result, runStats, error) {
	if len(a.tools) > 0 {
		specs := make([]provider.ToolSpec, 0, len(a.tools))
		for _, c := range a.tools {
			if slices.ContainsFunc(specs, func(s provider.ToolSpec) bool { return s.Name == c.Name() }) {
				continue
			}
			specs = append(specs, c.Spec())
		}
		loop := executor.ToolLoop{
			Model:         provider.Bind(a.factory.provider, p.settings, specs, nil),
			Tools:         a.tools,
			Priority:      a.factory.tools.Priority,
			MaxIterations: p.maxIterations,
			Logger:        a.logger,
		}
		out, err := loop.Run(ctx, p.messages)
		if err != nil {
			return api.Result{}, runStats{}, err
		}
		stats := runStats{iterations: out.Iterations, exhausted: out.Exhausted, usage: out.Usage}
		return api.Result{Response: out.Response, Messages: out.Messages, ToolCalls: out.ToolCalls}, stats, nil
	}

	model := provider.Bind(a.factory.provider, p.settings, nil, a.def.Schema)
	completion, err := model.Invoke(ctx, p.messages)
	if err != nil {
		return api.Result{}, runStats{}, err
	}
	stats := runStats{usage: completion.Usage}
	if a.def.Schema == nil {
		return api.Result{Response: completion.Content}, stats, nil
	}

	var structured map[string]any
	if err := json.Unmarshal([]byte(completion.Content), &structured); err != nil {
		return api.Result{}, stats, &api.ValidationError{Subject: "structured output " + a.def.Schema.Name, Err: err}
	}
	return api.Result{Response: structured}, stats, nil
}

func (a *ConfigurableAgent) record(ctx context.Context, input string, msgs []messages.Message, result api.Result, stats runStats, err error, start time.Time) {
	rec := invocationlog.Record{
		ID:         uuidx.New(),
		Agent:      a.def.Name,
		UserID:     a.inv.runtime.UserID,
		Input:      input,
		Messages:   msgs,
		Result:     result,
		Duration:   time.Since(start),
		Timestamp:  strfmt.DateTime(start),
		Iterations: stats.iterations,
		Exhausted:  stats.exhausted,
		Usage:      stats.usage,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	a.factory.log.Log(ctx, rec)
}

func renderTemplate(name, text string, cv types.ContextVars) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", err
	}
	return buf.String(), nil
}
