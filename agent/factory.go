package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/callback"
	"github.com/aparry3/gymtext-sub007/invocationlog"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/fogfish/opts"
)

// Factory turns agent names into runnable agents.
type Factory struct {
	agents      *Registry
	tools       *tool.Registry
	callbacks   *callback.Registry
	validators  *Validators
	prompts     store.PromptStore
	configs     store.AgentConfigStore
	provider    provider.Provider
	log         *invocationlog.Detached
	logger      *slog.Logger
	callTimeout time.Duration
}

type FactoryOption = opts.Option[Factory]

var (
	Agents        = opts.ForName[Factory, *Registry]("agents")
	Tools         = opts.ForName[Factory, *tool.Registry]("tools")
	Callbacks     = opts.ForName[Factory, *callback.Registry]("callbacks")
	ValidatorSet  = opts.ForName[Factory, *Validators]("validators")
	PromptStore   = opts.ForName[Factory, store.PromptStore]("prompts")
	ConfigStore   = opts.ForName[Factory, store.AgentConfigStore]("configs")
	Provider      = opts.ForName[Factory, provider.Provider]("provider")
	InvocationLog = opts.ForName[Factory, *invocationlog.Detached]("log")
	Logger        = opts.ForName[Factory, *slog.Logger]("logger")
	// CallTimeout bounds every model call of agents whose definition sets no
	// timeout of its own.
	CallTimeout = opts.ForName[Factory, time.Duration]("callTimeout")
)

// NewFactory builds a factory. A provider is required; missing registries
// default to empty ones.
func NewFactory(options ...FactoryOption) (*Factory, error) {
	f := &Factory{}
	if err := opts.Apply(f, options); err != nil {
		return nil, err
	}
	if f.provider == nil {
		return nil, errors.New("agent factory: a provider is required")
	}
	if f.agents == nil {
		f.agents = NewRegistry()
	}
	if f.tools == nil {
		f.tools = tool.NewRegistry()
	}
	if f.callbacks == nil {
		f.callbacks = callback.NewRegistry()
	}
	if f.validators == nil {
		f.validators = NewValidators()
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With(slogx.LoggerName("gymtext.agent"))
	return f, nil
}

// Registry returns the agent registry the factory resolves names against.
func (f *Factory) Registry() *Registry { return f.agents }

// Agent resolves the named definition and everything it references.
func (f *Factory) Agent(ctx context.Context, name string, options ...Option) (*ConfigurableAgent, error) {
	var inv invocation
	if err := opts.Apply(&inv, options); err != nil {
		return nil, err
	}
	a, err := f.resolve(ctx, name, inv, nil)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to resolve agent", slogx.Agent(name), slogx.Error(err))
		return nil, err
	}
	return a, nil
}

func (f *Factory) resolve(ctx context.Context, name string, inv invocation, path []string) (*ConfigurableAgent, error) {
	if slices.Contains(path, name) {
		return nil, &api.ConfigurationError{
			Kind:   "agent",
			Name:   name,
			Reason: "sub-agent cycle " + strings.Join(append(path, name), " -> "),
		}
	}
	path = append(slices.Clone(path), name)

	def, ok := f.agents.Get(name)
	if !ok {
		return nil, &api.ConfigurationError{Kind: "agent", Name: name, Reason: "not registered"}
	}

	for _, ref := range def.Callbacks {
		if !f.callbacks.Has(ref.Name) {
			return nil, &api.ConfigurationError{Kind: "callback", Name: ref.Name, Reason: "referenced by agent " + name + " but not registered"}
		}
	}

	var validator Validator
	if def.Validator != "" {
		v, ok := f.validators.Get(def.Validator)
		if !ok {
			return nil, &api.ConfigurationError{Kind: "validator", Name: def.Validator, Reason: "referenced by agent " + name + " but not registered"}
		}
		validator = v
	}

	tools, err := f.tools.CreateTools(def.Tools, inv.runtime)
	if err != nil {
		return nil, err
	}

	// Sub-agents share the caller's runtime and timeout, never its history.
	subInv := invocation{runtime: inv.runtime, timeout: inv.timeout}
	batches := make([]map[string]SubAgent, 0, len(def.SubAgents))
	for _, batch := range def.SubAgents {
		bound := make(map[string]SubAgent, len(batch))
		for key, entry := range batch {
			if key == "" {
				return nil, &api.ConfigurationError{Kind: "agent", Name: name, Reason: "sub-agent entry with empty key"}
			}
			var sa SubAgent
			switch e := entry.(type) {
			case SimpleEntry:
			case ConfiguredEntry:
				sa.Condition, sa.Transform = e.Condition, e.Transform
			default:
				return nil, &api.ConfigurationError{Kind: "agent", Name: name, Reason: fmt.Sprintf("sub-agent entry %q has no agent", key)}
			}
			sub, err := f.resolve(ctx, entry.agentName(), subInv, path)
			if err != nil {
				return nil, err
			}
			sa.Agent = sub
			bound[key] = sa
		}
		batches = append(batches, bound)
	}

	return &ConfigurableAgent{
		factory:   f,
		def:       def,
		inv:       inv,
		tools:     tools,
		validator: validator,
		batches:   batches,
		logger:    f.logger.With(slogx.Agent(name)),
	}, nil
}

// RegistryAgent is a resolved agent together with the callbacks its
// definition declares. Callers run the callbacks themselves.
type RegistryAgent struct {
	Agent     api.Agent
	Callbacks []callback.Ref
	Name      string
}

// RegistryAgent resolves name into an agent and its callback references.
func (f *Factory) RegistryAgent(ctx context.Context, name string, options ...Option) (RegistryAgent, error) {
	a, err := f.Agent(ctx, name, options...)
	if err != nil {
		return RegistryAgent{}, err
	}
	return RegistryAgent{Agent: a, Callbacks: slices.Clone(a.def.Callbacks), Name: name}, nil
}

// ExecuteAgentCallbacks runs refs for a finished invocation. The
// invocation counts as successful when cc.Err is nil. Callback failures are
// logged and never returned; the number of callbacks that ran to completion
// is reported.
func (f *Factory) ExecuteAgentCallbacks(ctx context.Context, refs []callback.Ref, cc callback.Context) int {
	return f.callbacks.Execute(ctx, refs, cc, cc.Err == nil)
}
