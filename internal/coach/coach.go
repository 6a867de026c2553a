// Package coach wires the GymText coaching agents: the chat agent with its
// profile and workout tools, onboarding with its sub-agents, and the
// callbacks that deliver replies.
package coach

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aparry3/gymtext-sub007/agent"
	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/callback"
	"github.com/aparry3/gymtext-sub007/durable"
	"github.com/aparry3/gymtext-sub007/pkg/jsonx"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/aparry3/gymtext-sub007/types"
	"github.com/go-openapi/strfmt"
)

const (
	AgentChat             = "chat"
	AgentOnboarding       = "onboarding"
	AgentProfileExtractor = "profile_extractor"
	AgentWelcome          = "welcome_message"

	CallbackSendResponse    = "send_response"
	CallbackLogConversation = "log_conversation"
	CallbackSaveProfile     = "save_profile"

	ValidatorNonEmptyReply = "non_empty_reply"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// DefaultPrompts returns the prompts bundled with the coaching agents.
func DefaultPrompts() (store.StaticPrompts, error) {
	prompts, err := store.LoadPromptsYAML(bytes.NewReader(defaultPrompts))
	if err != nil {
		return nil, err
	}
	return store.StaticPrompts(prompts), nil
}

// Profile is what the extractor pulls out of a new client's first message.
type Profile struct {
	Goals       []string `json:"goals" jsonschema:"description=Fitness goals in the client's words"`
	Experience  string   `json:"experience" jsonschema:"enum=beginner,enum=intermediate,enum=advanced,enum=unknown"`
	DaysPerWeek int      `json:"daysPerWeek" jsonschema:"minimum=0,maximum=7"`
	Equipment   []string `json:"equipment"`
	Injuries    []string `json:"injuries"`
}

// Summary renders the profile as the plain text the chat prompt embeds.
func (p Profile) Summary() string {
	var b strings.Builder
	line := func(label string, values []string) {
		if len(values) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(values, ", "))
		}
	}
	line("Goals", p.Goals)
	if p.Experience != "" && p.Experience != "unknown" {
		fmt.Fprintf(&b, "Experience: %s\n", p.Experience)
	}
	if p.DaysPerWeek > 0 {
		fmt.Fprintf(&b, "Trains %d days a week\n", p.DaysPerWeek)
	}
	line("Equipment", p.Equipment)
	line("Injuries", p.Injuries)
	return strings.TrimSpace(b.String())
}

// Registries are the registries the coaching components are added to.
type Registries struct {
	Agents     *agent.Registry
	Tools      *tool.Registry
	Callbacks  *callback.Registry
	Validators *agent.Validators
}

// Register adds the coaching tools, callbacks, validators and agents.
// Names that are already registered are left alone so callers can override
// any piece before calling Register.
func Register(r Registries, users *Users, workouts durable.Runner, model provider.Settings, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slogx.LoggerName("gymtext.coach"))

	var errs []error
	for _, def := range Tools(users, workouts) {
		if !r.Tools.Has(def.Name) {
			errs = append(errs, r.Tools.Register(def))
		}
	}
	for _, def := range callbacks(users, logger) {
		if !r.Callbacks.Has(def.Name) {
			errs = append(errs, r.Callbacks.Register(def))
		}
	}
	if !r.Validators.Has(ValidatorNonEmptyReply) {
		errs = append(errs, r.Validators.Register(ValidatorNonEmptyReply, nonEmptyReply))
	}
	for _, def := range agents(model) {
		if !r.Agents.Has(def.Name) {
			errs = append(errs, r.Agents.Register(def))
		}
	}
	return errors.Join(errs...)
}

// Vars returns the prompt variables the chat agent expects for a user.
func Vars(ctx context.Context, users *Users, userID string, now time.Time) types.ContextVars {
	profile, err := users.Profile(ctx, userID)
	if err != nil {
		profile = ""
	}
	return types.ContextVars{
		"profile": profileOrDefault(profile),
		VarToday:  now.Format(strfmt.RFC3339FullDate),
	}
}

func agents(model provider.Settings) []agent.Definition {
	return []agent.Definition{
		{
			Name:          AgentChat,
			Description:   "Answers a client's texts and changes their plan through tools.",
			Model:         model,
			MaxIterations: 6,
			Tools:         []string{ToolUpdateProfile, ToolGetWorkout, ToolModifyWorkout},
			Callbacks: []callback.Ref{
				{Name: CallbackSendResponse, When: callback.OnSuccess},
				{Name: CallbackLogConversation, When: callback.Always},
			},
			Validator:  ValidatorNonEmptyReply,
			MaxRetries: 1,
		},
		{
			Name:        AgentOnboarding,
			Description: "Greets a new client and extracts their profile.",
			Model:       model,
			SubAgents: []agent.Batch{
				{"profile": agent.Configured(AgentProfileExtractor, nil, parentInput)},
				{"welcome": agent.Configured(AgentWelcome, hasReply, parentInput)},
			},
			Callbacks: []callback.Ref{
				{Name: CallbackSaveProfile, When: callback.OnSuccess},
				{Name: CallbackLogConversation, When: callback.Always},
			},
		},
		{
			Name:        AgentProfileExtractor,
			Description: "Extracts a fitness profile from free text.",
			Model:       model,
			Schema: &provider.StructuredOutput{
				Name:        "client_profile",
				Description: "The client's fitness profile",
				Schema:      tool.SchemaFor[Profile](),
			},
		},
		{
			Name:        AgentWelcome,
			Description: "Writes the first welcome text.",
			Model:       model,
		},
	}
}

func parentInput(_ api.Result, input string) (string, error) {
	return input, nil
}

func hasReply(main api.Result) bool {
	text, err := main.ResponseText()
	return err == nil && strings.TrimSpace(text) != ""
}

func nonEmptyReply(_ context.Context, result api.Result) error {
	text, err := result.ResponseText()
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("reply is empty")
	}
	return nil
}

func callbacks(users *Users, logger *slog.Logger) []callback.Definition {
	return []callback.Definition{
		{
			Name:        CallbackSendResponse,
			Description: "Texts the reply and any tool messages to the user.",
			Execute:     sendResponse,
		},
		{
			Name:        CallbackSaveProfile,
			Description: "Stores the profile extracted during onboarding.",
			Execute:     saveProfile(users),
		},
		{
			Name:        CallbackLogConversation,
			Description: "Logs the exchange.",
			Execute: func(ctx context.Context, cc callback.Context) error {
				reply, _ := cc.Result.ResponseText()
				attrs := []any{
					slogx.Agent(cc.AgentName),
					slog.String("user_id", cc.Runtime.UserID),
					slogx.Truncated("input", cc.Input, 200),
					slogx.Truncated("reply", reply, 200),
					slog.Int("tool_calls", len(cc.Result.ToolCalls)),
				}
				if cc.Err != nil {
					logger.WarnContext(ctx, "conversation failed", append(attrs, slogx.Error(cc.Err))...)
					return nil
				}
				logger.InfoContext(ctx, "conversation", attrs...)
				return nil
			},
		},
	}
}

func saveProfile(users *Users) callback.Func {
	return func(ctx context.Context, cc callback.Context) error {
		raw, ok := cc.Result.SubAgents["profile"]
		if !ok {
			return nil
		}
		if cc.Runtime.UserID == "" {
			return errors.New("no user id in runtime context")
		}
		profile, err := jsonx.Decode[Profile](raw)
		if err != nil {
			return fmt.Errorf("decode extracted profile: %w", err)
		}
		if summary := profile.Summary(); summary != "" {
			users.SetProfile(ctx, cc.Runtime.UserID, summary)
		}
		return nil
	}
}

func sendResponse(ctx context.Context, cc callback.Context) error {
	if cc.Runtime.Sender == nil {
		return errors.New("no sender in runtime context")
	}
	reply, err := cc.Result.ResponseText()
	if err != nil {
		return err
	}
	outgoing := append([]string{reply}, cc.Result.Messages...)
	for _, text := range outgoing {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := cc.Runtime.Sender.SendMessage(ctx, text); err != nil {
			return err
		}
	}
	return nil
}
