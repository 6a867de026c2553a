package coach

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aparry3/gymtext-sub007/agent"
	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/callback"
	"github.com/aparry3/gymtext-sub007/durable"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/messaging"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/provider/providertest"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/store/memory"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/aparry3/gymtext-sub007/workout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type runnerFunc func(ctx context.Context, req workout.Request) (durable.Report, error)

func (f runnerFunc) RunWorkout(ctx context.Context, req workout.Request) (durable.Report, error) {
	return f(ctx, req)
}

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) sender() messaging.Sender {
	return messaging.SenderFunc(func(_ context.Context, text string) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.sent = append(o.sent, text)
		return nil
	})
}

func newRegistries() Registries {
	return Registries{
		Agents:     agent.NewRegistry(),
		Tools:      tool.NewRegistry(),
		Callbacks:  callback.NewRegistry(),
		Validators: agent.NewValidators(),
	}
}

func newFactory(t *testing.T, r Registries, p provider.Provider) *agent.Factory {
	t.Helper()
	prompts, err := DefaultPrompts()
	require.NoError(t, err)
	f, err := agent.NewFactory(
		agent.Agents(r.Agents),
		agent.Tools(r.Tools),
		agent.Callbacks(r.Callbacks),
		agent.ValidatorSet(r.Validators),
		agent.PromptStore(prompts),
		agent.ConfigStore(memory.New()),
		agent.Provider(p),
	)
	require.NoError(t, err)
	return f
}

func TestDefaultPrompts(t *testing.T) {
	prompts, err := DefaultPrompts()
	require.NoError(t, err)
	for _, name := range []string{AgentChat, AgentOnboarding, AgentProfileExtractor, AgentWelcome} {
		p, err := prompts.GetPrompts(context.Background(), name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, p.System, name)
	}
}

func TestRegisterKeepsExistingEntries(t *testing.T) {
	r := newRegistries()
	require.NoError(t, r.Agents.Register(agent.Definition{Name: AgentChat, Description: "custom"}))

	users := NewUsers()
	require.NoError(t, Register(r, users, nil, provider.Settings{Model: "gpt-4o"}, nil))
	require.NoError(t, Register(r, users, nil, provider.Settings{Model: "gpt-4o"}, nil))

	chat, ok := r.Agents.Get(AgentChat)
	require.True(t, ok)
	assert.Equal(t, "custom", chat.Description)
	assert.True(t, r.Agents.Has(AgentOnboarding))
	assert.True(t, r.Tools.Has(ToolModifyWorkout))
	assert.True(t, r.Callbacks.Has(CallbackSendResponse))
	assert.True(t, r.Callbacks.Has(CallbackSaveProfile))
	assert.True(t, r.Validators.Has(ValidatorNonEmptyReply))
}

func TestChatUpdatesProfileAndWorkout(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()
	users.SetProfile(ctx, "u1", "Wants to run a 10k.")
	users.SetWorkout(ctx, "u1", "2026-10-19", workout.Result{Description: "Back squat 5x5"})

	var got workout.Request
	runner := runnerFunc(func(_ context.Context, req workout.Request) (durable.Report, error) {
		got = req
		return durable.Report{Operation: req.Operation, Modified: true, Result: &workout.Result{
			Description:   "Walking lunges 3x10",
			Message:       "Today: walking lunges 3x10.",
			Modifications: "Swapped squats for lunges",
		}}, nil
	})

	r := newRegistries()
	require.NoError(t, Register(r, users, runner, provider.Settings{Model: "gpt-4o"}, nil))
	model := providertest.NewScripted(
		providertest.Calls(
			messages.ToolCall{ID: "1", Name: ToolModifyWorkout, Arguments: `{"changes":"no squats","message":"On it!"}`},
			messages.ToolCall{ID: "2", Name: ToolUpdateProfile, Arguments: `{"update":"Has a sore knee.","message":"Noted."}`},
		),
		providertest.Text("All set, enjoy the lunges."),
	)
	f := newFactory(t, r, model)

	out := &outbox{}
	rc := tool.RuntimeContext{UserID: "u1", Sender: out.sender(), Vars: Vars(ctx, users, "u1", today)}
	ra, err := f.RegistryAgent(ctx, AgentChat, agent.Runtime(rc))
	require.NoError(t, err)

	result, err := ra.Agent.Invoke(ctx, "my knee hurts, can I skip squats?")
	require.NoError(t, err)
	ran := f.ExecuteAgentCallbacks(ctx, ra.Callbacks, callback.Context{
		AgentName: ra.Name, Input: "my knee hurts", Result: result, Runtime: rc,
	})
	assert.Equal(t, 2, ran)

	assert.Equal(t, "All set, enjoy the lunges.", result.Response)
	assert.Equal(t, []string{"Today: walking lunges 3x10."}, result.Messages)
	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, ToolUpdateProfile, result.ToolCalls[0].Name)
	assert.Equal(t, "2026-10-19", result.ToolCalls[1].Metadata["date"])

	assert.Equal(t, workout.Modify, got.Operation)
	assert.Equal(t, "no squats", got.Changes)
	assert.Equal(t, "Back squat 5x5", got.Current)
	assert.Equal(t, "2026-10-19", got.Date.String())
	assert.Contains(t, got.Profile, "sore knee")

	profile, err := users.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Wants to run a 10k.\nHas a sore knee.", profile)
	stored, ok := users.Workout(ctx, "u1", "2026-10-19")
	require.True(t, ok)
	assert.Equal(t, "Walking lunges 3x10", stored.Description)

	assert.Equal(t, []string{"Noted.", "On it!", "All set, enjoy the lunges.", "Today: walking lunges 3x10."}, out.sent)

	system := model.Calls()[0].Messages[0].Content
	assert.Contains(t, system, "Wants to run a 10k.")
	assert.Contains(t, model.Calls()[0].Messages[1].Content, "Today is 2026-10-19.")
}

func TestModifyWorkoutWithoutPlan(t *testing.T) {
	called := false
	runner := runnerFunc(func(context.Context, workout.Request) (durable.Report, error) {
		called = true
		return durable.Report{}, nil
	})
	tools := Tools(NewUsers(), runner)
	r := tool.NewRegistry()
	for _, def := range tools {
		require.NoError(t, r.Register(def))
	}
	callables, err := r.CreateTools([]string{ToolModifyWorkout}, tool.RuntimeContext{UserID: "u1"})
	require.NoError(t, err)

	res, err := callables[0].Call(context.Background(), `{"date":"2026-10-21","changes":"shorter"}`)
	require.NoError(t, err)
	assert.Equal(t, "There is no workout on 2026-10-21 to change.", res.Response)
	assert.False(t, called)
}

func TestGetWorkoutDefaultsToToday(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()
	users.SetWorkout(ctx, "u1", "2026-10-19", workout.Result{Description: "Easy 5k"})
	r := tool.NewRegistry()
	for _, def := range Tools(users, nil) {
		require.NoError(t, r.Register(def))
	}
	callables, err := r.CreateTools([]string{ToolGetWorkout}, tool.RuntimeContext{UserID: "u1", Vars: Vars(ctx, users, "u1", today)})
	require.NoError(t, err)

	res, err := callables[0].Call(ctx, `{}`)
	require.NoError(t, err)
	assert.Equal(t, "Workout for 2026-10-19:\nEasy 5k", res.Response)

	res, err = callables[0].Call(ctx, `{"date":"2026-10-20"}`)
	require.NoError(t, err)
	assert.Equal(t, "No workout is planned for 2026-10-20.", res.Response)
}

func TestOnboardingRunsSubAgents(t *testing.T) {
	ctx := context.Background()
	r := newRegistries()
	users := NewUsers()
	require.NoError(t, Register(r, users, nil, provider.Settings{Model: "gpt-4o"}, nil))

	var mu sync.Mutex
	inputs := map[string]string{}
	model := provider.Func(func(_ context.Context, params provider.CompletionParams) (provider.Completion, error) {
		system := params.Messages[0].Content
		last := params.Messages[len(params.Messages)-1].Content
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.Contains(system, "extract a fitness profile"):
			inputs["profile"] = last
			return provider.Completion{Content: `{"goals":["run a 10k"],"experience":"beginner","daysPerWeek":3,"equipment":[],"injuries":[]}`}, nil
		case strings.Contains(system, "first welcome text"):
			inputs["welcome"] = last
			return provider.Completion{Content: "Welcome to GymText! Let's get you to that 10k."}, nil
		default:
			inputs["main"] = last
			return provider.Completion{Content: "Great to meet you."}, nil
		}
	})
	f := newFactory(t, r, model)

	rc := tool.RuntimeContext{UserID: "u2"}
	ra, err := f.RegistryAgent(ctx, AgentOnboarding, agent.Runtime(rc))
	require.NoError(t, err)
	result, err := ra.Agent.Invoke(ctx, "I want to run a 10k, 3 days a week.")
	require.NoError(t, err)
	ran := f.ExecuteAgentCallbacks(ctx, ra.Callbacks, callback.Context{
		AgentName: ra.Name, Input: "I want to run a 10k, 3 days a week.", Result: result, Runtime: rc,
	})
	assert.Equal(t, 2, ran)

	assert.Equal(t, "Great to meet you.", result.Response)
	assert.Equal(t, "Welcome to GymText! Let's get you to that 10k.", result.SubAgents["welcome"])
	profile, ok := result.SubAgents["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "beginner", profile["experience"])
	assert.Contains(t, inputs["profile"], "I want to run a 10k")
	assert.Contains(t, inputs["welcome"], "I want to run a 10k")

	stored, err := users.Profile(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "Goals: run a 10k\nExperience: beginner\nTrains 3 days a week", stored)
}

func TestSaveProfile(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()
	save := saveProfile(users)

	require.NoError(t, save(ctx, callback.Context{Result: api.Result{Response: "hi"}, Runtime: tool.RuntimeContext{UserID: "u1"}}))
	_, err := users.Profile(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	extracted := api.Result{SubAgents: map[string]any{"profile": map[string]any{
		"goals": []any{"build strength"}, "experience": "unknown", "daysPerWeek": 4, "injuries": []any{"left knee"},
	}}}
	require.Error(t, save(ctx, callback.Context{Result: extracted}))
	require.NoError(t, save(ctx, callback.Context{Result: extracted, Runtime: tool.RuntimeContext{UserID: "u1"}}))
	stored, err := users.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Goals: build strength\nTrains 4 days a week\nInjuries: left knee", stored)

	bad := api.Result{SubAgents: map[string]any{"profile": map[string]any{"daysPerWeek": "four"}}}
	assert.Error(t, save(ctx, callback.Context{Result: bad, Runtime: tool.RuntimeContext{UserID: "u1"}}))
}

func TestSendResponseRequiresSender(t *testing.T) {
	err := sendResponse(context.Background(), callback.Context{Result: api.Result{Response: "hi"}})
	require.Error(t, err)
}

func TestNonEmptyReply(t *testing.T) {
	assert.Error(t, nonEmptyReply(context.Background(), api.Result{Response: "  "}))
	assert.NoError(t, nonEmptyReply(context.Background(), api.Result{Response: "ok"}))
}

func TestVarsWithoutProfile(t *testing.T) {
	vars := Vars(context.Background(), NewUsers(), "new", today)
	assert.Equal(t, "No profile details yet.", vars.GetString("profile"))
	assert.Equal(t, "2026-10-19", vars.GetString(VarToday))
	_, err := NewUsers().Profile(context.Background(), "new")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
