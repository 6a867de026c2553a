/*
Package gymtext is the agent runtime behind GymText, a personal trainer that
coaches people over text message.

The module is organised around a few abstractions:

  - Agents: named definitions resolved by a factory into runnable agents
  - Tools: functions the model can call, ordered by priority
  - Callbacks: hooks run after an invocation, such as texting the reply
  - Sub-agents: batches of agents fed from the main agent's result
  - Workouts: a two phase chain that writes and then formats a workout

# Basic Usage

Register definitions, build a factory and invoke an agent by name:

	agents := agent.NewRegistry()
	_ = agents.Register(agent.Definition{
		Name:  "chat",
		Model: provider.Settings{Model: "gpt-4o-mini"},
		Tools: []string{"get_workout"},
	})

	factory, err := agent.NewFactory(
		agent.Agents(agents),
		agent.Tools(tools),
		agent.PromptStore(prompts),
		agent.Provider(openai.New()),
	)
	if err != nil {
		return err
	}

	chat, err := factory.Agent(ctx, "chat", agent.Runtime(tool.RuntimeContext{UserID: id}))
	if err != nil {
		return err
	}
	result, err := chat.Invoke(ctx, "Can I do a shorter workout today?")

# Agents

An agent either runs a tool loop, when its definition lists tools, or makes
a single model call that may be bound to a JSON schema. Results can be
checked by a named validator and retried. Prompts come from, in order, the
invocation, the definition, the latest persisted config and the prompt store.

# Workouts

The workout chain creates, replaces, substitutes or modifies a workout for a
date. A first call writes the workout in prose; a second step turns that into
a structured workout and a short text message concurrently. Failed attempts
are retried with a linear backoff. The durable package runs the same chain
as a Temporal workflow.

# Transport

Cmd gymtextd serves agents and workout operations over HTTP. Invocation
records and outbound texts can be published to NATS.
*/
package gymtext
