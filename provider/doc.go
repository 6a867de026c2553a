// Package provider implements an abstraction layer for talking to model
// providers (OpenAI, Anthropic) in a consistent way.
//
// Design decisions:
//   - Provider abstraction: one non-streaming ChatCompletion call that every
//     provider implements
//   - Bound models: Bind fixes the settings, tools and output schema of an
//     agent so the tool loop only passes messages
//   - Bounded calls: every bound call runs under a timeout; a deadline is
//     reported as a TransientProviderError
//   - Structured output: replies to schema-bound calls are checked to be a
//     JSON object before they are returned
//
// Key concepts:
//   - Provider: the contract a model provider implements
//   - CompletionParams: model id, messages, tools and optional response schema
//   - Completion: the reply text and tool calls, with token usage
//   - Settings: per-agent model parameters, loadable from YAML
//
// Example usage:
//
//	model := provider.Bind(openai.New(), provider.Settings{Model: "gpt-4o-mini"}, nil, nil)
//	completion, err := model.Invoke(ctx, []messages.Message{
//	    messages.System("You are a friendly fitness coach."),
//	    messages.User("What should I do today?"),
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(completion.Content)
//
// New providers are added by implementing Provider; models.Router picks one
// per request by model id prefix.
package provider
