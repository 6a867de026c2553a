/*
Package openai implements provider.Provider on top of the OpenAI chat
completions API.

# Requests

Each provider.CompletionParams becomes a single non-streaming chat
completion request:

  - system, user, assistant and tool messages map one to one onto the
    OpenAI message params; assistant tool calls are replayed so the model
    sees its own earlier calls next to their results
  - tools are sent as function definitions whose parameters are the
    reflected JSON schema
  - a ResponseSchema switches the request to strict json_schema output

# Errors

Rate limits (429) and server errors (5xx) come back wrapped in
api.TransientProviderError so callers can decide to retry. Everything else
is returned as the SDK reports it.

Example:

	p := openai.New(
		option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
	)
	completion, err := p.ChatCompletion(ctx, provider.CompletionParams{
		Model:    "gpt-4o-mini",
		Messages: []messages.Message{messages.User("Hello")},
	})
*/
package openai
