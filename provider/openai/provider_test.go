package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type workoutArgs struct {
	Date string `json:"date" jsonschema:"description=ISO date of the workout"`
}

func argsSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	return r.Reflect(&workoutArgs{})
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Provider {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(option.WithBaseURL(server.URL+"/v1/"), option.WithAPIKey("test"), option.WithMaxRetries(0))
}

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
	assert.NotNil(t, p.client)
}

func TestProvider_buildRequest(t *testing.T) {
	p := New()
	params := &provider.CompletionParams{
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   300,
		Messages: []messages.Message{
			messages.System("be brief"),
			messages.User("what's today?"),
		},
		Tools: []provider.ToolSpec{{Name: "get_workout", Description: "Fetch a workout", Parameters: argsSchema()}},
	}

	req, err := p.buildRequest(params)
	require.NoError(t, err)
	assert.Equal(t, openai.ChatModel("gpt-4o-mini"), req.Model.Value)
	assert.Len(t, req.Messages.Value, 2)
	assert.InDelta(t, 0.2, req.Temperature.Value, 1e-9)
	assert.Equal(t, int64(300), req.MaxTokens.Value)
	require.Len(t, req.Tools.Value, 1)
	assert.Equal(t, "get_workout", req.Tools.Value[0].Function.Value.Name.Value)
	assert.Equal(t, "Fetch a workout", req.Tools.Value[0].Function.Value.Description.Value)
	assert.False(t, req.ParallelToolCalls.Value)
}

func TestProvider_buildRequest_MissingToolSchema(t *testing.T) {
	_, err := New().buildRequest(&provider.CompletionParams{Tools: []provider.ToolSpec{{Name: "broken"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool broken has no parameter schema")
}

func TestProvider_buildRequest_ResponseSchema(t *testing.T) {
	req, err := New().buildRequest(&provider.CompletionParams{
		Model:          "gpt-4o",
		ResponseSchema: &provider.StructuredOutput{Name: "long form", Schema: argsSchema()},
	})
	require.NoError(t, err)
	format, ok := req.ResponseFormat.Value.(openai.ResponseFormatJSONSchemaParam)
	require.True(t, ok)
	assert.Equal(t, "long_form", format.JSONSchema.Value.Name.Value)
	assert.True(t, format.JSONSchema.Value.Strict.Value)
}

func TestProvider_ChatCompletion_Text(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "hello", gjson.GetBytes(body, "messages.1.content.0.text").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 0, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hi there"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	})

	c, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Model:    "gpt-4o-mini",
		Messages: []messages.Message{messages.System("sys"), messages.User("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", c.Content)
	assert.Empty(t, c.ToolCalls)
	assert.Equal(t, int64(7), c.Usage.TotalTokens)
}

func TestProvider_ChatCompletion_ToolCalls(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "get_workout", gjson.GetBytes(body, "tools.0.function.name").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-2", "object": "chat.completion", "created": 0, "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_workout", "arguments": "{\"date\":\"2024-05-01\"}"}}]
			}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`)
	})

	c, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Model: "gpt-4o",
		Tools: []provider.ToolSpec{{Name: "get_workout", Parameters: argsSchema()}},
	})
	require.NoError(t, err)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, messages.ToolCall{ID: "call_1", Name: "get_workout", Arguments: `{"date":"2024-05-01"}`}, c.ToolCalls[0])
}

func TestProvider_ChatCompletion_TransientErrors(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		p := setupTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error": {"message": "slow down", "type": "rate_limit"}}`)
		})
		_, err := p.ChatCompletion(context.Background(), provider.CompletionParams{Model: "gpt-4o"})
		require.Error(t, err)
		assert.True(t, api.IsTransient(err), "status %d", status)
	}
}

func TestProvider_ChatCompletion_ClientError(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"message": "bad request", "type": "invalid_request_error"}}`)
	})
	_, err := p.ChatCompletion(context.Background(), provider.CompletionParams{Model: "gpt-4o"})
	require.Error(t, err)
	assert.False(t, api.IsTransient(err))
}

func TestMessagesToOpenAI(t *testing.T) {
	result := messagesToOpenAI([]messages.Message{
		messages.System("sys"),
		messages.User("hi"),
		messages.AssistantToolCalls("", messages.ToolCall{ID: "call_1", Name: "get_workout", Arguments: "{}"}),
		messages.ToolResponse("call_1", "get_workout", "Legs"),
		messages.Assistant("Legs today"),
	})
	require.Len(t, result, 5)

	am, ok := result[2].(openai.ChatCompletionMessageParam)
	require.True(t, ok)
	assert.Equal(t, openai.ChatCompletionMessageParamRoleAssistant, am.Role.Value)

	tm, ok := result[3].(openai.ChatCompletionToolMessageParam)
	require.True(t, ok)
	assert.Equal(t, "call_1", tm.ToolCallID.Value)
}
