package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type profile struct {
	Goal string `json:"goal"`
	Days int    `json:"days"`
}

func profileSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	return r.Reflect(&profile{})
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Provider {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(option.WithBaseURL(server.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]messages.Message{
		messages.System("sys"),
		messages.User("hi"),
		messages.AssistantToolCalls("", messages.ToolCall{ID: "a", Name: "one", Arguments: `{"x":1}`}, messages.ToolCall{ID: "b", Name: "two"}),
		messages.ToolResponse("a", "one", "ok"),
		messages.ToolResponse("b", "two", "Error: nope"),
		messages.Assistant("done"),
	})
	// user, assistant(tool_use x2), user(tool_result x2), assistant
	require.Len(t, msgs, 4)
	assert.Len(t, msgs[1].Content, 2)
	assert.Len(t, msgs[2].Content, 2)
}

func TestSystemBlocks(t *testing.T) {
	blocks := systemBlocks([]messages.Message{messages.System("a"), messages.User("u"), messages.System("")})
	require.Len(t, blocks, 1)
	assert.Equal(t, "a", blocks[0].Text)
}

func TestProvider_ChatCompletion_Text(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "claude-3-5-sonnet-latest", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "be brief", gjson.GetBytes(body, "system.0.text").String())
		assert.Equal(t, int64(DefaultMaxTokens), gjson.GetBytes(body, "max_tokens").Int())

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-sonnet-latest",
			"content": [{"type": "text", "text": "Hello!"}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 4, "output_tokens": 2}
		}`)
	})

	c, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Model:    "claude-3-5-sonnet-latest",
		Messages: []messages.Message{messages.System("be brief"), messages.User("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", c.Content)
	assert.Equal(t, int64(6), c.Usage.TotalTokens)
}

func TestProvider_ChatCompletion_StructuredViaForcedTool(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "respond_profile", gjson.GetBytes(body, "tool_choice.name").String())
		assert.Equal(t, "tool", gjson.GetBytes(body, "tool_choice.type").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
			"content": [{"type": "tool_use", "id": "toolu_1", "name": "respond_profile", "input": {"goal": "5k", "days": 3}}],
			"stop_reason": "tool_use", "stop_sequence": null,
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	})

	c, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Model:          "claude-3-5-haiku-latest",
		ResponseSchema: &provider.StructuredOutput{Name: "profile", Schema: profileSchema()},
	})
	require.NoError(t, err)
	assert.Empty(t, c.ToolCalls)
	got, err := provider.Decode[profile](c)
	require.NoError(t, err)
	assert.Equal(t, profile{Goal: "5k", Days: 3}, got)
}

func TestProvider_ChatCompletion_ToolUse(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_3", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
			"content": [
				{"type": "text", "text": "Let me check."},
				{"type": "tool_use", "id": "toolu_2", "name": "get_workout", "input": {"date": "2024-05-01"}}
			],
			"stop_reason": "tool_use", "stop_sequence": null,
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	})

	c, err := p.ChatCompletion(context.Background(), provider.CompletionParams{Model: "claude-3-5-haiku-latest"})
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", c.Content)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "toolu_2", c.ToolCalls[0].ID)
	assert.JSONEq(t, `{"date":"2024-05-01"}`, c.ToolCalls[0].Arguments)
}

func TestProvider_ChatCompletion_Overloaded(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`)
	})
	_, err := p.ChatCompletion(context.Background(), provider.CompletionParams{Model: "claude-3-5-haiku-latest"})
	require.Error(t, err)
	assert.True(t, api.IsTransient(err))
}
