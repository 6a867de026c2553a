package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/pkg/jsonx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const providerName = "openai"

var _ provider.Provider = (*Provider)(nil)

var schemaNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	return &Provider{
		client: openai.NewClient(options...),
	}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (openai.ChatCompletionNewParams, error) {
	tools := make([]openai.ChatCompletionToolParam, len(params.Tools))
	for i, tool := range params.Tools {
		if tool.Parameters == nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("tool %s has no parameter schema", tool.Name)
		}
		jv, err := jsonx.ToDynamicJSON(tool.Parameters)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to convert schema of tool %s: %w", tool.Name, err)
		}

		def := openai.FunctionDefinitionParam{
			Name:       openai.String(tool.Name),
			Parameters: openai.F(shared.FunctionParameters(jv)),
		}
		if strings.TrimSpace(tool.Description) != "" {
			def.Description = openai.String(tool.Description)
		}
		tools[i] = openai.ChatCompletionToolParam{
			Type:     openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(def),
		}
	}

	req := openai.ChatCompletionNewParams{
		Messages:    openai.F(messagesToOpenAI(params.Messages)),
		Model:       openai.F(openai.ChatModel(params.Model)),
		N:           openai.Int(1),
		Temperature: openai.Float(params.Temperature),
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	if len(tools) > 0 {
		req.Tools = openai.F(tools)
		// tool calls run one at a time in priority order
		req.ParallelToolCalls = openai.Bool(false)
	}

	if rs := params.ResponseSchema; rs != nil && rs.Schema != nil {
		schema, err := jsonx.ToDynamicJSON(rs.Schema)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to convert response schema %s: %w", rs.Name, err)
		}
		js := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   openai.F(schemaName(rs.Name)),
			Schema: openai.F[any](schema),
			Strict: openai.Bool(true),
		}
		if rs.Description != "" {
			js.Description = openai.String(rs.Description)
		}
		req.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](openai.ResponseFormatJSONSchemaParam{
			Type:       openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
			JSONSchema: openai.F(js),
		})
	}
	return req, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (provider.Completion, error) {
	req, err := p.buildRequest(&params)
	if err != nil {
		return provider.Completion{}, fmt.Errorf("failed to build request: %w", err)
	}

	chat, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return provider.Completion{}, wrapErr(err)
	}
	return completionFromOpenAI(chat)
}

func wrapErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return &api.TransientProviderError{Provider: providerName, Err: err}
		}
	}
	return err
}

func schemaName(name string) string {
	if name == "" {
		return "response"
	}
	return schemaNameSanitizer.ReplaceAllString(name, "_")
}

func messagesToOpenAI(msgs []messages.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case messages.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case messages.RoleUser:
			result = append(result, openai.UserMessage(msg.Content))
		case messages.RoleTool:
			result = append(result, openai.ToolMessage(msg.ToolCallID, msg.Content))
		case messages.RoleAssistant:
			if !msg.HasToolCalls() {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			tcd := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				tcd[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   openai.String(tc.ID),
					Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
					Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      openai.String(tc.Name),
						Arguments: openai.String(tc.Arguments),
					}),
				}
			}
			am := openai.ChatCompletionMessageParam{
				Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
				ToolCalls: openai.F[any](tcd),
			}
			if msg.Content != "" {
				am.Content = openai.F[any](msg.Content)
			}
			result = append(result, am)
		default:
			panic(fmt.Sprintf("unknown message role %q", msg.Role))
		}
	}
	return result
}

func completionFromOpenAI(chat *openai.ChatCompletion) (provider.Completion, error) {
	if len(chat.Choices) == 0 {
		return provider.Completion{}, errors.New("openai returned no choices")
	}

	choice := chat.Choices[0].Message
	out := provider.Completion{
		Content: choice.Content,
		Usage: provider.Usage{
			PromptTokens:     chat.Usage.PromptTokens,
			CompletionTokens: chat.Usage.CompletionTokens,
			TotalTokens:      chat.Usage.TotalTokens,
		},
	}
	if choice.Refusal != "" && out.Content == "" {
		return provider.Completion{}, fmt.Errorf("openai refused: %s", choice.Refusal)
	}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, messages.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}
