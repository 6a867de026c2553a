// Package anthropic implements provider.Provider on top of the Anthropic
// Messages API.
//
// Structured output is requested by forcing a single tool whose input
// schema is the response schema; the tool input becomes the completion
// content.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/pkg/jsonx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
)

const (
	providerName = "anthropic"
	// DefaultMaxTokens is sent when a request leaves MaxTokens unset; the
	// Messages API requires one.
	DefaultMaxTokens = 4096
)

var _ provider.Provider = (*Provider)(nil)

type Provider struct {
	client *anthropic.Client
}

func New(options ...option.RequestOption) *Provider {
	client := anthropic.NewClient(options...)
	return &Provider{client: &client}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (anthropic.MessageNewParams, error) {
	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(params.Model),
		Messages:    buildMessages(params.Messages),
		MaxTokens:   int64(params.MaxTokens),
		Temperature: anthropic.Float(params.Temperature),
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if system := systemBlocks(params.Messages); len(system) > 0 {
		req.System = system
	}

	for _, tool := range params.Tools {
		t, err := buildTool(tool.Name, tool.Description, tool.Parameters)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		req.Tools = append(req.Tools, t)
	}

	if rs := params.ResponseSchema; rs != nil && rs.Schema != nil {
		name := structuredToolName(rs.Name)
		t, err := buildTool(name, rs.Description, rs.Schema)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		req.Tools = append(req.Tools, t)
		req.ToolChoice = anthropic.ToolChoiceParamOfTool(name)
	}
	return req, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (provider.Completion, error) {
	req, err := p.buildRequest(&params)
	if err != nil {
		return provider.Completion{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Messages.New(ctx, req)
	if err != nil {
		return provider.Completion{}, wrapErr(err)
	}

	out := provider.Completion{
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	var text strings.Builder
	structured := ""
	if params.ResponseSchema != nil {
		structured = structuredToolName(params.ResponseSchema.Name)
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args, err := json.Marshal(tu.Input)
			if err != nil {
				return provider.Completion{}, fmt.Errorf("failed to encode tool input for %s: %w", tu.Name, err)
			}
			if structured != "" && tu.Name == structured {
				out.Content = string(args)
				return out, nil
			}
			out.ToolCalls = append(out.ToolCalls, messages.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: string(args)})
		}
	}
	out.Content = text.String()
	return out, nil
}

func wrapErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return &api.TransientProviderError{Provider: providerName, Err: err}
		}
	}
	return fmt.Errorf("anthropic api error: %w", err)
}

func structuredToolName(name string) string {
	if name == "" {
		return "respond"
	}
	return "respond_" + strings.Map(func(r rune) rune {
		if r == ' ' || r == '.' {
			return '_'
		}
		return r
	}, name)
}

func buildTool(name, description string, schema *jsonschema.Schema) (anthropic.ToolUnionParam, error) {
	input := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if schema != nil {
		params, err := jsonx.ToDynamicJSON(schema)
		if err != nil {
			return anthropic.ToolUnionParam{}, fmt.Errorf("failed to convert schema of tool %s: %w", name, err)
		}
		if properties, ok := params["properties"]; ok {
			input.Properties = properties
		}
		if required, ok := params["required"].([]any); ok {
			for _, r := range required {
				if s, ok := r.(string); ok {
					input.Required = append(input.Required, s)
				}
			}
		}
	}
	tool := anthropic.ToolUnionParamOfTool(input, name)
	if description != "" && tool.OfTool != nil {
		tool.OfTool.Description = anthropic.String(description)
	}
	return tool, nil
}

func systemBlocks(msgs []messages.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range msgs {
		if m.Role == messages.RoleSystem && m.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	return blocks
}

// buildMessages maps the conversation onto alternating user and assistant
// turns. Consecutive tool results collapse into one user turn.
func buildMessages(msgs []messages.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case messages.RoleSystem:
			continue
		case messages.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, strings.HasPrefix(m.Content, "Error:")))
		case messages.RoleUser:
			flush()
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case messages.RoleAssistant:
			flush()
			var content []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any = map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		default:
			panic(fmt.Sprintf("unknown message role %q", m.Role))
		}
	}
	flush()
	return out
}
