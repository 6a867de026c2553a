package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/pkg/uuidx"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds a single model call when Settings.Timeout is unset.
const DefaultTimeout = 2 * time.Minute

// Settings are the per-agent model parameters.
type Settings struct {
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// Model is a provider bound to settings, tools and an optional output schema.
type Model interface {
	Invoke(ctx context.Context, msgs []messages.Message) (Completion, error)
}

// Bind returns a Model that issues requests with the given settings. With a
// schema, every reply is checked to be a JSON object before it is returned.
func Bind(p Provider, settings Settings, tools []ToolSpec, schema *StructuredOutput) Model {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	return &boundModel{
		provider: p,
		settings: settings,
		tools:    tools,
		schema:   schema,
	}
}

type boundModel struct {
	provider Provider
	settings Settings
	tools    []ToolSpec
	schema   *StructuredOutput
}

func (m *boundModel) Invoke(ctx context.Context, msgs []messages.Message) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, m.settings.Timeout)
	defer cancel()

	completion, err := m.provider.ChatCompletion(ctx, CompletionParams{
		RunID:          uuidx.New(),
		Model:          m.settings.Model,
		Temperature:    m.settings.Temperature,
		MaxTokens:      m.settings.MaxTokens,
		Messages:       msgs,
		Tools:          m.tools,
		ResponseSchema: m.schema,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return Completion{}, &api.TransientProviderError{
				Provider: m.settings.Model,
				Err:      fmt.Errorf("model call exceeded %s: %w", m.settings.Timeout, err),
			}
		}
		return Completion{}, err
	}

	if m.schema != nil && len(completion.ToolCalls) == 0 {
		if !gjson.Valid(completion.Content) || !gjson.Parse(completion.Content).IsObject() {
			return Completion{}, &api.ValidationError{
				Subject: "structured output " + m.schema.Name,
				Err:     errors.New("response is not a JSON object"),
			}
		}
	}
	return completion, nil
}

// Decode unmarshals a structured completion into T.
func Decode[T any](c Completion) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(c.Content), &out); err != nil {
		return out, &api.ValidationError{Subject: "structured output", Err: err}
	}
	return out, nil
}
