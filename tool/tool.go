package tool

import (
	"context"
	"errors"
	"math"

	"github.com/aparry3/gymtext-sub007/messaging"
	"github.com/aparry3/gymtext-sub007/pkg/stdx"
	"github.com/aparry3/gymtext-sub007/types"
	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// LowestPriority is the priority of tools that never set one. Lower values
// run first.
const LowestPriority = math.MaxInt

// Type tells the tool loop how to continue after the tool ran.
type Type string

const (
	// Query tools fetch information the model still has to relay.
	Query Type = "query"
	// Action tools change state and may already have told the user.
	Action Type = "action"
)

// RuntimeContext is what a tool sees of the invocation it runs in.
type RuntimeContext struct {
	UserID string
	Sender messaging.Sender
	Vars   types.ContextVars
}

// ExecuteFunc runs a tool. args holds the model's arguments.
type ExecuteFunc func(ctx context.Context, args gjson.Result, rc RuntimeContext) (Result, error)

// Result is what a tool returns to the loop.
type Result struct {
	// Response is fed back to the model as the tool message.
	Response string
	// Type overrides the definition's type for this call when set.
	Type Type
	// Messages were produced for the user and are accumulated on the agent result.
	Messages []string
	// Sent lists immediate messages already delivered before the tool ran.
	Sent []string
	// Metadata is kept on the call record and never shown to the model.
	Metadata map[string]any
}

// Definition describes a registered tool.
type Definition struct {
	Name             string
	Description      string
	Schema           *jsonschema.Schema
	Priority         int
	Type             Type
	ImmediateMessage bool
	Execute          ExecuteFunc
}

type Option = opts.Option[Definition]

var (
	Description = opts.ForName[Definition, string]("Description")
	Priority    = opts.ForName[Definition, int]("Priority")
	Kind        = opts.ForName[Definition, Type]("Type")
	// ImmediateMessage adds a "message" argument the model fills with a
	// short note that is sent to the user before the tool runs.
	ImmediateMessage = opts.ForName[Definition, bool]("ImmediateMessage")
	Parameters       = opts.ForName[Definition, *jsonschema.Schema]("Schema")
)

// ParametersOf reflects T into the tool's argument schema.
func ParametersOf[T any]() Option {
	return opts.Type[Definition](func(d *Definition) error {
		d.Schema = SchemaFor[T]()
		return nil
	})
}

// New builds a definition. Tools default to Query type and LowestPriority.
func New(name string, execute ExecuteFunc, options ...Option) (Definition, error) {
	def := Definition{
		Name:     name,
		Priority: LowestPriority,
		Type:     Query,
		Execute:  execute,
	}
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if err := def.validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Must is New that panics on error.
func Must(name string, execute ExecuteFunc, options ...Option) Definition {
	return stdx.Must1(New(name, execute, options...))
}

func (d Definition) validate() error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if d.Execute == nil {
		return errors.New("tool " + d.Name + " has no execute function")
	}
	return nil
}

var argsReflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// SchemaFor reflects T into an object schema without the $schema marker.
func SchemaFor[T any]() *jsonschema.Schema {
	var v T
	s := argsReflector.Reflect(&v)
	s.Version = ""
	return s
}

// Bind decodes tool arguments into T.
func Bind[T any](args gjson.Result) (T, error) {
	var out T
	raw := args.Raw
	if raw == "" {
		raw = "{}"
	}
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}

func emptyObjectSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
}

const messageProperty = "message"

// withMessageProperty copies s and adds the required immediate-message
// argument. The original schema is left untouched.
func withMessageProperty(s *jsonschema.Schema) *jsonschema.Schema {
	if s == nil {
		s = emptyObjectSchema()
	}
	cp := *s
	cp.Properties = orderedmap.New[string, *jsonschema.Schema]()
	cp.Properties.Set(messageProperty, &jsonschema.Schema{
		Type:        "string",
		Description: "A short message to send the user right away, acknowledging what you are about to do.",
	})
	if s.Properties != nil {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Key != messageProperty {
				cp.Properties.Set(pair.Key, pair.Value)
			}
		}
	}
	cp.Required = []string{messageProperty}
	for _, r := range s.Required {
		if r != messageProperty {
			cp.Required = append(cp.Required, r)
		}
	}
	return &cp
}
