// Package workout generates workouts in two phases.
//
// Phase one asks the model for the workout in prose together with its
// reasoning. Phase two converts that prose, concurrently, into the structured
// workout and into the text message sent to the user. Any failure restarts
// the whole pipeline, up to a fixed number of attempts.
package workout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
)

var (
	longFormOutput = &provider.StructuredOutput{
		Name:        "workout_long_form",
		Description: "A complete workout and the reasoning behind it",
		Schema:      tool.SchemaFor[LongForm](),
	}
	modifyOutput = &provider.StructuredOutput{
		Name:        "workout_modification",
		Description: "The workout after the requested changes",
		Schema:      tool.SchemaFor[ModifyLongForm](),
	}
	workoutOutput = &provider.StructuredOutput{
		Name:        "workout",
		Description: "A structured workout",
		Schema:      tool.SchemaFor[Workout](),
	}
)

// Chain runs workout operations.
type Chain struct {
	provider        provider.Provider
	settings        provider.Settings
	maxAttempts     int
	backoffBase     time.Duration
	messageMaxChars int
	sleep           func(ctx context.Context, d time.Duration) error
	logger          *slog.Logger
}

type Option = opts.Option[Chain]

var (
	Provider = opts.ForName[Chain, provider.Provider]("provider")
	// Model sets the parameters of every model call. Its Timeout bounds each
	// call separately.
	Model           = opts.ForName[Chain, provider.Settings]("settings")
	MaxAttempts     = opts.ForName[Chain, int]("maxAttempts")
	BackoffBase     = opts.ForName[Chain, time.Duration]("backoffBase")
	MessageMaxChars = opts.ForName[Chain, int]("messageMaxChars")
	Logger          = opts.ForName[Chain, *slog.Logger]("logger")
	// Sleep replaces the wait between attempts.
	Sleep = opts.ForName[Chain, func(context.Context, time.Duration) error]("sleep")
)

func New(options ...Option) (*Chain, error) {
	c := &Chain{
		maxAttempts:     DefaultMaxAttempts,
		backoffBase:     DefaultBackoffBase,
		messageMaxChars: DefaultMessageMaxChars,
		sleep:           sleepContext,
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}
	if c.provider == nil {
		return nil, errors.New("workout chain: a provider is required")
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With(slogx.LoggerName("gymtext.workout"))
	return c, nil
}

// Run validates req and runs the pipeline with retry. Modify runs may yield
// Unmodified; every other operation yields Modified.
func (c *Chain) Run(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, &api.ValidationError{Subject: "workout request", Err: err}
	}
	logger := c.logger.With(slog.String("operation", string(req.Operation)), slog.String("user_id", req.UserID))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		start := time.Now()
		outcome, err := c.once(ctx, req, attempt)
		if err == nil {
			logger.InfoContext(ctx, "workout generated", slog.Int("attempt", attempt), slogx.Elapsed(start))
			return outcome, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var cfgErr *api.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}

		lastErr = err
		logger.WarnContext(ctx, "workout attempt failed",
			slog.Int("attempt", attempt), slog.Int("max_attempts", c.maxAttempts),
			slog.Bool("transient", api.IsTransient(err)), slogx.Elapsed(start), slogx.Error(err))
		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, time.Duration(attempt)*c.backoffBase); err != nil {
			return nil, err
		}
	}
	return nil, &OperationFailedError{Operation: req.Operation, Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Chain) once(ctx context.Context, req Request, attempt int) (Outcome, error) {
	user, err := renderUserPrompt(req)
	if err != nil {
		return nil, &api.ConfigurationError{Kind: "prompt", Name: string(req.Operation), Reason: err.Error()}
	}
	seed := []messages.Message{messages.System(systemPrompt), messages.User(user)}

	var long ModifyLongForm
	if req.Operation == Modify {
		if long, err = structuredCall[ModifyLongForm](ctx, c, modifyOutput, seed); err != nil {
			return nil, err
		}
		if !long.WasModified {
			return Unmodified{Reason: long.Reasoning, Attempts: attempt}, nil
		}
	} else {
		lf, err := structuredCall[LongForm](ctx, c, longFormOutput, seed)
		if err != nil {
			return nil, err
		}
		long = ModifyLongForm{Description: lf.Description, Reasoning: lf.Reasoning, WasModified: true}
	}
	if strings.TrimSpace(long.Description) == "" {
		return nil, &api.ValidationError{Subject: "workout description", Err: errors.New("description is empty")}
	}

	var (
		workout Workout
		message string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		workout, err = c.convertStructured(gctx, req, long.Description)
		return err
	})
	g.Go(func() (err error) {
		message, err = c.convertMessage(gctx, long.Description)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Modified{Result{
		Structured:    workout,
		Message:       message,
		Description:   long.Description,
		Reasoning:     long.Reasoning,
		Modifications: long.Modifications,
		Attempts:      attempt,
	}}, nil
}

func structuredCall[T any](ctx context.Context, c *Chain, out *provider.StructuredOutput, msgs []messages.Message) (T, error) {
	var zero T
	completion, err := provider.Bind(c.provider, c.settings, nil, out).Invoke(ctx, msgs)
	if err != nil {
		return zero, err
	}
	return provider.Decode[T](completion)
}

func (c *Chain) convertStructured(ctx context.Context, req Request, description string) (Workout, error) {
	msgs := []messages.Message{messages.System(structuredPrompt), messages.User(description)}
	completion, err := provider.Bind(c.provider, c.settings, nil, workoutOutput).Invoke(ctx, msgs)
	if err != nil {
		return Workout{}, err
	}

	stamped, err := sjson.Set(completion.Content, "date", req.Date.String())
	if err != nil {
		return Workout{}, &api.ValidationError{Subject: "structured workout", Err: err}
	}
	var w Workout
	if err := json.Unmarshal([]byte(stamped), &w); err != nil {
		return Workout{}, &api.ValidationError{Subject: "structured workout", Err: err}
	}
	if len(w.Blocks) == 0 {
		return Workout{}, &api.ValidationError{Subject: "structured workout", Err: errors.New("workout has no blocks")}
	}
	return w, nil
}

func (c *Chain) convertMessage(ctx context.Context, description string) (string, error) {
	system, err := renderMessagePrompt(c.messageMaxChars)
	if err != nil {
		return "", &api.ConfigurationError{Kind: "prompt", Name: "message", Reason: err.Error()}
	}
	msgs := []messages.Message{messages.System(system), messages.User(description)}
	completion, err := provider.Bind(c.provider, c.settings, nil, nil).Invoke(ctx, msgs)
	if err != nil {
		return "", err
	}
	message := strings.TrimSpace(completion.Content)
	if message == "" {
		return "", &api.ValidationError{Subject: "workout message", Err: errors.New("message is empty")}
	}
	return message, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
