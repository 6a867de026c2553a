package executor

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/internal/conversation"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/pkg/uuidx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/tool"
)

// DefaultMaxIterations bounds the number of model calls in one loop.
const DefaultMaxIterations = 10

const (
	// FallbackReply is returned when the loop runs out of iterations before
	// producing anything for the user.
	FallbackReply = "Sorry, I got a bit tangled up there. Could you send that again?"
	// ToolFailureReply is added to the user-facing messages when a tool fails.
	ToolFailureReply = "Sorry, something went wrong while I was working on that."

	continueAfterQuery = "Use the tool results above to answer my last message. " +
		"Only call another tool if you still need more information."
	continueAfterAction = "The requested change has been made. " +
		"Confirm it to me in one short message, or call another tool if more work is needed."
	continueAfterSent = "I have already been sent a message about this, so do not repeat it. " +
		"Reply only with anything that is still missing, or with a brief wrap-up."
)

// Outcome is the result of a completed loop.
type Outcome struct {
	Response   string
	Messages   []string
	ToolCalls  []api.ToolCallRecord
	Iterations int
	// Exhausted is set when the loop stopped at the iteration bound.
	Exhausted bool
	Usage     provider.Usage
}

// ToolLoop runs a bound model against a set of callable tools.
type ToolLoop struct {
	Model provider.Model
	Tools []tool.Callable
	// Priority orders the tool calls of one model reply. It defaults to the
	// priorities of Tools.
	Priority      func(name string) int
	MaxIterations int
	Logger        *slog.Logger
}

// Run executes the loop starting from seed, which normally holds the system
// prompt, history, context and the user's message.
func (l *ToolLoop) Run(ctx context.Context, seed []messages.Message) (Outcome, error) {
	if l.Model == nil {
		return Outcome{}, errors.New("tool loop has no model")
	}
	maxIter := cmp.Or(l.MaxIterations, DefaultMaxIterations)
	logger := cmp.Or(l.Logger, slog.Default()).With(slogx.LoggerName("gymtext.toolloop"))

	byName := make(map[string]tool.Callable, len(l.Tools))
	for _, c := range l.Tools {
		byName[c.Name()] = c
	}
	priority := l.Priority
	if priority == nil {
		priority = func(name string) int {
			if c, ok := byName[name]; ok {
				return c.Priority()
			}
			return tool.LowestPriority
		}
	}

	thread := conversation.New(seed...)
	var out Outcome

	for out.Iterations < maxIter {
		out.Iterations++
		completion, err := l.Model.Invoke(ctx, thread.Messages())
		if err != nil {
			return Outcome{}, err
		}
		if slices.ContainsFunc(completion.ToolCalls, func(c messages.ToolCall) bool { return c.ID == "" }) {
			completion.ToolCalls = slices.Clone(completion.ToolCalls)
			for i := range completion.ToolCalls {
				if completion.ToolCalls[i].ID == "" {
					completion.ToolCalls[i].ID = uuidx.CallID()
				}
			}
		}
		thread.AddCompletion(completion)

		if len(completion.ToolCalls) == 0 {
			out.Response = completion.Content
			out.Usage = thread.Usage()
			return out, nil
		}

		calls := slices.Clone(completion.ToolCalls)
		slices.SortStableFunc(calls, func(a, b messages.ToolCall) int {
			return cmp.Compare(priority(a.Name), priority(b.Name))
		})

		var lastType tool.Type
		sentThisIteration := false
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}

			record := api.ToolCallRecord{ID: call.ID, Name: call.Name, Arguments: call.Arguments}
			c, ok := byName[call.Name]
			if !ok {
				logger.WarnContext(ctx, "model requested an unavailable tool", slog.String("tool", call.Name))
				record.Skipped = true
				record.Error = "unknown tool"
				thread.Add(messages.ToolResponse(call.ID, call.Name, "Error: tool "+call.Name+" is not available"))
				out.ToolCalls = append(out.ToolCalls, record)
				continue
			}

			start := time.Now()
			res, err := c.Call(ctx, call.Arguments)
			record.Duration = time.Since(start)
			if len(res.Sent) > 0 {
				sentThisIteration = true
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Outcome{}, ctxErr
				}
				record.Error = err.Error()
				thread.Add(messages.ToolResponse(call.ID, call.Name, "Error: "+err.Error()))
				out.Messages = append(out.Messages, ToolFailureReply)
				out.ToolCalls = append(out.ToolCalls, record)
				continue
			}

			record.Response = res.Response
			record.Metadata = res.Metadata
			thread.Add(messages.ToolResponse(call.ID, call.Name, res.Response))
			out.Messages = append(out.Messages, res.Messages...)
			out.ToolCalls = append(out.ToolCalls, record)
			if len(res.Messages) > 0 {
				sentThisIteration = true
			}
			lastType = res.Type
		}

		thread.Add(messages.User(continuation(lastType, sentThisIteration)))
	}

	out.Exhausted = true
	out.Usage = thread.Usage()
	out.Response = FallbackReply
	if n := len(out.Messages); n > 0 {
		out.Response = out.Messages[n-1]
	}
	logger.WarnContext(ctx, "tool loop reached its iteration bound", slog.Int("iterations", out.Iterations))
	return out, nil
}

func continuation(lastType tool.Type, sent bool) string {
	switch {
	case lastType == tool.Action && sent:
		return continueAfterSent
	case lastType == tool.Action:
		return continueAfterAction
	default:
		return continueAfterQuery
	}
}
