// Package invocationlog records agent invocations without blocking them.
//
// Writes go through Detached, which hands each record to a Sink on its own
// goroutine under a context that survives the caller's cancellation. Sink
// failures are logged and otherwise ignored.
package invocationlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// DefaultWriteTimeout bounds a single sink write.
const DefaultWriteTimeout = 10 * time.Second

// Record is one agent invocation.
type Record struct {
	ID        uuid.UUID          `json:"id"`
	Agent     string             `json:"agent"`
	UserID    string             `json:"user_id,omitempty"`
	Input     string             `json:"input"`
	Messages  []messages.Message `json:"messages"`
	Result    api.Result         `json:"result"`
	Error     string             `json:"error,omitempty"`
	Duration  time.Duration      `json:"duration"`
	Timestamp strfmt.DateTime    `json:"timestamp"`
	// Iterations counts tool loop rounds, zero for direct calls. Exhausted
	// is set when the loop stopped at its bound and answered with a fallback.
	Iterations int            `json:"iterations,omitempty"`
	Exhausted  bool           `json:"exhausted,omitempty"`
	Usage      provider.Usage `json:"usage"`
}

// Sink persists records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Write(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Detached writes records in the background.
type Detached struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewDetached(sink Sink) *Detached {
	return &Detached{
		sink:    sink,
		timeout: DefaultWriteTimeout,
		logger:  slog.Default().With(slogx.LoggerName("gymtext.invocationlog")),
	}
}

// Log schedules rec for writing and returns immediately.
func (d *Detached) Log(ctx context.Context, rec Record) {
	if d == nil || d.sink == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(ctx, "invocation log sink panicked", slogx.Agent(rec.Agent), slog.Any("panic", r))
			}
		}()

		wctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.sink.Write(wctx, rec); err != nil {
			d.logger.ErrorContext(ctx, "failed to write invocation log",
				slogx.Agent(rec.Agent), slogx.Stringer("invocation", rec.ID), slogx.Error(err))
		}
	}()
}

// Wait blocks until every scheduled write has finished.
func (d *Detached) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
