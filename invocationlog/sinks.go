package invocationlog

import (
	"context"
	"log/slog"

	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// SlogSink writes a summary of each record to a logger.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Write(ctx context.Context, rec Record) error {
	lg := s.Logger
	if lg == nil {
		lg = slog.Default()
	}
	attrs := []any{
		slogx.Agent(rec.Agent),
		slogx.Stringer("invocation", rec.ID),
		slog.Duration("duration", rec.Duration),
		slog.Int("messages", len(rec.Messages)),
		slog.Int("tool_calls", len(rec.Result.ToolCalls)),
		slog.Int64("tokens", rec.Usage.TotalTokens),
	}
	if rec.Exhausted {
		attrs = append(attrs, slog.Int("iterations", rec.Iterations), slog.Bool("exhausted", true))
	}
	if rec.Error != "" {
		lg.WarnContext(ctx, "agent invocation failed", append(attrs, slog.String("error", rec.Error))...)
		return nil
	}
	lg.InfoContext(ctx, "agent invocation", attrs...)
	return nil
}

// DefaultSubject is where NATSSink publishes when no subject is configured.
const DefaultSubject = "gymtext.agents.invocations"

// NATSSink publishes each record as JSON to a subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(conn *nats.Conn, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) Write(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject+"."+rec.Agent, data)
}

// Multi writes to every sink and returns the first error.
type Multi []Sink

func (m Multi) Write(ctx context.Context, rec Record) error {
	var first error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
