// Package messaging delivers text to the end user outside the normal
// request/response flow, e.g. an acknowledgement sent while a tool is still
// working.
package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// Sender delivers a message to the user of the current conversation.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, text string) error

func (f SenderFunc) SendMessage(ctx context.Context, text string) error { return f(ctx, text) }

// Discard logs messages instead of delivering them.
type Discard struct {
	Logger *slog.Logger
}

func (d Discard) SendMessage(ctx context.Context, text string) error {
	lg := d.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.DebugContext(ctx, "discarding outbound message", slogx.Truncated("text", text, 200))
	return nil
}

// Outbound is the payload published for each message.
type Outbound struct {
	To     string          `json:"to"`
	Body   string          `json:"body"`
	SentAt strfmt.DateTime `json:"sent_at"`
}

// NATSSender publishes messages for a single recipient to a NATS subject,
// where the SMS gateway picks them up.
type NATSSender struct {
	conn      *nats.Conn
	subject   string
	recipient string
}

func NewNATSSender(conn *nats.Conn, subject, recipient string) *NATSSender {
	return &NATSSender{conn: conn, subject: subject, recipient: recipient}
}

func (s *NATSSender) SendMessage(_ context.Context, text string) error {
	data, err := json.Marshal(Outbound{
		To:     s.recipient,
		Body:   text,
		SentAt: strfmt.DateTime(time.Now()),
	})
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, data)
}
