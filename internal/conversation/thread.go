// Package conversation tracks the messages of one agent invocation as it
// moves through model calls and tool executions.
package conversation

import (
	"slices"

	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/provider"
)

// Thread is an ordered message history with token accounting. It is not safe
// for concurrent use.
type Thread struct {
	messages []messages.Message
	usage    provider.Usage
}

// New starts a thread seeded with the given messages.
func New(seed ...messages.Message) *Thread {
	return &Thread{messages: slices.Clone(seed)}
}

// Messages returns a copy of every message.
func (t *Thread) Messages() []messages.Message {
	return slices.Clone(t.messages)
}

func (t *Thread) Add(msgs ...messages.Message) {
	t.messages = append(t.messages, msgs...)
}

// AddCompletion records a model reply and its token usage.
func (t *Thread) AddCompletion(c provider.Completion) {
	t.messages = append(t.messages, c.Message())
	t.usage.Add(c.Usage)
}

func (t *Thread) Usage() provider.Usage { return t.usage }
