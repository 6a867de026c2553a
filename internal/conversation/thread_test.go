package conversation

import (
	"testing"

	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThread(t *testing.T) {
	t.Run("seed is copied", func(t *testing.T) {
		seed := []messages.Message{messages.System("sys"), messages.User("hi")}
		th := New(seed...)
		seed[1].Content = "changed"
		require.Len(t, th.Messages(), 2)
		assert.Equal(t, "hi", th.Messages()[1].Content)
	})

	t.Run("messages returns a copy", func(t *testing.T) {
		th := New(messages.User("a"))
		msgs := th.Messages()
		msgs[0].Content = "changed"
		assert.Equal(t, "a", th.Messages()[0].Content)
	})

	t.Run("add completion tracks usage", func(t *testing.T) {
		th := New()
		th.AddCompletion(provider.Completion{Content: "x", Usage: provider.Usage{TotalTokens: 5}})
		th.AddCompletion(provider.Completion{ToolCalls: []messages.ToolCall{{ID: "1"}}, Usage: provider.Usage{TotalTokens: 3}})
		th.Add(messages.ToolResponse("1", "get_workout", "legs"))
		assert.Equal(t, int64(8), th.Usage().TotalTokens)

		msgs := th.Messages()
		require.Len(t, msgs, 3)
		assert.True(t, msgs[1].HasToolCalls())
		assert.Equal(t, "1", msgs[2].ToolCallID)
	})
}
