package memory

import (
	"context"
	"testing"

	"github.com/aparry3/gymtext-sub007/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Prompts(t *testing.T) {
	s := New()
	_, err := s.GetPrompts(context.Background(), "chat")
	assert.ErrorIs(t, err, store.ErrNotFound)

	s.SetPrompts(map[string]store.Prompts{"chat": {System: "You are a coach."}})
	p, err := s.GetPrompts(context.Background(), "chat")
	require.NoError(t, err)
	assert.Equal(t, "You are a coach.", p.System)
}

func TestStore_Configs(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetLatest(ctx, "chat")
	assert.ErrorIs(t, err, store.ErrNotFound)

	v1, err := s.Create(ctx, store.NewAgentConfig{ID: "chat", SystemPrompt: "v1"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	temp := 0.2
	v2, err := s.Create(ctx, store.NewAgentConfig{ID: "chat", SystemPrompt: "v2", Model: "gpt-4o", Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	latest, err := s.GetLatest(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, "v2", latest.SystemPrompt)
	assert.Equal(t, "gpt-4o", latest.Model)
	require.NotNil(t, latest.Temperature)
	assert.InDelta(t, 0.2, *latest.Temperature, 1e-9)

	_, err = s.Create(ctx, store.NewAgentConfig{ID: "chat"})
	assert.Error(t, err)
}
