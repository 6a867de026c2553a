package models

import (
	"context"
	"testing"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) provider.Provider {
	return provider.Func(func(context.Context, provider.CompletionParams) (provider.Completion, error) {
		return provider.Completion{Content: name}, nil
	})
}

func TestRouter_LongestPrefixWins(t *testing.T) {
	r := NewRouter().
		Add("gpt-", named("openai")).
		Add("gpt-4o-mini", named("mini")).
		Add("claude-", named("anthropic"))

	for model, want := range map[string]string{
		"gpt-4o":            "openai",
		"gpt-4o-mini":       "mini",
		"claude-3-5-sonnet": "anthropic",
	} {
		c, err := r.ChatCompletion(context.Background(), provider.CompletionParams{Model: model})
		require.NoError(t, err)
		assert.Equal(t, want, c.Content, model)
	}
}

func TestRouter_Replace(t *testing.T) {
	r := NewRouter().Add("gpt-", named("a")).Add("gpt-", named("b"))
	p, ok := r.Get("gpt-4")
	require.True(t, ok)
	c, _ := p.ChatCompletion(context.Background(), provider.CompletionParams{})
	assert.Equal(t, "b", c.Content)
}

func TestRouter_UnknownModel(t *testing.T) {
	r := NewRouter().Add("gpt-", named("openai"))
	_, err := r.ChatCompletion(context.Background(), provider.CompletionParams{Model: "llama-3"})
	var ce *api.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "llama-3", ce.Name)
	assert.Contains(t, ce.Reason, "gpt-")
}
