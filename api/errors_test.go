package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name string
		err  error
	}{
		{"validation", &ValidationError{Subject: "agent chat", Attempts: 2, Err: cause}},
		{"tool", &ToolExecutionError{Tool: "get_workout", Err: cause}},
		{"callback", &CallbackError{Callback: "notify", Err: cause}},
		{"batch", &SubAgentBatchError{Batch: 1, Key: "profile", Err: cause}},
		{"transient", &TransientProviderError{Provider: "openai", Err: cause}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, cause)
			assert.Contains(t, wrapped.Error(), "cause")
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := fmt.Errorf("build: %w", &ConfigurationError{Kind: "agent", Name: "coach", Reason: "not registered"})
	var ce *ConfigurationError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, "coach", ce.Name)
	assert.Equal(t, `configuration error: agent "coach": not registered`, ce.Error())
}

func TestCallbackError_Is(t *testing.T) {
	err := &CallbackError{Callback: "x", Err: errors.New("y")}
	assert.ErrorIs(t, err, ErrCallbackFailed)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("wrap: %w", &TransientProviderError{Provider: "anthropic", Err: errors.New("429")})))
	assert.False(t, IsTransient(errors.New("plain")))
}
