package api

import (
	"errors"
	"fmt"
)

// ErrCallbackFailed is matched by CallbackError.
var ErrCallbackFailed = errors.New("callback failed")

// ConfigurationError reports a reference to something that was never
// registered, or a definition that cannot be built.
type ConfigurationError struct {
	Kind   string
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %q: %s", e.Kind, e.Name, e.Reason)
}

// ValidationError is returned when output still fails validation after all
// retries are spent.
type ValidationError struct {
	Subject  string
	Attempts int
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("validation failed for %s after %d attempt(s): %v", e.Subject, e.Attempts, e.Err)
	}
	return fmt.Sprintf("validation failed for %s: %v", e.Subject, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ToolExecutionError wraps a failure raised by a tool.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// CallbackError wraps a failure raised by a post-invocation callback.
type CallbackError struct {
	Callback string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %s failed: %v", e.Callback, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

func (e *CallbackError) Is(target error) bool { return target == ErrCallbackFailed }

// SubAgentBatchError reports the first failing entry of a sub-agent batch.
type SubAgentBatchError struct {
	Batch int
	Key   string
	Err   error
}

func (e *SubAgentBatchError) Error() string {
	return fmt.Sprintf("sub-agent batch %d entry %q failed: %v", e.Batch, e.Key, e.Err)
}

func (e *SubAgentBatchError) Unwrap() error { return e.Err }

// TransientProviderError marks a model call failure that may succeed on retry:
// timeouts, rate limits and 5xx responses.
type TransientProviderError struct {
	Provider string
	Err      error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Provider, e.Err)
}

func (e *TransientProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is, or wraps, a TransientProviderError.
func IsTransient(err error) bool {
	var te *TransientProviderError
	return errors.As(err, &te)
}
