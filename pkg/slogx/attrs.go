// Package slogx holds the attribute helpers used across the runtime's structured logs.
package slogx

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	// KeyLoggerName is the attribute key naming the component that emitted a record.
	KeyLoggerName = "logger"
	// KeyAgent is the attribute key carrying the agent name.
	KeyAgent = "agent"
)

// Error returns an "error" attribute with the error message, or an empty
// attribute when err is nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Stringer renders a fmt.Stringer into a string attribute.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName tags a logger with the component it belongs to.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Agent tags a record with an agent name.
func Agent(name string) slog.Attr {
	return slog.String(KeyAgent, name)
}

// Elapsed records the time since start in milliseconds.
func Elapsed(start time.Time) slog.Attr {
	return slog.Int64("elapsed_ms", time.Since(start).Milliseconds())
}

// Truncated logs at most n bytes of value, which keeps prompts and model
// output from flooding the log.
func Truncated(key, value string, n int) slog.Attr {
	if n <= 0 || len(value) <= n {
		return slog.String(key, value)
	}
	return slog.String(key, value[:n]+"…")
}
