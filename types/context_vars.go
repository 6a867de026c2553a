// Package types holds small value types shared by tools, callbacks and agents.
package types

import "github.com/goccy/go-json"

// ContextVars carries per-invocation values such as the user id or timezone
// to tools and callbacks. It is not safe for concurrent modification.
type ContextVars map[string]any

// String returns the variables as JSON, or "" when they cannot be encoded.
func (cv ContextVars) String() string {
	b, err := json.Marshal(cv)
	if err != nil {
		return ""
	}
	return string(b)
}

// GetString returns the string stored under key, or "".
func (cv ContextVars) GetString(key string) string {
	s, _ := cv[key].(string)
	return s
}
