package uuidx

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a version 7 UUID, so ids sort by creation time.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString is New rendered as a string.
func NewString() string {
	return New().String()
}

// CallID returns an id in the shape providers use for tool calls.
func CallID() string {
	return "call_" + strings.ReplaceAll(NewString(), "-", "")
}
