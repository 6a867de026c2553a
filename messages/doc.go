// Package messages defines the chat messages exchanged with model providers.
//
// A conversation is a slice of Message values. System and user messages carry
// plain text; assistant messages carry text, tool calls, or both; tool
// messages answer exactly one tool call by id.
package messages
