// Package api holds the types shared by every layer of the agent runtime:
// the Agent contract, the Result an invocation produces, and the error
// taxonomy callers match on with errors.As.
package api
