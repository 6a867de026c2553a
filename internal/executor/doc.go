// Package executor drives the tool loop of tool-enabled agents.
//
// A loop alternates model calls and tool executions until the model answers
// without requesting tools or the iteration bound is reached:
//
//	model ─► tool calls? ──no──► done (response + accumulated messages)
//	  ▲          │yes
//	  │          ▼
//	  │   run calls one at a time, lowest priority value first,
//	  │   appending a tool message for every call
//	  │          │
//	  └── continuation prompt (depends on the last tool type and
//	      whether anything was already sent to the user)
//
// Tool failures never abort the loop. The failing call is answered with an
// "Error: ..." tool message so the model can recover, and an apology is added
// to the user-facing messages. Running out of iterations is a soft stop: the
// loop returns the last user-facing message, or a fallback reply.
package executor
