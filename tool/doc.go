/*
Package tool provides the tools agents can call and the registry that binds
them to an invocation.

# Design Decisions

  - Explicit handlers: a tool is a function over its JSON arguments, bound to
    a typed struct with Bind when convenient
  - Schema generation: argument schemas are reflected from Go structs with
    ParametersOf
  - Functional options: definitions are configured with opts
  - Runtime binding: the registry hands every tool the RuntimeContext of the
    invocation that called it

# Key Concepts

 1. Definition
    A registered tool:
    - Name: identifier the model calls
    - Description: what the model is told the tool does
    - Schema: JSON schema of the arguments
    - Priority: lower values run first when one reply calls several tools
    - Type: Query tools fetch data, Action tools change state

 2. Immediate messages
    With ImmediateMessage set, the schema gains a "message" argument. The
    registry sends it to the user before the tool runs and strips it from the
    arguments the tool sees.

 3. Callable
    CreateTools resolves names into Callables bound to a RuntimeContext.
    Call validates the arguments, recovers panics and wraps failures in
    api.ToolExecutionError.

# Usage Examples

	type lookup struct {
		Date string `json:"date" jsonschema:"description=Date as YYYY-MM-DD"`
	}

	getWorkout := tool.Must("get_workout",
		func(ctx context.Context, args gjson.Result, rc tool.RuntimeContext) (tool.Result, error) {
			in, err := tool.Bind[lookup](args)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.Result{Response: plans.Describe(rc.UserID, in.Date)}, nil
		},
		tool.Description("Returns the workout planned for a date."),
		tool.ParametersOf[lookup](),
		tool.Priority(1),
	)

	reg := tool.NewRegistry()
	if err := reg.Register(getWorkout); err != nil {
		return err
	}
	callables, err := reg.CreateTools([]string{"get_workout"}, tool.RuntimeContext{UserID: "u1"})

# Thread Safety

The registry is safe for concurrent use. Tool functions run one call at a
time within an invocation but may run concurrently across invocations.
*/
package tool
