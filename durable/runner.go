package durable

import (
	"context"

	"github.com/aparry3/gymtext-sub007/workout"
	"go.temporal.io/sdk/client"
)

// Runner runs a workout operation to completion.
type Runner interface {
	RunWorkout(ctx context.Context, req workout.Request) (Report, error)
}

var (
	_ Runner = Local{}
	_ Runner = Remote{}
)

// Local runs the chain in process.
type Local struct {
	Chain *workout.Chain
}

func (l Local) RunWorkout(ctx context.Context, req workout.Request) (Report, error) {
	outcome, err := l.Chain.Run(ctx, req)
	if err != nil {
		return Report{}, err
	}
	return ReportOf(req.Operation, outcome), nil
}

// Remote starts a workflow and waits for it.
type Remote struct {
	Client client.Client
}

func (r Remote) RunWorkout(ctx context.Context, req workout.Request) (Report, error) {
	return Start(ctx, r.Client, req)
}
