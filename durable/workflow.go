// Package durable runs workout operations as Temporal workflows, so a run
// survives process restarts and can be started from any service.
package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/pkg/uuidx"
	"github.com/aparry3/gymtext-sub007/workout"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

const (
	TaskQueue    = "gymtext-workouts"
	WorkflowName = "WorkoutWorkflow"
	ActivityName = "RunWorkout"

	// DefaultActivityTimeout covers every attempt of the chain, including
	// its backoff.
	DefaultActivityTimeout = 10 * time.Minute
)

// Error types reported on non-retryable application errors.
const (
	ErrTypeInvalidRequest  = "InvalidRequest"
	ErrTypeConfiguration   = "ConfigurationError"
	ErrTypeOperationFailed = "OperationFailedError"
)

// Report is the serializable form of a workout Outcome.
type Report struct {
	Operation workout.Operation `json:"operation"`
	Modified  bool              `json:"modified"`
	// Reason explains an unmodified modify run.
	Reason string          `json:"reason,omitempty"`
	Result *workout.Result `json:"result,omitempty"`
}

// ReportOf converts an outcome of op into a Report.
func ReportOf(op workout.Operation, outcome workout.Outcome) Report {
	switch o := outcome.(type) {
	case workout.Modified:
		res := o.Result
		return Report{Operation: op, Modified: true, Result: &res}
	case workout.Unmodified:
		return Report{Operation: op, Reason: o.Reason}
	}
	return Report{Operation: op}
}

// Workouts holds the workflow and the activity that runs the chain.
type Workouts struct {
	chain           *workout.Chain
	activityTimeout time.Duration
}

func NewWorkouts(chain *workout.Chain) *Workouts {
	return &Workouts{chain: chain, activityTimeout: DefaultActivityTimeout}
}

// WorkoutWorkflow runs one workout operation. The chain retries internally,
// so the activity is attempted once.
func (w *Workouts) WorkoutWorkflow(ctx workflow.Context, req workout.Request) (Report, error) {
	log := workflow.GetLogger(ctx)
	log.Info("running workout workflow", "operation", req.Operation, "user_id", req.UserID)

	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: w.activityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var report Report
	if err := workflow.ExecuteActivity(actx, ActivityName, req).Get(ctx, &report); err != nil {
		return Report{}, err
	}
	return report, nil
}

// RunWorkout is the activity executing the chain.
func (w *Workouts) RunWorkout(ctx context.Context, req workout.Request) (Report, error) {
	log := activity.GetLogger(ctx)
	log.Info("running workout chain", "operation", req.Operation)

	outcome, err := w.chain.Run(ctx, req)
	if err != nil {
		return Report{}, classify(err)
	}
	return ReportOf(req.Operation, outcome), nil
}

func classify(err error) error {
	var (
		verr   *api.ValidationError
		cfgErr *api.ConfigurationError
		failed *workout.OperationFailedError
	)
	switch {
	case errors.As(err, &failed):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeOperationFailed, err)
	case errors.As(err, &cfgErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeConfiguration, err)
	case errors.As(err, &verr):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidRequest, err)
	}
	return err
}

// Register adds the workflow and activity to a worker.
func (w *Workouts) Register(r worker.Registry) {
	r.RegisterWorkflowWithOptions(w.WorkoutWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	r.RegisterActivityWithOptions(w.RunWorkout, activity.RegisterOptions{Name: ActivityName})
}

// NewWorker creates a worker polling TaskQueue with the workflow registered.
func NewWorker(c client.Client, w *Workouts) worker.Worker {
	wk := worker.New(c, TaskQueue, worker.Options{})
	w.Register(wk)
	return wk
}

// Start begins a workout workflow and waits for its report.
func Start(ctx context.Context, c client.Client, req workout.Request) (Report, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("workout-%s-%s", req.Operation, uuidx.NewString()),
		TaskQueue: TaskQueue,
	}, WorkflowName, req)
	if err != nil {
		return Report{}, fmt.Errorf("start workout workflow: %w", err)
	}

	var report Report
	if err := run.Get(ctx, &report); err != nil {
		return Report{}, err
	}
	return report, nil
}
