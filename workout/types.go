package workout

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
)

// Operation names a workout pipeline run.
type Operation string

const (
	Create     Operation = "create"
	Replace    Operation = "replace"
	Substitute Operation = "substitute"
	Modify     Operation = "modify"
)

// ParseOperation maps a name onto an Operation.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case Create, Replace, Substitute, Modify:
		return op, nil
	}
	return "", fmt.Errorf("unknown workout operation %q", s)
}

// Request carries everything a pipeline run needs. Profile, History and
// Program are pre-rendered text about the user.
type Request struct {
	Operation Operation   `json:"operation"`
	UserID    string      `json:"user_id,omitempty"`
	Date      strfmt.Date `json:"date"`
	Profile   string      `json:"profile"`
	History   string      `json:"history,omitempty"`
	Program   string      `json:"program,omitempty"`

	// Current describes the existing workout for replace, substitute and
	// modify.
	Current string `json:"current,omitempty"`
	// Focus steers a newly created workout.
	Focus string `json:"focus,omitempty"`
	// Reason explains why the workout is replaced.
	Reason string `json:"reason,omitempty"`
	// Exercise is swapped for Replacement, or for a model-chosen
	// alternative when Replacement is empty.
	Exercise    string `json:"exercise,omitempty"`
	Replacement string `json:"replacement,omitempty"`
	// Changes is the user's modification request.
	Changes string `json:"changes,omitempty"`
}

// Validate checks the fields each operation depends on.
func (r Request) Validate() error {
	var errs []error
	if _, err := ParseOperation(string(r.Operation)); err != nil {
		errs = append(errs, err)
	}
	if time.Time(r.Date).IsZero() {
		errs = append(errs, errors.New("date is required"))
	}
	if r.Profile == "" {
		errs = append(errs, errors.New("profile is required"))
	}
	if r.Operation != Create && r.Operation != "" && r.Current == "" {
		errs = append(errs, fmt.Errorf("%s requires the current workout", r.Operation))
	}
	switch r.Operation {
	case Replace:
		if r.Reason == "" {
			errs = append(errs, errors.New("replace requires a reason"))
		}
	case Substitute:
		if r.Exercise == "" {
			errs = append(errs, errors.New("substitute requires the exercise to swap"))
		}
	case Modify:
		if r.Changes == "" {
			errs = append(errs, errors.New("modify requires the requested changes"))
		}
	}
	return errors.Join(errs...)
}

// LongForm is the phase one output.
type LongForm struct {
	Description string `json:"description" jsonschema:"description=The complete workout written out in prose with every exercise, set, rep and rest period"`
	Reasoning   string `json:"reasoning" jsonschema:"description=Why this workout fits the user today"`
}

// ModifyLongForm is the phase one output of a modify run.
type ModifyLongForm struct {
	Description   string `json:"description" jsonschema:"description=The complete workout after applying the changes, or the unchanged workout"`
	Reasoning     string `json:"reasoning" jsonschema:"description=Why the changes were or were not applied"`
	WasModified   bool   `json:"wasModified" jsonschema:"description=False when the request needs no change to the workout"`
	Modifications string `json:"modifications" jsonschema:"description=A short list of what changed, empty when nothing changed"`
}

// Workout is the structured form of a generated workout.
type Workout struct {
	Date     strfmt.Date `json:"date" jsonschema:"-"`
	Title    string      `json:"title"`
	Focus    string      `json:"focus"`
	Duration int         `json:"durationMinutes" jsonschema:"description=Estimated total minutes"`
	Blocks   []Block     `json:"blocks" jsonschema:"minItems=1"`
	Notes    string      `json:"notes"`
}

// Block groups exercises performed together, e.g. a warm-up or a superset.
type Block struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

type Item struct {
	Exercise string `json:"exercise"`
	Sets     int    `json:"sets"`
	Reps     string `json:"reps" jsonschema:"description=Reps per set, a range, or a duration such as 30s"`
	Load     string `json:"load" jsonschema:"description=Weight or intensity, empty for bodyweight"`
	Rest     string `json:"rest"`
	Notes    string `json:"notes"`
}

// Result is the output of a pipeline run that produced a workout.
type Result struct {
	Structured  Workout `json:"structured"`
	Message     string  `json:"message"`
	Description string  `json:"description"`
	Reasoning   string  `json:"reasoning"`
	// Modifications is only set by modify runs.
	Modifications string `json:"modifications,omitempty"`
	Attempts      int    `json:"attempts"`
}

// Outcome is either Modified or Unmodified.
type Outcome interface {
	outcome()
}

// Modified carries a generated workout. Create, replace and substitute
// always produce it.
type Modified struct {
	Result
}

// Unmodified is a modify run that decided the workout needs no change.
type Unmodified struct {
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

func (Modified) outcome()   {}
func (Unmodified) outcome() {}

// OperationFailedError reports a pipeline run that failed on every attempt.
type OperationFailedError struct {
	Operation Operation
	Attempts  int
	Err       error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("workout %s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *OperationFailedError) Unwrap() error { return e.Err }
