package coach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aparry3/gymtext-sub007/durable"
	"github.com/aparry3/gymtext-sub007/pkg/stdx"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/aparry3/gymtext-sub007/workout"
	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
)

const (
	ToolUpdateProfile = "update_profile"
	ToolGetWorkout    = "get_workout"
	ToolModifyWorkout = "modify_workout"
)

// VarToday names the context variable holding the user's local date.
const VarToday = "today"

type profileUpdate struct {
	Update string `json:"update" jsonschema:"description=One fact to remember about the user, written as a full sentence"`
}

type workoutLookup struct {
	Date string `json:"date" jsonschema:"description=Date as YYYY-MM-DD, empty for today"`
}

type workoutChange struct {
	Date    string `json:"date" jsonschema:"description=Date as YYYY-MM-DD, empty for today"`
	Changes string `json:"changes" jsonschema:"description=What the user wants changed"`
}

// Tools builds the coaching tool definitions over users and workouts.
func Tools(users *Users, workouts durable.Runner) []tool.Definition {
	return []tool.Definition{
		tool.Must(ToolUpdateProfile, updateProfile(users),
			tool.Description("Saves a new fact about the user, such as an injury, goal, schedule or equipment change."),
			tool.ParametersOf[profileUpdate](),
			tool.Kind(tool.Action),
			tool.Priority(0),
			tool.ImmediateMessage(true),
		),
		tool.Must(ToolGetWorkout, getWorkout(users),
			tool.Description("Returns the workout planned for a date."),
			tool.ParametersOf[workoutLookup](),
			tool.Priority(1),
		),
		tool.Must(ToolModifyWorkout, modifyWorkout(users, workouts),
			tool.Description("Changes the workout planned for a date. Use it when the user asks for a different, shorter, easier or harder session."),
			tool.ParametersOf[workoutChange](),
			tool.Kind(tool.Action),
			tool.Priority(2),
			tool.ImmediateMessage(true),
		),
	}
}

func updateProfile(users *Users) tool.ExecuteFunc {
	return func(ctx context.Context, args gjson.Result, rc tool.RuntimeContext) (tool.Result, error) {
		in, err := tool.Bind[profileUpdate](args)
		if err != nil {
			return tool.Result{}, err
		}
		if in.Update == "" {
			return tool.Result{}, errors.New("update is empty")
		}
		if rc.UserID == "" {
			return tool.Result{}, errors.New("no user in context")
		}
		users.AppendProfile(ctx, rc.UserID, in.Update)
		return tool.Result{Response: "Profile updated: " + in.Update}, nil
	}
}

func getWorkout(users *Users) tool.ExecuteFunc {
	return func(ctx context.Context, args gjson.Result, rc tool.RuntimeContext) (tool.Result, error) {
		date := resolveDate(args.Get("date").String(), rc)
		w, ok := users.Workout(ctx, rc.UserID, date)
		if !ok {
			return tool.Result{Response: "No workout is planned for " + date + "."}, nil
		}
		return tool.Result{Response: fmt.Sprintf("Workout for %s:\n%s", date, w.Description)}, nil
	}
}

func modifyWorkout(users *Users, workouts durable.Runner) tool.ExecuteFunc {
	return func(ctx context.Context, args gjson.Result, rc tool.RuntimeContext) (tool.Result, error) {
		in, err := tool.Bind[workoutChange](args)
		if err != nil {
			return tool.Result{}, err
		}
		date := resolveDate(in.Date, rc)
		day, err := time.Parse(strfmt.RFC3339FullDate, date)
		if err != nil {
			return tool.Result{}, fmt.Errorf("invalid date %q: %w", date, err)
		}

		current, ok := users.Workout(ctx, rc.UserID, date)
		if !ok {
			return tool.Result{Response: "There is no workout on " + date + " to change."}, nil
		}
		profile, err := users.Profile(ctx, rc.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return tool.Result{}, err
		}

		report, err := workouts.RunWorkout(ctx, workout.Request{
			Operation: workout.Modify,
			UserID:    rc.UserID,
			Date:      strfmt.Date(day),
			Profile:   profileOrDefault(profile),
			Current:   current.Description,
			Changes:   in.Changes,
		})
		if err != nil {
			return tool.Result{}, err
		}
		if !report.Modified || report.Result == nil {
			return tool.Result{Response: "The workout was left as is: " + report.Reason}, nil
		}

		users.SetWorkout(ctx, rc.UserID, date, *report.Result)
		return tool.Result{
			Response: "Workout updated. Changes: " + report.Result.Modifications,
			Messages: []string{report.Result.Message},
			Metadata: map[string]any{"date": date, "attempts": report.Result.Attempts},
		}, nil
	}
}

func resolveDate(date string, rc tool.RuntimeContext) string {
	return stdx.Coalesce(date, rc.Vars.GetString(VarToday), time.Now().Format(strfmt.RFC3339FullDate))
}

func profileOrDefault(p string) string {
	if p == "" {
		return "No profile details yet."
	}
	return p
}
