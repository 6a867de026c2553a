package coach

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/workout"
)

// Users keeps the per-user state the coaching tools read and write.
type Users struct {
	// mu serializes profile appends; reads go straight to the maps.
	mu       sync.Mutex
	profiles *haxmap.Map[string, string]
	workouts *haxmap.Map[string, workout.Result]
}

func NewUsers() *Users {
	return &Users{
		profiles: haxmap.New[string, string](),
		workouts: haxmap.New[string, workout.Result](),
	}
}

func (u *Users) Profile(_ context.Context, userID string) (string, error) {
	p, ok := u.profiles.Get(userID)
	if !ok {
		return "", fmt.Errorf("profile for %s: %w", userID, store.ErrNotFound)
	}
	return p, nil
}

func (u *Users) SetProfile(_ context.Context, userID, profile string) {
	u.profiles.Set(userID, profile)
}

// AppendProfile adds a line to the user's profile, creating it when absent.
func (u *Users) AppendProfile(_ context.Context, userID, line string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	updated := strings.TrimSpace(line)
	if old, ok := u.profiles.Get(userID); ok && old != "" {
		updated = old + "\n" + updated
	}
	u.profiles.Set(userID, updated)
	return updated
}

func (u *Users) Workout(_ context.Context, userID, date string) (workout.Result, bool) {
	return u.workouts.Get(workoutKey(userID, date))
}

func (u *Users) SetWorkout(_ context.Context, userID, date string, w workout.Result) {
	u.workouts.Set(workoutKey(userID, date), w)
}

func workoutKey(userID, date string) string {
	return userID + "/" + date
}
