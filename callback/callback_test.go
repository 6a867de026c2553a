package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(name string, log *[]string) Definition {
	return Definition{Name: name, Execute: func(context.Context, Context) error {
		*log = append(*log, name)
		return nil
	}}
}

func TestTiming(t *testing.T) {
	tests := []struct {
		when      Timing
		succeeded bool
		want      bool
	}{
		{OnSuccess, true, true},
		{OnSuccess, false, false},
		{"", true, true},
		{"", false, false},
		{OnFailure, true, false},
		{OnFailure, false, true},
		{Always, true, true},
		{Always, false, true},
		{"sometimes", true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.when.matches(tt.succeeded), "%s/%v", tt.when, tt.succeeded)
	}
}

func TestRegistry_Execute(t *testing.T) {
	var ran []string
	r := NewRegistry()
	require.NoError(t, r.Register(recorder("send_reply", &ran)))
	require.NoError(t, r.Register(recorder("alert", &ran)))
	require.NoError(t, r.Register(recorder("audit", &ran)))

	refs := []Ref{
		{Name: "send_reply"},
		{Name: "alert", When: OnFailure},
		{Name: "audit", When: Always},
	}

	n := r.Execute(context.Background(), refs, Context{AgentName: "chat"}, true)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"send_reply", "audit"}, ran)

	ran = nil
	n = r.Execute(context.Background(), refs, Context{AgentName: "chat", Err: errors.New("x")}, false)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"alert", "audit"}, ran)
}

func TestRegistry_Execute_FailuresAreIsolated(t *testing.T) {
	var ran []string
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "fails", Execute: func(context.Context, Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, r.Register(Definition{Name: "panics", Execute: func(context.Context, Context) error {
		panic("bad")
	}}))
	require.NoError(t, r.Register(recorder("after", &ran)))

	n := r.Execute(context.Background(), []Ref{{Name: "fails"}, {Name: "missing"}, {Name: "panics"}, {Name: "after"}}, Context{}, true)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"after"}, ran)
}

func TestRegistry_SeesResult(t *testing.T) {
	var got api.Result
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "capture", Execute: func(_ context.Context, cc Context) error {
		got = cc.Result
		return nil
	}}))
	r.Execute(context.Background(), []Ref{{Name: "capture"}}, Context{Result: api.Result{Response: "hi"}}, true)
	assert.Equal(t, "hi", got.Response)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Definition{Name: "nil"}))
	require.NoError(t, r.Register(Definition{Name: "x", Execute: func(context.Context, Context) error { return nil }}))
	assert.Error(t, r.Register(Definition{Name: "x", Execute: func(context.Context, Context) error { return nil }}))
	assert.NoError(t, r.Replace(Definition{Name: "x", Execute: func(context.Context, Context) error { return nil }}))
	assert.True(t, r.Has("x"))
}
