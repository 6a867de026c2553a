package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aparry3/gymtext-sub007/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockConfigs struct {
	mock.Mock
}

func (m *mockConfigs) GetLatest(ctx context.Context, id string) (store.AgentConfig, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(store.AgentConfig), args.Error(1)
}

func (m *mockConfigs) Create(ctx context.Context, cfg store.NewAgentConfig) (store.AgentConfig, error) {
	args := m.Called(ctx, cfg)
	return args.Get(0).(store.AgentConfig), args.Error(1)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestCachedConfigs_HitsAndExpiry(t *testing.T) {
	next := new(mockConfigs)
	next.On("GetLatest", mock.Anything, "chat").Return(store.AgentConfig{ID: "chat", Version: 1}, nil).Twice()

	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := store.NewCachedConfigs(next, time.Minute)
	store.SetClock(c, clk.Now)

	for range 3 {
		cfg, err := c.GetLatest(context.Background(), "chat")
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Version)
	}
	next.AssertNumberOfCalls(t, "GetLatest", 1)

	clk.now = clk.now.Add(2 * time.Minute)
	_, err := c.GetLatest(context.Background(), "chat")
	require.NoError(t, err)
	next.AssertNumberOfCalls(t, "GetLatest", 2)
}

func TestCachedConfigs_CachesMisses(t *testing.T) {
	next := new(mockConfigs)
	next.On("GetLatest", mock.Anything, "ghost").Return(store.AgentConfig{}, store.ErrNotFound).Once()

	c := store.NewCachedConfigs(next, time.Minute)
	for range 2 {
		_, err := c.GetLatest(context.Background(), "ghost")
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	next.AssertExpectations(t)
}

func TestCachedConfigs_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("db down")
	next := new(mockConfigs)
	next.On("GetLatest", mock.Anything, "chat").Return(store.AgentConfig{}, boom).Twice()

	c := store.NewCachedConfigs(next, time.Minute)
	for range 2 {
		_, err := c.GetLatest(context.Background(), "chat")
		assert.ErrorIs(t, err, boom)
	}
	next.AssertExpectations(t)
}

func TestCachedConfigs_CreateInvalidates(t *testing.T) {
	in := store.NewAgentConfig{ID: "chat", SystemPrompt: "v2"}
	next := new(mockConfigs)
	next.On("GetLatest", mock.Anything, "chat").Return(store.AgentConfig{}, store.ErrNotFound).Once()
	next.On("Create", mock.Anything, in).Return(store.AgentConfig{ID: "chat", Version: 2, SystemPrompt: "v2"}, nil).Once()

	c := store.NewCachedConfigs(next, time.Minute)
	_, err := c.GetLatest(context.Background(), "chat")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = c.GetLatest(context.Background(), "chat")
	require.ErrorIs(t, err, store.ErrNotFound, "miss is cached")

	_, err = c.Create(context.Background(), in)
	require.NoError(t, err)

	next.On("GetLatest", mock.Anything, "chat").Return(store.AgentConfig{ID: "chat", Version: 2, SystemPrompt: "v2"}, nil).Once()
	for range 2 {
		cfg, err := c.GetLatest(context.Background(), "chat")
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Version)
	}
	next.AssertExpectations(t)
}
