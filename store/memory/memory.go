// Package memory is an in-process store backend, used in tests and when no
// database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/go-openapi/strfmt"
)

var (
	_ store.PromptStore      = (*Store)(nil)
	_ store.AgentConfigStore = (*Store)(nil)
)

type Store struct {
	prompts *haxmap.Map[string, store.Prompts]

	mu      sync.RWMutex
	configs map[string][]store.AgentConfig
}

func New() *Store {
	return &Store{
		prompts: haxmap.New[string, store.Prompts](),
		configs: make(map[string][]store.AgentConfig),
	}
}

// SetPrompts stores prompts for each agent in the map.
func (s *Store) SetPrompts(prompts map[string]store.Prompts) {
	for name, p := range prompts {
		s.prompts.Set(name, p)
	}
}

func (s *Store) GetPrompts(_ context.Context, agent string) (store.Prompts, error) {
	p, ok := s.prompts.Get(agent)
	if !ok {
		return store.Prompts{}, fmt.Errorf("prompts for agent %q: %w", agent, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetLatest(_ context.Context, id string) (store.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.configs[id]
	if len(versions) == 0 {
		return store.AgentConfig{}, store.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (s *Store) Create(_ context.Context, cfg store.NewAgentConfig) (store.AgentConfig, error) {
	if err := cfg.Validate(); err != nil {
		return store.AgentConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := store.AgentConfig{
		ID:            cfg.ID,
		Version:       len(s.configs[cfg.ID]) + 1,
		SystemPrompt:  cfg.SystemPrompt,
		UserPrompt:    cfg.UserPrompt,
		Model:         cfg.Model,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		MaxIterations: cfg.MaxIterations,
		CreatedAt:     strfmt.DateTime(time.Now().UTC()),
	}
	s.configs[cfg.ID] = append(s.configs[cfg.ID], created)
	return created, nil
}
