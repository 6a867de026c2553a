// Package sqlite stores agent prompts and versioned configurations in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aparry3/gymtext-sub007/store"
	"github.com/go-openapi/strfmt"
	_ "github.com/mattn/go-sqlite3"
)

var (
	_ store.PromptStore      = (*Store)(nil)
	_ store.AgentConfigStore = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_prompts (
	agent TEXT PRIMARY KEY,
	system_prompt TEXT NOT NULL,
	user_prompt TEXT
);
CREATE TABLE IF NOT EXISTS agent_configs (
	id TEXT NOT NULL,
	version INTEGER NOT NULL,
	system_prompt TEXT NOT NULL,
	user_prompt TEXT,
	model TEXT,
	temperature REAL,
	max_tokens INTEGER,
	max_iterations INTEGER,
	created_at TEXT NOT NULL,
	PRIMARY KEY (id, version)
);`

type Store struct {
	db *sql.DB
}

// Open connects to the database at dsn and creates the tables if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutPrompts inserts or replaces the prompts of an agent.
func (s *Store) PutPrompts(ctx context.Context, agent string, p store.Prompts) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_prompts (agent, system_prompt, user_prompt) VALUES (?, ?, ?)
		 ON CONFLICT(agent) DO UPDATE SET system_prompt = excluded.system_prompt, user_prompt = excluded.user_prompt`,
		agent, p.System, nullString(p.User))
	if err != nil {
		return fmt.Errorf("failed to store prompts for %s: %w", agent, err)
	}
	return nil
}

func (s *Store) GetPrompts(ctx context.Context, agent string) (store.Prompts, error) {
	var p store.Prompts
	var user sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT system_prompt, user_prompt FROM agent_prompts WHERE agent = ?`, agent).
		Scan(&p.System, &user)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Prompts{}, fmt.Errorf("prompts for agent %q: %w", agent, store.ErrNotFound)
	}
	if err != nil {
		return store.Prompts{}, fmt.Errorf("failed to load prompts for %s: %w", agent, err)
	}
	p.User = user.String
	return p, nil
}

func (s *Store) GetLatest(ctx context.Context, id string) (store.AgentConfig, error) {
	var (
		cfg                     store.AgentConfig
		user, model             sql.NullString
		temperature             sql.NullFloat64
		maxTokens, maxIteration sql.NullInt64
		createdAt               string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, version, system_prompt, user_prompt, model, temperature, max_tokens, max_iterations, created_at
		 FROM agent_configs WHERE id = ? ORDER BY version DESC LIMIT 1`, id).
		Scan(&cfg.ID, &cfg.Version, &cfg.SystemPrompt, &user, &model, &temperature, &maxTokens, &maxIteration, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AgentConfig{}, store.ErrNotFound
	}
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to load config %s: %w", id, err)
	}

	cfg.UserPrompt = user.String
	cfg.Model = model.String
	if temperature.Valid {
		t := temperature.Float64
		cfg.Temperature = &t
	}
	cfg.MaxTokens = int(maxTokens.Int64)
	cfg.MaxIterations = int(maxIteration.Int64)
	ts, err := strfmt.ParseDateTime(createdAt)
	if err != nil {
		return store.AgentConfig{}, fmt.Errorf("config %s has a bad timestamp: %w", id, err)
	}
	cfg.CreatedAt = ts
	return cfg, nil
}

func (s *Store) Create(ctx context.Context, in store.NewAgentConfig) (store.AgentConfig, error) {
	if err := in.Validate(); err != nil {
		return store.AgentConfig{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.AgentConfig{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM agent_configs WHERE id = ?`, in.ID).Scan(&version); err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to allocate version for %s: %w", in.ID, err)
	}

	created := strfmt.DateTime(time.Now().UTC())
	var temperature sql.NullFloat64
	if in.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *in.Temperature, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agent_configs (id, version, system_prompt, user_prompt, model, temperature, max_tokens, max_iterations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, version, in.SystemPrompt, nullString(in.UserPrompt), nullString(in.Model), temperature,
		nullInt(in.MaxTokens), nullInt(in.MaxIterations), created.String()); err != nil {
		return store.AgentConfig{}, fmt.Errorf("failed to insert config %s: %w", in.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return store.AgentConfig{}, err
	}

	return store.AgentConfig{
		ID:            in.ID,
		Version:       version,
		SystemPrompt:  in.SystemPrompt,
		UserPrompt:    in.UserPrompt,
		Model:         in.Model,
		Temperature:   in.Temperature,
		MaxTokens:     in.MaxTokens,
		MaxIterations: in.MaxIterations,
		CreatedAt:     created,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
