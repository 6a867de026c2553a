// Package config loads the service configuration from a YAML file, with
// environment variables taking precedence over file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/aparry3/gymtext-sub007/provider"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/workout"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are tried in order when no config path is given.
var DefaultFiles = []string{"gymtext.yaml", "gymtext.yml", ".gymtext/config.yaml"}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Models   Models   `yaml:"models"`
	Store    Store    `yaml:"store"`
	NATS     NATS     `yaml:"nats"`
	Temporal Temporal `yaml:"temporal"`
	Workout  Workout  `yaml:"workout"`
	// CallTimeout bounds every model call that sets no timeout of its own.
	CallTimeout time.Duration `yaml:"call_timeout"`
	LogLevel    string        `yaml:"log_level"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

// Models names the default model settings for agents and the workout chain.
type Models struct {
	Agent   provider.Settings `yaml:"agent"`
	Workout provider.Settings `yaml:"workout"`
}

type Store struct {
	// Driver is "memory" or "sqlite".
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	PromptsFile string        `yaml:"prompts_file"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type NATS struct {
	// URL enables NATS when set.
	URL               string `yaml:"url"`
	InvocationSubject string `yaml:"invocation_subject"`
	OutboundSubject   string `yaml:"outbound_subject"`
}

type Temporal struct {
	Enabled   bool   `yaml:"enabled"`
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
}

type Workout struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	MessageMaxChars int           `yaml:"message_max_chars"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTP: HTTP{Addr: ":8080"},
		Models: Models{
			Agent:   provider.Settings{Model: "gpt-4o-mini", Temperature: 0.7},
			Workout: provider.Settings{Model: "gpt-4o", Temperature: 0.5},
		},
		Store: Store{
			Driver:   "memory",
			CacheTTL: store.DefaultConfigTTL,
		},
		NATS: NATS{
			InvocationSubject: "gymtext.agents.invocations",
			OutboundSubject:   "gymtext.messages.outbound",
		},
		Workout: Workout{
			MaxAttempts:     workout.DefaultMaxAttempts,
			BackoffBase:     workout.DefaultBackoffBase,
			MessageMaxChars: workout.DefaultMessageMaxChars,
		},
		CallTimeout: provider.DefaultTimeout,
		LogLevel:    "info",
	}
}

// Load reads path, or the first of DefaultFiles that exists when path is
// empty, over the defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultFiles {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("GYMTEXT_HTTP_ADDR", &c.HTTP.Addr)
	str("GYMTEXT_AGENT_MODEL", &c.Models.Agent.Model)
	str("GYMTEXT_WORKOUT_MODEL", &c.Models.Workout.Model)
	str("GYMTEXT_STORE_DRIVER", &c.Store.Driver)
	str("GYMTEXT_STORE_DSN", &c.Store.DSN)
	str("GYMTEXT_PROMPTS_FILE", &c.Store.PromptsFile)
	str("GYMTEXT_LOG_LEVEL", &c.LogLevel)
	str("NATS_URL", &c.NATS.URL)
	str("TEMPORAL_ADDRESS", &c.Temporal.HostPort)
	str("TEMPORAL_NAMESPACE", &c.Temporal.Namespace)

	if v, ok := lookup("GYMTEXT_TEMPORAL_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GYMTEXT_TEMPORAL_ENABLED: %w", err)
		}
		c.Temporal.Enabled = enabled
	}
	return errors.Join(
		dur("GYMTEXT_CALL_TIMEOUT", &c.CallTimeout),
		dur("GYMTEXT_CACHE_TTL", &c.Store.CacheTTL),
	)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite", c.Store.Driver))
	}
	if c.Models.Agent.Model == "" {
		errs = append(errs, errors.New("models.agent.model is required"))
	}
	if c.Models.Workout.Model == "" {
		errs = append(errs, errors.New("models.workout.model is required"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("call_timeout must be positive"))
	}
	if c.Workout.MaxAttempts < 1 {
		errs = append(errs, errors.New("workout.max_attempts must be at least 1"))
	}
	if c.Workout.MessageMaxChars < 1 {
		errs = append(errs, errors.New("workout.message_max_chars must be positive"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads .env style files into the environment, skipping missing
// files. Variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
