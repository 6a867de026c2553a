// Command gymtextd serves the GymText coaching agents and workout operations
// over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aparry3/gymtext-sub007/agent"
	"github.com/aparry3/gymtext-sub007/callback"
	"github.com/aparry3/gymtext-sub007/config"
	"github.com/aparry3/gymtext-sub007/durable"
	"github.com/aparry3/gymtext-sub007/internal/coach"
	"github.com/aparry3/gymtext-sub007/internal/httpapi"
	"github.com/aparry3/gymtext-sub007/invocationlog"
	"github.com/aparry3/gymtext-sub007/messaging"
	"github.com/aparry3/gymtext-sub007/pkg/natsx"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/pkg/tprl"
	"github.com/aparry3/gymtext-sub007/provider/anthropic"
	"github.com/aparry3/gymtext-sub007/provider/models"
	"github.com/aparry3/gymtext-sub007/provider/openai"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/store/memory"
	"github.com/aparry3/gymtext-sub007/store/sqlite"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/aparry3/gymtext-sub007/types"
	"github.com/aparry3/gymtext-sub007/workout"
	"github.com/nats-io/nats.go"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
)

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: lvl}),
	))
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mainE(ctx, cfg); err != nil {
		slog.Error("gymtextd stopped", slogx.Error(err))
		os.Exit(1)
	}
}

func mainE(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	router := models.NewRouter().
		Add("gpt-", openai.New()).
		Add("o1", openai.New()).
		Add("o3", openai.New()).
		Add("o4", openai.New()).
		Add("claude-", anthropic.New())

	prompts, configs, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = natsx.NewClient(cfg.NATS.URL, nats.Name("gymtextd"))
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Drain()
	}

	var sink invocationlog.Sink = invocationlog.SlogSink{Logger: logger}
	if nc != nil {
		sink = invocationlog.Multi{sink, invocationlog.NewNATSSink(nc, cfg.NATS.InvocationSubject)}
	}
	invocations := invocationlog.NewDetached(sink)
	defer invocations.Wait()

	chain, err := workout.New(
		workout.Provider(router),
		workout.Model(cfg.Models.Workout),
		workout.MaxAttempts(cfg.Workout.MaxAttempts),
		workout.BackoffBase(cfg.Workout.BackoffBase),
		workout.MessageMaxChars(cfg.Workout.MessageMaxChars),
		workout.Logger(logger),
	)
	if err != nil {
		return err
	}

	var runner durable.Runner = durable.Local{Chain: chain}
	if cfg.Temporal.Enabled {
		tc, err := tprl.NewClient(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return fmt.Errorf("failed to create temporal client: %w", err)
		}
		defer tc.Close()
		if _, err := tc.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
			return fmt.Errorf("temporal is not healthy: %w", err)
		}
		wk := durable.NewWorker(tc, durable.NewWorkouts(chain))
		if err := wk.Start(); err != nil {
			return fmt.Errorf("failed to start temporal worker: %w", err)
		}
		defer wk.Stop()
		runner = durable.Remote{Client: tc}
	}

	users := coach.NewUsers()
	regs := coach.Registries{
		Agents:     agent.NewRegistry(),
		Tools:      tool.NewRegistry(),
		Callbacks:  callback.NewRegistry(),
		Validators: agent.NewValidators(),
	}
	if err := coach.Register(regs, users, runner, cfg.Models.Agent, logger); err != nil {
		return err
	}

	factory, err := agent.NewFactory(
		agent.Agents(regs.Agents),
		agent.Tools(regs.Tools),
		agent.Callbacks(regs.Callbacks),
		agent.ValidatorSet(regs.Validators),
		agent.PromptStore(prompts),
		agent.ConfigStore(configs),
		agent.Provider(router),
		agent.InvocationLog(invocations),
		agent.Logger(logger),
		agent.CallTimeout(cfg.CallTimeout),
	)
	if err != nil {
		return err
	}

	senders := func(userID string) messaging.Sender { return messaging.Discard{Logger: logger} }
	if nc != nil {
		senders = func(userID string) messaging.Sender {
			return messaging.NewNATSSender(nc, cfg.NATS.OutboundSubject, userID)
		}
	}

	api, err := httpapi.New(
		httpapi.Agents(factory),
		httpapi.Workouts(runner),
		httpapi.Configs(configs),
		httpapi.Senders(senders),
		httpapi.Vars(func(ctx context.Context, userID string) types.ContextVars {
			return coach.Vars(ctx, users, userID, time.Now())
		}),
		httpapi.Logger(logger),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTP.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the prompt and config stores selected by cfg. Prompts
// come from the prompts file when set, otherwise from the backing store with
// the bundled coaching prompts as fallback.
func openStore(ctx context.Context, cfg config.Store) (store.PromptStore, store.AgentConfigStore, func(), error) {
	bundled, err := coach.DefaultPrompts()
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		prompts store.PromptStore
		configs store.AgentConfigStore
		closer  = func() {}
	)
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		for name, p := range bundled {
			if _, err := db.GetPrompts(ctx, name); errors.Is(err, store.ErrNotFound) {
				if err := db.PutPrompts(ctx, name, p); err != nil {
					db.Close()
					return nil, nil, nil, err
				}
			}
		}
		prompts, configs = db, db
		closer = func() { _ = db.Close() }
	default:
		mem := memory.New()
		mem.SetPrompts(bundled)
		prompts, configs = mem, mem
	}

	if cfg.PromptsFile != "" {
		fromFile, err := store.LoadPromptsFile(cfg.PromptsFile)
		if err != nil {
			closer()
			return nil, nil, nil, err
		}
		prompts = store.StaticPrompts(fromFile)
	}
	return prompts, store.NewCachedConfigs(configs, cfg.CacheTTL), closer, nil
}
