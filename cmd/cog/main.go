package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rendis/cog-hubspot/internal/compare"
	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/internal/dates"
	"github.com/rendis/cog-hubspot/internal/logging"
	"github.com/rendis/cog-hubspot/internal/scheduler"
	"github.com/rendis/cog-hubspot/internal/steps"
	"github.com/rendis/cog-hubspot/internal/store"
	"github.com/rendis/cog-hubspot/internal/validation"
	cogmcp "github.com/rendis/cog-hubspot/pkg/mcp"
)

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := serve(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: cog [serve|version]\n", cmd)
		os.Exit(2)
	}
}

// openStore creates the data directory, opens the run log and migrates it.
func openStore(ctx context.Context, dbPath string) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func serve() error {
	cfg := loadConfig()
	if err := cfg.validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	// Steps.
	evaluator, err := compare.New()
	if err != nil {
		return err
	}
	reg := steps.NewRegistry()
	if err := steps.RegisterBuiltins(reg, dates.New(), evaluator); err != nil {
		return err
	}
	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return err
	}
	manifest := steps.Manifest(reg, version)
	if err := validator.ValidateManifest(&manifest); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	runner := steps.NewRunner(reg, validator, steps.WithStore(st), steps.WithLogger(logger))

	// CRM client and background jobs.
	clientOpts := []crm.Option{crm.WithLogger(logger), crm.WithBaseURL(cfg.APIBaseURL)}
	newClient := func(ctx context.Context, auth crm.Auth) (crm.Client, error) {
		c, err := crm.New(ctx, auth, clientOpts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	sched := scheduler.NewScheduler(logger)
	var client crm.Client
	if cfg.hasCredentials() {
		auth := cfg.auth()
		hs, err := crm.New(ctx, auth, clientOpts...)
		if err != nil {
			return fmt.Errorf("hubspot client: %w", err)
		}
		client = hs
		if auth.OAuth() {
			if err := sched.Register(scheduler.JobTokenRefresh, cfg.RefreshSchedule, scheduler.TokenRefreshJob(hs)); err != nil {
				return err
			}
		}
	} else {
		logger.Warn("no HubSpot credentials configured, cog.run_step needs per-call auth")
	}

	retention, _ := cfg.retention()
	if retention > 0 {
		prune := scheduler.PruneJob(st, retention, func() time.Time { return time.Now().UTC() }, logger)
		if err := sched.Register(scheduler.JobRunPrune, cfg.PruneSchedule, prune); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := cogmcp.NewCogServer(cogmcp.CogServerDeps{
		Runner:    runner,
		Registry:  reg,
		Store:     st,
		Client:    client,
		NewClient: newClient,
		Version:   version,
		Logger:    logger,
	})

	logger.Info("cog started",
		slog.String("version", version),
		slog.String("transport", cfg.Transport),
		slog.Int("steps", reg.Count()),
	)

	switch cfg.Transport {
	case "sse":
		err = srv.ServeSSE(ctx, cfg.ListenAddr, cfg.BaseURL)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	default:
		err = srv.Serve(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	}

	logger.Info("cog stopped")
	return err
}
