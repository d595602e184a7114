package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/clinicmatch/api"
	dbfs "github.com/garnizeh/clinicmatch/db"
	"github.com/garnizeh/clinicmatch/internal/ai"
	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/internal/db"
	"github.com/garnizeh/clinicmatch/internal/jobs"
	"github.com/garnizeh/clinicmatch/internal/matching"
	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/internal/repository/sqlstore"
	"github.com/garnizeh/clinicmatch/internal/schema"
	"github.com/garnizeh/clinicmatch/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ollama.SetLogger(logger)

	logger.Info("starting clinicmatch", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.New(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("error closing DB", slog.Any("err", err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	store := sqlstore.New(database, logger)
	store.SetJobLease(cfg.Jobs.Lease)
	repo := store.Repository()

	// Background jobs: the pool doubles as the engine's retry queue
	var engine *matching.Engine
	handlers := map[string]jobs.Handler{
		matching.JobScreenerDeliver: func(ctx context.Context, j *models.BackgroundJob) error {
			return engine.ScreenerJobHandler(ctx, j.Payload)
		},
	}
	pool := jobs.NewWorkerPool(repo.Job, handlers, logger, jobs.Options{
		Workers:      cfg.Jobs.Workers,
		PollInterval: cfg.Jobs.PollInterval,
		MaxAttempts:  cfg.Jobs.MaxAttempts,
	})
	engine = matching.NewEngine(store, matching.WithQueue(pool), matching.WithLogger(logger))

	llm, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		return err
	}
	defer llm.Close()
	if err := llm.Health(ctx); err != nil {
		logger.Warn("ollama not reachable at startup; AI endpoints will fail until it is", slog.Any("err", err))
	}
	generator, err := ai.NewGenerator(llm, repo.Template, cfg.AI, logger)
	if err != nil {
		return err
	}

	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Repo:      repo,
		Engine:    engine,
		Generator: generator,
		Schemas:   schema.Default(),
		DB:        database,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout + cfg.AI.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	pool.Start(ctx)
	defer pool.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}
