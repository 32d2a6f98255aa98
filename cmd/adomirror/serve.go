package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adomirror/adomirror/pkg/api"
	"github.com/adomirror/adomirror/pkg/cache"
	"github.com/adomirror/adomirror/pkg/config"
	"github.com/adomirror/adomirror/pkg/db"
	"github.com/adomirror/adomirror/pkg/extract"
	"github.com/adomirror/adomirror/pkg/jobs"
	"github.com/adomirror/adomirror/pkg/logging"
	"github.com/adomirror/adomirror/pkg/secret"
	"github.com/adomirror/adomirror/pkg/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run extraction jobs",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("listen", ":8080", "Address to listen on")
	f.String("db-type", "postgres", "Database type (postgres, mysql or sqlite)")
	f.String("db-dsn", "", "Database connection string")
	f.Bool("auto-migrate", false, "Create or update the schema on startup")
	f.Int("concurrency", 4, "Maximum concurrently running extraction jobs")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-file", "", "Also write logs to this file, rotated")
	return cmd
}

func loadConfigWatchable(cmd *cobra.Command) (*config.Config, *viper.Viper, error) {
	cfg, v, err := config.Load(config.LoadOptions{File: configFile, EnvFile: envFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// directories adapts the connector client to api.DirectoryFactory.
func directories(cfg config.ADOConfig, logger *slog.Logger) api.DirectoryFactory {
	return func(conn *store.Connection, token string) (api.Directory, error) {
		client, err := extract.NewClient(cfg, conn, token, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, v, err := loadConfigWatchable(cmd)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logging.New(cfg.Log)
	if err != nil {
		glog.Fatalf("Failed to set up logging: %v", err)
	}
	defer lg.Close()
	logger := lg.Logger
	slog.SetDefault(logger)

	logger.Info("starting adomirror",
		"version", version,
		"listen", cfg.Server.Listen,
		"database", cfg.Database.Type,
		"concurrency", cfg.Extraction.Concurrency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(gormDB); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, gormDB, logger); err != nil {
			glog.Fatalf("Failed to migrate database: %v", err)
		}
	}

	box, err := secret.New(cfg.Secret.Key)
	if err != nil {
		glog.Fatalf("Failed to set up token sealing: %v", err)
	}
	if !box.Enabled() {
		logger.Warn("secret.key is not set, access tokens are stored unsealed")
	}

	st := store.New(gormDB, box)
	jobStore := jobs.NewJobStore(gormDB)
	jobCfg := jobs.JobConfigFrom(cfg.Extraction)
	registry := jobs.NewRegistry(jobCfg.Concurrency, logger)
	engine := extract.New(st, jobStore, registry, extract.ADOSourceFactory(cfg.ADO, logger), extract.ConfigFrom(cfg), logger)

	// Jobs left in progress by a previous process are closed on the first
	// listing; closing them now keeps the log consistent from the start.
	if closed, err := jobStore.CloseStalled(ctx, jobCfg.StallWindow, registry.Live); err != nil {
		logger.Warn("stalled job check failed", "error", err)
	} else if len(closed) > 0 {
		logger.Info("closed stalled jobs", "count", len(closed))
	}
	// Nothing is queued in this process yet, so every pending row is left over.
	if orphaned, err := jobStore.FailOrphaned(ctx, 0, registry.Live); err != nil {
		logger.Warn("orphaned job check failed", "error", err)
	} else if len(orphaned) > 0 {
		logger.Info("failed orphaned pending jobs", "count", len(orphaned))
	}

	config.Watch(v, logger, func(next *config.Config) {
		if err := lg.SetLevel(next.Log.Level); err != nil {
			logger.Warn("ignoring log level", "level", next.Log.Level, "error", err)
		}
		engine.SetBatchPause(next.Extraction.BatchPause)
	})

	server := api.NewServer(api.Options{
		DB:           gormDB,
		Store:        st,
		Jobs:         jobStore,
		Registry:     registry,
		Starter:      engine,
		Directories:  directories(cfg.ADO, logger),
		JobConfig:    jobCfg,
		Cache:        cache.New(256, cfg.Server.CacheTTL),
		DefaultToken: cfg.ADO.DefaultToken,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()
	logger.Info("adomirror ready", "listen", cfg.Server.Listen)

	<-ctx.Done()
	logger.Info("shutting down...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Error("job shutdown error", "error", err)
	}

	logger.Info("adomirror stopped")
	return nil
}
