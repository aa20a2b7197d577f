package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/api/uistatic"
	"github.com/askdb/askdb/internal/assist"
	"github.com/askdb/askdb/internal/audit"
	auditpostgres "github.com/askdb/askdb/internal/audit/postgres"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}

	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	modelClient, err := nl2sql.NewModelClient(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var readiness []api.ReadinessCheck
	var recorder audit.Recorder = audit.Noop{}
	if cfg.Audit.Enabled {
		auditDB, err := auditpostgres.Open(ctx, auditpostgres.DBConfigFrom(cfg.Audit))
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func(db *sql.DB) { _ = db.Close() }(auditDB)
		repo := auditpostgres.NewRepository(auditDB)
		recorder = repo
		readiness = append(readiness, api.CheckAuditStore(repo))
	}

	var archiver *export.Archiver
	if cfg.Export.ArchiveEnabled {
		store, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = export.NewArchiver(store)
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg), api.CheckObjectStore(store))
	}

	sessions := session.NewManager(session.ConfigFrom(cfg), schema.NewBuilder(cfg.Schema.SampleRows), logger)
	service := &assist.Service{
		Sessions:  sessions,
		Generator: nl2sql.NewGenerator(modelClient, logger),
		Archiver:  archiver,
		Audit:     recorder,
		Logger:    logger,
	}

	deps := api.Dependencies{
		Logger:            logger,
		Assistant:         service,
		UI:                uistatic.Handler(),
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if archiver != nil {
		deps.Exports = archiver
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		_ = sessions.Run(ctx)
	}()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("model", modelClient.Model()),
			slog.Bool("audit", cfg.Audit.Enabled),
			slog.Bool("archive", cfg.Export.ArchiveEnabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
	<-reaperDone
}
