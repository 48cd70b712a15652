package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/mcpserver"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	dialect, err := database.LookupDialect(cfg.Database.Dialect)
	if err != nil {
		logger.Error("failed to resolve database dialect", slog.Any("error", err))
		os.Exit(1)
	}
	if len(cfg.Database.Allowed) == 0 {
		logger.Warn("ASKDB_ALLOWED_DATABASES is empty; no database can be queried")
	}

	pool := database.NewPool(database.PoolConfig{
		Dialect:         dialect,
		DSNTemplate:     cfg.Database.DSNTemplate,
		Allowed:         cfg.Database.Allowed,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, nil)
	defer func() { _ = pool.Close() }()

	loader := schema.NewCoalescingLoader(schema.NewIntrospector(pool, logger))
	executor := query.NewSQLExecutor(pool, cfg.Database.QueryTimeout)

	providers := make([]nl2sql.Provider, 0, 2)
	if cfg.Cloud.APIKey != "" {
		cloud, err := nl2sql.NewCloudProvider(nl2sql.CloudConfig{
			BaseURL: cfg.Cloud.BaseURL,
			APIKey:  cfg.Cloud.APIKey,
			Timeout: cfg.Cloud.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize cloud provider", slog.Any("error", err))
			os.Exit(1)
		}
		providers = append(providers, cloud)
	} else {
		logger.Warn("cloud provider disabled: no API key configured")
	}
	local, err := nl2sql.NewLocalProvider(nl2sql.LocalConfig{
		BaseURL: cfg.Local.BaseURL,
		Timeout: cfg.Local.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize local provider", slog.Any("error", err))
		os.Exit(1)
	}
	providers = append(providers, local)

	translator := nl2sql.NewTranslator(
		nl2sql.NewPromptBuilder(dialect.Name),
		nl2sql.Catalog{nl2sql.KindCloud: cfg.Cloud.Models, nl2sql.KindLocal: cfg.Local.Models},
		logger,
		providers...,
	)
	registry, err := session.NewRegistry(cfg.Sessions.Capacity)
	if err != nil {
		logger.Error("failed to initialize session registry", slog.Any("error", err))
		os.Exit(1)
	}
	service := session.NewService(translator, executor, loader, logger)

	var exporter *export.Exporter
	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		exporter = export.NewExporter(objectStore, cfg.ObjectStore.PresignExpiry)
	}

	deps := api.Dependencies{
		Logger:    logger,
		Databases: pool,
		Providers: translator,
		Sessions:  registry,
		Service:   service,
		Exporter:  exporter,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabaseConfig(cfg),
			api.CheckObjectStoreConfig(cfg),
			pool.HealthCheck,
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Ask.RatePerSecond > 0 {
		deps.AskLimiter = rate.NewLimiter(rate.Limit(cfg.Ask.RatePerSecond), cfg.Ask.Burst)
	}
	if cfg.MCP.Enabled {
		deps.MCP = mcpserver.Handler(mcpserver.New(cfg.Service.Name, version, mcpserver.Dependencies{
			Databases: pool,
			Loader:    loader,
			Service:   service,
			Logger:    logger,
		}))
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Any("databases", cfg.Database.Allowed),
			slog.Int("providers", len(providers)),
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
		os.Exit(1)
	}
}
