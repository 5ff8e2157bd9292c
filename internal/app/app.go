package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"RegisterSync/internal/config"
	"RegisterSync/internal/domain"
	"RegisterSync/internal/httpapi"
	"RegisterSync/internal/infrastructure/rawstore"
	"RegisterSync/internal/infrastructure/registry"
	"RegisterSync/internal/infrastructure/scheduler"
	"RegisterSync/internal/infrastructure/storage"
	"RegisterSync/internal/infrastructure/telegram"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/ports"
	"RegisterSync/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	repo      *storage.Repository
	fetcher   *usecase.FetchOrchestrator
	processor *usecase.FileSetProcessor
	pipeline  *usecase.Pipeline
	search    *usecase.SearchService
}

// New builds the runnable application. Nothing here contacts the database;
// the MinIO backend checks its bucket.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := newSnapshotStore(ctx, cfg.RawStore)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewRepository(db, cfg.Database.Driver, storage.Options{
		Table:     cfg.Database.Table,
		BatchSize: cfg.Database.BatchSize,
	}, baseLogger.With("component", "storage"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	opener := registry.NewOpener(registry.Options{
		BaseURL:   cfg.Registry.BaseURL,
		UserAgent: cfg.Registry.UserAgent,
		PerPage:   cfg.Registry.PerPage,
		Timeout:   cfg.Registry.Timeout,
		PageDelay: cfg.Registry.PageDelay,
	}, baseLogger.With("component", "registry"))

	fetcher := usecase.NewFetchOrchestrator(opener, store, usecase.FetchOptions{
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
		Location:      cfg.Fetch.Location(),
		Backend:       cfg.RawStore.Backend,
	}, baseLogger.With("component", "fetch"))

	processor := usecase.NewFileSetProcessor(store, repo, baseLogger.With("component", "process"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:    fetcher,
		Processor:  processor,
		Notifier:   notifier,
		WindowDays: cfg.Fetch.WindowDays,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		repo:      repo,
		fetcher:   fetcher,
		processor: processor,
		pipeline:  pipeline,
		search:    usecase.NewSearchService(repo, baseLogger.With("component", "search")),
	}, nil
}

func newSnapshotStore(ctx context.Context, cfg config.RawStoreConfig) (ports.SnapshotStore, error) {
	switch cfg.Backend {
	case config.BackendMinio:
		store, err := rawstore.NewMinio(ctx, rawstore.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
			Region:    cfg.Minio.Region,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("raw store: %w", err)
		}
		return store, nil
	default:
		store, err := rawstore.NewFS(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("raw store: %w", err)
		}
		return store, nil
	}
}

// Close releases the database pool.
func (a *Application) Close() error {
	return a.db.Close()
}

// Run performs one full fetch-then-process execution. windowDays <= 0 uses the configured window.
func (a *Application) Run(ctx context.Context, windowDays int) (domain.RunReport, error) {
	if windowDays <= 0 {
		return a.pipeline.RunFull(ctx)
	}
	return a.pipeline.Run(ctx, windowDays)
}

// Fetch runs only the fetch phase.
func (a *Application) Fetch(ctx context.Context, windowDays int) (domain.FetchReport, error) {
	if windowDays <= 0 {
		windowDays = a.cfg.Fetch.WindowDays
	}
	return a.fetcher.Run(ctx, windowDays)
}

// Process runs only the process phase over the whole raw area.
func (a *Application) Process(ctx context.Context) (domain.ProcessReport, error) {
	return a.processor.Run(ctx)
}

// Search queries the canonical store.
func (a *Application) Search(ctx context.Context, params domain.SearchParams) domain.SearchResponse {
	return a.search.Search(ctx, params)
}

// Serve exposes the HTTP API and reruns the pipeline on the configured interval until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare canonical store: %w", err)
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.RunOnStart)
	jobs := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	router := httpapi.NewRouter(a.search, a.repo, a.db, a.logger.With("component", "http"))
	httpServer := httpapi.NewServer(a.cfg.HTTP.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api server starting", "addr", a.cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown", "error", err)
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler shutdown", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}
