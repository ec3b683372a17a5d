// Package app wires configuration into the running pipeline.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"PostsScanner/internal/config"
	"PostsScanner/internal/infrastructure/audit"
	"PostsScanner/internal/infrastructure/httpapi"
	"PostsScanner/internal/infrastructure/llm"
	"PostsScanner/internal/infrastructure/scheduler"
	infrasource "PostsScanner/internal/infrastructure/source"
	"PostsScanner/internal/infrastructure/storage"
	"PostsScanner/internal/joblock"
	"PostsScanner/internal/logging"
	"PostsScanner/internal/ratelimit"
	"PostsScanner/internal/retry"
	"PostsScanner/internal/source"
	"PostsScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	jobs    *usecase.Jobs
	server  *http.Server
	sources *source.Registry
}

// New builds a runnable application instance. Browser-backed sources are
// registered by the embedding process via Sources().
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repository := storage.NewPostgresRepository(db)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[string]ratelimit.Rule{
		"http":    {Window: cfg.Limits.HTTP.Window(), Max: cfg.Limits.HTTP.Max},
		"aiQuota": {Window: cfg.Limits.AIQuota.Window(), Max: cfg.Limits.AIQuota.Max},
	}, cfg.Limits.AllowList)

	retryPolicy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay(),
		MaxDelay:    cfg.Retry.MaxDelay(),
	}

	completion := llm.NewClient(cfg.Completion)
	auditSink := audit.NewWebhookSink(cfg.Audit.WebhookURL)

	ingestor := usecase.NewIngestor(usecase.IngestDeps{
		Repository:    repository,
		AuthorBaseURL: cfg.Identity.BaseURL,
		Logger:        baseLogger.With("component", "ingest"),
	})

	classifier := usecase.NewClassifier(usecase.ClassifyDeps{
		Repository:  repository,
		Completion:  completion,
		Audit:       auditSink,
		Limiter:     limiter,
		Retry:       retryPolicy,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		BatchSize:   cfg.Classify.BatchSize,
		Logger:      baseLogger.With("component", "classify"),
	})

	rater := usecase.NewRater(usecase.RatingDeps{
		Repository:    repository,
		Completion:    completion,
		Audit:         auditSink,
		Limiter:       limiter,
		Retry:         retryPolicy,
		Model:         cfg.Completion.Model,
		Temperature:   cfg.Completion.Temperature,
		BatchSize:     cfg.Rating.BatchSize,
		MinConfidence: cfg.Rating.MinConfidence,
		Logger:        baseLogger.With("component", "rating"),
	})

	sources := source.NewRegistry()
	if cfg.Sources.BatchURL != "" {
		sources.Register(infrasource.NewAPISource(
			batchFetcher(cfg.Sources.BatchURL),
			baseLogger.With("component", "source.batch-api"),
		))
	}

	jobs := usecase.NewJobs(usecase.JobsDeps{
		Locks:      joblock.NewManager(joblock.NewMemoryStore(), cfg.Lock.TTL()),
		Sources:    sources,
		Ingestor:   ingestor,
		Classifier: classifier,
		Rater:      rater,
		Logger:     baseLogger.With("component", "jobs"),
	})

	apiServer := httpapi.NewServer(ingestor, repository, limiter,
		baseLogger.With("component", "httpapi"))

	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		db:      db,
		jobs:    jobs,
		server:  apiServer.HTTPServer(cfg.HTTP.BindAddr),
		sources: sources,
	}, nil
}

// Sources exposes the registry so the embedding process can plug
// browser-backed or polled strategies before Run.
func (a *Application) Sources() *source.Registry { return a.sources }

// batchFetcher issues one GET per collection cycle against the configured
// batch feed.
func batchFetcher(url string) func(ctx context.Context) (io.ReadCloser, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build batch request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch batch feed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("batch feed returned %s", resp.Status)
		}
		return resp.Body, nil
	}
}

// Run starts the scheduler and the HTTP server, then blocks until ctx is
// cancelled and shutdown completes.
func (a *Application) Run(ctx context.Context) error {
	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval())
	if err := a.jobs.Start(ctx, driver); err != nil {
		return fmt.Errorf("start jobs: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		_ = a.jobs.Stop(context.Background())
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.jobs.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler shutdown", "error", err)
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server shutdown", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close", "error", err)
	}

	return nil
}
