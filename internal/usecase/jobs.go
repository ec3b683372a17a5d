package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PostsScanner/internal/joblock"
	"PostsScanner/internal/ports"
	"PostsScanner/internal/source"
)

// JobsDeps wires the scheduled pipeline stages to the cron driver.
type JobsDeps struct {
	Locks      *joblock.Manager
	Sources    *source.Registry
	Ingestor   *Ingestor
	Classifier *Classifier
	Rater      *Rater
	Logger     *slog.Logger
}

// Jobs runs the pipeline stages as named lock-guarded jobs. A stage whose
// lock is held elsewhere is skipped for the whole cycle, never queued.
type Jobs struct {
	locks      *joblock.Manager
	sources    *source.Registry
	ingestor   *Ingestor
	classifier *Classifier
	rater      *Rater
	driver     ports.Scheduler
	logger     *slog.Logger
}

// NewJobs constructs the scheduled orchestration layer.
func NewJobs(deps JobsDeps) *Jobs {
	return &Jobs{
		locks:      deps.Locks,
		sources:    deps.Sources,
		ingestor:   deps.Ingestor,
		classifier: deps.Classifier,
		rater:      deps.Rater,
		logger:     deps.Logger,
	}
}

// Start registers the cycle with the provided scheduler driver.
func (j *Jobs) Start(ctx context.Context, driver ports.Scheduler) error {
	if driver == nil {
		return nil
	}
	j.driver = driver
	return driver.Start(ctx, func(trigger time.Time) {
		j.RunCycle(ctx, trigger)
	})
}

// Stop tears down the scheduler driver.
func (j *Jobs) Stop(ctx context.Context) error {
	if j.driver == nil {
		return nil
	}
	return j.driver.Stop(ctx)
}

// RunCycle executes one full pass: collect, classify, rate. Each stage holds
// its own lock so concurrent instances interleave without double-processing.
func (j *Jobs) RunCycle(ctx context.Context, trigger time.Time) {
	j.debug("cycle start", "trigger", trigger.Format(time.RFC3339))
	j.runLocked(ctx, "collect", j.collect)
	if j.classifier != nil {
		j.runLocked(ctx, "classify", j.classifier.Run)
	}
	if j.rater != nil {
		j.runLocked(ctx, "rating", j.rater.Run)
	}
}

// runLocked guards fn with the named lock. Contention is a silent skip;
// a panic inside fn is contained so a bad batch never kills the process.
func (j *Jobs) runLocked(ctx context.Context, name string, fn func(context.Context) error) {
	if j.locks == nil {
		j.safeRun(ctx, name, fn)
		return
	}

	release, held, err := j.locks.Acquire(ctx, name)
	if err != nil {
		j.warn("lock acquire failed", "job", name, "error", err)
		return
	}
	if !held {
		j.debug("lock held elsewhere, skipping", "job", name)
		return
	}
	defer release()

	j.safeRun(ctx, name, fn)
}

func (j *Jobs) safeRun(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			j.warn("job panicked", "job", name, "panic", fmt.Sprint(rec))
		}
	}()

	if err := fn(ctx); err != nil {
		j.warn("job failed", "job", name, "error", err)
	}
}

// collect drains every registered source through the ingestion stage. One
// source's failure does not stop the others.
func (j *Jobs) collect(ctx context.Context) error {
	if j.sources == nil || j.ingestor == nil {
		return nil
	}

	for _, src := range j.sources.All() {
		items, err := src.Collect(ctx)
		if err != nil {
			j.warn("source collect failed", "source", src.Name(), "error", err)
			continue
		}
		if len(items) == 0 {
			continue
		}

		stats, err := j.ingestor.IngestBatch(ctx, items)
		if err != nil {
			j.warn("ingest failed", "source", src.Name(), "error", err)
			continue
		}
		j.debug("source ingested", "source", src.Name(),
			"received", stats.Received, "saved", stats.Saved, "skipped", stats.Skipped)
	}

	return nil
}

func (j *Jobs) debug(msg string, args ...any) {
	if j.logger != nil {
		j.logger.Debug(msg, args...)
	}
}

func (j *Jobs) warn(msg string, args ...any) {
	if j.logger != nil {
		j.logger.Warn(msg, args...)
	}
}
