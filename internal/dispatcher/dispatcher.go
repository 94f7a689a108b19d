// Package dispatcher fans work items out to a pool of browser workers and a
// single result writer, then accounts for the run.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/clock/system"
	"github.com/JakeFAU/heir-finder/internal/queue/memory"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/stats"
	"github.com/JakeFAU/heir-finder/internal/worker"
)

// Aggregator consumes the results queue. The writer implements it.
type Aggregator interface {
	Run(ctx context.Context, results *memory.Queue[scraper.SearchOutcome]) error
	WriteSummary(s stats.Summary) error
}

// Config controls the worker pool.
type Config struct {
	Workers    int
	RunID      string
	PopTimeout time.Duration
}

// Dispatcher owns the queues for one run.
type Dispatcher struct {
	cfg     Config
	open    scraper.SessionFactory
	script  scraper.Script
	stats   *stats.Stats
	writer  Aggregator
	limiter scraper.Limiter
	clock   scraper.Clock
	logger  *zap.Logger
}

// New creates a Dispatcher. st must be the same Stats handle the writer uses.
func New(
	cfg Config,
	open scraper.SessionFactory,
	script scraper.Script,
	st *stats.Stats,
	writer Aggregator,
	limiter scraper.Limiter,
	clock scraper.Clock,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("dispatcher: workers must be > 0")
	}
	if open == nil || script == nil || st == nil || writer == nil {
		return nil, errors.New("dispatcher: session factory, script, stats and writer are required")
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:     cfg,
		open:    open,
		script:  script,
		stats:   st,
		writer:  writer,
		limiter: limiter,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Run enqueues items followed by one sentinel per worker, runs the pool to
// completion and writes the summary. Canceling ctx stops workers between
// items; the writer still drains everything they produced.
func (d *Dispatcher) Run(ctx context.Context, items []scraper.WorkItem) (stats.Summary, error) {
	started := d.clock.Now()
	total := len(items)

	work := memory.New[scraper.WorkItem]()
	results := memory.New[scraper.SearchOutcome]()
	for _, it := range items {
		work.Put(it)
	}
	for i := 0; i < d.cfg.Workers; i++ {
		work.PutStop()
	}
	d.logger.Info("work queue populated",
		zap.String("run_id", d.cfg.RunID),
		zap.Int("items", total),
		zap.Int("workers", d.cfg.Workers),
	)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- d.writer.Run(context.WithoutCancel(ctx), results)
	}()

	reports := make([]worker.Report, d.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w := worker.New(
				worker.Config{
					ID:         slot + 1,
					RunID:      d.cfg.RunID,
					Total:      total,
					PopTimeout: d.cfg.PopTimeout,
					StartedAt:  started,
				},
				d.open,
				d.script,
				work,
				results,
				d.stats,
				d.limiter,
				d.clock,
				d.logger,
			)
			reports[slot] = w.Run(ctx)
		}(i)
	}
	wg.Wait()
	d.logger.Info("all workers finished")

	results.PutStop()
	writerErr := <-writerDone

	snap := d.stats.Snapshot()
	summary := stats.Summary{
		RunID:      d.cfg.RunID,
		Total:      total,
		Completed:  snap.Completed,
		Qualified:  snap.Qualified,
		InProgress: snap.InProgress,
		Workers:    d.cfg.Workers,
		Started:    started,
		Elapsed:    d.clock.Now().Sub(started),
	}
	for _, r := range reports {
		if r.Err != nil {
			summary.FailedWorkers++
			d.logger.Warn("worker ended with error", zap.Int("worker", r.ID), zap.Error(r.Err))
		}
	}

	var errs []error
	if writerErr != nil {
		errs = append(errs, fmt.Errorf("writer: %w", writerErr))
	}
	if err := d.writer.WriteSummary(summary); err != nil {
		errs = append(errs, fmt.Errorf("write summary: %w", err))
	}
	d.logger.Info("run finished",
		zap.Int("completed", summary.Completed),
		zap.Int("total", summary.Total),
		zap.Int("qualified", summary.Qualified),
		zap.Int("failed_workers", summary.FailedWorkers),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, errors.Join(errs...)
}
