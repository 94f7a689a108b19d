// Package worker runs one browser session against the shared work queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/clock/system"
	"github.com/JakeFAU/heir-finder/internal/metrics"
	"github.com/JakeFAU/heir-finder/internal/queue/memory"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/stats"
)

// Config controls Worker behavior.
type Config struct {
	ID         int
	RunID      string
	Total      int
	PopTimeout time.Duration
	StartedAt  time.Time
}

// Report summarizes one worker's run.
type Report struct {
	ID        int
	Processed int
	Err       error
}

// Worker consumes work items until it receives a sentinel, the queue drains or
// its session is lost.
type Worker struct {
	cfg     Config
	open    scraper.SessionFactory
	script  scraper.Script
	work    *memory.Queue[scraper.WorkItem]
	results *memory.Queue[scraper.SearchOutcome]
	stats   *stats.Stats
	limiter scraper.Limiter
	clock   scraper.Clock
	logger  *zap.Logger

	dirty     bool
	processed int
	readyAt   time.Time
}

// New constructs a Worker. limiter may be nil.
func New(
	cfg Config,
	open scraper.SessionFactory,
	script scraper.Script,
	work *memory.Queue[scraper.WorkItem],
	results *memory.Queue[scraper.SearchOutcome],
	st *stats.Stats,
	limiter scraper.Limiter,
	clock scraper.Clock,
	logger *zap.Logger,
) *Worker {
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Worker{
		cfg:     cfg,
		open:    open,
		script:  script,
		work:    work,
		results: results,
		stats:   st,
		limiter: limiter,
		clock:   clock,
		logger:  logger.With(zap.Int("worker", cfg.ID), zap.String("portal", script.Name())),
	}
}

// Run opens the session, runs the warmup sequence and consumes the queue. A
// setup failure returns before any item is taken so the remaining workers
// drain the queue.
func (w *Worker) Run(ctx context.Context) Report {
	report := Report{ID: w.cfg.ID}
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	session, err := w.open(ctx)
	if err != nil {
		report.Err = fmt.Errorf("open session: %w", err)
		w.logger.Error("browser session failed to start", zap.Error(err))
		return report
	}
	defer func() {
		if err := session.Close(); err != nil {
			w.logger.Warn("close session", zap.Error(err))
		}
	}()
	if err := w.script.Warmup(ctx, session); err != nil {
		report.Err = fmt.Errorf("warmup: %w", err)
		w.logger.Error("session warmup failed", zap.Error(err))
		return report
	}
	w.readyAt = w.clock.Now()
	w.logger.Info("worker ready")

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker interrupted", zap.Int("processed", report.Processed))
			return report
		}
		msg, err := w.work.Pop(ctx, w.cfg.PopTimeout)
		switch {
		case errors.Is(err, memory.ErrTimeout):
			if w.stats.Drained() {
				w.logger.Info("queue drained", zap.Int("processed", report.Processed))
				return report
			}
			continue
		case err != nil:
			w.logger.Info("worker interrupted", zap.Int("processed", report.Processed))
			return report
		case msg.Stop:
			w.logger.Info("worker finished", zap.Int("processed", report.Processed))
			return report
		}

		// An item that was started is always finished, even after an interrupt.
		err = w.processItem(context.WithoutCancel(ctx), session, msg.Value)
		report.Processed++
		if err != nil {
			report.Err = err
			w.logger.Error("browser session lost, worker stopping",
				zap.Int("processed", report.Processed),
				zap.Error(err),
			)
			return report
		}
	}
}

// processItem searches every identity of item and queues one outcome per
// identity. The returned error is non-nil only when the session is gone.
func (w *Worker) processItem(ctx context.Context, page scraper.Page, item scraper.WorkItem) error {
	w.stats.Begin()
	metrics.ItemStarted()

	var sessionErr error
	outcomes := make([]scraper.SearchOutcome, 0, len(item.Identities))
	if len(item.Identities) == 0 {
		outcomes = append(outcomes, w.outcome(item, 0, scraper.Identity{},
			scraper.Failed(errors.New("no identities parsed from owner record"))))
	}
	for i, id := range item.Identities {
		if sessionErr != nil {
			outcomes = append(outcomes, w.outcome(item, i, id, scraper.Failed(sessionErr)))
			continue
		}
		res, err := w.searchIdentity(ctx, page, id)
		if errors.Is(err, scraper.ErrSessionLost) {
			sessionErr = err
		}
		outcomes = append(outcomes, w.outcome(item, i, id, res))
	}

	results := make([]scraper.Result, len(outcomes))
	for i := range outcomes {
		results[i] = outcomes[i].Result
	}
	disqualified := scraper.AnyDisqualified(results)
	for i := range outcomes {
		outcomes[i].ItemDisqualified = disqualified
		w.results.Put(outcomes[i])
	}

	w.stats.Finish()
	metrics.ItemFinished()
	w.processed++
	w.logProgress(item, outcomes)
	return sessionErr
}

// searchIdentity runs one attempt and always resets the page afterwards. A
// failed reset is retried before the next search.
func (w *Worker) searchIdentity(ctx context.Context, page scraper.Page, id scraper.Identity) (scraper.Result, error) {
	if w.dirty {
		if err := w.reset(ctx, page); err != nil {
			return scraper.Failed(fmt.Errorf("page not reset: %w", err)), err
		}
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, w.script.Name()); err != nil {
			return scraper.Failed(err), nil
		}
	}

	start := w.clock.Now()
	res, err := w.attempt(ctx, page, id)
	metrics.ObserveSearch(w.script.Name(), string(res.Status()), w.clock.Now().Sub(start))
	if err != nil {
		w.logger.Warn("search failed",
			zap.String("search_term", id.SearchTerm),
			zap.Error(err),
		)
	}

	if resetErr := w.reset(ctx, page); errors.Is(resetErr, scraper.ErrSessionLost) && !errors.Is(err, scraper.ErrSessionLost) {
		err = resetErr
	}
	return res, err
}

// attempt runs the script, converting errors and panics into ERROR results.
func (w *Worker) attempt(ctx context.Context, page scraper.Page, id scraper.Identity) (res scraper.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panicked: %v", r)
			res = scraper.Failed(err)
		}
	}()
	res, err = w.script.Search(ctx, page, id)
	if err != nil {
		return scraper.Failed(err), err
	}
	if !res.Valid() {
		err = errors.New("search returned no status")
		return scraper.Failed(err), err
	}
	return res, nil
}

func (w *Worker) reset(ctx context.Context, page scraper.Page) error {
	err := w.script.Reset(ctx, page)
	w.dirty = err != nil
	if err != nil {
		metrics.ObserveResetFailure()
		w.logger.Warn("page reset failed, retrying before next search", zap.Error(err))
	}
	return err
}

func (w *Worker) outcome(item scraper.WorkItem, i int, id scraper.Identity, res scraper.Result) scraper.SearchOutcome {
	return scraper.SearchOutcome{
		RunID: w.cfg.RunID,
		Item: scraper.ItemRef{
			Index: item.Index,
			Label: item.Label(i),
			Raw:   item.Raw,
		},
		Identity:   id,
		Property:   item.Property,
		Result:     res,
		Worker:     w.cfg.ID,
		FinishedAt: w.clock.Now(),
	}
}

func (w *Worker) logProgress(item scraper.WorkItem, outcomes []scraper.SearchOutcome) {
	statuses := make([]string, len(outcomes))
	for i, o := range outcomes {
		statuses[i] = string(o.Result.Status())
	}
	now := w.clock.Now()
	p := w.stats.Snapshot().Progress(w.cfg.Total, now.Sub(w.cfg.StartedAt))
	w.logger.Info("item processed",
		zap.Int("row", item.Index),
		zap.String("owner", item.Raw),
		zap.Strings("statuses", statuses),
		zap.Int("processed", w.processed),
		zap.Float64("local_rate_per_min", stats.Rate(w.processed, now.Sub(w.readyAt))),
		zap.Int("completed", p.Completed),
		zap.Int("total", p.Total),
		zap.Float64("percent", p.Percent),
		zap.Int("qualified", p.Qualified),
		zap.Float64("rate_per_min", p.RatePerMinute),
		zap.Duration("eta", p.ETA),
	)
}
