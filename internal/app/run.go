package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/api"
	"github.com/JakeFAU/heir-finder/internal/dispatcher"
	"github.com/JakeFAU/heir-finder/internal/policy/ratelimit"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/stats"
	"github.com/JakeFAU/heir-finder/internal/storage"
	pgstore "github.com/JakeFAU/heir-finder/internal/storage/postgres"
	"github.com/JakeFAU/heir-finder/internal/writer"
)

// RunParams describes one run over already-selected work items.
type RunParams struct {
	RunID string
	Items []scraper.WorkItem
}

// RunResult is what a finished run produced.
type RunResult struct {
	Summary  stats.Summary
	Files    []string
	Archived []storage.Archived
}

// Run processes p.Items end to end: output files, workers, optional status
// server, run record and archive upload. Errors from the run itself are
// returned alongside whatever summary was produced.
func (a *App) Run(ctx context.Context, p RunParams) (RunResult, error) {
	cfg := a.cfg
	startedAt := a.clock.Now()
	st := stats.New()

	layout, err := writer.LayoutFor(cfg.Variant())
	if err != nil {
		return RunResult{}, err
	}
	sinks, err := a.Sinks()
	if err != nil {
		return RunResult{}, err
	}
	w, err := writer.New(writer.Config{
		Dir:        cfg.Output.Dir,
		BaseName:   cfg.Output.BaseName,
		XLSX:       cfg.Output.XLSX,
		PopTimeout: cfg.Run.PopTimeout,
		RunID:      p.RunID,
		Total:      len(p.Items),
		Workers:    cfg.Run.Workers,
		Start:      cfg.Run.Start,
		End:        cfg.Run.End,
		StartedAt:  startedAt,
	}, layout, st, sinks, a.logger.Named("writer"))
	if err != nil {
		return RunResult{}, fmt.Errorf("open output: %w", err)
	}
	writerClosed := false
	defer func() {
		if !writerClosed {
			_ = w.Close()
		}
	}()

	d, err := dispatcher.New(dispatcher.Config{
		Workers:    cfg.Run.Workers,
		RunID:      p.RunID,
		PopTimeout: cfg.Run.PopTimeout,
	}, a.open, a.script, st, w, ratelimit.New(ratelimit.Config{
		RPS:   cfg.Run.SearchRPS,
		Burst: cfg.Run.SearchBurst,
	}), a.clock, a.logger)
	if err != nil {
		return RunResult{}, err
	}

	if a.store != nil {
		if err := a.store.StartRun(ctx, p.RunID, string(cfg.Variant()), len(p.Items), startedAt); err != nil {
			return RunResult{}, fmt.Errorf("record run start: %w", err)
		}
	}

	info := api.RunInfo{
		RunID:     p.RunID,
		Variant:   string(cfg.Variant()),
		Total:     len(p.Items),
		Workers:   cfg.Run.Workers,
		StartedAt: startedAt,
	}
	stopServer := a.startServer(ctx, info, st)
	defer stopServer()

	summary, runErr := d.Run(ctx, p.Items)
	res := RunResult{Summary: summary, Files: w.Paths()}

	writerClosed = true
	if err := w.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close output: %w", err))
	}

	// The operator may have interrupted the run; finish bookkeeping anyway.
	bg := context.WithoutCancel(ctx)
	if a.store != nil {
		status := pgstore.StatusFor(summary, ctx.Err() != nil)
		if err := a.store.FinishRun(bg, summary, status); err != nil {
			a.logger.Error("Failed to record run result", zap.Error(err))
		}
	}
	if a.archiver != nil {
		archived, err := a.archiver.Archive(bg, p.RunID, res.Files)
		res.Archived = archived
		if err != nil {
			a.logger.Error("Archive upload failed", zap.Error(err))
		}
	}
	return res, runErr
}

// startServer runs the status server for the duration of the run. The
// returned func stops it and waits for shutdown.
func (a *App) startServer(ctx context.Context, info api.RunInfo, st *stats.Stats) func() {
	srv := a.statusServer(info, api.NewProgressHandler(info, st, a.recent, a.clock))
	if srv == nil {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(srvCtx); err != nil {
			a.logger.Error("Status server failed", zap.Error(err))
		}
	}()
	srv.MarkReady(true)
	return func() {
		srv.MarkReady(false)
		cancel()
		wg.Wait()
	}
}
