package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/app"
	"github.com/JakeFAU/heir-finder/internal/config"
	"github.com/JakeFAU/heir-finder/internal/id/uuid"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/source"
	"github.com/JakeFAU/heir-finder/internal/stats"
)

// newApp builds the application; tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search every selected row and write the qualifying results",
		Long: `Loads the input extract, keeps rows in [--start, --end], and processes them
with --workers browser sessions. Exit status is 0 when every row was processed,
1 on setup failure, 2 when rows were left unprocessed and 130 when interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd.Context(), opts)
		},
	}
	cmd.Flags().Int("workers", 0, "number of concurrent browser workers")
	cmd.Flags().Bool("headless", true, "run Chrome without a window")
	cmd.Flags().String("run-id", "", "run identifier (UUID); generated when empty")
	cmd.Flags().String("output-dir", "", "directory for the result files")
	cmd.Flags().Bool("xlsx", false, "also write an XLSX workbook")
	bindFlags(opts.v, cmd, map[string]string{
		"run.workers":      "workers",
		"browser.headless": "headless",
		"run.run_id":       "run-id",
		"output.dir":       "output-dir",
		"output.xlsx":      "xlsx",
	}, false)
	return cmd
}

func runSearch(ctx context.Context, opts *rootOptions) error {
	cfg, logger := opts.cfg, opts.logger

	items, err := loadItems(cfg, logger)
	if err != nil {
		return withCode(ExitSetup, err)
	}
	runID, err := resolveRunID(cfg.Run.RunID)
	if err != nil {
		return withCode(ExitSetup, err)
	}
	logger = logger.With(zap.String("run", uuid.Short(runID)))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return withCode(ExitSetup, fmt.Errorf("initialize services: %w", err))
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("Error closing services", zap.Error(cerr))
		}
	}()

	logger.Info("Starting run",
		zap.String("run_id", runID),
		zap.String("variant", cfg.Source.Variant),
		zap.Int("items", len(items)),
		zap.Int("workers", cfg.Run.Workers),
	)
	res, runErr := a.Run(ctx, app.RunParams{RunID: runID, Items: items})
	if len(res.Files) > 0 {
		logger.Info("Results written", zap.Strings("files", res.Files))
	}
	return exitFor(ctx, res.Summary, runErr)
}

// exitFor maps the end state of a run to an exit code: interruption wins,
// then unprocessed items, then any other run error.
func exitFor(ctx context.Context, summary stats.Summary, runErr error) error {
	switch {
	case ctx.Err() != nil:
		return withCode(ExitInterrupted, errors.New("interrupted by operator"))
	case !summary.Complete():
		msg := fmt.Sprintf("%d of %d items unprocessed (%d workers failed)",
			summary.Total-summary.Completed, summary.Total, summary.FailedWorkers)
		if runErr != nil {
			msg += ": " + runErr.Error()
		}
		return withCode(ExitIncomplete, errors.New(msg))
	case runErr != nil:
		return withCode(ExitSetup, runErr)
	}
	return nil
}

func loadItems(cfg config.Config, logger *zap.Logger) ([]scraper.WorkItem, error) {
	if strings.TrimSpace(cfg.Source.Input) == "" {
		return nil, errors.New("source.input (--input) is required")
	}
	res, err := source.Load(cfg.Source.Input, cfg.Variant(), cfg.Source.HeaderLines)
	if err != nil {
		return nil, err
	}
	if res.Skipped > 0 {
		logger.Warn("Skipped unparseable rows", zap.Int("skipped", res.Skipped))
	}
	items := source.Select(res.Items, cfg.Run.Start, cfg.Run.End)
	if len(items) == 0 {
		return nil, fmt.Errorf("no work items in range [%d, %d] of %d parsed", cfg.Run.Start, cfg.Run.End, len(res.Items))
	}
	return items, nil
}

func resolveRunID(configured string) (string, error) {
	if configured != "" {
		if !uuid.Valid(configured) {
			return "", fmt.Errorf("run.run_id %q is not a UUID", configured)
		}
		return configured, nil
	}
	id, err := uuid.New().NewID()
	if err != nil {
		return "", err
	}
	return id, nil
}
