// Package writer is the single consumer of search outcomes. It owns the text
// log and tabular output files; nothing else opens them.
package writer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/metrics"
	"github.com/JakeFAU/heir-finder/internal/queue/memory"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/stats"
)

const (
	timestampLayout = "20060102_150405"
	clockLayout     = "2006-01-02 15:04:05"
	xlsxSheet       = "Sheet1"
)

// Config controls file placement and the run header.
type Config struct {
	Dir        string
	BaseName   string
	XLSX       bool
	PopTimeout time.Duration
	RunID      string
	Total      int
	Workers    int
	Start      int
	End        int
	StartedAt  time.Time
}

// Writer appends kept outcomes to the output files, syncing after each one.
type Writer struct {
	cfg    Config
	layout Layout
	stats  *stats.Stats
	sinks  map[string]scraper.OutcomeSink
	logger *zap.Logger
	stdout io.Writer

	logFile *os.File
	csvFile *os.File
	csv     *csv.Writer
	xlsx    *excelize.File
	xlsxRow int

	logPath  string
	csvPath  string
	xlsxPath string

	qualified map[int]bool
	kept      int
}

// New creates the output files and writes their headers. Existing files are
// never overwritten.
func New(cfg Config, layout Layout, st *stats.Stats, sinks map[string]scraper.OutcomeSink, logger *zap.Logger) (*Writer, error) {
	if layout == nil {
		return nil, errors.New("writer: layout is required")
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	if cfg.BaseName == "" {
		cfg.BaseName = layout.Name() + "_results"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s", cfg.BaseName, cfg.StartedAt.Format(timestampLayout)))
	w := &Writer{
		cfg:       cfg,
		layout:    layout,
		stats:     st,
		sinks:     sinks,
		logger:    logger,
		stdout:    os.Stdout,
		logPath:   base + ".txt",
		csvPath:   base + ".csv",
		qualified: make(map[int]bool),
	}

	var err error
	if w.logFile, err = createNew(w.logPath); err != nil {
		return nil, err
	}
	if err := w.appendLog(w.header()); err != nil {
		w.closeFiles()
		return nil, err
	}
	if w.csvFile, err = createNew(w.csvPath); err != nil {
		w.closeFiles()
		return nil, err
	}
	w.csv = csv.NewWriter(w.csvFile)
	if err := w.appendRow(layout.Header()); err != nil {
		w.closeFiles()
		return nil, err
	}
	if cfg.XLSX {
		w.xlsxPath = base + ".xlsx"
		w.xlsx = excelize.NewFile()
		if err := w.appendXLSX(layout.Header()); err != nil {
			w.closeFiles()
			return nil, err
		}
	}
	return w, nil
}

func createNew(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

// Paths returns the files written by this writer.
func (w *Writer) Paths() []string {
	paths := []string{w.logPath, w.csvPath}
	if w.xlsxPath != "" {
		paths = append(paths, w.xlsxPath)
	}
	return paths
}

// Kept returns the number of outcomes written so far.
func (w *Writer) Kept() int { return w.kept }

func (w *Writer) header() string {
	end := "end"
	if w.cfg.End > 0 {
		end = fmt.Sprint(w.cfg.End)
	}
	start := w.cfg.Start
	if start <= 0 {
		start = 1
	}
	rule := strings.Repeat("=", 100)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, w.layout.Title())
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Started: %s\n", w.cfg.StartedAt.Format(clockLayout))
	fmt.Fprintf(&b, "Run ID: %s\n", w.cfg.RunID)
	fmt.Fprintf(&b, "Total owners to process: %d\n", w.cfg.Total)
	fmt.Fprintf(&b, "Processing range: rows %d to %s\n", start, end)
	fmt.Fprintf(&b, "Number of workers: %d\n", w.cfg.Workers)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)
	return b.String()
}

// Run consumes outcomes until its sentinel arrives, or until the queue stays
// empty while every item is accounted for. A write failure is logged and the
// loop keeps draining; the first such error is returned.
func (w *Writer) Run(ctx context.Context, results *memory.Queue[scraper.SearchOutcome]) error {
	var firstErr error
	for {
		msg, err := results.Pop(ctx, w.cfg.PopTimeout)
		switch {
		case errors.Is(err, memory.ErrTimeout):
			if w.stats.AllDone(w.cfg.Total) && results.Len() == 0 {
				w.logger.Info("all work complete, writer stopping", zap.Int("kept", w.kept))
				return firstErr
			}
			continue
		case err != nil:
			if firstErr == nil {
				firstErr = err
			}
			return firstErr
		case msg.Stop:
			w.logger.Info("writer received shutdown signal", zap.Int("kept", w.kept))
			return firstErr
		}
		if err := w.Write(ctx, msg.Value); err != nil {
			w.logger.Error("write outcome failed",
				zap.String("row", msg.Value.Item.Label),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
}

// Write records one outcome if the layout keeps it.
func (w *Writer) Write(ctx context.Context, o scraper.SearchOutcome) error {
	if !w.layout.Keep(o) {
		return nil
	}
	w.kept++
	if err := w.appendLog(w.layout.Block(w.kept, o)); err != nil {
		return err
	}
	row := w.layout.Row(o)
	if err := w.appendRow(row); err != nil {
		return err
	}
	if w.xlsx != nil {
		if err := w.appendXLSX(row); err != nil {
			return err
		}
	}
	if !w.qualified[o.Item.Index] {
		w.qualified[o.Item.Index] = true
		w.stats.AddQualified()
		metrics.ItemQualified()
	}
	for name, sink := range w.sinks {
		if err := sink.Record(ctx, o); err != nil {
			metrics.ObserveSinkError(name)
			w.logger.Warn("outcome sink failed",
				zap.String("sink", name),
				zap.String("row", o.Item.Label),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Writer) appendLog(text string) error {
	if _, err := io.WriteString(w.logFile, text); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	if err := w.logFile.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}

func (w *Writer) appendRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := w.csvFile.Sync(); err != nil {
		return fmt.Errorf("sync csv: %w", err)
	}
	return nil
}

func (w *Writer) appendXLSX(row []string) error {
	w.xlsxRow++
	cell, err := excelize.CoordinatesToCellName(1, w.xlsxRow)
	if err != nil {
		return err
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	if err := w.xlsx.SetSheetRow(xlsxSheet, cell, &values); err != nil {
		return fmt.Errorf("write xlsx row: %w", err)
	}
	return nil
}

// WriteSummary appends the final summary to the log and prints it.
func (w *Writer) WriteSummary(s stats.Summary) error {
	rule := strings.Repeat("=", 100)
	minutes := s.Elapsed.Minutes()
	var b strings.Builder
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "FINAL SUMMARY")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(&b, "Total Owners Processed: %d of %d\n", s.Completed, s.Total)
	fmt.Fprintf(&b, "Total Qualified Properties: %d\n", s.Qualified)
	fmt.Fprintf(&b, "Disqualified: %d\n", s.Completed-s.Qualified)
	if s.Completed > 0 {
		fmt.Fprintf(&b, "Qualification Rate: %.1f%%\n", s.QualificationRate())
	}
	fmt.Fprintf(&b, "Total Processing Time: %.1f minutes\n", minutes)
	fmt.Fprintf(&b, "Average Speed: %.1f owners/minute\n", stats.Rate(s.Completed, s.Elapsed))
	fmt.Fprintf(&b, "Number of Workers: %d\n", s.Workers)
	if s.FailedWorkers > 0 {
		fmt.Fprintf(&b, "Failed Workers: %d\n", s.FailedWorkers)
	}
	fmt.Fprintf(&b, "Completed: %s\n", s.Started.Add(s.Elapsed).Format(clockLayout))
	fmt.Fprintln(&b, rule)

	text := b.String()
	if _, err := io.WriteString(w.stdout, text); err != nil {
		w.logger.Warn("print summary", zap.Error(err))
	}
	return w.appendLog(text)
}

// Close flushes and closes the output files and saves the workbook.
func (w *Writer) Close() error {
	var errs []error
	if w.xlsx != nil {
		if err := w.xlsx.SaveAs(w.xlsxPath); err != nil {
			errs = append(errs, fmt.Errorf("save xlsx: %w", err))
		}
	}
	errs = append(errs, w.closeFiles())
	return errors.Join(errs...)
}

func (w *Writer) closeFiles() error {
	var errs []error
	if w.csv != nil {
		w.csv.Flush()
		errs = append(errs, w.csv.Error())
		w.csv = nil
	}
	if w.csvFile != nil {
		errs = append(errs, w.csvFile.Close())
		w.csvFile = nil
	}
	if w.logFile != nil {
		errs = append(errs, w.logFile.Close())
		w.logFile = nil
	}
	if w.xlsx != nil {
		errs = append(errs, w.xlsx.Close())
		w.xlsx = nil
	}
	return errors.Join(errs...)
}
