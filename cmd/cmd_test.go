package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/app"
	"github.com/JakeFAU/heir-finder/internal/config"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/scraper/scrapertest"
	"github.com/JakeFAU/heir-finder/internal/stats"
)

type cleanScript struct{}

func (cleanScript) Name() string { return "clean" }

func (cleanScript) Warmup(context.Context, scraper.Page) error { return nil }

func (cleanScript) Search(context.Context, scraper.Page, scraper.Identity) (scraper.Result, error) {
	return scraper.Clean(1, map[string]string{"account_number": "001"}), nil
}

func (cleanScript) Reset(context.Context, scraper.Page) error { return nil }

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "owners.txt")
	require.NoError(t, os.WriteFile(path, []byte("SMITH JOHN\nDOE JANE A\nROE RICK\n"), 0o600))
	return path
}

func useFakeApp(t *testing.T) {
	t.Helper()
	t.Setenv("HEIRFINDER_RUN_SEARCH_RPS", "0")
	prev := newApp
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		return app.New(ctx, cfg, logger,
			app.WithScript(cleanScript{}),
			app.WithSessionFactory(func(context.Context) (scraper.Session, error) {
				return &scrapertest.Page{}, nil
			}),
		)
	}
	t.Cleanup(func() { newApp = prev })
}

func runCLI(ctx context.Context, args ...string) (int, string, string) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	code := execute(ctx, root, args)
	return code, out.String(), errOut.String()
}

func TestParseCommand(t *testing.T) {
	input := writeInput(t)

	code, out, _ := runCLI(context.Background(), "parse", "--input", input, "--variant", "tax", "--start", "2")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "DOE JANE")
	assert.Contains(t, out, "ROE RICK")
	assert.NotContains(t, out, "SMITH JOHN")
	assert.Contains(t, out, "2 items")
}

func TestRunCommandSucceeds(t *testing.T) {
	useFakeApp(t)
	input := writeInput(t)
	outDir := t.TempDir()

	code, _, errOut := runCLI(context.Background(), "run",
		"--input", input, "--variant", "tax", "--workers", "2", "--output-dir", outDir)
	require.Equal(t, ExitOK, code, errOut)

	csvs, err := filepath.Glob(filepath.Join(outDir, "tax_results_*.csv"))
	require.NoError(t, err)
	require.Len(t, csvs, 1)
}

func TestRunCommandMissingInput(t *testing.T) {
	useFakeApp(t)

	code, _, errOut := runCLI(context.Background(), "run", "--variant", "tax", "--output-dir", t.TempDir())
	assert.Equal(t, ExitSetup, code)
	assert.Contains(t, errOut, "--input")
}

func TestRunCommandEmptyRange(t *testing.T) {
	useFakeApp(t)

	code, _, errOut := runCLI(context.Background(), "run", "--input", writeInput(t), "--variant", "tax",
		"--start", "10", "--output-dir", t.TempDir())
	assert.Equal(t, ExitSetup, code)
	assert.Contains(t, errOut, "no work items")
}

func TestRunCommandBadRunID(t *testing.T) {
	useFakeApp(t)

	code, _, errOut := runCLI(context.Background(), "run", "--input", writeInput(t), "--variant", "tax",
		"--run-id", "nope", "--output-dir", t.TempDir())
	assert.Equal(t, ExitSetup, code)
	assert.Contains(t, errOut, "not a UUID")
}

func TestRunCommandInterrupted(t *testing.T) {
	useFakeApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, _ := runCLI(ctx, "run", "--input", writeInput(t), "--variant", "tax", "--output-dir", t.TempDir())
	assert.Equal(t, ExitInterrupted, code)
}

func TestExitFor(t *testing.T) {
	t.Parallel()

	done := stats.Summary{Total: 2, Completed: 2}
	partial := stats.Summary{Total: 2, Completed: 1, FailedWorkers: 2}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		summary stats.Summary
		err     error
		want    int
	}{
		{name: "complete", ctx: context.Background(), summary: done, want: ExitOK},
		{name: "incomplete", ctx: context.Background(), summary: partial, want: ExitIncomplete},
		{name: "interrupted wins", ctx: canceled, summary: partial, want: ExitInterrupted},
		{name: "complete with writer error", ctx: context.Background(), summary: done, err: errors.New("disk full"), want: ExitSetup},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := exitFor(tc.ctx, tc.summary, tc.err)
			if tc.want == ExitOK {
				require.NoError(t, err)
				return
			}
			var exitErr *exitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tc.want, exitErr.code)
		})
	}
}

func TestPrintItemsCoOwners(t *testing.T) {
	t.Parallel()

	items := []scraper.WorkItem{{
		Index: 7,
		Raw:   "SMITH JOHN & MARY",
		Identities: []scraper.Identity{
			{FirstName: "JOHN", LastName: "SMITH", SearchTerm: "SMITH, JOHN"},
			{FirstName: "MARY", LastName: "SMITH", SearchTerm: "SMITH, MARY"},
		},
	}, {Index: 8, Raw: "ACME LLC"}}

	var buf bytes.Buffer
	require.NoError(t, printItems(&buf, items))
	assert.Contains(t, buf.String(), "7.1")
	assert.Contains(t, buf.String(), "7.2")
	assert.Contains(t, buf.String(), "ACME LLC")
	assert.Contains(t, buf.String(), "3 identities")
}
