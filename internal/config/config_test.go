package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/heir-finder/internal/source"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Run.Workers)
	assert.Equal(t, 5*time.Second, cfg.Run.PopTimeout)
	assert.Equal(t, source.VariantProbate, cfg.Variant())
	assert.Equal(t, "probate_results", cfg.Output.BaseName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, time.Now().Year(), cfg.Tax.CurrentYear)

	probate := cfg.ProbatePortal()
	assert.Equal(t, []string{"DECEDENT - WILL", "HEIRSHIP"}, probate.DisqualifyingTypes)
	assert.Equal(t, 20, probate.ResultPoll.Attempts)

	_, ok := cfg.CaptchaClient()
	assert.False(t, ok)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
run:
  workers: 5
  start: 10
  end: 20
  search_rps: 2
source:
  input: owners.txt
  variant: tax
  header_lines: 3
tax:
  max_total_tax_ratio: 0.5
  min_consecutive_years: 4
  current_year: 2024
browser:
  headless: false
  window_width: 800
  window_height: 600
captcha:
  api_key: secret
  timeout: 90s
output:
  dir: out
  xlsx: true
database:
  enabled: true
  dsn: postgres://localhost/leads
storage:
  enabled: true
  backend: local
  base_dir: archive
logging:
  development: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Run.Workers)
	assert.Equal(t, 10, cfg.Run.Start)
	assert.Equal(t, 20, cfg.Run.End)
	assert.Equal(t, source.VariantTax, cfg.Variant())
	assert.Equal(t, "tax_results", cfg.Output.BaseName)
	assert.True(t, cfg.Output.XLSX)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "search_outcomes", cfg.Database.OutcomesTable)

	taxCfg := cfg.TaxPortal()
	assert.InDelta(t, 0.5, taxCfg.Criteria.MaxTotalTaxRatio, 1e-9)
	assert.InDelta(t, 0.015, taxCfg.Criteria.MinAnnualTaxRate, 1e-9)
	assert.Equal(t, 4, taxCfg.Criteria.MinConsecutiveYears)
	assert.Equal(t, 2024, taxCfg.Criteria.CurrentYear)

	b := cfg.BrowserLauncher()
	assert.False(t, b.Headless)
	assert.Equal(t, 800, b.WindowWidth)

	captchaCfg, ok := cfg.CaptchaClient()
	require.True(t, ok)
	assert.Equal(t, "secret", captchaCfg.APIKey)
	assert.Equal(t, 90*time.Second, captchaCfg.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HEIRFINDER_RUN_WORKERS", "7")
	t.Setenv("HEIRFINDER_PROBATE_SETTLE_DELAY", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Run.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.ProbatePortal().SettleDelay)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := FromViper(viper.New())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero workers", mutate: func(c *Config) { c.Run.Workers = 0 }, wantErr: "run.workers must be > 0"},
		{name: "inverted range", mutate: func(c *Config) { c.Run.Start, c.Run.End = 9, 3 }, wantErr: "run.start must be <= run.end"},
		{name: "open-ended range", mutate: func(c *Config) { c.Run.Start, c.Run.End = 9, 0 }},
		{name: "bad variant", mutate: func(c *Config) { c.Source.Variant = "deeds" }, wantErr: "source.variant"},
		{name: "half window", mutate: func(c *Config) { c.Browser.WindowHeight = 0 }, wantErr: "browser.window_width"},
		{name: "db without dsn", mutate: func(c *Config) { c.Database.Enabled = true }, wantErr: "database.dsn"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Enabled = true }, wantErr: "storage.bucket"},
		{name: "unknown backend", mutate: func(c *Config) {
			c.Storage.Enabled = true
			c.Storage.Backend = "s3"
		}, wantErr: "storage.backend"},
		{name: "pubsub without topic", mutate: func(c *Config) {
			c.PubSub.Enabled = true
			c.PubSub.ProjectID = "p"
		}, wantErr: "pubsub.project_id"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "base name with slash", mutate: func(c *Config) { c.Output.BaseName = "a/b" }, wantErr: "output.base_name"},
		{name: "bad tax criteria", mutate: func(c *Config) {
			c.Source.Variant = "tax"
			c.Tax.LookbackYears = 1
		}, wantErr: "tax.lookback_years"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
