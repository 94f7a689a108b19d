// Package config loads and validates heirfinder configuration via Viper.
package config

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/heir-finder/internal/browser"
	"github.com/JakeFAU/heir-finder/internal/captcha"
	"github.com/JakeFAU/heir-finder/internal/poll"
	"github.com/JakeFAU/heir-finder/internal/portal/probate"
	"github.com/JakeFAU/heir-finder/internal/portal/tax"
	"github.com/JakeFAU/heir-finder/internal/source"
)

// EnvPrefix is prepended to every environment override, e.g.
// HEIRFINDER_RUN_WORKERS=4.
const EnvPrefix = "HEIRFINDER"

// Config captures every configuration section.
type Config struct {
	Run      RunConfig      `mapstructure:"run"`
	Source   SourceConfig   `mapstructure:"source"`
	Probate  ProbateConfig  `mapstructure:"probate"`
	Tax      TaxConfig      `mapstructure:"tax"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RunConfig controls the worker pool and the row range.
type RunConfig struct {
	Workers     int           `mapstructure:"workers"`
	Start       int           `mapstructure:"start"`
	End         int           `mapstructure:"end"`
	SearchRPS   float64       `mapstructure:"search_rps"`
	SearchBurst int           `mapstructure:"search_burst"`
	PopTimeout  time.Duration `mapstructure:"pop_timeout"`
	RunID       string        `mapstructure:"run_id"`
}

// SourceConfig selects the input extract.
type SourceConfig struct {
	Input       string `mapstructure:"input"`
	Variant     string `mapstructure:"variant"`
	HeaderLines int    `mapstructure:"header_lines"`
}

// ProbateConfig overrides the probate portal defaults.
type ProbateConfig struct {
	URL                string        `mapstructure:"url"`
	DisqualifyingTypes []string      `mapstructure:"disqualifying_case_types"`
	NoResultsMarkers   []string      `mapstructure:"no_results_markers"`
	ResultPollAttempts int           `mapstructure:"result_poll_attempts"`
	ResultPollInterval time.Duration `mapstructure:"result_poll_interval"`
	MaskTimeout        time.Duration `mapstructure:"mask_timeout"`
	ResetTimeout       time.Duration `mapstructure:"reset_timeout"`
	SettleDelay        time.Duration `mapstructure:"settle_delay"`
}

// TaxConfig overrides the tax portal defaults and qualification thresholds.
// A CurrentYear of 0 means the calendar year at load time.
type TaxConfig struct {
	SearchURL           string        `mapstructure:"search_url"`
	PageTimeout         time.Duration `mapstructure:"page_timeout"`
	MaxTotalTaxRatio    float64       `mapstructure:"max_total_tax_ratio"`
	MinAnnualTaxRate    float64       `mapstructure:"min_annual_tax_rate"`
	MinConsecutiveYears int           `mapstructure:"min_consecutive_years"`
	LookbackYears       int           `mapstructure:"lookback_years"`
	CurrentYear         int           `mapstructure:"current_year"`
}

// BrowserConfig controls the chromedp sessions.
type BrowserConfig struct {
	Headless          bool              `mapstructure:"headless"`
	NoSandbox         bool              `mapstructure:"no_sandbox"`
	ExecPath          string            `mapstructure:"exec_path"`
	UserAgent         string            `mapstructure:"user_agent"`
	WindowWidth       int               `mapstructure:"window_width"`
	WindowHeight      int               `mapstructure:"window_height"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout"`
	ActionTimeout     time.Duration     `mapstructure:"action_timeout"`
	SlowMo            time.Duration     `mapstructure:"slow_mo"`
	Headers           map[string]string `mapstructure:"headers"`
}

// CaptchaConfig holds the solving vendor credentials. An empty APIKey
// disables solving.
type CaptchaConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// OutputConfig places the result files.
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	BaseName     string `mapstructure:"base_name"`
	XLSX         bool   `mapstructure:"xlsx"`
	RecentBuffer int    `mapstructure:"recent_buffer"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	APIKey  string `mapstructure:"api_key"`
}

// DatabaseConfig controls the optional Postgres outcome store.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	OutcomesTable   string        `mapstructure:"outcomes_table"`
	RunsTable       string        `mapstructure:"runs_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// StorageConfig controls archiving of the output files after the run.
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Backend         string `mapstructure:"backend"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	CredentialsFile string `mapstructure:"credentials_file"`
	BaseDir         string `mapstructure:"base_dir"`
}

// PubSubConfig controls lead publishing.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
	Endpoint  string `mapstructure:"endpoint"`
	Event     string `mapstructure:"event"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional file plus environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper applies defaults to v, unmarshals it and validates the result.
func FromViper(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Output.BaseName == "" {
		cfg.Output.BaseName = cfg.Source.Variant + "_results"
	}
	if cfg.Tax.CurrentYear == 0 {
		cfg.Tax.CurrentYear = time.Now().Year()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every default. Defaults are registered explicitly so
// AutomaticEnv can override keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	pd := probate.DefaultConfig()
	td := tax.DefaultConfig()

	v.SetDefault("run.workers", 3)
	v.SetDefault("run.start", 0)
	v.SetDefault("run.end", 0)
	v.SetDefault("run.search_rps", 0.5)
	v.SetDefault("run.search_burst", 1)
	v.SetDefault("run.pop_timeout", "5s")
	v.SetDefault("run.run_id", "")

	v.SetDefault("source.input", "")
	v.SetDefault("source.variant", string(source.VariantProbate))
	v.SetDefault("source.header_lines", 0)

	v.SetDefault("probate.url", pd.URL)
	v.SetDefault("probate.disqualifying_case_types", pd.DisqualifyingTypes)
	v.SetDefault("probate.no_results_markers", pd.NoResultsMarkers)
	v.SetDefault("probate.result_poll_attempts", pd.ResultPoll.Attempts)
	v.SetDefault("probate.result_poll_interval", pd.ResultPoll.Interval.String())
	v.SetDefault("probate.mask_timeout", pd.MaskTimeout.String())
	v.SetDefault("probate.reset_timeout", pd.ResetTimeout.String())
	v.SetDefault("probate.settle_delay", pd.SettleDelay.String())

	v.SetDefault("tax.search_url", td.SearchURL)
	v.SetDefault("tax.page_timeout", td.PageTimeout.String())
	v.SetDefault("tax.max_total_tax_ratio", td.Criteria.MaxTotalTaxRatio)
	v.SetDefault("tax.min_annual_tax_rate", td.Criteria.MinAnnualTaxRate)
	v.SetDefault("tax.min_consecutive_years", td.Criteria.MinConsecutiveYears)
	v.SetDefault("tax.lookback_years", td.Criteria.LookbackYears)
	v.SetDefault("tax.current_year", 0)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.slow_mo", "0s")

	v.SetDefault("captcha.api_key", "")
	v.SetDefault("captcha.base_url", captcha.DefaultBaseURL)
	v.SetDefault("captcha.timeout", "180s")
	v.SetDefault("captcha.poll_interval", "3s")

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.base_name", "")
	v.SetDefault("output.xlsx", false)
	v.SetDefault("output.recent_buffer", 200)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_key", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.outcomes_table", "search_outcomes")
	v.SetDefault("database.runs_table", "search_runs")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", "30m")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.backend", "gcs")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "heirfinder")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("storage.base_dir", "")

	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("pubsub.endpoint", "")
	v.SetDefault("pubsub.event", "heir_lead")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate performs semantic validation across every section.
func (c Config) Validate() error {
	validators := []func() error{
		c.Run.Validate,
		c.Source.Validate,
		c.Browser.Validate,
		c.Output.Validate,
		c.Server.Validate,
		c.Database.Validate,
		c.Storage.Validate,
		c.PubSub.Validate,
		c.Logging.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	switch source.Variant(c.Source.Variant) {
	case source.VariantProbate:
		return c.ProbatePortal().Validate()
	case source.VariantTax:
		return c.TaxPortal().Validate()
	}
	return nil
}

// Validate checks the run section.
func (r RunConfig) Validate() error {
	switch {
	case r.Workers <= 0:
		return fmt.Errorf("run.workers must be > 0")
	case r.Start < 0:
		return fmt.Errorf("run.start must be >= 0")
	case r.End < 0:
		return fmt.Errorf("run.end must be >= 0")
	case r.End > 0 && r.Start > r.End:
		return fmt.Errorf("run.start must be <= run.end")
	case r.SearchRPS < 0:
		return fmt.Errorf("run.search_rps must be >= 0")
	case r.PopTimeout <= 0:
		return fmt.Errorf("run.pop_timeout must be > 0")
	}
	return nil
}

// Validate checks the source section. The input path itself is checked by
// the command, which may also take it from a flag.
func (s SourceConfig) Validate() error {
	if !source.Variant(s.Variant).Valid() {
		return fmt.Errorf("source.variant must be one of probate, tax (got %q)", s.Variant)
	}
	if s.HeaderLines < 0 {
		return fmt.Errorf("source.header_lines must be >= 0")
	}
	return nil
}

// Validate checks the browser section.
func (b BrowserConfig) Validate() error {
	if b.NavigationTimeout < 0 || b.ActionTimeout < 0 || b.SlowMo < 0 {
		return fmt.Errorf("browser timeouts must be >= 0")
	}
	if (b.WindowWidth == 0) != (b.WindowHeight == 0) {
		return fmt.Errorf("browser.window_width and browser.window_height must be set together")
	}
	return nil
}

// Validate checks the output section.
func (o OutputConfig) Validate() error {
	if strings.TrimSpace(o.Dir) == "" {
		return fmt.Errorf("output.dir is required")
	}
	if strings.ContainsAny(o.BaseName, `/\`) {
		return fmt.Errorf("output.base_name must not contain path separators")
	}
	if o.RecentBuffer < 0 {
		return fmt.Errorf("output.recent_buffer must be >= 0")
	}
	return nil
}

// Validate checks the server section.
func (s ServerConfig) Validate() error {
	if s.Enabled && strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("server.addr is required when server.enabled")
	}
	return nil
}

// Validate checks the database section.
func (d DatabaseConfig) Validate() error {
	if !d.Enabled {
		return nil
	}
	if strings.TrimSpace(d.DSN) == "" {
		return fmt.Errorf("database.dsn is required when database.enabled")
	}
	if d.MaxConns < 0 || d.MinConns < 0 || (d.MaxConns > 0 && d.MinConns > d.MaxConns) {
		return fmt.Errorf("database.min_conns must be between 0 and database.max_conns")
	}
	return nil
}

// Validate checks the storage section.
func (s StorageConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	switch s.Backend {
	case "gcs":
		if strings.TrimSpace(s.Bucket) == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	case "local":
		if strings.TrimSpace(s.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	default:
		return fmt.Errorf("storage.backend must be gcs or local (got %q)", s.Backend)
	}
	return nil
}

// Validate checks the pubsub section.
func (p PubSubConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.ProjectID == "" || p.TopicID == "" {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id are required when pubsub.enabled")
	}
	return nil
}

// Validate checks the logging section.
func (l LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", l.Level)
}

// Variant returns the selected source variant.
func (c Config) Variant() source.Variant {
	return source.Variant(c.Source.Variant)
}

// ProbatePortal merges the probate overrides into the portal defaults.
func (c Config) ProbatePortal() probate.Config {
	out := probate.DefaultConfig()
	p := c.Probate
	if p.URL != "" {
		out.URL = p.URL
	}
	if len(p.DisqualifyingTypes) > 0 {
		out.DisqualifyingTypes = p.DisqualifyingTypes
	}
	if len(p.NoResultsMarkers) > 0 {
		out.NoResultsMarkers = p.NoResultsMarkers
	}
	if p.ResultPollAttempts > 0 || p.ResultPollInterval > 0 {
		out.ResultPoll = poll.Fixed(
			cmp.Or(p.ResultPollAttempts, out.ResultPoll.Attempts),
			cmp.Or(p.ResultPollInterval, out.ResultPoll.Interval),
		)
	}
	out.MaskTimeout = cmp.Or(p.MaskTimeout, out.MaskTimeout)
	out.ResetTimeout = cmp.Or(p.ResetTimeout, out.ResetTimeout)
	out.SettleDelay = cmp.Or(p.SettleDelay, out.SettleDelay)
	return out
}

// TaxPortal merges the tax overrides into the portal defaults.
func (c Config) TaxPortal() tax.Config {
	out := tax.DefaultConfig()
	t := c.Tax
	if t.SearchURL != "" {
		out.SearchURL = t.SearchURL
	}
	out.PageTimeout = cmp.Or(t.PageTimeout, out.PageTimeout)
	out.Criteria.MaxTotalTaxRatio = cmp.Or(t.MaxTotalTaxRatio, out.Criteria.MaxTotalTaxRatio)
	out.Criteria.MinAnnualTaxRate = cmp.Or(t.MinAnnualTaxRate, out.Criteria.MinAnnualTaxRate)
	out.Criteria.MinConsecutiveYears = cmp.Or(t.MinConsecutiveYears, out.Criteria.MinConsecutiveYears)
	out.Criteria.LookbackYears = cmp.Or(t.LookbackYears, out.Criteria.LookbackYears)
	out.Criteria.CurrentYear = cmp.Or(t.CurrentYear, out.Criteria.CurrentYear)
	return out
}

// BrowserLauncher converts the browser section.
func (c Config) BrowserLauncher() browser.Config {
	b := c.Browser
	return browser.Config{
		Headless:          b.Headless,
		NoSandbox:         b.NoSandbox,
		ExecPath:          b.ExecPath,
		UserAgent:         b.UserAgent,
		WindowWidth:       b.WindowWidth,
		WindowHeight:      b.WindowHeight,
		NavigationTimeout: b.NavigationTimeout,
		ActionTimeout:     b.ActionTimeout,
		SlowMo:            b.SlowMo,
		Headers:           b.Headers,
	}
}

// CaptchaClient converts the captcha section. ok is false when solving is
// disabled.
func (c Config) CaptchaClient() (captcha.Config, bool) {
	k := c.Captcha
	if strings.TrimSpace(k.APIKey) == "" {
		return captcha.Config{}, false
	}
	return captcha.Config{
		APIKey:       k.APIKey,
		BaseURL:      k.BaseURL,
		Timeout:      k.Timeout,
		PollInterval: k.PollInterval,
	}, true
}
