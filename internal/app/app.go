// Package app builds the long-lived services for one run from configuration
// and runs it. Optional infrastructure (Postgres, Pub/Sub, archive storage,
// status server) is only dialed when its section is enabled.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/api"
	"github.com/JakeFAU/heir-finder/internal/browser"
	"github.com/JakeFAU/heir-finder/internal/captcha"
	"github.com/JakeFAU/heir-finder/internal/clock/system"
	"github.com/JakeFAU/heir-finder/internal/config"
	"github.com/JakeFAU/heir-finder/internal/hash/sha256"
	"github.com/JakeFAU/heir-finder/internal/portal/probate"
	"github.com/JakeFAU/heir-finder/internal/portal/tax"
	"github.com/JakeFAU/heir-finder/internal/publisher"
	gcppublisher "github.com/JakeFAU/heir-finder/internal/publisher/pubsub"
	"github.com/JakeFAU/heir-finder/internal/scraper"
	"github.com/JakeFAU/heir-finder/internal/source"
	"github.com/JakeFAU/heir-finder/internal/storage"
	gcsstorage "github.com/JakeFAU/heir-finder/internal/storage/gcs"
	localstorage "github.com/JakeFAU/heir-finder/internal/storage/local"
	pgstore "github.com/JakeFAU/heir-finder/internal/storage/postgres"
)

// App holds the services shared by one run.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  scraper.Clock

	open   scraper.SessionFactory
	script scraper.Script

	store     *pgstore.Store
	publisher publisher.Publisher
	blobs     storage.BlobStore
	archiver  *storage.Archiver
	recent    *api.Recent

	closers []func() error
}

// Option overrides a dependency, mainly for tests.
type Option func(*App)

// WithSessionFactory replaces the chromedp launcher.
func WithSessionFactory(open scraper.SessionFactory) Option {
	return func(a *App) { a.open = open }
}

// WithScript replaces the portal script chosen by source.variant.
func WithScript(script scraper.Script) Option {
	return func(a *App) { a.script = script }
}

// WithClock replaces the system clock.
func WithClock(clock scraper.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// WithOutcomeStore uses store instead of dialing database.dsn.
func WithOutcomeStore(store *pgstore.Store) Option {
	return func(a *App) { a.store = store }
}

// WithPublisher uses pub instead of dialing Pub/Sub.
func WithPublisher(pub publisher.Publisher) Option {
	return func(a *App) { a.publisher = pub }
}

// WithBlobStore uses blobs instead of the configured archive backend.
func WithBlobStore(blobs storage.BlobStore) Option {
	return func(a *App) { a.blobs = blobs }
}

// New validates cfg and initializes every enabled service. It fails fast: any
// enabled service that cannot be reached is a setup error.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = system.New()
	}

	if err := a.init(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("Cleanup after failed init", zap.Error(closeErr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if a.script == nil {
		script, err := a.buildScript()
		if err != nil {
			return err
		}
		a.script = script
	}
	if a.open == nil {
		launcher, err := browser.NewLauncher(a.cfg.BrowserLauncher(), a.logger.Named("browser"))
		if err != nil {
			return fmt.Errorf("browser: %w", err)
		}
		a.open = launcher.Open
	}
	if a.cfg.Server.Enabled || a.cfg.Output.RecentBuffer > 0 {
		a.recent = api.NewRecent(a.cfg.Output.RecentBuffer)
	}
	if err := a.initStore(ctx); err != nil {
		return err
	}
	if err := a.initPublisher(ctx); err != nil {
		return err
	}
	return a.initArchive(ctx)
}

func (a *App) buildScript() (scraper.Script, error) {
	switch a.cfg.Variant() {
	case source.VariantProbate:
		var solver captcha.Solver
		if ccfg, ok := a.cfg.CaptchaClient(); ok {
			client, err := captcha.NewClient(ccfg, nil, a.logger.Named("captcha"))
			if err != nil {
				return nil, fmt.Errorf("captcha: %w", err)
			}
			solver = client
		} else {
			a.logger.Warn("No captcha.api_key configured; challenges will fail their search")
		}
		script, err := probate.New(a.cfg.ProbatePortal(), solver, a.logger.Named("probate"))
		if err != nil {
			return nil, fmt.Errorf("probate script: %w", err)
		}
		return script, nil
	case source.VariantTax:
		script, err := tax.New(a.cfg.TaxPortal(), a.logger.Named("tax"))
		if err != nil {
			return nil, fmt.Errorf("tax script: %w", err)
		}
		return script, nil
	default:
		return nil, fmt.Errorf("unknown source variant %q", a.cfg.Source.Variant)
	}
}

func (a *App) initStore(ctx context.Context) error {
	if a.store == nil && a.cfg.Database.Enabled {
		db := a.cfg.Database
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             db.DSN,
			OutcomesTable:   db.OutcomesTable,
			RunsTable:       db.RunsTable,
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			MaxConnLifetime: db.MaxConnLifetime,
		})
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		a.store = store
		a.logger.Info("Connected to PostgreSQL", zap.String("table", db.OutcomesTable))
	}
	if a.store != nil {
		store := a.store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.publisher != nil || !a.cfg.PubSub.Enabled {
		return nil
	}
	ps := a.cfg.PubSub
	pub, err := gcppublisher.Dial(ctx, gcppublisher.Config{
		ProjectID: ps.ProjectID,
		TopicID:   ps.TopicID,
		Endpoint:  ps.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
	a.logger.Info("Connected to Pub/Sub", zap.String("topic", ps.TopicID))
	return nil
}

func (a *App) initArchive(ctx context.Context) error {
	if a.blobs == nil && a.cfg.Storage.Enabled {
		sc := a.cfg.Storage
		switch sc.Backend {
		case "gcs":
			store, err := gcsstorage.Dial(ctx, gcsstorage.Config{
				Bucket:          sc.Bucket,
				Endpoint:        sc.Endpoint,
				CredentialsFile: sc.CredentialsFile,
			})
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			a.closers = append(a.closers, store.Close)
			a.blobs = store
		case "local":
			store, err := localstorage.New(localstorage.Config{BaseDir: sc.BaseDir})
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			a.blobs = store
		}
	}
	if a.blobs == nil {
		return nil
	}
	archiver, err := storage.NewArchiver(a.blobs, sha256.New(), a.cfg.Storage.Prefix, a.logger.Named("archive"))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	a.archiver = archiver
	return nil
}

// Sinks returns the optional outcome sinks keyed by name for the writer.
func (a *App) Sinks() (map[string]scraper.OutcomeSink, error) {
	sinks := map[string]scraper.OutcomeSink{}
	if a.store != nil {
		sinks["postgres"] = a.store
	}
	if a.publisher != nil {
		sink, err := publisher.NewSink(a.publisher, a.cfg.PubSub.Event)
		if err != nil {
			return nil, fmt.Errorf("pubsub sink: %w", err)
		}
		sinks["pubsub"] = sink
	}
	if a.recent != nil {
		sinks["recent"] = a.recent
	}
	return sinks, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the validated configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Close releases every service in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// statusServer returns the status server, or nil when disabled.
func (a *App) statusServer(info api.RunInfo, progress *api.ProgressHandler) *api.Server {
	if !a.cfg.Server.Enabled {
		return nil
	}
	return api.NewServer(api.Config{
		Addr:   a.cfg.Server.Addr,
		APIKey: a.cfg.Server.APIKey,
	}, progress, a.logger.Named("api"))
}
