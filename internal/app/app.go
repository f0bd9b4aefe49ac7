// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/api"
	"github.com/JakeFAU/glossary-harvester/internal/config"
	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	blevestore "github.com/JakeFAU/glossary-harvester/internal/index/bleve"
	"github.com/JakeFAU/glossary-harvester/internal/index/typesense"
	"github.com/JakeFAU/glossary-harvester/internal/pipeline"
	memorypub "github.com/JakeFAU/glossary-harvester/internal/publisher/memory"
	pubsubpub "github.com/JakeFAU/glossary-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/glossary-harvester/internal/storage/gcs"
	"github.com/JakeFAU/glossary-harvester/internal/storage/local"
	memstorage "github.com/JakeFAU/glossary-harvester/internal/storage/memory"
	"github.com/JakeFAU/glossary-harvester/internal/storage/postgres"
	"github.com/JakeFAU/glossary-harvester/internal/storage/sqlite"
)

// App holds the shared, long-lived services for one process: the relational
// store, the index store, the page archive and the reindex publisher. It is
// initialized once at startup and closed by the root command.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     glossary.Store
	index     glossary.IndexStore
	archive   glossary.BlobStore
	publisher glossary.Publisher

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the relational store.
func (a *App) Store() glossary.Store { return a.store }

// Index returns the index store.
func (a *App) Index() glossary.IndexStore { return a.index }

// Archive returns the page archive, or nil when archiving is disabled.
func (a *App) Archive() glossary.BlobStore { return a.archive }

// Publisher returns the reindex publisher, or nil when disabled.
func (a *App) Publisher() glossary.Publisher { return a.publisher }

// New builds every provider selected by cfg. It fails fast: on any error the
// providers opened so far are closed before returning.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	logger.Info("initializing application services",
		zap.String("database", cfg.Database.Provider),
		zap.String("index", cfg.Index.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
	)

	steps := []func(context.Context) error{a.openStore, a.openIndex, a.openArchive, a.openPublisher}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			if cerr := a.Close(); cerr != nil {
				logger.Warn("close after failed init", zap.Error(cerr))
			}
			return nil, err
		}
	}
	logger.Info("application services initialized")
	return a, nil
}

func (a *App) track(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

func (a *App) openStore(ctx context.Context) error {
	db := a.cfg.Database
	switch db.Provider {
	case config.ProviderPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: db.Name,
			SSLMode:  db.SSLMode,
			MaxConns: db.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init relational store: %w", err)
		}
		a.store = store
	case config.ProviderSQLite:
		store, err := sqlite.Open(ctx, db.Path)
		if err != nil {
			return fmt.Errorf("init relational store: %w", err)
		}
		a.store = store
	default:
		return fmt.Errorf("%w: unknown database provider %q", glossary.ErrConfiguration, db.Provider)
	}
	a.track("relational store", a.store.Close)
	return nil
}

func (a *App) openIndex(_ context.Context) error {
	idx := a.cfg.Index
	switch idx.Provider {
	case config.ProviderTypesense:
		client, err := typesense.New(typesense.Config{
			Protocol:          idx.Protocol,
			Host:              idx.Host,
			Port:              idx.Port,
			APIKey:            idx.APIKey,
			Collection:        idx.Collection,
			ConnectionTimeout: idx.ConnectionTimeout,
			EmbeddingModel:    a.cfg.Embedding.Model,
			EmbeddingAPIKey:   a.cfg.Embedding.APIKey,
		})
		if err != nil {
			return fmt.Errorf("init index store: %w", err)
		}
		a.index = client
	case config.ProviderBleve:
		store, err := blevestore.Open(idx.Path)
		if err != nil {
			return fmt.Errorf("init index store: %w", err)
		}
		a.index = store
	default:
		return fmt.Errorf("%w: unknown index provider %q", glossary.ErrConfiguration, idx.Provider)
	}
	a.track("index store", a.index.Close)
	return nil
}

func (a *App) openArchive(ctx context.Context) error {
	arc := a.cfg.Archive
	switch arc.Provider {
	case config.ProviderNone, "":
		a.logger.Info("page archive disabled")
	case config.ProviderMemory:
		a.archive = memstorage.NewBlobStore()
	case config.ProviderLocal:
		store, err := local.New(local.Config{BaseDir: arc.Dir})
		if err != nil {
			return fmt.Errorf("init archive: %w", err)
		}
		a.archive = store
	case config.ProviderGCS:
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: arc.Bucket})
		if err != nil {
			return fmt.Errorf("init archive: %w", err)
		}
		a.archive = store
		a.track("archive", store.Close)
	default:
		return fmt.Errorf("%w: unknown archive provider %q", glossary.ErrConfiguration, arc.Provider)
	}
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	pub := a.cfg.Publisher
	switch pub.Provider {
	case config.ProviderNone, "":
		a.logger.Info("reindex notices disabled")
	case config.ProviderMemory:
		a.publisher = memorypub.New(a.logger.Named("publisher"))
	case config.ProviderPubSub:
		p, err := pubsubpub.Dial(ctx, pub.ProjectID)
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		a.publisher = p
		a.track("publisher", p.Close)
	default:
		return fmt.Errorf("%w: unknown publisher provider %q", glossary.ErrConfiguration, pub.Provider)
	}
	return nil
}

// EnsureSchema provisions the relational tables and the index collections.
// Both calls are idempotent.
func (a *App) EnsureSchema(ctx context.Context) error {
	if err := a.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure relational schema: %w", err)
	}
	if err := a.index.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure index schema: %w", err)
	}
	return nil
}

// Pipeline builds a record pipeline over the App's stores.
func (a *App) Pipeline() (*pipeline.Pipeline, error) {
	scope, err := pipeline.ParseLookupScope(a.cfg.Pipeline.LookupScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", glossary.ErrConfiguration, err)
	}
	return pipeline.New(a.store, a.index, pipeline.Config{LookupScope: scope}, a.logger.Named("pipeline")), nil
}

// Reconciler builds an index reconciler over the App's stores.
func (a *App) Reconciler(batchSize int) *pipeline.Reconciler {
	return pipeline.NewReconciler(a.store, a.index, batchSize, a.logger.Named("reconcile"))
}

// ReadinessChecks reports whether the relational store and the index answer.
// An index that has no document for the probe id is considered ready.
func (a *App) ReadinessChecks() []api.ReadinessCheck {
	var checks []api.ReadinessCheck
	if p, ok := a.store.(pinger); ok {
		checks = append(checks, api.ReadinessCheck{Name: "database", Check: p.Ping})
	}
	checks = append(checks, api.ReadinessCheck{
		Name: "index",
		Check: func(ctx context.Context) error {
			_, err := a.index.Get(ctx, glossary.DocumentID(0))
			if err == nil || errors.Is(err, glossary.ErrIndexNotFound) {
				return nil
			}
			return err
		},
	})
	return checks
}

// Close shuts down every provider in reverse order of creation and flushes
// the logger. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
