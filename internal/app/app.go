// Package app builds the long-lived services from configuration and acts as
// the dependency injection container for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gcs "cloud.google.com/go/storage"
	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/api"
	"github.com/TembulatC/mira-games-backend/internal/clock/system"
	"github.com/TembulatC/mira-games-backend/internal/config"
	"github.com/TembulatC/mira-games-backend/internal/detail"
	collyfetcher "github.com/TembulatC/mira-games-backend/internal/fetcher/colly"
	"github.com/TembulatC/mira-games-backend/internal/id/uuid"
	"github.com/TembulatC/mira-games-backend/internal/pipeline"
	"github.com/TembulatC/mira-games-backend/internal/policy/ratelimit"
	pubsubpublisher "github.com/TembulatC/mira-games-backend/internal/publisher/pubsub"
	"github.com/TembulatC/mira-games-backend/internal/release"
	"github.com/TembulatC/mira-games-backend/internal/scanner"
	gcsstore "github.com/TembulatC/mira-games-backend/internal/storage/gcs"
	"github.com/TembulatC/mira-games-backend/internal/storage/local"
	"github.com/TembulatC/mira-games-backend/internal/storage/memory"
	"github.com/TembulatC/mira-games-backend/internal/storage/postgres"
	"github.com/TembulatC/mira-games-backend/internal/storefront"
)

// App holds the shared services for one process.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	orchestrator *pipeline.Orchestrator
	server       *api.Server
	closers      []func() error
}

type stores struct {
	canonical release.CanonicalStore
	catalog   release.Catalog
	genres    release.GenreAggregator
	snapshots release.SnapshotStore
	ready     func(ctx context.Context) error
}

// New wires every service described by cfg. On error, anything already
// opened is closed before returning.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			if cerr := a.Close(); cerr != nil {
				logger.Warn("cleanup after failed init", zap.Error(cerr))
			}
		}
	}()

	clock := system.New()
	ids := uuid.New()

	headers := http.Header{}
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.RequestTimeout(),
		Headers:       headers,
	})
	pacer := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Scanner.PagesPerSecond, DefaultBurst: 1})

	scan, err := scanner.New(scanner.Config{
		ListingURL: cfg.Storefront.ListingURL,
		DriftPages: cfg.Scanner.DriftPages,
		MaxPages:   cfg.Scanner.MaxPages,
	}, fetcher, pacer, logger.Named("scanner"))
	if err != nil {
		return nil, fmt.Errorf("init scanner: %w", err)
	}

	client, err := storefront.NewClient(fetcher, cfg.Storefront.DetailURL)
	if err != nil {
		return nil, fmt.Errorf("init storefront client: %w", err)
	}
	var (
		details release.DetailClient = client
		cache   pipeline.DetailCache
	)
	if cfg.Storefront.CacheSize > 0 {
		cached, err := storefront.NewCachedClient(client, cfg.Storefront.CacheSize, cfg.Storefront.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("init detail cache: %w", err)
		}
		details, cache = cached, cached
	}
	detailFetcher, err := detail.NewFetcher(detail.Config{
		MinDelay:         cfg.Detail.MinDelay,
		MaxDelay:         cfg.Detail.MaxDelay,
		ThrottleCooldown: cfg.Detail.ThrottleCooldown,
	}, details, clock, logger.Named("detail"))
	if err != nil {
		return nil, fmt.Errorf("init detail fetcher: %w", err)
	}

	state, err := a.stateStore(ctx)
	if err != nil {
		return nil, err
	}
	batches, err := a.batchStore()
	if err != nil {
		return nil, err
	}
	st, err := a.stores(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}

	stages, err := pipeline.NewStages(pipeline.StageConfig{
		AppURL:    cfg.Storefront.AppURL,
		TopGenres: cfg.Pipeline.TopGenres,
		Publish:   publisher != nil,
	}, pipeline.Deps{
		Scanner:    scan,
		Details:    detailFetcher,
		Cache:      cache,
		State:      state,
		Batches:    batches,
		Canonical:  st.canonical,
		Aggregator: st.genres,
		Snapshots:  st.snapshots,
		Publisher:  publisher,
		Clock:      clock,
	}, logger.Named("pipeline"))
	if err != nil {
		return nil, fmt.Errorf("init pipeline stages: %w", err)
	}
	a.orchestrator, err = pipeline.NewOrchestrator(stages.List(), pipeline.Schedule{
		StageDelay:    cfg.Pipeline.StageDelay,
		CycleDelay:    cfg.Pipeline.CycleDelay,
		RecoveryDelay: cfg.Pipeline.RecoveryDelay,
	}, clock, ids, logger.Named("orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	a.server, err = api.NewServer(api.Deps{
		Catalog:   st.catalog,
		Genres:    st.genres,
		Snapshots: st.snapshots,
		Ready:     st.ready,
	}, cfg, logger.Named("api"))
	if err != nil {
		return nil, fmt.Errorf("init api: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("state_provider", cfg.State.Provider),
		zap.String("storage_provider", cfg.Storage.Provider),
		zap.Bool("publish_snapshots", publisher != nil),
	)
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Orchestrator returns the ingestion pipeline.
func (a *App) Orchestrator() *pipeline.Orchestrator {
	return a.orchestrator
}

// Handler returns the HTTP handler for the read API.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Close releases clients and pools in reverse order of creation.
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

func (a *App) stateStore(ctx context.Context) (release.StateStore, error) {
	cfg := a.cfg.State
	switch cfg.Provider {
	case config.ProviderFile:
		store, err := local.NewStateStore(cfg.Path, a.logger.Named("state"))
		if err != nil {
			return nil, fmt.Errorf("init file state store: %w", err)
		}
		return store, nil
	case config.ProviderGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcsstore.NewStateStore(client, gcsstore.Config{
			Bucket: cfg.GCSBucket,
			Object: cfg.GCSObject,
		}, a.logger.Named("state"))
		if err != nil {
			return nil, fmt.Errorf("init gcs state store: %w", err)
		}
		return store, nil
	case config.ProviderMemory:
		return memory.NewStateStore(), nil
	default:
		return nil, fmt.Errorf("unknown state provider %q", cfg.Provider)
	}
}

func (a *App) batchStore() (release.BatchStore, error) {
	if a.cfg.Batch.Path == "" {
		return memory.NewBatchStore(), nil
	}
	store, err := local.NewBatchStore(a.cfg.Batch.Path)
	if err != nil {
		return nil, fmt.Errorf("init batch store: %w", err)
	}
	return store, nil
}

func (a *App) stores(ctx context.Context) (stores, error) {
	switch a.cfg.Storage.Provider {
	case config.ProviderMemory:
		releases := memory.NewReleaseStore()
		return stores{
			canonical: releases,
			catalog:   releases,
			genres:    releases,
			snapshots: memory.NewSnapshotStore(),
		}, nil
	case config.ProviderPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return stores{}, err
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return stores{}, err
		}
		releases, err := postgres.NewReleaseStoreWithPool(pool)
		if err != nil {
			return stores{}, err
		}
		snapshots, err := postgres.NewSnapshotStoreWithPool(pool)
		if err != nil {
			return stores{}, err
		}
		return stores{
			canonical: releases,
			catalog:   releases,
			genres:    releases,
			snapshots: snapshots,
			ready:     pool.Ping,
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown storage provider %q", a.cfg.Storage.Provider)
	}
}

// publisher returns nil when no topic is configured.
func (a *App) publisher(ctx context.Context) (release.Publisher, error) {
	cfg := a.cfg.PubSub
	if cfg.TopicName == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	topic := client.Publisher(cfg.TopicName)
	a.closers = append(a.closers, func() error {
		topic.Stop()
		return nil
	})
	return pubsubpublisher.New(topic), nil
}
