// Package app builds the advisory service and its backends from a Config.
// Both binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neexbeast/starwatch/internal/advisory"
	"github.com/neexbeast/starwatch/internal/cache"
	"github.com/neexbeast/starwatch/internal/config"
	"github.com/neexbeast/starwatch/internal/forecast"
	"github.com/neexbeast/starwatch/internal/location"
	"github.com/neexbeast/starwatch/internal/storage"
)

// Store is a forecast table backend.
type Store interface {
	advisory.Table
	History(ctx context.Context, pid string) ([]storage.Row, error)
	Ping(ctx context.Context) error
}

// AdvisoryCache is an advisory cache backend.
type AdvisoryCache interface {
	advisory.Cache
	Ping(ctx context.Context) error
}

// App holds the wired components. Call Close when done.
type App struct {
	Store   Store
	Cache   AdvisoryCache
	Client  *forecast.Client
	Catalog *location.Catalog
	Service *advisory.Service

	closers []func()
}

// New connects every backend cfg selects. On error, anything already opened
// is closed again.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Catalog, err = location.Default()
	if err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		migrations, err := storage.Migrations(cfg.MigrationsDir)
		if err != nil {
			return nil, err
		}
		if err := storage.RunMigrations(ctx, pool, migrations); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")
		a.Store = storage.NewPGStore(pool)
	default:
		a.Store = storage.NewFileStore(cfg.DataDir, log)
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.Cache = cache.NewCache(client, cfg.CacheTTL)
	} else {
		a.Cache = cache.NopCache{}
	}

	a.Client = forecast.NewClient(forecast.ClientConfig{
		BaseURL: cfg.CWABaseURL,
		APIKey:  cfg.CWAAPIKey,
		Timeout: cfg.CWATimeout,
		RPS:     cfg.CWARPS,
	}, log)

	a.Service = advisory.NewService(a.Client, a.Store, a.Cache, a.Catalog, log)

	log.Info("components ready", "store", cfg.StoreDriver, "cache", cfg.RedisURL != "")
	return a, nil
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
