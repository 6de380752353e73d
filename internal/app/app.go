// Package app wires configuration into the components shared by the CLI
// and the HTTP server.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/cache"
	"github.com/stitts-dev/rotation-optimizer/internal/providers"
	"github.com/stitts-dev/rotation-optimizer/internal/rotation"
	"github.com/stitts-dev/rotation-optimizer/internal/services"
	"github.com/stitts-dev/rotation-optimizer/internal/solver"
	"github.com/stitts-dev/rotation-optimizer/internal/teammates"
	"github.com/stitts-dev/rotation-optimizer/pkg/config"
	"github.com/stitts-dev/rotation-optimizer/pkg/metrics"
)

// Options adjust the wiring
type Options struct {
	// Offline never contacts Fangraphs; missing histories are errors
	Offline bool
	// NoCache builds every relation from history
	NoCache bool
}

// App holds the wired components
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Store     *providers.CSVStore
	Fangraphs *providers.FangraphsClient
	Source    *providers.ScrapingSource
	Redis     *cache.RedisCache
	Metrics   *metrics.Manager
	Service   *services.RotationService

	closers []func() error
}

// New wires an App from cfg. Redis is used for the relation cache when
// REDIS_URL is set, the cache directory otherwise.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts Options) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   providers.NewCSVStore(cfg.DataDir, logger),
		Metrics: metrics.NewManager(),
	}

	var fetcher providers.HistoryFetcher
	if !opts.Offline {
		a.Fangraphs = providers.NewFangraphsClient(providers.FangraphsConfig{
			BaseURL:          cfg.FangraphsBaseURL,
			RequestInterval:  cfg.FangraphsRequestInterval,
			Timeout:          cfg.ExternalAPITimeout,
			BreakerThreshold: cfg.CircuitBreakerThreshold,
		}, logger)
		fetcher = a.Fangraphs
	}
	a.Source = providers.NewScrapingSource(a.Store, fetcher, logger)

	var relationCache teammates.RelationCache
	if !opts.NoCache {
		c, err := a.relationCache(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		relationCache = c
	}

	factory, err := solver.NewFactory(cfg.Solver)
	if err != nil {
		a.Close()
		return nil, err
	}
	engine := rotation.NewEngine(factory, logger)

	serviceOpts := []services.ServiceOption{
		services.WithMetrics(a.Metrics),
		services.WithDefaults(rotation.Options{
			Size:        cfg.RotationSize,
			Encoding:    rotation.Encoding(cfg.Encoding),
			Verbose:     cfg.SolverVerbose,
			MaxDuration: cfg.SolverMaxDuration,
			MaxNodes:    cfg.SolverMaxNodes,
		}),
	}
	if relationCache != nil {
		serviceOpts = append(serviceOpts, services.WithRelationCache(relationCache))
	}
	a.Service = services.NewRotationService(a.Store, a.Source, engine, logger, serviceOpts...)

	return a, nil
}

func (a *App) relationCache(ctx context.Context) (teammates.RelationCache, error) {
	if a.Config.RedisURL != "" {
		client, err := cache.NewRedisClient(a.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.Redis = cache.NewRedisCache(client, 0, a.Logger)
		a.Logger.Info("Using Redis relation cache")
		return a.Redis, nil
	}

	fc, err := cache.NewFileCache(a.Config.CacheDir, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Logger.WithField("dir", a.Config.CacheDir).Debug("Using file relation cache")
	return fc, nil
}

// Close releases connections
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
