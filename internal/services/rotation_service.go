package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/franchise"
	"github.com/stitts-dev/rotation-optimizer/internal/models"
	"github.com/stitts-dev/rotation-optimizer/internal/providers"
	"github.com/stitts-dev/rotation-optimizer/internal/rotation"
	"github.com/stitts-dev/rotation-optimizer/internal/teammates"
	"github.com/stitts-dev/rotation-optimizer/pkg/metrics"
)

// RotationRequest asks for one franchise's rotation. Zero fields fall
// back to the service defaults.
type RotationRequest struct {
	Franchise string `json:"franchise" binding:"required"`
	Size      int    `json:"size" binding:"omitempty,min=1"`
	Encoding  string `json:"encoding" binding:"omitempty,oneof=pairwise linearized"`
	Verbose   bool   `json:"verbose"`
	// Refresh drops the cached relation and rebuilds it from history
	Refresh bool `json:"refresh"`
}

// RotationResult is a solved rotation with the context it was solved in
type RotationResult struct {
	Franchise     franchise.Franchise `json:"franchise"`
	Solution      *models.Solution    `json:"solution"`
	TeammatePairs int                 `json:"teammate_pairs"`
	Relation      *teammates.Relation `json:"-"`
}

// FranchiseData is a resolved franchise with its pool and relation
type FranchiseData struct {
	Franchise franchise.Franchise
	Pool      []models.Candidate
	Relation  *teammates.Relation
}

// RotationService runs franchise name -> pool -> relation -> solve
type RotationService struct {
	pools    providers.PoolLoader
	builder  *teammates.Builder
	engine   *rotation.Engine
	metrics  *metrics.Manager
	defaults rotation.Options
	logger   *logrus.Logger
}

// ServiceOption configures a RotationService
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	cache    teammates.RelationCache
	metrics  *metrics.Manager
	defaults rotation.Options
}

// WithRelationCache caches built relations
func WithRelationCache(cache teammates.RelationCache) ServiceOption {
	return func(c *serviceConfig) {
		c.cache = cache
	}
}

// WithMetrics records solves on m
func WithMetrics(m *metrics.Manager) ServiceOption {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

// WithDefaults sets the options used when a request leaves them empty
func WithDefaults(opts rotation.Options) ServiceOption {
	return func(c *serviceConfig) {
		c.defaults = opts
	}
}

// NewRotationService creates a new rotation service
func NewRotationService(
	pools providers.PoolLoader,
	source teammates.HistorySource,
	engine *rotation.Engine,
	logger *logrus.Logger,
	opts ...ServiceOption,
) *RotationService {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var builderOpts []teammates.Option
	if cfg.cache != nil {
		builderOpts = append(builderOpts, teammates.WithCache(&meteredCache{
			inner:   cfg.cache,
			metrics: cfg.metrics,
		}))
	}

	return &RotationService{
		pools:    pools,
		builder:  teammates.NewBuilder(source, logger, builderOpts...),
		engine:   engine,
		metrics:  cfg.metrics,
		defaults: cfg.defaults,
		logger:   logger,
	}
}

// Load resolves a franchise and builds its teammate relation
func (s *RotationService) Load(ctx context.Context, name string) (*FranchiseData, error) {
	return s.load(ctx, name, false)
}

func (s *RotationService) load(ctx context.Context, name string, refresh bool) (*FranchiseData, error) {
	f, err := franchise.Lookup(name)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{
		"franchise": f.Name,
		"team_id":   f.TeamID,
	})

	pool, err := s.pools.LoadPool(ctx, f.Name)
	if err != nil {
		return nil, err
	}

	if refresh {
		if err := s.builder.Invalidate(ctx, pool, f.TeamID); err != nil {
			return nil, err
		}
	}

	rel, err := s.builder.Build(ctx, pool, f.TeamID)
	if err != nil {
		if errors.Is(err, teammates.ErrDataIntegrity) {
			s.metrics.RecordHistoryError()
		}
		return nil, fmt.Errorf("failed to build teammate relation for %s: %w", f.Name, err)
	}
	s.metrics.RecordRelation(rel.Len())

	log.WithFields(logrus.Fields{
		"candidates": len(pool),
		"pairs":      rel.Len(),
	}).Debug("Franchise data loaded")

	return &FranchiseData{Franchise: f, Pool: pool, Relation: rel}, nil
}

// Solve computes the best rotation for the requested franchise
func (s *RotationService) Solve(ctx context.Context, req RotationRequest) (*RotationResult, error) {
	data, err := s.load(ctx, req.Franchise, req.Refresh)
	if err != nil {
		return nil, err
	}

	opts := s.options(req)
	start := time.Now()
	sol, err := s.engine.Solve(ctx, data.Pool, data.Relation, opts)
	s.metrics.RecordSolve(encodingLabel(opts), outcome(sol, err), time.Since(start), len(data.Pool))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", data.Franchise.Name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"franchise":       data.Franchise.Name,
		"optimization_id": sol.ID.String(),
		"total":           sol.Total,
	}).Info("Rotation computed")

	return &RotationResult{
		Franchise:     data.Franchise,
		Solution:      sol,
		TeammatePairs: data.Relation.Len(),
		Relation:      data.Relation,
	}, nil
}

func (s *RotationService) options(req RotationRequest) rotation.Options {
	opts := s.defaults
	if req.Size != 0 {
		opts.Size = req.Size
	}
	if req.Encoding != "" {
		opts.Encoding = rotation.Encoding(req.Encoding)
	}
	if req.Verbose {
		opts.Verbose = true
	}
	return opts
}

func encodingLabel(opts rotation.Options) string {
	if opts.Encoding == "" {
		return string(rotation.EncodingPairwise)
	}
	return string(opts.Encoding)
}

func outcome(sol *models.Solution, err error) string {
	switch {
	case errors.Is(err, rotation.ErrInfeasible):
		return metrics.OutcomeInfeasible
	case err != nil:
		return metrics.OutcomeError
	case sol.Status == metrics.OutcomeFeasible:
		return metrics.OutcomeFeasible
	}
	return metrics.OutcomeOptimal
}

// meteredCache counts relation cache lookups
type meteredCache struct {
	inner   teammates.RelationCache
	metrics *metrics.Manager
}

func (c *meteredCache) Load(ctx context.Context, key string) (*teammates.Relation, bool, error) {
	rel, ok, err := c.inner.Load(ctx, key)
	switch {
	case err != nil:
		c.metrics.RecordCacheLookup(metrics.CacheError)
	case ok:
		c.metrics.RecordCacheLookup(metrics.CacheHit)
	default:
		c.metrics.RecordCacheLookup(metrics.CacheMiss)
	}
	return rel, ok, err
}

func (c *meteredCache) Store(ctx context.Context, key string, rel *teammates.Relation) error {
	return c.inner.Store(ctx, key, rel)
}

func (c *meteredCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}
