package teammates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
)

// HistorySource supplies a player's full season history
type HistorySource interface {
	History(ctx context.Context, playerID string) ([]models.SeasonRecord, error)
}

// RelationCache persists computed relations. Load reports found=false on a
// miss; errors are reserved for a broken backend. Deleting a missing key is
// not an error.
type RelationCache interface {
	Load(ctx context.Context, key string) (*Relation, bool, error)
	Store(ctx context.Context, key string, relation *Relation) error
	Delete(ctx context.Context, key string) error
}

// Builder computes the teammate relation for a franchise candidate pool
type Builder struct {
	source HistorySource
	cache  RelationCache
	logger *logrus.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithCache makes Build load-if-present and store-after-compute
func WithCache(cache RelationCache) Option {
	return func(b *Builder) {
		b.cache = cache
	}
}

// NewBuilder creates a new relation builder
func NewBuilder(source HistorySource, logger *logrus.Logger, opts ...Option) *Builder {
	b := &Builder{
		source: source,
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CacheKey identifies the relation for a franchise and an ordered pool
func CacheKey(teamID int, candidates []models.Candidate) string {
	h := sha256.New()
	for _, c := range candidates {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("teammates:%d:%s", teamID, hex.EncodeToString(h.Sum(nil))[:16])
}

// Build returns the teammate relation among candidates for teamID. Any
// candidate without usable history fails the whole build.
func (b *Builder) Build(ctx context.Context, candidates []models.Candidate, teamID int) (*Relation, error) {
	if err := checkCandidates(candidates); err != nil {
		return nil, err
	}

	log := b.logger.WithFields(logrus.Fields{
		"team_id":    teamID,
		"candidates": len(candidates),
	})

	// Check cache first
	var key string
	if b.cache != nil {
		key = CacheKey(teamID, candidates)
		relation, found, err := b.cache.Load(ctx, key)
		switch {
		case err != nil:
			log.WithError(err).Warn("Teammate relation cache read failed, recomputing")
		case found:
			log.WithField("cache_key", key).Debug("Loaded teammate relation from cache")
			return relation, nil
		}
	}

	start := time.Now()
	relation, err := b.compute(ctx, candidates, teamID)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"pairs":    relation.Len(),
		"duration": time.Since(start),
	}).Info("Built teammate relation")

	if b.cache != nil {
		if err := b.cache.Store(ctx, key, relation); err != nil {
			log.WithError(err).Warn("Failed to cache teammate relation")
		}
	}

	return relation, nil
}

// Invalidate drops the cached relation for this pool so the next Build
// recomputes it from the current histories
func (b *Builder) Invalidate(ctx context.Context, candidates []models.Candidate, teamID int) error {
	if b.cache == nil {
		return nil
	}
	key := CacheKey(teamID, candidates)
	if err := b.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate teammate relation: %w", err)
	}
	b.logger.WithField("cache_key", key).Debug("Invalidated cached teammate relation")
	return nil
}

func (b *Builder) compute(ctx context.Context, candidates []models.Candidate, teamID int) (*Relation, error) {
	// Materialize every tenure before comparing anything
	tenures := make([]Tenure, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := b.source.History(ctx, c.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, integrityError(c.ID, "history unavailable", err)
		}

		tenure, err := TenureFor(c.ID, records, teamID)
		if err != nil {
			return nil, err
		}
		tenures[i] = tenure
		b.logger.WithFields(logrus.Fields{
			"player_id": c.ID,
			"tenure":    tenure.Labels(),
		}).Trace("Resolved franchise tenure")
	}

	relation := NewRelation()
	for i := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			if Overlaps(tenures[i], tenures[j]) {
				relation.Add(candidates[i].ID, candidates[j].ID)
			}
		}
	}

	return relation, nil
}

func checkCandidates(candidates []models.Candidate) error {
	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("candidate %d has an empty id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("candidate %s listed twice", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
