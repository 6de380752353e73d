package teammates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
	"github.com/stitts-dev/rotation-optimizer/pkg/logger"
)

const padres = 29

type mapSource struct {
	histories map[string][]models.SeasonRecord
	calls     int
}

func (s *mapSource) History(_ context.Context, playerID string) ([]models.SeasonRecord, error) {
	s.calls++
	records, ok := s.histories[playerID]
	if !ok {
		return nil, fmt.Errorf("no history file for %s", playerID)
	}
	return records, nil
}

type memoryCache struct {
	blobs   map[string][]byte
	loadErr error
	stores  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{blobs: make(map[string][]byte)}
}

func (c *memoryCache) Load(_ context.Context, key string) (*Relation, bool, error) {
	if c.loadErr != nil {
		return nil, false, c.loadErr
	}
	blob, ok := c.blobs[key]
	if !ok {
		return nil, false, nil
	}
	r := NewRelation()
	if err := r.UnmarshalBinary(blob); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (c *memoryCache) Store(_ context.Context, key string, relation *Relation) error {
	blob, err := relation.MarshalBinary()
	if err != nil {
		return err
	}
	c.stores++
	c.blobs[key] = blob
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.blobs, key)
	return nil
}

func history(id string, rows ...interface{}) []models.SeasonRecord {
	var out []models.SeasonRecord
	for i := 0; i < len(rows); i += 2 {
		out = append(out, models.SeasonRecord{PlayerID: id, TeamID: rows[i].(int), Season: rows[i+1].(string)})
	}
	return out
}

func testSource() *mapSource {
	return &mapSource{histories: map[string][]models.SeasonRecord{
		// traded away mid 2002
		"x": history("x", padres, "2001", padres, "2002", 10, "2002"),
		"y": history("y", 5, "2000", padres, "2002", padres, "2003"),
		"z": history("z", padres, "2004"),
		// joined mid 2002 from another club
		"w": history("w", 10, "2002", padres, "2002", padres, "2004"),
	}}
}

func candidates(ids ...string) []models.Candidate {
	out := make([]models.Candidate, len(ids))
	for i, id := range ids {
		out[i] = models.Candidate{ID: id, Value: float64(len(ids) - i)}
	}
	return out
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(testSource(), logger.NewDiscardLogger())

	r, err := b.Build(context.Background(), candidates("x", "y", "z", "w"), padres)
	require.NoError(t, err)

	// x: {2001, 2002a}, y: {2002, 2003}, z: {2004}, w: {2002b, 2004}
	assert.True(t, r.Adjacent("x", "y"))
	assert.True(t, r.Adjacent("y", "w"))
	assert.True(t, r.Adjacent("z", "w"))
	assert.False(t, r.Adjacent("x", "w"), "different halves of 2002")
	assert.False(t, r.Adjacent("x", "z"))
	assert.False(t, r.Adjacent("y", "z"))
	assert.Equal(t, 3, r.Len())

	ids := []string{"x", "y", "z", "w"}
	for _, a := range ids {
		assert.False(t, r.Adjacent(a, a))
		for _, c := range ids {
			assert.Equal(t, r.Adjacent(a, c), r.Adjacent(c, a))
		}
	}
}

func TestBuilder_Idempotent(t *testing.T) {
	b := NewBuilder(testSource(), logger.NewDiscardLogger())
	pool := candidates("x", "y", "z", "w")

	first, err := b.Build(context.Background(), pool, padres)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), pool, padres)
	require.NoError(t, err)

	blob1, err := first.MarshalBinary()
	require.NoError(t, err)
	blob2, err := second.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, blob1, blob2)
}

func TestBuilder_MissingHistoryFailsWholeBatch(t *testing.T) {
	b := NewBuilder(testSource(), logger.NewDiscardLogger())

	r, err := b.Build(context.Background(), candidates("x", "ghost", "y"), padres)
	assert.Nil(t, r)
	require.Error(t, err)

	var integrity *DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "ghost", integrity.PlayerID)
}

func TestBuilder_NoFranchiseSeasonsFails(t *testing.T) {
	src := testSource()
	src.histories["v"] = history("v", 10, "1999")
	b := NewBuilder(src, logger.NewDiscardLogger())

	_, err := b.Build(context.Background(), candidates("x", "v"), padres)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestBuilder_RejectsDuplicateCandidates(t *testing.T) {
	b := NewBuilder(testSource(), logger.NewDiscardLogger())

	_, err := b.Build(context.Background(), candidates("x", "y", "x"), padres)
	assert.Error(t, err)
}

func TestBuilder_CanceledContext(t *testing.T) {
	b := NewBuilder(testSource(), logger.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, candidates("x", "y"), padres)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_CacheLoadIfPresentComputeAndStore(t *testing.T) {
	src := testSource()
	cache := newMemoryCache()
	b := NewBuilder(src, logger.NewDiscardLogger(), WithCache(cache))
	pool := candidates("x", "y", "z", "w")

	first, err := b.Build(context.Background(), pool, padres)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.stores)
	assert.Equal(t, 4, src.calls)

	second, err := b.Build(context.Background(), pool, padres)
	require.NoError(t, err)
	assert.Equal(t, 4, src.calls, "second build should come from cache")
	assert.True(t, first.Equal(second))

	uncached, err := NewBuilder(testSource(), logger.NewDiscardLogger()).Build(context.Background(), pool, padres)
	require.NoError(t, err)
	assert.True(t, uncached.Equal(second))
}

func TestBuilder_CacheFailureFallsBackToCompute(t *testing.T) {
	cache := newMemoryCache()
	cache.loadErr = errors.New("redis down")
	b := NewBuilder(testSource(), logger.NewDiscardLogger(), WithCache(cache))

	r, err := b.Build(context.Background(), candidates("x", "y"), padres)
	require.NoError(t, err)
	assert.True(t, r.Adjacent("x", "y"))
}

func TestBuilder_InvalidateForcesRecompute(t *testing.T) {
	src := testSource()
	cache := newMemoryCache()
	b := NewBuilder(src, logger.NewDiscardLogger(), WithCache(cache))
	pool := candidates("x", "y", "z", "w")

	_, err := b.Build(context.Background(), pool, padres)
	require.NoError(t, err)
	require.Len(t, cache.blobs, 1)

	require.NoError(t, b.Invalidate(context.Background(), pool, padres))
	assert.Empty(t, cache.blobs)

	_, err = b.Build(context.Background(), pool, padres)
	require.NoError(t, err)
	assert.Equal(t, 8, src.calls)
	assert.Equal(t, 2, cache.stores)

	// Without a cache there is nothing to drop
	assert.NoError(t, NewBuilder(src, logger.NewDiscardLogger()).Invalidate(context.Background(), pool, padres))
}

func TestCacheKey_DependsOnTeamAndOrder(t *testing.T) {
	pool := candidates("x", "y")
	assert.Equal(t, CacheKey(padres, pool), CacheKey(padres, candidates("x", "y")))
	assert.NotEqual(t, CacheKey(padres, pool), CacheKey(10, pool))
	assert.NotEqual(t, CacheKey(padres, pool), CacheKey(padres, candidates("y", "x")))
}
