package rotation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
	"github.com/stitts-dev/rotation-optimizer/internal/solver"
	"github.com/stitts-dev/rotation-optimizer/internal/teammates"
	"github.com/stitts-dev/rotation-optimizer/pkg/logger"
)

func factories() map[string]solver.Factory {
	return map[string]solver.Factory{
		solver.BackendBranchAndBound: func(opts solver.Options) solver.Model { return solver.NewBranchAndBound(opts) },
		solver.BackendEnumerate:      func(opts solver.Options) solver.Model { return solver.NewEnumerator(opts) },
	}
}

func sixPool() []models.Candidate {
	values := []float64{10, 9, 8, 7, 6, 5}
	ids := []string{"a", "b", "c", "d", "e", "f"}
	pool := make([]models.Candidate, len(ids))
	for i := range ids {
		pool[i] = models.Candidate{ID: ids[i], Value: values[i]}
	}
	return pool
}

func sortedIDs(s *models.Solution) []string {
	ids := s.PickIDs()
	sort.Strings(ids)
	return ids
}

func TestSolve_EncodingsAgreeOnSixCandidates(t *testing.T) {
	rel := teammates.NewRelation()
	rel.Add("a", "b")

	for name, factory := range factories() {
		for _, enc := range []Encoding{EncodingPairwise, EncodingLinearized} {
			t.Run(fmt.Sprintf("%s/%s", name, enc), func(t *testing.T) {
				engine := NewEngine(factory, logger.NewDiscardLogger())

				sol, err := engine.Solve(context.Background(), sixPool(), rel, Options{Size: 5, Encoding: enc})
				require.NoError(t, err)
				assert.InDelta(t, 36, sol.Total, 1e-6)
				assert.Equal(t, []string{"a", "c", "d", "e", "f"}, sol.PickIDs())
				assert.Equal(t, string(enc), sol.Encoding)
				assert.Equal(t, "optimal", sol.Status)
				assert.Empty(t, sol.Warnings)
				assert.Positive(t, sol.Nodes)

				sol, err = engine.Solve(context.Background(), sixPool(), rel, Options{Size: 3, Encoding: enc})
				require.NoError(t, err)
				assert.InDelta(t, 25, sol.Total, 1e-6)
				assert.Equal(t, []string{"a", "c", "d"}, sol.PickIDs())
			})
		}
	}
}

func TestSolve_DefaultsToFivePairwise(t *testing.T) {
	engine := NewEngine(factories()[solver.BackendEnumerate], logger.NewDiscardLogger())

	sol, err := engine.Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{})
	require.NoError(t, err)
	assert.Len(t, sol.Picks, DefaultSize)
	assert.Equal(t, string(EncodingPairwise), sol.Encoding)
	assert.InDelta(t, 40, sol.Total, 1e-6)
	assert.InDelta(t, sol.PickTotal(), sol.Total, 1e-6)
}

func TestSolve_ExactSizeAndIndependenceOnRandomPools(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 15; round++ {
		n := 8 + rng.Intn(5)
		pool := make([]models.Candidate, n)
		for i := range pool {
			pool[i] = models.Candidate{ID: fmt.Sprintf("p%02d", i), Value: float64(rng.Intn(200)) / 10}
		}
		rel := teammates.NewRelation()
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Float64() < 0.25 {
					rel.Add(pool[i].ID, pool[j].ID)
				}
			}
		}
		size := 2 + rng.Intn(3)

		var totals []float64
		for name, factory := range factories() {
			engine := NewEngine(factory, logger.NewDiscardLogger())
			sol, err := engine.Solve(context.Background(), pool, rel, Options{Size: size})
			if errors.Is(err, ErrInfeasible) {
				totals = append(totals, -1)
				continue
			}
			require.NoError(t, err, "%s round %d", name, round)

			assert.Len(t, sol.Picks, size)
			assert.NoError(t, Verify(sol.Picks, rel, size))
			totals = append(totals, sol.Total)
		}
		require.Len(t, totals, 2)
		assert.InDelta(t, totals[0], totals[1], 1e-6, "round %d", round)
	}
}

// careerPool builds n candidates with random career spans; two candidates
// are teammates when their spans share a season
func careerPool(rng *rand.Rand, n int) ([]models.Candidate, *teammates.Relation) {
	pool := make([]models.Candidate, n)
	first := make([]int, n)
	last := make([]int, n)
	for i := range pool {
		pool[i] = models.Candidate{ID: fmt.Sprintf("p%03d", i), Value: float64(rng.Intn(800)) / 10}
		first[i] = 1960 + rng.Intn(60)
		last[i] = first[i] + rng.Intn(15)
	}
	rel := teammates.NewRelation()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if first[i] <= last[j] && first[j] <= last[i] {
				rel.Add(pool[i].ID, pool[j].ID)
			}
		}
	}
	return pool, rel
}

func TestSolve_ProvesOptimumOnFranchiseSizedPool(t *testing.T) {
	pool, rel := careerPool(rand.New(rand.NewSource(11)), 150)
	require.Greater(t, rel.Len(), 1000)

	limit := 30 * time.Second
	totals := make(map[string]float64)
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			engine := NewEngine(factory, logger.NewDiscardLogger())

			start := time.Now()
			sol, err := engine.Solve(context.Background(), pool, rel, Options{Size: 5, MaxDuration: limit})
			require.NoError(t, err)
			assert.Less(t, time.Since(start), limit)
			assert.Equal(t, "optimal", sol.Status)
			assert.Empty(t, sol.Warnings)
			require.NoError(t, Verify(sol.Picks, rel, 5))
			totals[name] = sol.Total
		})
	}
	assert.InDelta(t, totals[solver.BackendEnumerate], totals[solver.BackendBranchAndBound], 1e-6)
}

func TestSolve_LinearizedWithinTimeLimit(t *testing.T) {
	pool, rel := careerPool(rand.New(rand.NewSource(5)), 40)

	limit := 10 * time.Second
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			engine := NewEngine(factory, logger.NewDiscardLogger())

			pairwise, err := engine.Solve(context.Background(), pool, rel, Options{Size: 5, MaxDuration: limit})
			require.NoError(t, err)

			start := time.Now()
			linearized, err := engine.Solve(context.Background(), pool, rel, Options{
				Size:        5,
				Encoding:    EncodingLinearized,
				MaxDuration: limit,
			})
			require.NoError(t, err)
			assert.Less(t, time.Since(start), limit+5*time.Second)
			assert.Equal(t, "optimal", linearized.Status)
			assert.InDelta(t, pairwise.Total, linearized.Total, 1e-6)
			require.NoError(t, Verify(linearized.Picks, rel, 5))
		})
	}
}

func TestSolve_InfeasibleOnCompleteGraph(t *testing.T) {
	pool := sixPool()[:4]
	rel := teammates.NewRelation()
	for i := range pool {
		for j := i + 1; j < len(pool); j++ {
			rel.Add(pool[i].ID, pool[j].ID)
		}
	}

	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			engine := NewEngine(factory, logger.NewDiscardLogger())

			sol, err := engine.Solve(context.Background(), pool, rel, Options{Size: 2})
			assert.Nil(t, sol)
			require.Error(t, err)

			var infeasible *InfeasibleModelError
			require.True(t, errors.As(err, &infeasible))
			assert.Equal(t, 2, infeasible.Size)
			assert.Equal(t, 4, infeasible.PoolSize)

			// A single pick is always possible
			sol, err = engine.Solve(context.Background(), pool, rel, Options{Size: 1})
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, sol.PickIDs())
		})
	}
}

func TestSolve_SizeLargerThanPool(t *testing.T) {
	engine := NewEngine(factories()[solver.BackendBranchAndBound], logger.NewDiscardLogger())

	_, err := engine.Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{Size: 7})
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSolve_Idempotent(t *testing.T) {
	rel := teammates.NewRelation()
	rel.Add("a", "c")
	rel.Add("b", "d")
	engine := NewEngine(factories()[solver.BackendBranchAndBound], logger.NewDiscardLogger())

	first, err := engine.Solve(context.Background(), sixPool(), rel, Options{Size: 4})
	require.NoError(t, err)
	second, err := engine.Solve(context.Background(), sixPool(), rel, Options{Size: 4})
	require.NoError(t, err)

	assert.InDelta(t, first.Total, second.Total, 1e-9)
	assert.Equal(t, sortedIDs(first), sortedIDs(second))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSolve_RejectsBadInput(t *testing.T) {
	engine := NewEngine(factories()[solver.BackendEnumerate], logger.NewDiscardLogger())
	rel := teammates.NewRelation()
	dup := append(sixPool(), models.Candidate{ID: "a", Value: 1})

	cases := map[string]struct {
		pool []models.Candidate
		opts Options
	}{
		"negative size":    {sixPool(), Options{Size: -1}},
		"unknown encoding": {sixPool(), Options{Encoding: "quadratic"}},
		"bad tolerance":    {sixPool(), Options{Tolerance: 0.7}},
		"empty pool":       {nil, Options{}},
		"duplicate ids":    {dup, Options{}},
		"empty id":         {[]models.Candidate{{ID: "", Value: 1}}, Options{Size: 1}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sol, err := engine.Solve(context.Background(), tc.pool, rel, tc.opts)
			assert.Nil(t, sol)
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestSolve_DoesNotMutatePool(t *testing.T) {
	engine := NewEngine(factories()[solver.BackendEnumerate], logger.NewDiscardLogger())
	pool := sixPool()
	for i := range pool {
		pool[i].Index = 99
	}

	_, err := engine.Solve(context.Background(), pool, teammates.NewRelation(), Options{Size: 2})
	require.NoError(t, err)
	for _, c := range pool {
		assert.Equal(t, 99, c.Index)
	}
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingPairwise, enc)

	enc, err = ParseEncoding("linearized")
	require.NoError(t, err)
	assert.Equal(t, EncodingLinearized, enc)

	_, err = ParseEncoding("quadratic")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	rel := teammates.NewRelation()
	rel.Add("a", "b")

	assert.NoError(t, Verify([]models.Pick{{ID: "a"}, {ID: "c"}}, rel, 2))
	assert.Error(t, Verify([]models.Pick{{ID: "a"}}, rel, 2))
	assert.Error(t, Verify([]models.Pick{{ID: "a"}, {ID: "a"}}, rel, 2))
	assert.Error(t, Verify([]models.Pick{{ID: "b"}, {ID: "a"}}, rel, 2))
}

// scriptedModel returns canned results so extraction can be tested on
// values a real backend would not produce
type scriptedModel struct {
	status solver.Status
	err    error
	values []float64
	obj    float64
	vars   int
	rows   int
}

func (m *scriptedModel) AddBinaryVar(string) solver.Var {
	m.vars++
	return solver.Var(m.vars - 1)
}
func (m *scriptedModel) AddConstraint(string, solver.Expr, solver.Op, float64) { m.rows++ }
func (m *scriptedModel) SetObjective(solver.Expr, solver.Sense) {}
func (m *scriptedModel) Optimize(context.Context) (solver.Status, error) { return m.status, m.err }
func (m *scriptedModel) ObjectiveValue() float64 { return m.obj }
func (m *scriptedModel) NumVars() int { return m.vars }
func (m *scriptedModel) NumConstraints() int { return m.rows }
func (m *scriptedModel) Value(v solver.Var) float64 {
	if int(v) < len(m.values) {
		return m.values[v]
	}
	return 0
}

func scripted(m *scriptedModel) *Engine {
	return NewEngine(func(solver.Options) solver.Model { return m }, logger.NewDiscardLogger())
}

func TestSolve_RoundsWithinToleranceSilently(t *testing.T) {
	m := &scriptedModel{status: solver.Optimal, values: []float64{0.9999999, 1e-8, 1, 0, 0, 0}, obj: 18}

	sol, err := scripted(m).Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, sol.PickIDs())
	assert.Empty(t, sol.Warnings)
}

func TestSolve_RoundsOutsideToleranceWithWarning(t *testing.T) {
	m := &scriptedModel{status: solver.Optimal, values: []float64{0.6, 0.4, 1, 0, 0, 0}, obj: 18}

	sol, err := scripted(m).Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, sol.PickIDs())
	require.Len(t, sol.Warnings, 2)
	assert.Contains(t, sol.Warnings[0], "candidate a")
	assert.Contains(t, sol.Warnings[1], "candidate b")
}

func TestSolve_RejectsInconsistentSolverOutput(t *testing.T) {
	rel := teammates.NewRelation()
	rel.Add("a", "c")

	// wrong cardinality
	m := &scriptedModel{status: solver.Optimal, values: []float64{1, 1, 1, 0, 0, 0}}
	_, err := scripted(m).Solve(context.Background(), sixPool(), rel, Options{Size: 2})
	assert.ErrorContains(t, err, "invalid rotation")

	// teammates selected
	m = &scriptedModel{status: solver.Optimal, values: []float64{1, 0, 1, 0, 0, 0}}
	_, err = scripted(m).Solve(context.Background(), sixPool(), rel, Options{Size: 2})
	assert.ErrorContains(t, err, "teammates")
}

func TestSolve_StatusHandling(t *testing.T) {
	m := &scriptedModel{status: solver.Feasible, values: []float64{1, 1, 0, 0, 0, 0}, obj: 19}
	sol, err := scripted(m).Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, "feasible", sol.Status)
	assert.Len(t, sol.Warnings, 1)

	m = &scriptedModel{status: solver.Infeasible}
	_, err = scripted(m).Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{Size: 2})
	assert.ErrorIs(t, err, ErrInfeasible)

	m = &scriptedModel{status: solver.NotSolved, err: solver.ErrLimitReached}
	_, err = scripted(m).Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{Size: 2})
	assert.ErrorIs(t, err, solver.ErrLimitReached)

	m = &scriptedModel{status: solver.NotSolved}
	_, err = scripted(m).Solve(context.Background(), sixPool(), teammates.NewRelation(), Options{Size: 2})
	assert.Error(t, err)
}

func TestSolve_ModelShapePerEncoding(t *testing.T) {
	rel := teammates.NewRelation()
	rel.Add("a", "b")
	rel.Add("c", "d")

	pairwise := &scriptedModel{status: solver.Infeasible}
	_, _ = scripted(pairwise).Solve(context.Background(), sixPool(), rel, Options{Size: 2})
	assert.Equal(t, 6, pairwise.vars)
	assert.Equal(t, 1+2, pairwise.rows)

	linearized := &scriptedModel{status: solver.Infeasible}
	_, _ = scripted(linearized).Solve(context.Background(), sixPool(), rel, Options{Size: 2, Encoding: EncodingLinearized})
	assert.Equal(t, 6+30, linearized.vars)
	assert.Equal(t, 1+3*30+1, linearized.rows)
}
