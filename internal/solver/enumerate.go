package solver

import (
	"context"
	"time"
)

// Enumerator is an exact depth-first search over 0/1 assignments. Row
// propagation fixes forced variables, and a combinatorial bound prunes
// nodes that cannot beat the incumbent. No LP is solved, so every node is
// cheap.
type Enumerator struct {
	problem
}

// NewEnumerator creates an empty enumeration model
func NewEnumerator(opts Options) *Enumerator {
	return &Enumerator{problem: newProblem(opts, BackendEnumerate)}
}

// Optimize runs the search
func (m *Enumerator) Optimize(ctx context.Context) (Status, error) {
	if err := m.begin(); err != nil {
		return NotSolved, err
	}
	started := time.Now()
	rows, obj := m.canonical()

	s := newSearch(rows, obj, m.newLimiter(ctx), &m.nodes, m.progress)
	s.run()

	return m.finish(ctx, s.best, s.bestObj, s.limit.hit, started)
}
