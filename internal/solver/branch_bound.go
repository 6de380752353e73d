package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTol = 1e-10
	// lpMaxCells caps the dense standard form (rows times columns) a node
	// relaxation may build; larger models rely on the combinatorial bound
	lpMaxCells = 40000
)

// BranchAndBound solves binary programs by depth-first branch and bound.
// Nodes that survive the combinatorial bound are bounded again with their
// LP relaxation when the model is small enough for a dense simplex.
type BranchAndBound struct {
	problem
}

// NewBranchAndBound creates an empty branch and bound model
func NewBranchAndBound(opts Options) *BranchAndBound {
	return &BranchAndBound{problem: newProblem(opts, BackendBranchAndBound)}
}

type relaxState int

const (
	relaxSolved relaxState = iota
	relaxInfeasible
	// relaxUnknown means the LP was not solved; the node keeps its
	// combinatorial bound
	relaxUnknown
)

type relaxation struct {
	state relaxState
	bound float64
}

// Optimize runs the search. The incumbent is only replaced by a strictly
// better assignment, so ties keep the first one found.
func (m *BranchAndBound) Optimize(ctx context.Context) (Status, error) {
	if err := m.begin(); err != nil {
		return NotSolved, err
	}
	started := time.Now()
	rows, obj := m.canonical()
	limit := m.newLimiter(ctx)

	s := newSearch(rows, obj, limit, &m.nodes, m.progress)
	if cells := standardFormCells(rows, len(obj)); cells <= lpMaxCells {
		s.bound = func(s *search) (float64, bool) {
			rel := m.relax(rows, obj, s.state, limit)
			switch rel.state {
			case relaxInfeasible:
				return 0, false
			case relaxSolved:
				return rel.bound, true
			}
			return math.Inf(1), true
		}
	} else {
		m.log.WithField("cells", cells).Debug("Model too large for LP bounds, using combinatorial bounds only")
	}
	s.run()

	return m.finish(ctx, s.best, s.bestObj, limit.hit, started)
}

// standardFormCells is the size of the root relaxation matrix
func standardFormCells(rows []row, n int) int {
	le := 0
	for _, r := range rows {
		if r.op != Equal {
			le++
		}
	}
	return (len(rows) + n) * (2*n + le)
}

// relax solves the LP relaxation with fixed variables substituted out
func (m *BranchAndBound) relax(rows []row, obj []float64, fixed []int8, limit *limiter) relaxation {
	n := len(fixed)
	col := make([]int, n)
	x := make([]float64, n)
	var free []int
	fixedObj := 0.0
	for i, f := range fixed {
		if f < 0 {
			col[i] = len(free)
			free = append(free, i)
			continue
		}
		col[i] = -1
		x[i] = float64(f)
		fixedObj += obj[i] * x[i]
	}

	var le, eq []row
	for _, r := range rows {
		rhs := r.rhs
		var terms []Term
		for _, t := range r.terms {
			if col[t.Var] < 0 {
				rhs -= t.Coef * x[t.Var]
			} else {
				terms = append(terms, Term{Var: Var(col[t.Var]), Coef: t.Coef})
			}
		}
		if len(terms) == 0 {
			if (r.op == Equal && math.Abs(rhs) > feasibilityTol) || (r.op == LessEq && rhs < -feasibilityTol) {
				return relaxation{state: relaxInfeasible}
			}
			continue
		}
		reduced := row{name: r.name, terms: terms, op: r.op, rhs: rhs}
		if r.op == Equal {
			eq = append(eq, reduced)
		} else {
			le = append(le, reduced)
		}
	}

	nf := len(free)
	if nf == 0 {
		return relaxation{state: relaxSolved, bound: fixedObj}
	}
	if nf < len(eq) {
		// Standard form would have more rows than columns
		return relaxation{state: relaxUnknown}
	}

	// Standard form columns: free vars, one slack per <= row, one slack per
	// upper bound x <= 1
	nRows := len(le) + len(eq) + nf
	nCols := 2*nf + len(le)
	A := mat.NewDense(nRows, nCols, nil)
	b := make([]float64, nRows)
	c := make([]float64, nCols)
	for j, v := range free {
		c[j] = -obj[v]
	}

	r := 0
	for k, lr := range le {
		for _, t := range lr.terms {
			A.Set(r, int(t.Var), t.Coef)
		}
		A.Set(r, nf+k, 1)
		b[r] = lr.rhs
		r++
	}
	for _, er := range eq {
		for _, t := range er.terms {
			A.Set(r, int(t.Var), t.Coef)
		}
		b[r] = er.rhs
		r++
	}
	for j := 0; j < nf; j++ {
		A.Set(r, j, 1)
		A.Set(r, nf+len(le)+j, 1)
		b[r] = 1
		r++
	}
	for i := 0; i < nRows; i++ {
		if b[i] < 0 {
			b[i] = -b[i]
			for j := 0; j < nCols; j++ {
				A.Set(i, j, -A.At(i, j))
			}
		}
	}

	// A simplex call cannot be interrupted
	if limit.expired() {
		return relaxation{state: relaxUnknown}
	}
	optF, _, err := simplex(c, A, b)
	if errors.Is(err, lp.ErrInfeasible) {
		return relaxation{state: relaxInfeasible}
	}
	if err != nil {
		m.log.WithError(err).Debug("LP relaxation failed, keeping combinatorial bound")
		return relaxation{state: relaxUnknown}
	}
	return relaxation{state: relaxSolved, bound: fixedObj - optF}
}

func simplex(c []float64, A mat.Matrix, b []float64) (optF float64, optX []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex: %v", r)
		}
	}()
	return lp.Simplex(c, A, b, simplexTol, nil)
}
