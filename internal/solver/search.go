package solver

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

const unfixed int8 = -1

type occurrence struct {
	row  int
	coef float64
}

// search is the depth-first engine behind both backends. Every assignment
// is propagated through the rows until no free variable is forced, and a
// node is pruned when its bound cannot beat the incumbent.
//
// When the model has a cardinality row (an equality whose coefficients are
// all one) its variables are branched first in decreasing objective order,
// and root probing records which of them exclude each other. The bound then
// counts one variable per conflict clique.
type search struct {
	rows   []row
	obj    []float64
	occurs [][]occurrence
	maxAbs []float64
	order  []int

	state   []int8
	act     []float64 // activity of fixed variables per row
	minFree []float64 // sum of negative free coefficients per row
	maxFree []float64 // sum of positive free coefficients per row
	trail   []int
	head    int

	fixedObj float64
	outside  float64 // positive free objective outside the cardinality row

	card      int
	cardVars  []int
	cardIndex []int
	words     int
	conflicts [][]uint64
	common    [][]uint64

	best    []float64
	bestObj float64
	limit   *limiter
	nodes   *int

	progress func(msg string, fields logrus.Fields)
	// bound optionally tightens the node bound once the combinatorial one
	// has passed; false prunes the node as infeasible
	bound func(s *search) (float64, bool)
}

func newSearch(rows []row, obj []float64, limit *limiter, nodes *int, progress func(string, logrus.Fields)) *search {
	n := len(obj)
	s := &search{
		rows:      rows,
		obj:       obj,
		occurs:    make([][]occurrence, n),
		maxAbs:    make([]float64, len(rows)),
		state:     make([]int8, n),
		act:       make([]float64, len(rows)),
		minFree:   make([]float64, len(rows)),
		maxFree:   make([]float64, len(rows)),
		card:      -1,
		cardIndex: make([]int, n),
		bestObj:   math.Inf(-1),
		limit:     limit,
		nodes:     nodes,
		progress:  progress,
	}
	for i := range s.state {
		s.state[i] = unfixed
		s.cardIndex[i] = -1
	}
	for ri, r := range rows {
		for _, t := range r.terms {
			s.occurs[t.Var] = append(s.occurs[t.Var], occurrence{row: ri, coef: t.Coef})
			if t.Coef < 0 {
				s.minFree[ri] += t.Coef
			} else {
				s.maxFree[ri] += t.Coef
			}
			s.maxAbs[ri] = math.Max(s.maxAbs[ri], math.Abs(t.Coef))
		}
	}

	s.findCardinality()

	s.order = make([]int, n)
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		va, vb := s.order[a], s.order[b]
		ina, inb := s.cardIndex[va] >= 0, s.cardIndex[vb] >= 0
		if ina != inb {
			return ina
		}
		return obj[va] > obj[vb]
	})
	for _, v := range s.order {
		if s.cardIndex[v] >= 0 {
			s.cardIndex[v] = len(s.cardVars)
			s.cardVars = append(s.cardVars, v)
		}
	}
	s.words = (len(s.cardVars) + 63) / 64
	s.conflicts = make([][]uint64, len(s.cardVars))
	for i := range s.conflicts {
		s.conflicts[i] = make([]uint64, s.words)
	}

	for i, c := range obj {
		if c > 0 && s.cardIndex[i] < 0 {
			s.outside += c
		}
	}
	return s
}

// findCardinality picks the all-ones equality row with a positive right
// hand side that covers the most objective terms and marks its variables;
// their final positions are assigned once the order is known
func (s *search) findCardinality() {
	bestObj, bestLen := -1, 0
	for ri, r := range s.rows {
		if r.op != Equal || r.rhs < 1 || r.rhs != math.Round(r.rhs) {
			continue
		}
		unit := true
		withObj := 0
		for _, t := range r.terms {
			if t.Coef != 1 {
				unit = false
				break
			}
			if s.obj[t.Var] != 0 {
				withObj++
			}
		}
		if !unit {
			continue
		}
		if withObj > bestObj || (withObj == bestObj && len(r.terms) > bestLen) {
			s.card, bestObj, bestLen = ri, withObj, len(r.terms)
		}
	}
	if s.card < 0 {
		return
	}
	for _, t := range s.rows[s.card].terms {
		s.cardIndex[t.Var] = 0
	}
}

// run searches from the root; the result is left in best and bestObj
func (s *search) run() {
	if !s.root() || !s.probe() {
		return
	}
	s.dfs(0)
}

// root checks every row once and propagates what that forces
func (s *search) root() bool {
	for ri := range s.rows {
		if !s.checkRow(ri) {
			return false
		}
	}
	return s.propagate()
}

// probe sets each free cardinality variable to one and records which
// cardinality variables that forces to zero. A variable that cannot be one
// is fixed to zero for the rest of the search.
func (s *search) probe() bool {
	for ci, v := range s.cardVars {
		if s.state[v] != unfixed {
			continue
		}
		if s.limit.expired() {
			return true
		}
		mark := len(s.trail)
		s.fix(v, 1)
		ok := s.propagate()
		if ok {
			for _, u := range s.trail[mark+1:] {
				if cu := s.cardIndex[u]; cu >= 0 && s.state[u] == 0 {
					setBit(s.conflicts[ci], cu)
					setBit(s.conflicts[cu], ci)
				}
			}
		}
		s.undo(mark)
		if !ok {
			s.fix(v, 0)
			if !s.propagate() {
				return false
			}
		}
	}
	return true
}

func (s *search) dfs(pos int) {
	if s.limit.stop(*s.nodes) {
		return
	}
	*s.nodes++

	for pos < len(s.order) && s.state[s.order[pos]] != unfixed {
		pos++
	}
	bound, ok := s.combinatorialBound()
	if !ok || bound <= s.bestObj+improvementTol {
		return
	}
	if pos == len(s.order) {
		s.record()
		return
	}
	if s.bound != nil {
		if bound, ok = s.bound(s); !ok || bound <= s.bestObj+improvementTol {
			return
		}
	}

	v := s.order[pos]
	first := int8(0)
	if s.obj[v] > 0 {
		first = 1
	}
	for _, val := range [2]int8{first, 1 - first} {
		mark := len(s.trail)
		s.fix(v, val)
		if s.propagate() {
			s.dfs(pos + 1)
		}
		s.undo(mark)
		if s.limit.hit {
			return
		}
	}
}

// record keeps a complete assignment when it strictly improves the incumbent
func (s *search) record() {
	x := make([]float64, len(s.state))
	for i, st := range s.state {
		x[i] = float64(st)
	}
	if !satisfied(s.rows, x) {
		return
	}
	if value := dot(s.obj, x); value > s.bestObj+improvementTol {
		s.best, s.bestObj = x, value
		s.progress("New incumbent", logrus.Fields{"objective": value, "nodes": *s.nodes})
	}
}

// combinatorialBound is the fixed objective plus what the free variables
// could add. An exact cardinality row takes at most one variable from each
// conflict clique, so a greedy clique cover in decreasing objective order
// only counts the leaders of its first cliques. Fewer cliques than open
// slots means the node is infeasible.
func (s *search) combinatorialBound() (float64, bool) {
	b := s.fixedObj + s.outside
	if s.card < 0 {
		return b, true
	}
	need := int(math.Round(s.rows[s.card].rhs - s.act[s.card]))
	if need <= 0 {
		return b, true
	}
	for len(s.common) < need {
		s.common = append(s.common, make([]uint64, s.words))
	}

	open := 0
	for ci, v := range s.cardVars {
		if s.state[v] != unfixed {
			continue
		}
		placed := false
		for k := 0; k < open; k++ {
			if hasBit(s.common[k], ci) {
				intersect(s.common[k], s.conflicts[ci])
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		if open == need {
			return b, true
		}
		copy(s.common[open], s.conflicts[ci])
		open++
		b += s.obj[v]
	}
	return b, open == need
}

func (s *search) fix(v int, val int8) {
	s.state[v] = val
	s.trail = append(s.trail, v)
	x := float64(val)
	for _, o := range s.occurs[v] {
		s.act[o.row] += o.coef * x
		if o.coef < 0 {
			s.minFree[o.row] -= o.coef
		} else {
			s.maxFree[o.row] -= o.coef
		}
	}
	c := s.obj[v]
	s.fixedObj += c * x
	if c > 0 && s.cardIndex[v] < 0 {
		s.outside -= c
	}
}

// undo frees every variable fixed after mark
func (s *search) undo(mark int) {
	for len(s.trail) > mark {
		v := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		x := float64(s.state[v])
		for _, o := range s.occurs[v] {
			s.act[o.row] -= o.coef * x
			if o.coef < 0 {
				s.minFree[o.row] += o.coef
			} else {
				s.maxFree[o.row] += o.coef
			}
		}
		c := s.obj[v]
		s.fixedObj -= c * x
		if c > 0 && s.cardIndex[v] < 0 {
			s.outside += c
		}
		s.state[v] = unfixed
	}
	if s.head > mark {
		s.head = mark
	}
}

// propagate rechecks the rows of every variable fixed since the last call
func (s *search) propagate() bool {
	for s.head < len(s.trail) {
		v := s.trail[s.head]
		s.head++
		for _, o := range s.occurs[v] {
			if !s.checkRow(o.row) {
				return false
			}
		}
	}
	return true
}

// checkRow reports whether row ri can still be satisfied and fixes the free
// variables whose other value would break it
func (s *search) checkRow(ri int) bool {
	r := &s.rows[ri]
	lo := s.act[ri] + s.minFree[ri]
	hi := s.act[ri] + s.maxFree[ri]
	if lo > r.rhs+feasibilityTol {
		return false
	}
	equal := r.op == Equal
	if equal && hi < r.rhs-feasibilityTol {
		return false
	}

	up := r.rhs - lo
	down := math.Inf(1)
	if equal {
		down = hi - r.rhs
	}
	if s.maxAbs[ri] <= up+feasibilityTol && s.maxAbs[ri] <= down+feasibilityTol {
		return true
	}

	for _, t := range r.terms {
		v := int(t.Var)
		if s.state[v] != unfixed {
			continue
		}
		a := math.Abs(t.Coef)
		switch {
		case a > up+feasibilityTol:
			if t.Coef > 0 {
				s.fix(v, 0)
			} else {
				s.fix(v, 1)
			}
		case a > down+feasibilityTol:
			if t.Coef > 0 {
				s.fix(v, 1)
			} else {
				s.fix(v, 0)
			}
		}
	}
	return true
}

func setBit(b []uint64, i int) {
	b[i/64] |= 1 << uint(i%64)
}

func hasBit(b []uint64, i int) bool {
	return b[i/64]&(1<<uint(i%64)) != 0
}

func intersect(dst, src []uint64) {
	for i := range dst {
		dst[i] &= src[i]
	}
}
