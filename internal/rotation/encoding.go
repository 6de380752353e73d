package rotation

import (
	"fmt"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
	"github.com/stitts-dev/rotation-optimizer/internal/solver"
)

// Encoding selects how the no-teammates rule is written into the model
type Encoding string

const (
	// EncodingPairwise adds x_i + x_j <= 1 per teammate pair
	EncodingPairwise Encoding = "pairwise"
	// EncodingLinearized adds y_ij = x_i AND x_j for every ordered pair and
	// requires the teammate-weighted sum of y to be zero
	EncodingLinearized Encoding = "linearized"
)

// ParseEncoding maps a configuration string to an Encoding
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingPairwise, "":
		return EncodingPairwise, nil
	case EncodingLinearized:
		return EncodingLinearized, nil
	}
	return "", fmt.Errorf("%w: unknown encoding %q", ErrInvalidArgument, s)
}

// addPairwise writes one exclusion row per unordered teammate pair
func addPairwise(m solver.Model, x []solver.Var, pool []models.Candidate, adj Adjacency) int {
	rows := 0
	for i := range pool {
		for j := i + 1; j < len(pool); j++ {
			if !adj.Adjacent(pool[i].ID, pool[j].ID) {
				continue
			}
			m.AddConstraint(fmt.Sprintf("apart(%s,%s)", pool[i].ID, pool[j].ID), solver.Sum(x[i], x[j]), solver.LessEq, 1)
			rows++
		}
	}
	return rows
}

// addLinearized writes the McCormick form. It needs N(N-1) extra variables
// and three rows each, so it only suits small pools.
func addLinearized(m solver.Model, x []solver.Var, pool []models.Candidate, adj Adjacency) int {
	var together solver.Expr
	rows := 0
	for i := range pool {
		for j := range pool {
			if i == j {
				continue
			}
			y := m.AddBinaryVar(fmt.Sprintf("y(%d-%d)", i, j))
			name := fmt.Sprintf("and(%d-%d)", i, j)
			// y >= x_i + x_j - 1
			m.AddConstraint(name+".lo", solver.Expr{{Var: x[i], Coef: 1}, {Var: x[j], Coef: 1}, {Var: y, Coef: -1}}, solver.LessEq, 1)
			// y <= x_i, y <= x_j
			m.AddConstraint(name+".i", solver.Expr{{Var: y, Coef: 1}, {Var: x[i], Coef: -1}}, solver.LessEq, 0)
			m.AddConstraint(name+".j", solver.Expr{{Var: y, Coef: 1}, {Var: x[j], Coef: -1}}, solver.LessEq, 0)
			rows += 3

			if adj.Adjacent(pool[i].ID, pool[j].ID) {
				together = together.Plus(1, y)
			}
		}
	}
	m.AddConstraint("no_teammates", together, solver.Equal, 0)
	return rows + 1
}
