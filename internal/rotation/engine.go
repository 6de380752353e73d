// Package rotation selects the most valuable group of players in which no
// two were ever teammates, by solving a binary integer program.
package rotation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
	"github.com/stitts-dev/rotation-optimizer/internal/solver"
)

const (
	// DefaultSize is the five-man rotation
	DefaultSize      = 5
	DefaultTolerance = 1e-6
)

// Adjacency answers whether two players were teammates. Implementations
// must be symmetric.
type Adjacency interface {
	Adjacent(a, b string) bool
}

// nodeCounter is implemented by solvers that report their search effort
type nodeCounter interface {
	Nodes() int
}

// Options configure a single solve
type Options struct {
	Size        int
	Encoding    Encoding
	Verbose     bool
	Tolerance   float64
	MaxDuration time.Duration
	MaxNodes    int
}

func (o Options) withDefaults() Options {
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.Encoding == "" {
		o.Encoding = EncodingPairwise
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	return o
}

func (o Options) validate() error {
	if o.Size < 1 {
		return fmt.Errorf("%w: rotation size must be positive, got %d", ErrInvalidArgument, o.Size)
	}
	if _, err := ParseEncoding(string(o.Encoding)); err != nil {
		return err
	}
	if o.Tolerance <= 0 || o.Tolerance >= 0.5 {
		return fmt.Errorf("%w: tolerance must be in (0, 0.5), got %g", ErrInvalidArgument, o.Tolerance)
	}
	return nil
}

// Engine builds and solves one fresh model per call and keeps no state
// between calls
type Engine struct {
	newModel solver.Factory
	logger   *logrus.Logger
}

// NewEngine creates a selection engine on top of a solver backend
func NewEngine(factory solver.Factory, logger *logrus.Logger) *Engine {
	return &Engine{
		newModel: factory,
		logger:   logger,
	}
}

// Solve returns the highest-value rotation of exactly opts.Size candidates
// with no two teammates. An impossible request yields an
// *InfeasibleModelError, never an empty or short solution.
func (e *Engine) Solve(ctx context.Context, candidates []models.Candidate, adj Adjacency, opts Options) (*models.Solution, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	pool, err := indexPool(candidates)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	log := e.logger.WithFields(logrus.Fields{
		"optimization_id": id.String(),
		"pool_size":       len(pool),
		"size":            opts.Size,
		"encoding":        string(opts.Encoding),
	})

	if opts.Size > len(pool) {
		return nil, &InfeasibleModelError{
			Size:     opts.Size,
			PoolSize: len(pool),
			Encoding: opts.Encoding,
			Reason:   "rotation is larger than the candidate pool",
		}
	}

	start := time.Now()

	// Build
	model := e.newModel(solver.Options{
		Verbose:     opts.Verbose,
		MaxDuration: opts.MaxDuration,
		MaxNodes:    opts.MaxNodes,
		Logger:      e.logger,
	})
	x := make([]solver.Var, len(pool))
	objective := make(solver.Expr, len(pool))
	for i, c := range pool {
		x[i] = model.AddBinaryVar(fmt.Sprintf("x(%s)", c.ID))
		objective[i] = solver.Term{Var: x[i], Coef: c.Value}
	}
	model.SetObjective(objective, solver.Maximize)
	model.AddConstraint("rotation_size", solver.Sum(x...), solver.Equal, float64(opts.Size))

	var exclusions int
	switch opts.Encoding {
	case EncodingLinearized:
		exclusions = addLinearized(model, x, pool, adj)
	default:
		exclusions = addPairwise(model, x, pool, adj)
	}
	log.WithFields(logrus.Fields{
		"vars":       model.NumVars(),
		"rows":       model.NumConstraints(),
		"exclusions": exclusions,
	}).Debug("Built rotation model")

	// Solve
	status, err := model.Optimize(ctx)
	if err != nil {
		return nil, fmt.Errorf("rotation solve failed: %w", err)
	}
	var nodes int
	if counter, ok := model.(nodeCounter); ok {
		nodes = counter.Nodes()
	}

	var warnings []string
	switch status {
	case solver.Optimal:
	case solver.Feasible:
		msg := "search limit reached, rotation is not proven optimal"
		log.Warn(msg)
		warnings = append(warnings, msg)
	case solver.Infeasible:
		return nil, &InfeasibleModelError{Size: opts.Size, PoolSize: len(pool), Encoding: opts.Encoding}
	default:
		return nil, fmt.Errorf("rotation solve ended with status %s", status)
	}

	// Extract
	picks := make([]models.Pick, 0, opts.Size)
	for i, c := range pool {
		selected, clean := decide(model.Value(x[i]), opts.Tolerance)
		if !clean {
			w := NumericToleranceWarning{CandidateID: c.ID, Value: model.Value(x[i]), Selected: selected}
			log.WithFields(logrus.Fields{
				"candidate": c.ID,
				"value":     w.Value,
				"selected":  selected,
			}).Warn("Decision value outside tolerance, rounded")
			warnings = append(warnings, w.String())
		}
		if selected {
			picks = append(picks, models.Pick{ID: c.ID, Name: c.Name, Value: c.Value})
		}
	}

	if err := Verify(picks, adj, opts.Size); err != nil {
		return nil, fmt.Errorf("solver returned an invalid rotation: %w", err)
	}

	solution := &models.Solution{
		ID:        id,
		Picks:     picks,
		Total:     model.ObjectiveValue(),
		Size:      opts.Size,
		PoolSize:  len(pool),
		Encoding:  string(opts.Encoding),
		Status:    status.String(),
		Warnings:  warnings,
		Nodes:     nodes,
		Elapsed:   time.Since(start),
		CreatedAt: time.Now(),
	}

	log.WithFields(logrus.Fields{
		"total":    solution.Total,
		"picks":    strings.Join(solution.PickIDs(), ","),
		"duration": solution.Elapsed,
		"nodes":    nodes,
	}).Info("Rotation solved")

	return solution, nil
}

// decide rounds a decision value to the nearest integer. clean is false
// when the value was not within tol of 0 or 1.
func decide(v, tol float64) (selected bool, clean bool) {
	switch {
	case math.Abs(v-1) <= tol:
		return true, true
	case math.Abs(v) <= tol:
		return false, true
	}
	return math.Round(v) >= 1, false
}

// indexPool copies the pool and assigns dense solver indices
func indexPool(candidates []models.Candidate) ([]models.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: candidate pool is empty", ErrInvalidArgument)
	}
	pool := make([]models.Candidate, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: candidate %d has an empty id", ErrInvalidArgument, i)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: candidate %s listed twice", ErrInvalidArgument, c.ID)
		}
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return nil, fmt.Errorf("%w: candidate %s has a non-finite value", ErrInvalidArgument, c.ID)
		}
		seen[c.ID] = struct{}{}
		pool[i] = c
		pool[i].Index = i
	}
	return pool, nil
}

// Verify checks a rotation: exactly size picks, no repeats, no teammates
func Verify(picks []models.Pick, adj Adjacency, size int) error {
	if len(picks) != size {
		return fmt.Errorf("rotation has %d players, want %d", len(picks), size)
	}
	seen := make(map[string]struct{}, len(picks))
	for i, p := range picks {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("player %s picked twice", p.ID)
		}
		seen[p.ID] = struct{}{}
		for _, q := range picks[i+1:] {
			if adj.Adjacent(p.ID, q.ID) {
				return fmt.Errorf("players %s and %s were teammates", p.ID, q.ID)
			}
		}
	}
	return nil
}
