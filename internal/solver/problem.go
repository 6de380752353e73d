package solver

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	feasibilityTol = 1e-9
	integralityTol = 1e-6
	improvementTol = 1e-9
)

type row struct {
	name  string
	terms []Term // aggregated, nonzero, sorted by var
	op    Op     // LessEq or Equal once canonical
	rhs   float64
}

// problem holds the model data shared by every backend
type problem struct {
	opts      Options
	log       *logrus.Entry
	names     []string
	rows      []row
	objective []float64
	sense     Sense
	err       error

	status   Status
	values   []float64
	objValue float64
	nodes    int
}

func newProblem(opts Options, backend string) problem {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return problem{
		opts: opts,
		log:  log.WithField("solver", backend),
	}
}

// AddBinaryVar declares a 0/1 decision variable
func (p *problem) AddBinaryVar(name string) Var {
	p.names = append(p.names, name)
	p.objective = append(p.objective, 0)
	return Var(len(p.names) - 1)
}

// AddConstraint registers expr op rhs. A reference to an unknown variable
// is reported by Optimize.
func (p *problem) AddConstraint(name string, expr Expr, op Op, rhs float64) {
	terms, err := p.aggregate(expr)
	if err != nil {
		p.fail(fmt.Errorf("constraint %s: %w", name, err))
		return
	}
	if op != LessEq && op != Equal && op != GreaterEq {
		p.fail(fmt.Errorf("constraint %s: unknown operator %v", name, op))
		return
	}
	if math.IsNaN(rhs) || math.IsInf(rhs, 0) {
		p.fail(fmt.Errorf("constraint %s: rhs is not finite", name))
		return
	}
	p.rows = append(p.rows, row{name: name, terms: terms, op: op, rhs: rhs})
}

// SetObjective replaces the objective
func (p *problem) SetObjective(expr Expr, sense Sense) {
	terms, err := p.aggregate(expr)
	if err != nil {
		p.fail(fmt.Errorf("objective: %w", err))
		return
	}
	for i := range p.objective {
		p.objective[i] = 0
	}
	for _, t := range terms {
		p.objective[t.Var] = t.Coef
	}
	p.sense = sense
}

// Value returns the solved value of v, zero before a solution exists
func (p *problem) Value(v Var) float64 {
	if int(v) < 0 || int(v) >= len(p.values) {
		return 0
	}
	return p.values[v]
}

// ObjectiveValue returns the objective of the best assignment found
func (p *problem) ObjectiveValue() float64 {
	return p.objValue
}

func (p *problem) NumVars() int {
	return len(p.names)
}

func (p *problem) NumConstraints() int {
	return len(p.rows)
}

// Nodes returns how many search nodes the last Optimize visited
func (p *problem) Nodes() int {
	return p.nodes
}

func (p *problem) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
}

func (p *problem) aggregate(expr Expr) ([]Term, error) {
	coefs := make(map[Var]float64, len(expr))
	for _, t := range expr {
		if int(t.Var) < 0 || int(t.Var) >= len(p.names) {
			return nil, fmt.Errorf("unknown variable %d", t.Var)
		}
		if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
			return nil, fmt.Errorf("coefficient of %s is not finite", p.names[t.Var])
		}
		coefs[t.Var] += t.Coef
	}
	terms := make([]Term, 0, len(coefs))
	for v, c := range coefs {
		if c != 0 {
			terms = append(terms, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Var < terms[j].Var })
	return terms, nil
}

// canonical returns the rows as LessEq or Equal and the objective as a
// maximization
func (p *problem) canonical() ([]row, []float64) {
	rows := make([]row, len(p.rows))
	for i, r := range p.rows {
		rows[i] = r
		if r.op == GreaterEq {
			terms := make([]Term, len(r.terms))
			for k, t := range r.terms {
				terms[k] = Term{Var: t.Var, Coef: -t.Coef}
			}
			rows[i] = row{name: r.name, terms: terms, op: LessEq, rhs: -r.rhs}
		}
	}

	obj := make([]float64, len(p.objective))
	for i, c := range p.objective {
		if p.sense == Minimize {
			obj[i] = -c
		} else {
			obj[i] = c
		}
	}
	return rows, obj
}

// satisfied checks a complete assignment against canonical rows
func satisfied(rows []row, x []float64) bool {
	for _, r := range rows {
		lhs := 0.0
		for _, t := range r.terms {
			lhs += t.Coef * x[t.Var]
		}
		switch r.op {
		case LessEq:
			if lhs > r.rhs+feasibilityTol {
				return false
			}
		case Equal:
			if math.Abs(lhs-r.rhs) > feasibilityTol {
				return false
			}
		}
	}
	return true
}

func dot(obj, x []float64) float64 {
	total := 0.0
	for i, c := range obj {
		total += c * x[i]
	}
	return total
}

// begin resets solve state and reports model errors
func (p *problem) begin() error {
	p.status = NotSolved
	p.values = nil
	p.objValue = 0
	p.nodes = 0
	return p.err
}

// limiter tracks the context, the time budget and the node budget
type limiter struct {
	ctx      context.Context
	deadline time.Time
	maxNodes int
	hit      bool
}

func (p *problem) newLimiter(ctx context.Context) *limiter {
	l := &limiter{ctx: ctx, maxNodes: p.opts.MaxNodes}
	if p.opts.MaxDuration > 0 {
		l.deadline = time.Now().Add(p.opts.MaxDuration)
	}
	return l
}

// stop reports whether the search must end before visiting another node
func (l *limiter) stop(nodes int) bool {
	if l.hit {
		return true
	}
	if l.maxNodes > 0 && nodes >= l.maxNodes {
		l.hit = true
	}
	return l.expired()
}

// expired reports whether the context or the time budget has run out
func (l *limiter) expired() bool {
	if l.hit {
		return true
	}
	if l.ctx.Err() != nil || (!l.deadline.IsZero() && !time.Now().Before(l.deadline)) {
		l.hit = true
	}
	return l.hit
}

// finish records the incumbent and maps it to a status
func (p *problem) finish(ctx context.Context, best []float64, bestObj float64, limited bool, started time.Time) (Status, error) {
	if best != nil {
		p.values = best
		p.objValue = bestObj
		if p.sense == Minimize {
			p.objValue = -bestObj
		}
		p.status = Optimal
		if limited {
			p.status = Feasible
		}
	} else if limited {
		p.status = NotSolved
	} else {
		p.status = Infeasible
	}

	entry := p.log.WithFields(logrus.Fields{
		"status":    p.status.String(),
		"objective": p.objValue,
		"nodes":     p.nodes,
		"vars":      len(p.names),
		"rows":      len(p.rows),
		"duration":  time.Since(started),
	})
	if p.opts.Verbose {
		entry.Info("Search finished")
	} else {
		entry.Debug("Search finished")
	}

	if p.status == NotSolved {
		if err := ctx.Err(); err != nil {
			return p.status, fmt.Errorf("%w: %w", ErrLimitReached, err)
		}
		return p.status, ErrLimitReached
	}
	return p.status, nil
}

func (p *problem) progress(msg string, fields logrus.Fields) {
	entry := p.log.WithFields(fields)
	if p.opts.Verbose {
		entry.Info(msg)
	} else {
		entry.Debug(msg)
	}
}
