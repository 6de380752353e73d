// Package solver provides a small binary integer programming interface and
// two exact backends behind it.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrLimitReached means the node or time limit ran out before any
	// feasible assignment was found
	ErrLimitReached = errors.New("solver limit reached without a feasible solution")
	// ErrInvalidModel reports a malformed model
	ErrInvalidModel = errors.New("invalid model")
)

// Var addresses a decision variable in the model that created it
type Var int

// Term is coef * var
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression, the sum of its terms
type Expr []Term

// Sum builds the expression x_1 + ... + x_n
func Sum(vars ...Var) Expr {
	e := make(Expr, len(vars))
	for i, v := range vars {
		e[i] = Term{Var: v, Coef: 1}
	}
	return e
}

// Plus appends coef * v
func (e Expr) Plus(coef float64, v Var) Expr {
	return append(e, Term{Var: v, Coef: coef})
}

// Op is a constraint comparison
type Op int

const (
	LessEq Op = iota
	Equal
	GreaterEq
)

func (o Op) String() string {
	switch o {
	case LessEq:
		return "<="
	case Equal:
		return "=="
	case GreaterEq:
		return ">="
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Sense is the objective direction
type Sense int

const (
	Maximize Sense = iota
	Minimize
)

// Status is the outcome of Optimize
type Status int

const (
	NotSolved Status = iota
	Optimal
	// Feasible means a limit stopped the search with an unproven incumbent
	Feasible
	Infeasible
)

func (s Status) String() string {
	switch s {
	case NotSolved:
		return "not_solved"
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Options are forwarded to a backend when a model is created
type Options struct {
	// Verbose logs search progress at info level instead of debug
	Verbose bool
	// MaxDuration bounds Optimize; zero means no limit
	MaxDuration time.Duration
	// MaxNodes bounds the number of search nodes; zero means no limit
	MaxNodes int
	Logger   *logrus.Logger
}

// Model is the capability set the selection engine needs from a solver
type Model interface {
	AddBinaryVar(name string) Var
	AddConstraint(name string, expr Expr, op Op, rhs float64)
	SetObjective(expr Expr, sense Sense)
	Optimize(ctx context.Context) (Status, error)
	Value(v Var) float64
	ObjectiveValue() float64
	NumVars() int
	NumConstraints() int
}

// Factory creates a fresh, empty model
type Factory func(opts Options) Model

// Backend names accepted by NewFactory
const (
	BackendBranchAndBound = "branch-and-bound"
	BackendEnumerate      = "enumerate"
)

// NewFactory returns the factory for a backend name
func NewFactory(name string) (Factory, error) {
	switch name {
	case BackendBranchAndBound, "":
		return func(opts Options) Model { return NewBranchAndBound(opts) }, nil
	case BackendEnumerate:
		return func(opts Options) Model { return NewEnumerator(opts) }, nil
	}
	return nil, fmt.Errorf("unknown solver backend %q", name)
}
