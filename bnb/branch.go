// Package bnb implements branch-and-bound for integer programs: the general
// method that re-solves LP relaxations with the primal simplex, and the
// closed-form variant for 0/1 knapsack models.
//
// The search is depth first. Nodes are kept in a Tree arena and refer to
// their parent and children by index.
package bnb

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"

	"q.log/lpsolver/model"
	"q.log/lpsolver/simplex"
	"q.log/lpsolver/tableau"
)

var (
	// ErrNodeLimit is returned when a search evaluates MaxNodes nodes
	// without closing the tree.
	ErrNodeLimit = errors.New("bnb: node limit reached")
	// ErrNotOptimal is returned when branching on a tableau that is not LP
	// optimal.
	ErrNotOptimal = errors.New("bnb: tableau is not LP optimal")
	// ErrNotKnapsack is returned by the knapsack search for other models.
	ErrNotKnapsack = errors.New("bnb: not a knapsack problem")
)

// BranchingRule chooses the fractional variable to branch on.
type BranchingRule int

const (
	// FirstFractional picks the lowest-index fractional integer variable.
	FirstFractional BranchingRule = iota
	// MostFractional picks the variable whose fractional part is closest
	// to 0.5.
	MostFractional
)

// Options configures a search.
type Options struct {
	Rule     BranchingRule
	MaxNodes int
	Simplex  []simplex.Option
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{Rule: FirstFractional, MaxNodes: 10000}
}

// WithBranchingRule sets the branching rule.
func WithBranchingRule(r BranchingRule) Option {
	return func(o *Options) { o.Rule = r }
}

// WithMaxNodes bounds the number of evaluated nodes; n <= 0 keeps the
// default.
func WithMaxNodes(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxNodes = n
		}
	}
}

// WithSimplexOptions sets the options of the LP solver used at every node.
func WithSimplexOptions(opts ...simplex.Option) Option {
	return func(o *Options) { o.Simplex = append(o.Simplex, opts...) }
}

// SearchResult is the outcome of a branch-and-bound search. Status is
// Optimal when an integer-feasible node was found, in which case Best is
// the incumbent.
type SearchResult struct {
	Status   tableau.Status
	Best     *Node
	Tree     *Tree
	Explored int
}

// Objective returns the incumbent's objective value.
func (r *SearchResult) Objective() float64 {
	if r.Best == nil {
		return 0
	}
	return r.Best.Objective
}

// Solution returns the incumbent's variable values.
func (r *SearchResult) Solution() []float64 {
	if r.Best == nil {
		return nil
	}
	return r.Best.Solution
}

// BranchAndBound is the general LP-based search.
type BranchAndBound struct {
	opts Options
	lp   *simplex.Primal
}

// New returns a general branch-and-bound solver.
func New(opts ...Option) *BranchAndBound {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &BranchAndBound{opts: o, lp: simplex.NewPrimal(o.Simplex...)}
}

// IsIntegerSolution reports whether every integer or binary variable of t
// is within Epsilon of an integer.
func IsIntegerSolution(t *tableau.Tableau) bool {
	for i, v := range t.Solution() {
		if t.VariableRestriction(i).IsIntegral() && !tableau.IsInteger(v) {
			return false
		}
	}
	return true
}

// SelectBranchingVariable returns the integer variable to branch on and its
// current value, or -1 when the solution is integral.
func SelectBranchingVariable(t *tableau.Tableau, rule BranchingRule) (int, float64) {
	best, dist := -1, math.Inf(1)
	x := t.Solution()
	for i, v := range x {
		if !t.VariableRestriction(i).IsIntegral() || tableau.IsInteger(v) {
			continue
		}
		if rule == FirstFractional {
			return i, v
		}
		if d := math.Abs(tableau.Frac(v) - 0.5); d < dist-tableau.Epsilon {
			best, dist = i, d
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, x[best]
}

// BranchOnVariable returns the two sub-problems of t for variable k at its
// fractional value: x_k <= floor(value) and x_k >= ceil(value). Both are t
// with one more row, to be re-solved from the current basis.
func BranchOnVariable(t *tableau.Tableau, k int, value float64) (le, ge *tableau.Tableau, err error) {
	if t.Status() != tableau.Optimal {
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrNotOptimal, t.ID(), t.Status())
	}
	cols := t.Columns()
	coefs := make([]float64, len(cols)-1)
	found := false
	for j, c := range cols[:len(cols)-1] {
		if c.Kind == tableau.Decision && c.Source == k {
			coefs[j] = c.Sign
			found = true
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: variable %d", tableau.ErrOutOfRange, k)
	}
	if le, err = t.AddConstraint(coefs, model.LessEqual, math.Floor(value), ""); err != nil {
		return nil, nil, err
	}
	if ge, err = t.AddConstraint(coefs, model.GreaterEqual, math.Ceil(value), ""); err != nil {
		return nil, nil, err
	}
	return le, ge, nil
}

// improves reports whether v is strictly better than best by more than
// Epsilon.
func improves(dir model.Direction, v, best float64) bool {
	if dir == model.Minimize {
		return v < best-tableau.Epsilon
	}
	return v > best+tableau.Epsilon
}

// ShouldFathom reports whether a solved node can be pruned given the
// incumbent (nil when none exists yet) and why. The checks run in order:
// infeasible, unbounded, bound dominated, integer feasible.
func ShouldFathom(n, incumbent *Node) (bool, string) {
	switch n.Status {
	case tableau.Infeasible:
		return true, ReasonInfeasible
	case tableau.Unbounded:
		return true, ReasonUnbounded
	}
	if incumbent != nil && !improves(n.Tableau.Direction(), n.Objective, incumbent.Objective) {
		return true, ReasonBound
	}
	if IsIntegerSolution(n.Tableau) {
		return true, ReasonInteger
	}
	return false, ""
}

// evaluate solves the sub-problem of n unless it is already terminal.
func (b *BranchAndBound) evaluate(n *Node) error {
	final := n.SubProblem
	if !final.Status().Terminal() {
		res, err := b.lp.Solve(final)
		if err != nil {
			return fmt.Errorf("bnb: node %s: %w", n.Label, err)
		}
		final = res.Final
	}
	desc := "sub-problem " + n.Label
	if n.Constraint != "" {
		desc += ": " + n.Constraint
	}
	n.Tableau = final.WithID("t-"+n.Label, desc)
	n.Status = final.Status()
	n.Objective = final.ObjectiveValue()
	n.Solution = final.Solution()
	return nil
}

// Solve runs the search from t, normally the LP-optimal tableau of the
// relaxation; a tableau that is not yet solved is solved first. The search
// stops with ErrNodeLimit or the context's error, returning the partial
// result.
func (b *BranchAndBound) Solve(ctx context.Context, t *tableau.Tableau) (*SearchResult, error) {
	tree := NewTree()
	res := &SearchResult{Status: tableau.Infeasible, Tree: tree}
	tree.Root().SubProblem = t

	var incumbent *Node
	stack := []int{0}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.Explored >= b.opts.MaxNodes {
			log.Warningf("bnb: stopped after %d nodes, %d open", res.Explored, len(stack))
			return res, fmt.Errorf("%w: %d", ErrNodeLimit, res.Explored)
		}
		n := tree.Node(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		if err := b.evaluate(n); err != nil {
			return res, err
		}
		res.Explored++

		if n.IsRoot() && n.Status == tableau.Unbounded {
			n.Fathom(ReasonUnbounded)
			res.Status = tableau.Unbounded
			return res, nil
		}
		if fathom, reason := ShouldFathom(n, incumbent); fathom {
			if reason == ReasonInteger {
				incumbent = n
				reason = ReasonIncumbent
				res.Best, res.Status = n, tableau.Optimal
			}
			n.Fathom(reason)
			log.V(1).Infof("bnb: node %s z = %g fathomed: %s", n.Label, n.Objective, reason)
			continue
		}

		k, v := SelectBranchingVariable(n.Tableau, b.opts.Rule)
		le, ge, err := BranchOnVariable(n.Tableau, k, v)
		if err != nil {
			return res, err
		}
		name := n.Tableau.Variables()[k]
		left, right := tree.Add(n.ID), tree.Add(n.ID)
		left.SubProblem, right.SubProblem = le, ge
		left.Constraint = fmt.Sprintf("%s <= %g", name, math.Floor(v))
		right.Constraint = fmt.Sprintf("%s >= %g", name, math.Ceil(v))
		for _, c := range []*Node{left, right} {
			c.BranchVar, c.BranchValue = k, v
		}
		log.V(1).Infof("bnb: node %s z = %g branches on %s = %g", n.Label, n.Objective, name, v)
		// the <= child is explored first
		stack = append(stack, right.ID, left.ID)
	}
	if res.Best != nil {
		log.Infof("bnb: optimal z = %g at node %s after %d nodes", res.Best.Objective, res.Best.Label, res.Explored)
	} else {
		log.Infof("bnb: no integer solution after %d nodes", res.Explored)
	}
	return res, nil
}
