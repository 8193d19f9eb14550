package bnb

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	log "github.com/golang/glog"

	"q.log/lpsolver/model"
	"q.log/lpsolver/tableau"
)

// Decision is the state of a knapsack item in a node.
type Decision int

const (
	Undecided Decision = iota
	Excluded
	Included
)

func (d Decision) String() string {
	switch d {
	case Excluded:
		return "0"
	case Included:
		return "1"
	default:
		return "-"
	}
}

// Item is one binary variable of a knapsack model.
type Item struct {
	Index  int
	Name   string
	Weight float64
	Value  float64
}

func (it Item) ratio() float64 {
	if it.Weight == 0 {
		return math.Inf(1)
	}
	return it.Value / it.Weight
}

// IsKnapsackProblem verifies that m maximizes over binary variables with a
// single <= constraint and non-negative weights and values.
func IsKnapsackProblem(m *model.Model) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotKnapsack, err)
	}
	if m.Direction != model.Maximize {
		return fmt.Errorf("%w: direction is %s", ErrNotKnapsack, m.Direction)
	}
	if len(m.Constraints) != 1 || m.Constraints[0].Operator != model.LessEqual {
		return fmt.Errorf("%w: need exactly one <= constraint", ErrNotKnapsack)
	}
	c := m.Constraints[0]
	for i, v := range m.Variables {
		if v.Type != model.Binary {
			return fmt.Errorf("%w: %s is not binary", ErrNotKnapsack, v.Name)
		}
		if v.Coefficient < 0 || c.Coefficient(i) < 0 {
			return fmt.Errorf("%w: %s has a negative value or weight", ErrNotKnapsack, v.Name)
		}
	}
	return nil
}

// KnapsackProblem is a knapsack model with its items in ratio order.
type KnapsackProblem struct {
	Items    []Item
	Capacity float64
	// Order lists item indices by value/weight ratio, highest first, ties to
	// the lowest index.
	Order []int
}

// NewKnapsackProblem extracts the items of m.
func NewKnapsackProblem(m *model.Model) (*KnapsackProblem, error) {
	if err := IsKnapsackProblem(m); err != nil {
		return nil, err
	}
	c := m.Constraints[0]
	p := &KnapsackProblem{Capacity: c.RHS}
	for i, v := range m.Variables {
		p.Items = append(p.Items, Item{Index: i, Name: v.Name, Weight: c.Coefficient(i), Value: v.Coefficient})
		p.Order = append(p.Order, i)
	}
	slices.SortStableFunc(p.Order, func(a, b int) int {
		return cmp.Compare(p.Items[b].ratio(), p.Items[a].ratio())
	})
	return p, nil
}

// Relaxation is the fractional-knapsack evaluation of a node.
type Relaxation struct {
	// Weight and Value of the included items.
	Weight, Value float64
	// Over is set when the included items exceed the capacity.
	Over bool
	// Bound is the fractional fill over the undecided items.
	Bound float64
	// Candidate is the greedy integer fill that stops before the
	// fractional item, and CandidateValue its value.
	Candidate      []float64
	CandidateValue float64
	// Fractional is the item filled partially, -1 when none.
	Fractional int
}

// Relax evaluates the fractional relaxation under the given decisions.
func (p *KnapsackProblem) Relax(fixed []Decision) Relaxation {
	r := Relaxation{Candidate: make([]float64, len(p.Items)), Fractional: -1}
	for i, d := range fixed {
		if d == Included {
			r.Weight += p.Items[i].Weight
			r.Value += p.Items[i].Value
			r.Candidate[i] = 1
		}
	}
	if r.Weight > p.Capacity+tableau.Epsilon {
		r.Over = true
		return r
	}
	left := p.Capacity - r.Weight
	r.Bound, r.CandidateValue = r.Value, r.Value
	for _, i := range p.Order {
		if fixed[i] != Undecided {
			continue
		}
		it := p.Items[i]
		if it.Weight <= left+tableau.Epsilon {
			left -= it.Weight
			r.Bound += it.Value
			r.CandidateValue += it.Value
			r.Candidate[i] = 1
			continue
		}
		if left > tableau.Epsilon {
			r.Bound += it.Value * left / it.Weight
			r.Fractional = i
		}
		break
	}
	return r
}

// UpperBound returns the fractional-knapsack bound of a node.
func (p *KnapsackProblem) UpperBound(n *Node) float64 { return p.Relax(n.Fixed).Bound }

// SelectBranchingItem returns the first undecided item of n in ratio
// order, or -1.
func (p *KnapsackProblem) SelectBranchingItem(n *Node) int {
	for _, i := range p.Order {
		if n.Fixed[i] == Undecided {
			return i
		}
	}
	return -1
}

// BranchOnItem returns the decisions of the include and exclude children.
func BranchOnItem(fixed []Decision, item int) (include, exclude []Decision) {
	include, exclude = slices.Clone(fixed), slices.Clone(fixed)
	include[item], exclude[item] = Included, Excluded
	return include, exclude
}

// Knapsack is the knapsack-specialized search.
type Knapsack struct {
	opts Options
}

// NewKnapsack returns a knapsack branch-and-bound solver. Only MaxNodes of
// the options applies.
func NewKnapsack(opts ...Option) *Knapsack {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Knapsack{opts: o}
}

// Solve searches the 0/1 assignments of m. It fails with ErrNotKnapsack
// for any other model. Node objectives are the values of their greedy
// candidates; Bound holds the fractional bound.
func (k *Knapsack) Solve(ctx context.Context, m *model.Model) (*SearchResult, error) {
	p, err := NewKnapsackProblem(m)
	if err != nil {
		return nil, err
	}
	tree := NewTree()
	res := &SearchResult{Status: tableau.Infeasible, Tree: tree}
	tree.Root().Fixed = make([]Decision, len(p.Items))

	best := math.Inf(-1)
	stack := []int{0}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.Explored >= k.opts.MaxNodes {
			log.Warningf("bnb: knapsack stopped after %d nodes, %d open", res.Explored, len(stack))
			return res, fmt.Errorf("%w: %d", ErrNodeLimit, res.Explored)
		}
		n := tree.Node(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		res.Explored++

		r := p.Relax(n.Fixed)
		n.Weight, n.Bound = r.Weight, r.Bound
		if r.Over {
			n.Status = tableau.Infeasible
			n.Fathom(ReasonOverCapacity)
			log.V(1).Infof("bnb: knapsack node %s weight %g fathomed: %s", n.Label, r.Weight, ReasonOverCapacity)
			continue
		}
		n.Status = tableau.Optimal
		n.Objective, n.Solution = r.CandidateValue, r.Candidate
		updated := false
		if r.CandidateValue > best+tableau.Epsilon {
			best, updated = r.CandidateValue, true
			res.Best, res.Status = n, tableau.Optimal
		}
		switch {
		case r.Fractional < 0 && updated:
			n.Fathom(ReasonIncumbent)
		case r.Fractional < 0:
			n.Fathom(ReasonInteger)
		case r.Bound <= best+tableau.Epsilon:
			n.Fathom(ReasonBound)
		}
		if n.Fathomed {
			log.V(1).Infof("bnb: knapsack node %s bound %g fathomed: %s", n.Label, r.Bound, n.FathomReason)
			continue
		}

		item := p.SelectBranchingItem(n)
		include, exclude := BranchOnItem(n.Fixed, item)
		in, out := tree.Add(n.ID), tree.Add(n.ID)
		in.Fixed, out.Fixed = include, exclude
		name := p.Items[item].Name
		in.Constraint = name + " = 1"
		out.Constraint = name + " = 0"
		for _, c := range []*Node{in, out} {
			c.BranchVar, c.BranchValue = item, r.Candidate[item]
		}
		log.V(1).Infof("bnb: knapsack node %s bound %g branches on %s", n.Label, r.Bound, name)
		stack = append(stack, out.ID, in.ID)
	}
	if res.Best != nil {
		log.Infof("bnb: knapsack optimum %g at node %s after %d nodes", res.Best.Objective, res.Best.Label, res.Explored)
	}
	return res, nil
}
