package simplex

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"q.log/lpsolver/tableau"
)

// ErrIterationLimit is returned when a solve exceeds MaxIterations.
var ErrIterationLimit = errors.New("simplex: iteration limit reached")

// Result is the outcome of a simplex solve. History starts with the input
// (canonical) snapshot and ends with Final.
type Result struct {
	Status     tableau.Status
	Final      *tableau.Tableau
	History    []*tableau.Tableau
	Iterations int
	// PriceOuts is filled by the revised simplex only, one per iteration.
	PriceOuts []PriceOut
}

// Objective returns the objective value of the final snapshot.
func (r *Result) Objective() float64 {
	if r.Final == nil {
		return 0
	}
	return r.Final.ObjectiveValue()
}

// Solution returns the decision variable values of the final snapshot.
func (r *Result) Solution() []float64 {
	if r.Final == nil {
		return nil
	}
	return r.Final.Solution()
}

// PriceOut holds the quantities the revised simplex computes in one
// iteration. Entering and Leaving are column and row (0-based) indices, -1
// when the iteration terminated the phase.
type PriceOut struct {
	Phase        int
	Basis        []int
	BasisInverse *mat.Dense
	Values       []float64
	Prices       []float64
	ReducedCosts []float64
	Direction    []float64
	Entering     int
	Leaving      int
}
