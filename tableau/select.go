package tableau

import (
	"math"

	"q.log/lpsolver/model"
)

// Rule chooses the entering column among the improving ones.
type Rule int

const (
	// Dantzig picks the most improving column, ties to the lowest index.
	Dantzig Rule = iota
	// Bland picks the lowest improving index. It cannot cycle.
	Bland
)

func (r Rule) String() string {
	if r == Bland {
		return "bland"
	}
	return "dantzig"
}

// Improvement returns the rate at which the objective improves per unit of
// column j entering the basis. Positive means improving.
func Improvement(dir model.Direction, row0 float64) float64 {
	if dir == model.Minimize {
		return row0
	}
	return -row0
}

// Improvement returns the improvement rate of column j.
func (t *Tableau) Improvement(j int) float64 {
	return Improvement(t.direction, t.m.At(0, j))
}

// Eligible reports whether column j may enter the basis: it is neither the
// RHS, basic nor artificial.
func (t *Tableau) Eligible(j int) bool {
	if j < 0 || j >= t.rhs() {
		return false
	}
	return t.columns[j].Kind != Artificial && !t.IsBasic(j)
}

func (t *Tableau) improvements() ([]float64, []bool) {
	n := t.rhs()
	imp := make([]float64, n)
	ok := make([]bool, n)
	for j := range n {
		imp[j] = t.Improvement(j)
		ok[j] = t.Eligible(j)
	}
	return imp, ok
}

// SelectEntering applies rule to a vector of improvement rates and returns
// the chosen index, or -1 when no eligible rate exceeds Epsilon.
func SelectEntering(imp []float64, eligible []bool, rule Rule) int {
	best := -1
	for j, v := range imp {
		if !eligible[j] || v <= Epsilon {
			continue
		}
		if rule == Bland {
			return j
		}
		if best < 0 || v > imp[best] {
			best = j
		}
	}
	return best
}

// MinRatio runs the minimum-ratio test on a pivot column d against the
// right-hand sides b. Only entries above Epsilon take part; a ratio only
// replaces the current best when smaller by more than Epsilon, so ties go to
// the lowest index. It returns -1 when no entry qualifies.
func MinRatio(d, b []float64) int {
	best, ratio := -1, math.Inf(1)
	for i, a := range d {
		if a <= Epsilon {
			continue
		}
		if r := b[i] / a; best < 0 || r < ratio-Epsilon {
			best, ratio = i, r
		}
	}
	return best
}

// DualRatio runs the dual ratio test on a pivot row r: among eligible
// entries below -Epsilon it minimizes imp_j / r_j, ties to the lowest index.
// It returns -1 when no entry qualifies.
func DualRatio(imp, r []float64, eligible []bool) int {
	best, ratio := -1, math.Inf(1)
	for j, a := range r {
		if !eligible[j] || a >= -Epsilon {
			continue
		}
		if q := math.Abs(imp[j] / a); best < 0 || q < ratio-Epsilon {
			best, ratio = j, q
		}
	}
	return best
}

// EnteringColumn returns the entering column for rule, or -1 when the
// tableau is optimal.
func (t *Tableau) EnteringColumn(rule Rule) int {
	imp, ok := t.improvements()
	return SelectEntering(imp, ok, rule)
}

// LeavingRow returns the pivot row (1-based) for entering column col, or -1
// when the column is unbounded.
func (t *Tableau) LeavingRow(col int) int {
	m := len(t.basis)
	d := make([]float64, m)
	b := make([]float64, m)
	for i := range m {
		d[i] = t.m.At(i+1, col)
		b[i] = t.m.At(i+1, t.rhs())
	}
	if i := MinRatio(d, b); i >= 0 {
		return i + 1
	}
	return -1
}

// DualLeavingRow returns the row with the most negative right-hand side,
// ties to the lowest row, or -1 when every row is feasible.
func (t *Tableau) DualLeavingRow() int {
	best, v := -1, -Epsilon
	for i := range t.basis {
		if b := t.m.At(i+1, t.rhs()); b < v {
			best, v = i+1, b
		}
	}
	return best
}

// DualEnteringColumn returns the entering column for a dual pivot on row, or
// -1 when the row proves the problem infeasible.
func (t *Tableau) DualEnteringColumn(row int) int {
	imp, ok := t.improvements()
	r := make([]float64, t.rhs())
	for j := range r {
		r[j] = t.m.At(row, j)
	}
	return DualRatio(imp, r, ok)
}

// IsOptimal reports whether no eligible column improves the objective. For a
// tableau with negative right-hand sides this is dual feasibility.
func (t *Tableau) IsOptimal() bool {
	return t.EnteringColumn(Bland) < 0
}

// IsUnbounded reports whether column col improves the objective and has no
// positive entry to bound it.
func (t *Tableau) IsUnbounded(col int) bool {
	return t.Improvement(col) > Epsilon && t.LeavingRow(col) < 0
}

// IsInfeasible reports whether the snapshot proves the problem infeasible:
// it carries the Infeasible status, it is an optimal phase-one tableau with
// a positive residual, or a row has a negative right-hand side and no
// eligible negative entry to repair it.
func (t *Tableau) IsInfeasible() bool {
	if t.status == Infeasible {
		return true
	}
	if t.phase == 1 && t.IsOptimal() && math.Abs(t.ObjectiveValue()) > Epsilon {
		return true
	}
	for i := range t.basis {
		if t.m.At(i+1, t.rhs()) >= -Epsilon {
			continue
		}
		repairable := false
		for j := range t.rhs() {
			if t.Eligible(j) && t.m.At(i+1, j) < -Epsilon {
				repairable = true
				break
			}
		}
		if !repairable {
			return true
		}
	}
	return false
}
