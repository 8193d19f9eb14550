// Package simplex implements the primal tableau simplex and the revised
// simplex over the snapshots of package tableau.
//
// Both variants accept a raw or canonical tableau. Rows with a negative
// right-hand side are handled by dual simplex pivots when the objective row
// is dual feasible, which is the case for the children of a branch and the
// tableaux that received a cutting plane; otherwise artificial columns are
// added and removed by a phase one.
package simplex

import (
	"fmt"
	"math"

	log "github.com/golang/glog"

	"q.log/lpsolver/tableau"
)

// Primal is the full-tableau simplex method.
type Primal struct {
	opts Options
}

// NewPrimal returns a primal simplex solver.
func NewPrimal(opts ...Option) *Primal {
	return &Primal{opts: newOptions(opts)}
}

// Step performs one iteration on t. A tableau with a negative right-hand side
// gets a dual pivot, any other a primal pivot chosen by rule. The returned
// status is Continue after a pivot; otherwise no pivot was made and the
// status tells why: Optimal, Unbounded or Infeasible.
func (p *Primal) Step(t *tableau.Tableau, rule tableau.Rule) (*tableau.Tableau, tableau.Status, error) {
	if t.HasNegativeRHS() {
		row := t.DualLeavingRow()
		col := t.DualEnteringColumn(row)
		if col < 0 {
			return t, tableau.Infeasible, nil
		}
		next, err := t.Pivot(row, col)
		if err != nil {
			return nil, tableau.Error, err
		}
		return next, tableau.Continue, nil
	}
	col := t.EnteringColumn(rule)
	if col < 0 {
		return t, tableau.Optimal, nil
	}
	row := t.LeavingRow(col)
	if row < 0 {
		return t, tableau.Unbounded, nil
	}
	next, err := t.Pivot(row, col)
	if err != nil {
		return nil, tableau.Error, err
	}
	return next, tableau.Continue, nil
}

// run is the state of one solve.
type run struct {
	opts       Options
	res        *Result
	rule       tableau.Rule
	degenerate int
}

func (r *run) id() string { return fmt.Sprintf("%s%d", r.opts.Prefix, len(r.res.History)) }

func (r *run) record(t *tableau.Tableau, desc string) *tableau.Tableau {
	t = t.WithID(r.id(), desc)
	r.res.History = append(r.res.History, t)
	return t
}

// iterate steps t until it stops changing.
func (r *run) iterate(p *Primal, t *tableau.Tableau) (*tableau.Tableau, tableau.Status, error) {
	for {
		if r.res.Iterations >= r.opts.MaxIterations {
			log.Warningf("simplex: stopped after %d iterations", r.res.Iterations)
			return t, tableau.Error, fmt.Errorf("%w: %d", ErrIterationLimit, r.res.Iterations)
		}
		before := t.ObjectiveValue()
		next, status, err := p.Step(t, r.rule)
		if err != nil || status != tableau.Continue {
			return t, status, err
		}
		r.res.Iterations++
		row, col, elem := next.LastPivot()
		cols := t.ColumnLabels()
		leaving := t.BasicVariables()[row-1]
		log.V(1).Infof("simplex: iteration %d: %s enters, %s leaves, pivot %g, z = %g",
			r.res.Iterations, cols[col], leaving, elem, next.ObjectiveValue())
		t = r.record(next, fmt.Sprintf("%s enters, %s leaves", cols[col], leaving))
		if log.V(2) {
			log.Infof("simplex: tableau %s\n%v", t.ID(), t.Matrix())
		}
		r.watchDegeneracy(before, t.ObjectiveValue())
	}
}

func (r *run) watchDegeneracy(before, after float64) {
	if r.opts.DegenerateLimit <= 0 || r.rule == tableau.Bland {
		return
	}
	if math.Abs(after-before) > tableau.Epsilon {
		r.degenerate = 0
		return
	}
	r.degenerate++
	if r.degenerate >= r.opts.DegenerateLimit {
		log.Infof("simplex: %d degenerate pivots, switching to Bland's rule", r.degenerate)
		r.rule = tableau.Bland
	}
}

func (r *run) finish(t *tableau.Tableau, status tableau.Status) *Result {
	t = t.WithStatus(status)
	r.res.History[len(r.res.History)-1] = t
	r.res.Final = t
	r.res.Status = status
	log.Infof("simplex: %s after %d iterations, z = %g", status, r.res.Iterations, t.ObjectiveValue())
	return r.res
}

// Solve runs the simplex method to termination. A raw tableau is first put
// in canonical form. Infeasible and unbounded problems are reported through
// Result.Status; errors are returned for invalid input and for the
// iteration limit, in which case the partial result is returned as well.
func (p *Primal) Solve(t *tableau.Tableau) (*Result, error) {
	if t.Stage() == tableau.Raw {
		var err error
		if t, err = t.Canonical(); err != nil {
			return nil, err
		}
	}
	r := &run{opts: p.opts, res: &Result{}, rule: p.opts.Rule}
	r.res.History = append(r.res.History, t)

	if t.HasNegativeRHS() {
		if t.IsOptimal() {
			log.V(1).Infof("simplex: %s is dual feasible, running dual pivots", t.ID())
			next, status, err := r.iterate(p, t)
			if err != nil {
				return r.res, err
			}
			t = next
			if status == tableau.Infeasible {
				return r.finish(t, tableau.Infeasible), nil
			}
		} else {
			t = r.record(t.AddArtificials(), "artificial columns for negative rows")
		}
	}

	if t.HasArtificialBasis() {
		var err error
		var status tableau.Status
		if t, status, err = r.phaseOne(p, t); err != nil {
			return r.res, err
		}
		if status == tableau.Infeasible {
			return r.finish(t, tableau.Infeasible), nil
		}
	}

	t, status, err := r.iterate(p, t)
	if err != nil {
		return r.res, err
	}
	return r.finish(t, status), nil
}

func (r *run) phaseOne(p *Primal, t *tableau.Tableau) (*tableau.Tableau, tableau.Status, error) {
	t1, err := t.PhaseOne()
	if err != nil {
		return nil, tableau.Error, err
	}
	t1 = r.record(t1, "phase one")
	t1, status, err := r.iterate(p, t1)
	if err != nil {
		return t1, status, err
	}
	if status != tableau.Optimal {
		return t1, tableau.Error, fmt.Errorf("simplex: phase one ended %s", status)
	}
	if t1.ObjectiveValue() > tableau.Epsilon {
		log.V(1).Infof("simplex: phase one residual %g", t1.ObjectiveValue())
		return t1, tableau.Infeasible, nil
	}
	if t1, err = driveOut(t1); err != nil {
		return t1, tableau.Error, err
	}
	t2, err := t1.PhaseTwo()
	if err != nil {
		return nil, tableau.Error, err
	}
	return r.record(t2, "phase two"), tableau.Continue, nil
}

// driveOut pivots zero-level artificial columns out of the basis. A row that
// has no eligible non-zero entry is redundant and keeps its artificial.
func driveOut(t *tableau.Tableau) (*tableau.Tableau, error) {
	cols := t.Columns()
	for i, j := range t.Basis() {
		if cols[j].Kind != tableau.Artificial {
			continue
		}
		for k := range len(cols) - 1 {
			if !t.Eligible(k) || math.Abs(t.At(i+1, k)) <= tableau.Epsilon {
				continue
			}
			next, err := t.Pivot(i+1, k)
			if err != nil {
				return nil, err
			}
			t = next
			break
		}
	}
	return t, nil
}
