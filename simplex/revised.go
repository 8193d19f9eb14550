package simplex

import (
	"fmt"
	"slices"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/mat"

	"q.log/lpsolver/model"
	"q.log/lpsolver/tableau"
)

// Revised is the revised simplex method. It keeps the input tableau as the
// original system [A|b] with objective c and recomputes the basis inverse
// from the original columns at every iteration.
type Revised struct {
	opts Options
}

// NewRevised returns a revised simplex solver. Snapshot IDs default to the
// "t-rev-" prefix.
func NewRevised(opts ...Option) *Revised {
	o := defaultOptions()
	o.Prefix = "t-rev-"
	for _, opt := range opts {
		opt(&o)
	}
	return &Revised{opts: o}
}

// BasisInverse returns the inverse of the columns of a at basis, in basis
// order.
func BasisInverse(a mat.Matrix, basis []int) (*mat.Dense, error) {
	m, _ := a.Dims()
	if len(basis) != m {
		return nil, fmt.Errorf("%w: basis of %d for %d rows", tableau.ErrDimensionMismatch, len(basis), m)
	}
	b := mat.NewDense(m, m, nil)
	for k, j := range basis {
		for i := range m {
			b.Set(i, k, a.At(i, j))
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(b); err != nil && tableau.IsSingular(err) {
		return nil, fmt.Errorf("%w: %v", tableau.ErrSingularBasis, err)
	}
	return &inv, nil
}

// PriceVector returns y = cBᵀ B⁻¹.
func PriceVector(cB []float64, binv mat.Matrix) []float64 {
	var y mat.VecDense
	y.MulVec(binv.T(), mat.NewVecDense(len(cB), cB))
	return y.RawVector().Data
}

// ReducedCosts returns dⱼ = cⱼ - y·Aⱼ for every column of a; basic columns
// get 0.
func ReducedCosts(c, y []float64, a *mat.Dense, basis []int) []float64 {
	d := make([]float64, len(c))
	yv := mat.NewVecDense(len(y), y)
	for j := range c {
		if slices.Contains(basis, j) {
			continue
		}
		d[j] = c[j] - mat.Dot(yv, a.ColView(j))
	}
	return d
}

// system is the original data of a tableau for the revised method.
type system struct {
	t          *tableau.Tableau
	a          *mat.Dense
	b          []float64
	c          []float64
	dir        model.Direction
	artificial []bool
}

func newSystem(t *tableau.Tableau) *system {
	rows, cols := t.Dims()
	m, n := rows-1, cols-1
	s := &system{t: t, dir: t.Direction(), b: make([]float64, m), c: make([]float64, n), artificial: make([]bool, n)}
	s.a = mat.NewDense(m, n, nil)
	for i := range m {
		for j := range n {
			s.a.Set(i, j, t.At(i+1, j))
		}
		s.b[i] = t.RHS(i + 1)
	}
	for j, col := range t.Columns()[:n] {
		s.c[j] = -t.At(0, j)
		s.artificial[j] = col.Kind == tableau.Artificial
	}
	return s
}

func (s *system) eligible(basis []int) []bool {
	ok := make([]bool, len(s.c))
	for j := range ok {
		ok[j] = !s.artificial[j] && !slices.Contains(basis, j)
	}
	return ok
}

func (s *system) improvements(d []float64) []float64 {
	imp := make([]float64, len(d))
	for j, v := range d {
		imp[j] = v
		if s.dir == model.Minimize {
			imp[j] = -v
		}
	}
	return imp
}

type mode int

const (
	primalMode mode = iota
	dualMode
)

// loop iterates on s from basis. It returns the last basis and its snapshot
// together with the terminal status of the phase. The snapshot of the
// starting basis is recorded under desc; an empty desc means the last
// recorded snapshot already shows it.
func (r *run) loop(s *system, basis []int, md mode, phase int, desc string) ([]int, *tableau.Tableau, tableau.Status, error) {
	basis = slices.Clone(basis)
	m := len(basis)
	for first := true; ; first = false {
		binv, err := BasisInverse(s.a, basis)
		if err != nil {
			return basis, nil, tableau.Error, err
		}
		snap, err := s.t.Rebase(basis, binv)
		if err != nil {
			return basis, nil, tableau.Error, err
		}
		switch {
		case !first:
			snap = r.record(snap, "basis change")
		case desc != "":
			snap = r.record(snap, desc)
		default:
			last := r.res.History[len(r.res.History)-1]
			snap = snap.WithID(last.ID(), last.Description())
		}
		if log.V(2) {
			log.Infof("simplex: B^-1 at %s\n%v", snap.ID(), mat.Formatted(binv, mat.Squeeze()))
		}

		var xB mat.VecDense
		xB.MulVec(binv, mat.NewVecDense(m, s.b))
		cB := make([]float64, m)
		for k, j := range basis {
			cB[k] = s.c[j]
		}
		y := PriceVector(cB, binv)
		d := ReducedCosts(s.c, y, s.a, basis)
		imp := s.improvements(d)
		ok := s.eligible(basis)
		po := PriceOut{
			Phase:        phase,
			Basis:        slices.Clone(basis),
			BasisInverse: binv,
			Values:       slices.Clone(xB.RawVector().Data),
			Prices:       y,
			ReducedCosts: d,
			Entering:     -1,
			Leaving:      -1,
		}

		var entering, leaving int
		var dir mat.VecDense
		switch md {
		case dualMode:
			leaving = -1
			for i, v := range po.Values {
				if v < -tableau.Epsilon && (leaving < 0 || v < po.Values[leaving]) {
					leaving = i
				}
			}
			if leaving < 0 {
				r.res.PriceOuts = append(r.res.PriceOuts, po)
				return basis, snap, tableau.Optimal, nil
			}
			alpha := make([]float64, len(s.c))
			for j := range alpha {
				alpha[j] = mat.Dot(binv.RowView(leaving), s.a.ColView(j))
			}
			entering = tableau.DualRatio(imp, alpha, ok)
			if entering < 0 {
				r.res.PriceOuts = append(r.res.PriceOuts, po)
				return basis, snap, tableau.Infeasible, nil
			}
			dir.MulVec(binv, s.a.ColView(entering))
		default:
			entering = tableau.SelectEntering(imp, ok, r.rule)
			if entering < 0 {
				r.res.PriceOuts = append(r.res.PriceOuts, po)
				return basis, snap, tableau.Optimal, nil
			}
			dir.MulVec(binv, s.a.ColView(entering))
			leaving = tableau.MinRatio(dir.RawVector().Data, po.Values)
			if leaving < 0 {
				po.Entering = entering
				po.Direction = slices.Clone(dir.RawVector().Data)
				r.res.PriceOuts = append(r.res.PriceOuts, po)
				return basis, snap, tableau.Unbounded, nil
			}
		}
		po.Entering, po.Leaving = entering, leaving
		po.Direction = slices.Clone(dir.RawVector().Data)
		r.res.PriceOuts = append(r.res.PriceOuts, po)

		if r.res.Iterations >= r.opts.MaxIterations {
			log.Warningf("simplex: stopped after %d revised iterations", r.res.Iterations)
			return basis, snap, tableau.Error, fmt.Errorf("%w: %d", ErrIterationLimit, r.res.Iterations)
		}
		r.res.Iterations++
		cols := s.t.ColumnLabels()
		log.V(1).Infof("simplex: revised iteration %d: %s enters, %s leaves",
			r.res.Iterations, cols[entering], cols[basis[leaving]])
		before := snap.ObjectiveValue()
		basis[leaving] = entering
		if md == primalMode {
			step := po.Values[leaving] / dir.AtVec(leaving)
			r.watchDegeneracy(before, before+step*imp[entering])
		}
	}
}

// Solve runs the revised simplex method on t. The tableau must be raw, or
// have an identity over its basis; that tableau is the original system of
// every later iteration.
func (rv *Revised) Solve(t *tableau.Tableau) (*Result, error) {
	if t.Stage() == tableau.Raw {
		var err error
		if t, err = t.Canonical(); err != nil {
			return nil, err
		}
	}
	if err := t.CheckBasis(); err != nil {
		return nil, err
	}
	r := &run{opts: rv.opts, res: &Result{}, rule: rv.opts.Rule}
	r.res.History = append(r.res.History, t)

	if t.ConstraintCount() == 0 {
		status := tableau.Optimal
		if t.EnteringColumn(r.rule) >= 0 {
			status = tableau.Unbounded
		}
		return r.finish(t, status), nil
	}

	basis := t.Basis()
	if t.HasNegativeRHS() {
		if t.IsOptimal() {
			log.V(1).Infof("simplex: %s is dual feasible, running revised dual phase", t.ID())
			next, snap, status, err := r.loop(newSystem(t), basis, dualMode, 0, "")
			if err != nil {
				return r.res, err
			}
			if status == tableau.Infeasible {
				return r.finish(snap, tableau.Infeasible), nil
			}
			basis = next
		} else {
			t = r.record(t.AddArtificials(), "artificial columns for negative rows")
			basis = t.Basis()
		}
	}

	sys := newSystem(t)
	desc := ""
	if slices.ContainsFunc(basis, func(j int) bool { return sys.artificial[j] }) {
		t1, err := t.PhaseOne()
		if err != nil {
			return nil, err
		}
		_, snap, status, err := r.loop(newSystem(t1), basis, primalMode, 1, "phase one")
		if err != nil {
			return r.res, err
		}
		if status != tableau.Optimal {
			return r.res, fmt.Errorf("simplex: revised phase one ended %s", status)
		}
		if snap.ObjectiveValue() > tableau.Epsilon {
			log.V(1).Infof("simplex: phase one residual %g", snap.ObjectiveValue())
			return r.finish(snap, tableau.Infeasible), nil
		}
		if snap, err = driveOut(snap); err != nil {
			return r.res, err
		}
		basis = snap.Basis()
		desc = "phase two"
	}

	_, snap, status, err := r.loop(sys, basis, primalMode, 2, desc)
	if err != nil {
		return r.res, err
	}
	if status == tableau.Optimal {
		snap = snap.DropArtificials()
	}
	return r.finish(snap, status), nil
}
