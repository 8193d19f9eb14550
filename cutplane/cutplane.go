// Package cutplane solves pure integer programs with Gomory fractional cuts.
//
// Starting from an LP-optimal tableau, the most fractional row of an integer
// basic variable yields the cut Σ frac(a_j) x_j >= frac(b) over the
// non-basic columns. The cut is appended with its own surplus column and the
// tableau is re-solved with the revised simplex, whose dual phase restores
// feasibility. Cuts are only valid when every variable, slacks included,
// takes integer values, i.e. for integer variables over integer data.
package cutplane

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	log "github.com/golang/glog"

	"q.log/lpsolver/model"
	"q.log/lpsolver/simplex"
	"q.log/lpsolver/tableau"
)

var (
	// ErrCutLimit is returned when integrality is not reached within
	// MaxCuts cuts.
	ErrCutLimit = errors.New("cutplane: cut limit exceeded")
	// ErrNotPureInteger is returned for tableaux with continuous decision
	// columns.
	ErrNotPureInteger = errors.New("cutplane: not a pure integer program")
	// ErrNoFractionalRow is returned when a cut is requested from a row
	// whose basic value is integral.
	ErrNoFractionalRow = errors.New("cutplane: row is not fractional")
)

// Options configures the cut loop.
type Options struct {
	MaxCuts int
	Simplex []simplex.Option
}

// Option mutates Options.
type Option func(*Options)

// WithMaxCuts sets the cut limit; n <= 0 keeps the default of 50.
func WithMaxCuts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxCuts = n
		}
	}
}

// WithSimplexOptions sets the options of the revised simplex re-solves.
func WithSimplexOptions(opts ...simplex.Option) Option {
	return func(o *Options) { o.Simplex = append(o.Simplex, opts...) }
}

// Cut is a Gomory fractional cut Σ Coefficients[j] x_j >= RHS.
type Cut struct {
	Label string
	// Row is the source row and Basic the label of its basic variable.
	Row   int
	Basic string
	// Coefficients has one entry per non-RHS column of the source tableau.
	Coefficients []float64
	Columns      []string
	RHS          float64
}

func (c Cut) String() string {
	var terms []string
	for j, a := range c.Coefficients {
		if a != 0 {
			terms = append(terms, fmt.Sprintf("%.3f %s", a, c.Columns[j]))
		}
	}
	return fmt.Sprintf("%s: %s >= %.3f", c.Label, strings.Join(terms, " + "), c.RHS)
}

// Result is the outcome of the cut loop. History holds every snapshot from
// the input to Final, the re-solves included.
type Result struct {
	Status  tableau.Status
	Final   *tableau.Tableau
	History []*tableau.Tableau
	Cuts    []Cut
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

// CuttingPlane runs the Gomory cut loop.
type CuttingPlane struct {
	opts Options
}

// New returns a cutting-plane solver.
func New(opts ...Option) *CuttingPlane {
	o := Options{MaxCuts: 50}
	for _, opt := range opts {
		opt(&o)
	}
	return &CuttingPlane{opts: o}
}

// CheckPureInteger verifies that every decision column of t belongs to an
// integer or binary variable.
func CheckPureInteger(t *tableau.Tableau) error {
	for j, c := range t.Columns() {
		if c.Kind == tableau.Decision && !t.IsIntegerColumn(j) {
			return fmt.Errorf("%w: %s is continuous", ErrNotPureInteger, c.Label)
		}
	}
	return nil
}

func fractionalRows(t *tableau.Tableau) []int {
	var rows []int
	for i, j := range t.Basis() {
		if j >= 0 && t.IsIntegerColumn(j) && !tableau.IsInteger(t.RHS(i+1)) {
			rows = append(rows, i+1)
		}
	}
	return rows
}

// NeedsCut reports whether some integer basic variable is fractional.
func NeedsCut(t *tableau.Tableau) bool { return len(fractionalRows(t)) > 0 }

// SelectCuttingRow returns the row whose integer basic variable has the
// fractional part closest to 0.5, ties to the lowest row, or -1.
func SelectCuttingRow(t *tableau.Tableau) int {
	best, dist := -1, math.Inf(1)
	for _, i := range fractionalRows(t) {
		if d := math.Abs(tableau.Frac(t.RHS(i)) - 0.5); d < dist-tableau.Epsilon {
			best, dist = i, d
		}
	}
	return best
}

// GenerateGomoryCut derives the fractional cut of row.
func GenerateGomoryCut(t *tableau.Tableau, row int) (Cut, error) {
	if row < 1 || row > t.ConstraintCount() {
		return Cut{}, fmt.Errorf("%w: row %d", tableau.ErrOutOfRange, row)
	}
	f0 := tableau.Frac(t.RHS(row))
	if f0 == 0 {
		return Cut{}, fmt.Errorf("%w: row %d", ErrNoFractionalRow, row)
	}
	labels := t.ColumnLabels()
	cut := Cut{
		Row:          row,
		Basic:        t.BasicVariables()[row-1],
		Coefficients: make([]float64, len(labels)-1),
		Columns:      labels[:len(labels)-1],
		RHS:          f0,
	}
	for j := range cut.Coefficients {
		if t.Eligible(j) {
			cut.Coefficients[j] = tableau.Frac(t.At(row, j))
		}
	}
	return cut, nil
}

// AddConstraintToTable appends cut to t as a >= row with its surplus
// column basic. The new row is infeasible at the current basis.
func AddConstraintToTable(t *tableau.Tableau, cut Cut) (*tableau.Tableau, error) {
	return t.AddConstraint(cut.Coefficients, model.GreaterEqual, cut.RHS, cut.Label)
}

// Solve runs the cut loop from t, normally an LP-optimal tableau; a tableau
// that is not yet solved is solved first.
func (cp *CuttingPlane) Solve(ctx context.Context, t *tableau.Tableau) (*Result, error) {
	if err := CheckPureInteger(t); err != nil {
		return nil, err
	}
	res := &Result{Status: t.Status(), Final: t}
	if !t.Status().Terminal() {
		lp, err := simplex.NewRevised(cp.opts.Simplex...).Solve(t)
		if err != nil {
			return nil, err
		}
		res.History = append(res.History, lp.History...)
		res.Status, res.Final = lp.Status, lp.Final
	} else {
		res.History = append(res.History, t)
	}

	for res.Status == tableau.Optimal && NeedsCut(res.Final) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if len(res.Cuts) >= cp.opts.MaxCuts {
			log.Warningf("cutplane: still fractional after %d cuts", len(res.Cuts))
			return res, fmt.Errorf("%w: %d cuts", ErrCutLimit, len(res.Cuts))
		}
		n := len(res.Cuts) + 1
		cut, err := GenerateGomoryCut(res.Final, SelectCuttingRow(res.Final))
		if err != nil {
			return res, err
		}
		cut.Label = fmt.Sprintf("g%d", n)
		next, err := AddConstraintToTable(res.Final, cut)
		if err != nil {
			return res, err
		}
		id := fmt.Sprintf("t-cut-%d", n)
		next = next.WithID(id, cut.String())
		res.Cuts = append(res.Cuts, cut)
		log.V(1).Infof("cutplane: %s from row %d (%s)", cut, cut.Row, cut.Basic)

		opts := append(cp.opts.Simplex[:len(cp.opts.Simplex):len(cp.opts.Simplex)], simplex.WithPrefix(id+"."))
		lp, err := simplex.NewRevised(opts...).Solve(next)
		if err != nil {
			return res, fmt.Errorf("cutplane: re-solve after %s: %w", cut.Label, err)
		}
		res.History = append(res.History, lp.History...)
		res.Status, res.Final = lp.Status, lp.Final
	}
	log.Infof("cutplane: %s after %d cuts, z = %g", res.Status, len(res.Cuts), res.Objective())
	return res, nil
}
