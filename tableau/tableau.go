// Package tableau implements the dense simplex tableau shared by every
// algorithm of the solver, together with the canonical-form builder and the
// pivot engine.
//
// A Tableau is an immutable snapshot: every transformation (Pivot,
// AddConstraint, PhaseOne, ...) deep-copies the receiver and returns the
// modified copy, so a sequence of snapshots is a valid iteration history.
//
// Row 0 holds the objective in the form z - c·x = value for both directions,
// so its right-most cell is always the current objective value. The last
// column is the right-hand side.
package tableau

import (
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/mat"

	"q.log/lpsolver/model"
)

// Tableau is a snapshot of a linear program in tableau form.
type Tableau struct {
	id          string
	description string
	direction   model.Direction

	m         *mat.Dense
	rowLabels []string
	columns   []Column
	basis     []int // column index per constraint row, -1 while raw

	variables    []string
	restrictions map[string]Restriction
	operators    map[string]model.Operator

	status Status
	stage  Stage
	phase  int

	// phase-one bookkeeping: the objective row and direction to restore
	savedRow0 []float64
	savedDir  model.Direction

	pivotRow, pivotCol int
	pivotElement       float64
}

func (t *Tableau) clone() *Tableau {
	out := *t
	out.m = mat.DenseCopyOf(t.m)
	out.rowLabels = slices.Clone(t.rowLabels)
	out.columns = slices.Clone(t.columns)
	out.basis = slices.Clone(t.basis)
	out.variables = slices.Clone(t.variables)
	out.restrictions = maps.Clone(t.restrictions)
	out.operators = maps.Clone(t.operators)
	out.savedRow0 = slices.Clone(t.savedRow0)
	return &out
}

func (t *Tableau) ID() string                 { return t.id }
func (t *Tableau) Description() string        { return t.description }
func (t *Tableau) Direction() model.Direction { return t.direction }
func (t *Tableau) Status() Status             { return t.status }
func (t *Tableau) Stage() Stage               { return t.stage }
func (t *Tableau) Phase() int                 { return t.phase }

// Dims returns the number of rows (constraints + 1) and columns (variables
// + 1).
func (t *Tableau) Dims() (rows, cols int) { return t.m.Dims() }

// ConstraintCount returns the number of constraint rows.
func (t *Tableau) ConstraintCount() int { return len(t.basis) }

// rhs returns the index of the right-hand side column.
func (t *Tableau) rhs() int { return len(t.columns) - 1 }

// At returns the cell at (i, j). It panics on out-of-range indices like
// mat.Dense does.
func (t *Tableau) At(i, j int) float64 { return t.m.At(i, j) }

// RHS returns the right-hand side of row i.
func (t *Tableau) RHS(i int) float64 { return t.m.At(i, t.rhs()) }

// ObjectiveValue returns the right-most cell of the objective row.
func (t *Tableau) ObjectiveValue() float64 { return t.m.At(0, t.rhs()) }

// Row returns a copy of row i.
func (t *Tableau) Row(i int) ([]float64, error) {
	rows, _ := t.m.Dims()
	if i < 0 || i >= rows {
		return nil, fmt.Errorf("%w: row %d", ErrOutOfRange, i)
	}
	return mat.Row(nil, i, t.m), nil
}

// Column returns a copy of column j.
func (t *Tableau) Column(j int) ([]float64, error) {
	if j < 0 || j >= len(t.columns) {
		return nil, fmt.Errorf("%w: column %d", ErrOutOfRange, j)
	}
	return mat.Col(nil, j, t.m), nil
}

// Matrix returns a copy of the coefficient matrix.
func (t *Tableau) Matrix() *mat.Dense { return mat.DenseCopyOf(t.m) }

func (t *Tableau) RowLabels() []string { return slices.Clone(t.rowLabels) }
func (t *Tableau) Columns() []Column    { return slices.Clone(t.columns) }

// ColumnLabels returns the column labels including RHS.
func (t *Tableau) ColumnLabels() []string {
	labels := make([]string, len(t.columns))
	for j, c := range t.columns {
		labels[j] = c.Label
	}
	return labels
}

// ColumnIndex returns the index of the column with the given label, or -1.
func (t *Tableau) ColumnIndex(label string) int {
	return slices.IndexFunc(t.columns, func(c Column) bool { return c.Label == label })
}

// Basis returns the basic column index of every constraint row.
func (t *Tableau) Basis() []int { return slices.Clone(t.basis) }

// BasicVariables returns the labels of the basic variables, row aligned.
// Rows without a basic variable yield an empty label.
func (t *Tableau) BasicVariables() []string {
	out := make([]string, len(t.basis))
	for i, j := range t.basis {
		if j >= 0 {
			out[i] = t.columns[j].Label
		}
	}
	return out
}

// BasicRow returns the row (1-based) in which column j is basic, or -1.
func (t *Tableau) BasicRow(j int) int {
	if i := slices.Index(t.basis, j); i >= 0 {
		return i + 1
	}
	return -1
}

// IsBasic reports whether column j is basic.
func (t *Tableau) IsBasic(j int) bool { return slices.Contains(t.basis, j) }

// Variables returns the names of the original decision variables.
func (t *Tableau) Variables() []string { return slices.Clone(t.variables) }

// Restrictions returns a copy of the variable restriction map.
func (t *Tableau) Restrictions() map[string]Restriction { return maps.Clone(t.restrictions) }

// Operators returns a copy of the constraint operator map.
func (t *Tableau) Operators() map[string]model.Operator { return maps.Clone(t.operators) }

// VariableRestriction returns the restriction of decision variable i.
func (t *Tableau) VariableRestriction(i int) Restriction {
	if i < 0 || i >= len(t.variables) {
		return NonNegative
	}
	return t.restrictions[t.variables[i]]
}

// IsIntegerColumn reports whether column j belongs to an integer or binary
// decision variable.
func (t *Tableau) IsIntegerColumn(j int) bool {
	c := t.columns[j]
	return c.Kind == Decision && t.VariableRestriction(c.Source).IsIntegral()
}

// LastPivot returns the pivot that produced this snapshot; row and column
// are -1 when the snapshot was not produced by a pivot.
func (t *Tableau) LastPivot() (row, col int, element float64) {
	return t.pivotRow, t.pivotCol, t.pivotElement
}

// Values returns the value of every column (excluding RHS) in the current
// basic solution.
func (t *Tableau) Values() []float64 {
	vals := make([]float64, t.rhs())
	for i, j := range t.basis {
		if j >= 0 {
			vals[j] = t.m.At(i+1, t.rhs())
		}
	}
	return vals
}

// Solution returns the value of every original decision variable, undoing
// the sign substitution and splitting of the canonical form.
func (t *Tableau) Solution() []float64 {
	vals := t.Values()
	x := make([]float64, len(t.variables))
	for j, c := range t.columns[:t.rhs()] {
		if c.Kind == Decision && c.Source >= 0 {
			x[c.Source] += c.Sign * vals[j]
		}
	}
	for i := range x {
		x[i] = chop(x[i])
	}
	return x
}

// HasNegativeRHS reports whether some constraint row has RHS < -Epsilon.
func (t *Tableau) HasNegativeRHS() bool {
	for i := range t.basis {
		if t.m.At(i+1, t.rhs()) < -Epsilon {
			return true
		}
	}
	return false
}

// HasArtificialBasis reports whether an artificial column is basic.
func (t *Tableau) HasArtificialBasis() bool {
	for _, j := range t.basis {
		if j >= 0 && t.columns[j].Kind == Artificial {
			return true
		}
	}
	return false
}

// CheckIdentity verifies that every basic column is a unit column on its
// row, zero elsewhere including the objective row.
func (t *Tableau) CheckIdentity() error {
	rows, _ := t.m.Dims()
	for i, j := range t.basis {
		if j < 0 {
			return fmt.Errorf("%w: row %d has no basic variable", ErrNotCanonical, i+1)
		}
		for r := range rows {
			want := 0.0
			if r == i+1 {
				want = 1
			}
			if d := t.m.At(r, j) - want; d > Epsilon || d < -Epsilon {
				return fmt.Errorf("%w: column %s at row %d", ErrNotCanonical, t.columns[j].Label, r)
			}
		}
	}
	return nil
}

// WithID returns a copy with a new identifier and description.
func (t *Tableau) WithID(id, description string) *Tableau {
	out := t.clone()
	out.id = id
	out.description = description
	return out
}

// WithStatus returns a copy carrying the given status. An Optimal status
// also moves the snapshot to the Final stage.
func (t *Tableau) WithStatus(s Status) *Tableau {
	out := t.clone()
	out.status = s
	if s == Optimal {
		out.stage = Final
	}
	return out
}

// ReplaceRow returns a copy with row i replaced.
func (t *Tableau) ReplaceRow(i int, values []float64) (*Tableau, error) {
	rows, cols := t.m.Dims()
	if i < 0 || i >= rows {
		return nil, fmt.Errorf("%w: row %d", ErrOutOfRange, i)
	}
	if len(values) != cols {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrDimensionMismatch, len(values), cols)
	}
	out := t.clone()
	out.m.SetRow(i, values)
	return out, nil
}

// ReplaceColumn returns a copy with column j replaced.
func (t *Tableau) ReplaceColumn(j int, values []float64) (*Tableau, error) {
	rows, cols := t.m.Dims()
	if j < 0 || j >= cols {
		return nil, fmt.Errorf("%w: column %d", ErrOutOfRange, j)
	}
	if len(values) != rows {
		return nil, fmt.Errorf("%w: %d values for %d rows", ErrDimensionMismatch, len(values), rows)
	}
	out := t.clone()
	out.m.SetCol(j, values)
	return out, nil
}

// DropColumns returns a copy without the given non-basic, non-RHS columns.
func (t *Tableau) DropColumns(cols ...int) (*Tableau, error) {
	drop := make(map[int]bool, len(cols))
	for _, j := range cols {
		if j < 0 || j >= t.rhs() {
			return nil, fmt.Errorf("%w: column %d", ErrOutOfRange, j)
		}
		if t.IsBasic(j) {
			return nil, fmt.Errorf("%w: column %s is basic", ErrStage, t.columns[j].Label)
		}
		drop[j] = true
	}
	if len(drop) == 0 {
		return t.clone(), nil
	}
	rows, n := t.m.Dims()
	keep := make([]int, 0, n-len(drop))
	remap := make([]int, n)
	for j := range n {
		remap[j] = -1
		if !drop[j] {
			remap[j] = len(keep)
			keep = append(keep, j)
		}
	}
	out := t.clone()
	out.m = mat.NewDense(rows, len(keep), nil)
	out.columns = make([]Column, len(keep))
	for k, j := range keep {
		out.columns[k] = t.columns[j]
		for i := range rows {
			out.m.Set(i, k, t.m.At(i, j))
		}
	}
	if t.savedRow0 != nil {
		out.savedRow0 = make([]float64, len(keep))
		for k, j := range keep {
			out.savedRow0[k] = t.savedRow0[j]
		}
	}
	for i, j := range t.basis {
		if j >= 0 {
			out.basis[i] = remap[j]
		}
	}
	return out, nil
}

// DropArtificials returns a copy without the non-basic artificial columns.
func (t *Tableau) DropArtificials() *Tableau {
	var cols []int
	for j, c := range t.columns[:t.rhs()] {
		if c.Kind == Artificial && !t.IsBasic(j) {
			cols = append(cols, j)
		}
	}
	out, err := t.DropColumns(cols...)
	if err != nil {
		// only non-basic in-range columns were selected
		panic(err)
	}
	return out
}

func (t *Tableau) String() string {
	return fmt.Sprintf("Table %s (%s)", t.id, t.stage)
}
