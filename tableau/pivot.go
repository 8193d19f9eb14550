package tableau

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"q.log/lpsolver/model"
)

// divideRow scales row so that its entry in col becomes 1.
func divideRow(m *mat.Dense, row, col int) {
	r := m.RawRowView(row)
	floats.Scale(1/r[col], r)
	r[col] = 1
}

// eliminateColumn subtracts multiples of the pivot row from every other row
// so that col becomes a unit column.
func eliminateColumn(m *mat.Dense, row, col int) {
	p := m.RawRowView(row)
	rows, _ := m.Dims()
	for i := range rows {
		if i == row {
			continue
		}
		r := m.RawRowView(i)
		f := r[col]
		if f == 0 {
			continue
		}
		floats.AddScaled(r, -f, p)
		for j := range r {
			r[j] = chop(r[j])
		}
		r[col] = 0
	}
}

// priceOut zeroes the objective row over the basic columns.
func priceOut(m *mat.Dense, basis []int) {
	obj := m.RawRowView(0)
	for i, j := range basis {
		if j < 0 || obj[j] == 0 {
			continue
		}
		floats.AddScaled(obj, -obj[j], m.RawRowView(i+1))
		obj[j] = 0
	}
	for j := range obj {
		obj[j] = chop(obj[j])
	}
}

// ValidPivot reports whether (row, col) can be pivoted on: a constraint row,
// a non-RHS column and an entry whose magnitude exceeds Epsilon.
func (t *Tableau) ValidPivot(row, col int) error {
	if t.stage == Raw {
		return fmt.Errorf("%w: raw tableau has no basis", ErrInvalidPivot)
	}
	if row < 1 || row > len(t.basis) || col < 0 || col >= t.rhs() {
		return fmt.Errorf("%w: (%d, %d) out of bounds", ErrInvalidPivot, row, col)
	}
	if a := t.m.At(row, col); math.Abs(a) <= Epsilon {
		return fmt.Errorf("%w: element at (%d, %d) is %g", ErrInvalidPivot, row, col, a)
	}
	return nil
}

// Pivot returns a new snapshot in which column col replaces the basic
// variable of row: the pivot row is divided by the pivot element and col is
// eliminated from every other row, objective included. Labels, restrictions
// and operators are carried over unchanged.
func (t *Tableau) Pivot(row, col int) (*Tableau, error) {
	if err := t.ValidPivot(row, col); err != nil {
		return nil, err
	}
	out := t.clone()
	out.pivotRow, out.pivotCol, out.pivotElement = row, col, t.m.At(row, col)
	divideRow(out.m, row, col)
	eliminateColumn(out.m, row, col)
	out.basis[row-1] = col
	out.stage = Iteration
	out.status = Continue
	return out, nil
}

// PriceOut returns a copy whose objective row is zero over the basic
// columns.
func (t *Tableau) PriceOut() *Tableau {
	out := t.clone()
	priceOut(out.m, out.basis)
	return out
}

// grow returns a copy with extra rows and extra columns inserted before RHS.
func (t *Tableau) grow(rows int, cols []Column) *Tableau {
	r0, c0 := t.m.Dims()
	n := c0 - 1
	out := t.clone()
	out.m = mat.NewDense(r0+rows, c0+len(cols), nil)
	for i := range r0 {
		for j := range n {
			out.m.Set(i, j, t.m.At(i, j))
		}
		out.m.Set(i, n+len(cols), t.m.At(i, n))
	}
	out.columns = append(append(t.columns[:n:n], cols...), t.columns[n])
	if out.savedRow0 != nil {
		saved := make([]float64, c0+len(cols))
		copy(saved, t.savedRow0[:n])
		saved[len(saved)-1] = t.savedRow0[n]
		out.savedRow0 = saved
	}
	return out
}

func (t *Tableau) uniqueLabel(prefix string, n int) string {
	for {
		label := fmt.Sprintf("%s%d", prefix, n)
		if t.ColumnIndex(label) < 0 {
			return label
		}
		n++
	}
}

// AddConstraint returns a copy with one more row and one more column for the
// relation coefs·x op rhs, where coefs has one entry per non-RHS column.
// Existing cells are untouched. The new row is expressed in the current
// basis and scaled so that its own slack (<=), surplus (>=) or artificial
// (=) column is basic with coefficient 1; its right-hand side may therefore
// be negative, which the solvers restore with dual simplex pivots.
//
// label names the new column; an empty label picks s<row>, e<row> or a<row>.
func (t *Tableau) AddConstraint(coefs []float64, op model.Operator, rhs float64, label string) (*Tableau, error) {
	if t.stage == Raw {
		return nil, fmt.Errorf("%w: add constraint to a raw tableau", ErrStage)
	}
	n := t.rhs()
	if len(coefs) != n {
		return nil, fmt.Errorf("%w: %d coefficients for %d columns", ErrDimensionMismatch, len(coefs), n)
	}
	row := len(t.basis) + 1
	kind, prefix, sign := Slack, "s", 1.0
	switch op {
	case model.GreaterEqual:
		kind, prefix, sign = Surplus, "e", -1
	case model.Equal:
		kind, prefix = Artificial, "a"
	}
	if label == "" {
		label = t.uniqueLabel(prefix, row)
	}
	out := t.grow(1, []Column{{Label: label, Kind: kind, Source: -1, Sign: 1}})
	rowLabel := fmt.Sprintf("C%d", row)
	out.rowLabels = append(out.rowLabels, rowLabel)
	out.operators[rowLabel] = op

	r := out.m.RawRowView(row)
	copy(r, coefs)
	r[n] = sign
	r[n+1] = rhs
	for i, j := range t.basis {
		if f := r[j]; f != 0 {
			floats.AddScaled(r, -f, out.m.RawRowView(i+1))
			r[j] = 0
		}
	}
	if sign < 0 {
		floats.Scale(-1, r)
	}
	for j := range r {
		r[j] = chop(r[j])
	}
	out.basis = append(out.basis, n)
	out.stage = Iteration
	out.status = Continue
	out.pivotRow, out.pivotCol, out.pivotElement = -1, -1, 0
	return out, nil
}

// AddArtificials returns a copy in which every row with a negative
// right-hand side is negated and given a new basic artificial column.
func (t *Tableau) AddArtificials() *Tableau {
	var rows []int
	for i := range t.basis {
		if t.m.At(i+1, t.rhs()) < -Epsilon {
			rows = append(rows, i+1)
		}
	}
	if len(rows) == 0 {
		return t.clone()
	}
	cols := make([]Column, len(rows))
	for k, i := range rows {
		cols[k] = Column{Label: t.uniqueLabel("a", i), Kind: Artificial, Source: -1, Sign: 1}
	}
	n := t.rhs()
	out := t.grow(0, cols)
	for k, i := range rows {
		r := out.m.RawRowView(i)
		floats.Scale(-1, r)
		r[n+k] = 1
		out.basis[i-1] = n + k
	}
	out.status = Continue
	return out
}

// PhaseOne returns a copy whose objective is to minimize the sum of the
// artificial columns, priced out against the current basis. The original
// objective row and direction are kept for PhaseTwo.
func (t *Tableau) PhaseOne() (*Tableau, error) {
	if t.phase == 1 {
		return nil, fmt.Errorf("%w: already in phase one", ErrStage)
	}
	if err := t.CheckBasis(); err != nil {
		return nil, err
	}
	out := t.clone()
	out.savedRow0 = mat.Row(nil, 0, t.m)
	out.savedDir = t.direction
	out.direction = model.Minimize
	out.phase = 1
	obj := out.m.RawRowView(0)
	for j, c := range out.columns {
		obj[j] = 0
		if c.Kind == Artificial {
			obj[j] = -1
		}
	}
	priceOut(out.m, out.basis)
	out.description = "phase one"
	return out, nil
}

// PhaseTwo restores the objective saved by PhaseOne, removes the non-basic
// artificial columns and prices the objective out against the basis.
func (t *Tableau) PhaseTwo() (*Tableau, error) {
	if t.phase != 1 {
		return nil, fmt.Errorf("%w: not in phase one", ErrStage)
	}
	out := t.clone()
	out.m.SetRow(0, t.savedRow0)
	out.direction = t.savedDir
	out.phase = 0
	out.savedRow0 = nil
	out = out.DropArtificials()
	priceOut(out.m, out.basis)
	out.description = "phase two"
	out.status = Continue
	return out, nil
}

// CheckBasis verifies that every constraint row has a basic column whose
// entries form an identity over the constraint rows.
func (t *Tableau) CheckBasis() error {
	for i, j := range t.basis {
		if j < 0 {
			return fmt.Errorf("%w: row %d has no basic variable", ErrNotCanonical, i+1)
		}
		for r := range t.basis {
			want := 0.0
			if r == i {
				want = 1
			}
			if math.Abs(t.m.At(r+1, j)-want) > Epsilon {
				return fmt.Errorf("%w: column %s at row %d", ErrNotCanonical, t.columns[j].Label, r+1)
			}
		}
	}
	return nil
}

// Rebase returns the snapshot of the receiver's system for another basis:
// rows 1..m become binv·[A|b] and the objective row is priced out. binv
// must be the inverse of the receiver's columns at basis.
func (t *Tableau) Rebase(basis []int, binv mat.Matrix) (*Tableau, error) {
	m := len(t.basis)
	if len(basis) != m {
		return nil, fmt.Errorf("%w: basis of %d for %d rows", ErrDimensionMismatch, len(basis), m)
	}
	out := t.clone()
	out.basis = append([]int(nil), basis...)
	if m > 0 {
		r, c := binv.Dims()
		if r != m || c != m {
			return nil, fmt.Errorf("%w: inverse is %dx%d for %d rows", ErrDimensionMismatch, r, c, m)
		}
		_, cols := t.m.Dims()
		var body mat.Dense
		body.Mul(binv, t.m.Slice(1, m+1, 0, cols))
		for i := range m {
			dst := out.m.RawRowView(i + 1)
			copy(dst, body.RawRowView(i))
			for j := range dst {
				dst[j] = chop(dst[j])
			}
		}
		for i, j := range basis {
			if j < 0 || j >= t.rhs() {
				return nil, fmt.Errorf("%w: basic column %d", ErrOutOfRange, j)
			}
			// unit columns exactly, so later pivots start clean
			for r := range m {
				v := 0.0
				if r == i {
					v = 1
				}
				out.m.Set(r+1, j, v)
			}
		}
	}
	priceOut(out.m, out.basis)
	out.stage = Iteration
	out.status = Continue
	out.pivotRow, out.pivotCol, out.pivotElement = -1, -1, 0
	return out, nil
}

// IsSingular reports whether err is the gonum signal for an inverse that
// could not be computed.
func IsSingular(err error) bool {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return math.IsInf(float64(cond), 1)
	}
	return err != nil
}

// WithObjectiveRow returns a copy whose objective row is replaced by row0,
// priced out against the current basis.
func (t *Tableau) WithObjectiveRow(row0 []float64, dir model.Direction) (*Tableau, error) {
	if len(row0) != len(t.columns) {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrDimensionMismatch, len(row0), len(t.columns))
	}
	out := t.clone()
	out.direction = dir
	out.m.SetRow(0, row0)
	if out.stage != Raw {
		priceOut(out.m, out.basis)
	}
	return out, nil
}
