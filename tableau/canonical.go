package tableau

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"q.log/lpsolver/model"
)

// NewRaw builds a raw tableau: one decision column per variable, one row per
// constraint, no basis. objective holds the coefficients c of the objective
// function; row 0 stores them as -c.
func NewRaw(dir model.Direction, names []string, objective []float64, rows [][]float64, ops []model.Operator, rhs []float64, restrictions []Restriction) (*Tableau, error) {
	n := len(names)
	if n == 0 {
		return nil, fmt.Errorf("%w: no variables", ErrDimensionMismatch)
	}
	if len(objective) != n || len(restrictions) != n {
		return nil, fmt.Errorf("%w: %d names, %d objective coefficients, %d restrictions", ErrDimensionMismatch, n, len(objective), len(restrictions))
	}
	if len(ops) != len(rows) || len(rhs) != len(rows) {
		return nil, fmt.Errorf("%w: %d rows, %d operators, %d right-hand sides", ErrDimensionMismatch, len(rows), len(ops), len(rhs))
	}

	m := len(rows)
	t := &Tableau{
		id:           "t-raw",
		description:  "raw tableau",
		direction:    dir,
		m:            mat.NewDense(m+1, n+1, nil),
		rowLabels:    make([]string, m+1),
		columns:      make([]Column, n+1),
		basis:        make([]int, m),
		variables:    append([]string(nil), names...),
		restrictions: make(map[string]Restriction, n),
		operators:    make(map[string]model.Operator, m),
		stage:        Raw,
		status:       Unsolved,
		pivotRow:     -1,
		pivotCol:     -1,
	}
	t.rowLabels[0] = "OBJ"
	for j, name := range names {
		t.columns[j] = Column{Label: name, Kind: Decision, Source: j, Sign: 1}
		t.restrictions[name] = restrictions[j]
		t.m.Set(0, j, -objective[j])
	}
	t.columns[n] = Column{Label: "RHS", Kind: RHS, Source: -1, Sign: 1}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d coefficients for %d variables", ErrDimensionMismatch, i+1, len(row), n)
		}
		label := fmt.Sprintf("C%d", i+1)
		t.rowLabels[i+1] = label
		t.operators[label] = ops[i]
		t.basis[i] = -1
		for j, a := range row {
			t.m.Set(i+1, j, a)
		}
		t.m.Set(i+1, n, rhs[i])
	}
	return t, nil
}

// FromModel builds the raw tableau of a model. Finite variable bounds other
// than the implicit x >= 0, x <= 0 or 0 <= x <= 1 of the restriction become
// extra constraint rows appended after the model's constraints.
func FromModel(m *model.Model) (*Tableau, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	n := m.VariableCount()
	names := make([]string, n)
	restr := make([]Restriction, n)
	var rows [][]float64
	var ops []model.Operator
	var rhs []float64
	for _, c := range m.Constraints {
		rows = append(rows, append([]float64(nil), c.Coefficients...))
		ops = append(ops, c.Operator)
		rhs = append(rhs, c.RHS)
	}
	bound := func(j int, op model.Operator, v float64) {
		row := make([]float64, n)
		row[j] = 1
		rows = append(rows, row)
		ops = append(ops, op)
		rhs = append(rhs, v)
	}
	for j, v := range m.Variables {
		names[j] = v.Name
		lb, ub := v.LowerBound, v.UpperBound
		switch v.Type {
		case model.Binary:
			restr[j] = Binary
		case model.Integer:
			if lb < 0 {
				return nil, fmt.Errorf("%w: integer variable %s has negative lower bound", ErrUnsupported, v.Name)
			}
			restr[j] = Integer
			if lb > 0 {
				bound(j, model.GreaterEqual, lb)
			}
			if !math.IsInf(ub, 1) {
				bound(j, model.LessEqual, ub)
			}
		default:
			switch {
			case lb >= 0:
				restr[j] = NonNegative
				if lb > 0 {
					bound(j, model.GreaterEqual, lb)
				}
				if !math.IsInf(ub, 1) {
					bound(j, model.LessEqual, ub)
				}
			case ub == 0:
				restr[j] = NonPositive
				if !math.IsInf(lb, -1) {
					bound(j, model.GreaterEqual, lb)
				}
			default:
				restr[j] = Unrestricted
				if !math.IsInf(lb, -1) {
					bound(j, model.GreaterEqual, lb)
				}
				if !math.IsInf(ub, 1) {
					bound(j, model.LessEqual, ub)
				}
			}
		}
	}
	return NewRaw(m.Direction, names, m.Objective(), rows, ops, rhs, restr)
}

// Canonical converts a raw tableau into canonical form:
//   - non-positive columns are negated and free columns split into x+ / x-,
//   - binary columns get an x <= 1 row,
//   - rows with a negative right-hand side are negated and their relation
//     flipped,
//   - each <= row gets a basic slack sN, each >= row a surplus eN and a basic
//     artificial aN, each = row a basic artificial aN.
//
// Artificial columns are left for the solver's phase one; rows 1..m of the
// result always contain an identity over the basis.
func (t *Tableau) Canonical() (*Tableau, error) {
	if t.stage != Raw {
		return nil, fmt.Errorf("%w: canonical form of a %s tableau", ErrStage, t.stage)
	}
	n := t.rhs()

	var cols []Column
	var obj []float64
	// coefficient of raw column j in the expanded columns
	type part struct {
		col  int
		sign float64
	}
	expand := make([][]part, n)
	for j := range n {
		c := t.columns[j]
		switch t.restrictions[c.Label] {
		case NonPositive:
			expand[j] = []part{{len(cols), -1}}
			cols = append(cols, Column{Label: c.Label, Kind: Decision, Source: c.Source, Sign: -1})
		case Unrestricted:
			expand[j] = []part{{len(cols), 1}, {len(cols) + 1, -1}}
			cols = append(cols,
				Column{Label: c.Label + "+", Kind: Decision, Source: c.Source, Sign: 1},
				Column{Label: c.Label + "-", Kind: Decision, Source: c.Source, Sign: -1})
		default:
			expand[j] = []part{{len(cols), 1}}
			cols = append(cols, Column{Label: c.Label, Kind: Decision, Source: c.Source, Sign: 1})
		}
	}
	nd := len(cols)
	obj = make([]float64, nd)
	for j, parts := range expand {
		for _, p := range parts {
			obj[p.col] = p.sign * t.m.At(0, j)
		}
	}

	type row struct {
		label string
		a     []float64
		op    model.Operator
		b     float64
	}
	var rows []row
	operators := make(map[string]model.Operator, len(t.basis))
	for i := range t.basis {
		r := row{label: t.rowLabels[i+1], a: make([]float64, nd), b: t.m.At(i+1, n)}
		r.op = t.operators[r.label]
		operators[r.label] = r.op
		for j, parts := range expand {
			for _, p := range parts {
				r.a[p.col] = p.sign * t.m.At(i+1, j)
			}
		}
		rows = append(rows, r)
	}
	for j := range n {
		if t.restrictions[t.columns[j].Label] != Binary {
			continue
		}
		r := row{label: fmt.Sprintf("C%d", len(rows)+1), a: make([]float64, nd), op: model.LessEqual, b: 1}
		r.a[expand[j][0].col] = 1
		operators[r.label] = r.op
		rows = append(rows, r)
	}
	for i := range rows {
		if rows[i].b < 0 {
			for j := range rows[i].a {
				rows[i].a[j] = -rows[i].a[j]
			}
			rows[i].b = -rows[i].b
			rows[i].op = rows[i].op.Flip()
		}
	}

	m := len(rows)
	basis := make([]int, m)
	var aux, art []Column
	auxAt := make([]int, m)
	artAt := make([]int, m)
	for i, r := range rows {
		auxAt[i], artAt[i] = -1, -1
		switch r.op {
		case model.LessEqual:
			auxAt[i] = len(aux)
			aux = append(aux, Column{Label: fmt.Sprintf("s%d", i+1), Kind: Slack, Source: -1, Sign: 1})
		case model.GreaterEqual:
			auxAt[i] = len(aux)
			aux = append(aux, Column{Label: fmt.Sprintf("e%d", i+1), Kind: Surplus, Source: -1, Sign: 1})
			artAt[i] = len(art)
			art = append(art, Column{Label: fmt.Sprintf("a%d", i+1), Kind: Artificial, Source: -1, Sign: 1})
		default:
			artAt[i] = len(art)
			art = append(art, Column{Label: fmt.Sprintf("a%d", i+1), Kind: Artificial, Source: -1, Sign: 1})
		}
	}
	cols = append(cols, aux...)
	cols = append(cols, art...)
	cols = append(cols, Column{Label: "RHS", Kind: RHS, Source: -1, Sign: 1})
	width := len(cols)

	out := &Tableau{
		id:           "t-i",
		description:  "initial canonical tableau",
		direction:    t.direction,
		m:            mat.NewDense(m+1, width, nil),
		rowLabels:    make([]string, m+1),
		columns:      cols,
		basis:        basis,
		variables:    append([]string(nil), t.variables...),
		restrictions: make(map[string]Restriction, len(t.restrictions)),
		operators:    operators,
		stage:        Canonical,
		status:       Unsolved,
		pivotRow:     -1,
		pivotCol:     -1,
	}
	for k, v := range t.restrictions {
		out.restrictions[k] = v
	}
	out.rowLabels[0] = "OBJ"
	for j, c := range obj {
		out.m.Set(0, j, c)
	}
	for i, r := range rows {
		out.rowLabels[i+1] = r.label
		for j, a := range r.a {
			out.m.Set(i+1, j, a)
		}
		out.m.Set(i+1, width-1, r.b)
		if k := auxAt[i]; k >= 0 {
			sign := 1.0
			if r.op == model.GreaterEqual {
				sign = -1
			}
			out.m.Set(i+1, nd+k, sign)
			if r.op == model.LessEqual {
				basis[i] = nd + k
			}
		}
		if k := artAt[i]; k >= 0 {
			out.m.Set(i+1, nd+len(aux)+k, 1)
			basis[i] = nd + len(aux) + k
		}
	}
	return out, nil
}
