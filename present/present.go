// Package present renders solver snapshots as text. It only reads the
// values it is given.
package present

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"q.log/lpsolver/bnb"
	"q.log/lpsolver/simplex"
	"q.log/lpsolver/tableau"
)

// printer accumulates the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func num(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	if s == "-0.000" {
		return "0.000"
	}
	return s
}

// Tableau writes the header and matrix of a snapshot.
func Tableau(w io.Writer, t *tableau.Tableau) error {
	p := &printer{w: w}
	writeTableau(p, t)
	return p.err
}

func writeTableau(p *printer, t *tableau.Tableau) {
	p.printf("\n=== Table: %s (%s) ===\n", t.ID(), t.Stage())
	p.printf("Status: %s\n", t.Status())
	p.printf("Optimization: %s\n", t.Direction())
	if t.Description() != "" {
		p.printf("Description: %s\n", t.Description())
	}

	restr := t.Restrictions()
	var pairs []string
	for _, v := range t.Variables() {
		pairs = append(pairs, fmt.Sprintf("%s: %s", v, restr[v]))
	}
	p.printf("Variable Constraints: [%s]\n", strings.Join(pairs, ", "))

	ops := t.Operators()
	pairs = pairs[:0]
	for _, r := range t.RowLabels()[1:] {
		pairs = append(pairs, fmt.Sprintf("%s: %s", r, ops[r]))
	}
	p.printf("Constraint Operators: [%s]\n", strings.Join(pairs, ", "))
	if t.Stage() != tableau.Raw {
		p.printf("Basic Variables: [%s]\n", strings.Join(t.BasicVariables(), ", "))
	}
	p.printf("Objective Value: %s\n", num(t.ObjectiveValue()))
	if row, col, elem := t.LastPivot(); row > 0 {
		p.printf("Pivot: row %d, column %s, element %s\n", row, t.ColumnLabels()[col], num(elem))
	}

	p.printf("\nTableau Matrix:\n%6s", "")
	labels := t.ColumnLabels()
	for _, l := range labels {
		p.printf("%10s", l)
	}
	p.printf("\n%6s%s\n", "", strings.Repeat("-", 10*len(labels)))
	rows, cols := t.Dims()
	for i, label := range t.RowLabels()[:rows] {
		p.printf("%5s |", label)
		for j := range cols {
			p.printf("%10s", num(t.At(i, j)))
		}
		p.printf("\n")
	}
}

// History writes every snapshot in order.
func History(w io.Writer, tabs []*tableau.Tableau) error {
	p := &printer{w: w}
	for _, t := range tabs {
		writeTableau(p, t)
	}
	return p.err
}

// MathPrelim is the decomposition of a snapshot into its basic and
// non-basic parts.
type MathPrelim struct {
	SourceID         string
	BasicLabels      []string
	NonBasicLabels   []string
	ConstraintLabels []string

	// B and N hold the constraint columns of the basic and non-basic
	// variables, Cb and Cnb their objective coefficients.
	B   *mat.Dense
	N   *mat.Dense
	Cb  []float64
	Cnb []float64
	RHS []float64
	// Xbv is the value of each basic variable.
	Xbv []float64
}

// NewMathPrelim decomposes the original system t at the basis given by
// the labels of its basic variables, typically the BasicVariables of a later
// snapshot of the same solve. Artificial columns are left out of N.
func NewMathPrelim(t *tableau.Tableau, basic []string) (*MathPrelim, error) {
	m := t.ConstraintCount()
	if len(basic) != m {
		return nil, fmt.Errorf("present: %d basic variables for %d rows", len(basic), m)
	}
	basis := make([]int, m)
	for i, label := range basic {
		if basis[i] = t.ColumnIndex(label); basis[i] < 0 {
			return nil, fmt.Errorf("present: no column %s in %s", label, t.ID())
		}
	}
	cols := t.Columns()
	mp := &MathPrelim{
		SourceID:         t.ID(),
		BasicLabels:      slices.Clone(basic),
		ConstraintLabels: t.RowLabels()[1:],
	}
	var nonBasic []int
	for j, c := range cols[:len(cols)-1] {
		if c.Kind != tableau.Artificial && !slices.Contains(basis, j) {
			nonBasic = append(nonBasic, j)
			mp.NonBasicLabels = append(mp.NonBasicLabels, c.Label)
		}
	}
	for _, j := range basis {
		mp.Cb = append(mp.Cb, -t.At(0, j))
	}
	for _, j := range nonBasic {
		mp.Cnb = append(mp.Cnb, -t.At(0, j))
	}
	for i := range m {
		mp.RHS = append(mp.RHS, t.RHS(i+1))
	}
	if m == 0 {
		return mp, nil
	}
	mp.B = mat.NewDense(m, m, nil)
	for k, j := range basis {
		for i := range m {
			mp.B.Set(i, k, t.At(i+1, j))
		}
	}
	if len(nonBasic) > 0 {
		mp.N = mat.NewDense(m, len(nonBasic), nil)
		for k, j := range nonBasic {
			for i := range m {
				mp.N.Set(i, k, t.At(i+1, j))
			}
		}
	}
	var x mat.VecDense
	if err := x.SolveVec(mp.B, mat.NewVecDense(m, slices.Clone(mp.RHS))); err != nil && tableau.IsSingular(err) {
		return nil, fmt.Errorf("present: %w", tableau.ErrSingularBasis)
	}
	mp.Xbv = x.RawVector().Data
	return mp, nil
}

// Write renders the decomposition.
func (mp *MathPrelim) Write(w io.Writer) error {
	p := &printer{w: w}
	p.printf("\n=== Math Preliminary Format (Source: %s) ===\n", mp.SourceID)
	writeVector(p, "Basic Variables (Xbv)", mp.BasicLabels, mp.Xbv)
	writeMatrix(p, "Basis Matrix (B)", mp.BasicLabels, mp.B)
	writeMatrix(p, "Non-Basic Columns (Xnb)", mp.NonBasicLabels, mp.N)
	writeVector(p, "Basic Costs (Cb)", mp.BasicLabels, mp.Cb)
	writeVector(p, "Non-Basic Costs (Cnb)", mp.NonBasicLabels, mp.Cnb)
	writeVector(p, "Right-Hand Side (RHS)", mp.ConstraintLabels, mp.RHS)
	return p.err
}

func writeMatrix(p *printer, title string, labels []string, m *mat.Dense) {
	if m == nil {
		p.printf("\n%s: (empty)\n", title)
		return
	}
	p.printf("\n%s [%s]:\n", title, strings.Join(labels, " "))
	p.printf("    %v\n", mat.Formatted(m, mat.Prefix("    "), mat.Squeeze()))
}

func writeVector(p *printer, title string, labels []string, v []float64) {
	p.printf("\n%s:\n", title)
	for i, x := range v {
		label := fmt.Sprintf("R%d", i)
		if i < len(labels) {
			label = labels[i]
		}
		p.printf("%8s = %s\n", label, num(x))
	}
}

// PriceOut writes the quantities of one revised simplex iteration. labels
// are the column labels of the system it ran on.
func PriceOut(w io.Writer, po simplex.PriceOut, labels []string) error {
	p := &printer{w: w}
	var basic []string
	for _, j := range po.Basis {
		basic = append(basic, labels[j])
	}
	p.printf("\n--- Price out (phase %d) basis [%s] ---\n", po.Phase, strings.Join(basic, " "))
	p.printf("B^-1 = %v\n", mat.Formatted(po.BasisInverse, mat.Prefix("       "), mat.Squeeze()))
	writeVector(p, "xB", basic, po.Values)
	p.printf("y = [%s]\n", join(po.Prices))
	var costs []string
	for j, d := range po.ReducedCosts {
		if !slices.Contains(po.Basis, j) {
			costs = append(costs, fmt.Sprintf("%s=%s", labels[j], num(d)))
		}
	}
	p.printf("reduced costs: %s\n", strings.Join(costs, " "))
	switch {
	case po.Entering >= 0 && po.Leaving >= 0:
		p.printf("%s enters, %s leaves, B^-1 a = [%s]\n", labels[po.Entering], labels[po.Basis[po.Leaving]], join(po.Direction))
	case po.Entering >= 0:
		p.printf("%s enters, no leaving row: unbounded\n", labels[po.Entering])
	default:
		p.printf("no entering column\n")
	}
	return p.err
}

func join(v []float64) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = num(x)
	}
	return strings.Join(s, " ")
}

// Tree writes a search tree, one node per line indented by depth.
func Tree(w io.Writer, tree *bnb.Tree) error {
	p := &printer{w: w}
	tree.Walk(func(n *bnb.Node) {
		p.printf("%s%s", strings.Repeat("  ", n.Depth), n.Label)
		if n.Constraint != "" {
			p.printf(" [%s]", n.Constraint)
		}
		switch {
		case n.Status == tableau.Optimal && n.Fixed != nil:
			p.printf(" value=%s bound=%s weight=%s", num(n.Objective), num(n.Bound), num(n.Weight))
		case n.Status == tableau.Optimal:
			p.printf(" z=%s x=[%s]", num(n.Objective), join(n.Solution))
		default:
			p.printf(" %s", n.Status)
		}
		if n.Fathomed {
			p.printf(" fathomed: %s", n.FathomReason)
		}
		p.printf("\n")
	})
	return p.err
}
