package simplex

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"q.log/lpsolver/model"
	"q.log/lpsolver/tableau"
)

type row struct {
	a  []float64
	op model.Operator
	b  float64
}

type problem struct {
	name string
	dir  model.Direction
	c    []float64
	rows []row
}

func (p problem) model(t *testing.T) *model.Model {
	t.Helper()
	m := model.New(p.name, p.dir)
	for _, c := range p.c {
		m.AddVariable("", c)
	}
	for _, r := range p.rows {
		_, err := m.AddConstraint("", r.a, r.op, r.b)
		require.NoError(t, err)
	}
	return m
}

func (p problem) raw(t *testing.T) *tableau.Tableau {
	t.Helper()
	tab, err := tableau.FromModel(p.model(t))
	require.NoError(t, err)
	return tab
}

// oracle solves p with gonum's standard-form simplex.
func (p problem) oracle(t *testing.T) float64 {
	t.Helper()
	n := len(p.c)
	slacks := 0
	for _, r := range p.rows {
		if r.op != model.Equal {
			slacks++
		}
	}
	a := mat.NewDense(len(p.rows), n+slacks, nil)
	b := make([]float64, len(p.rows))
	c := make([]float64, n+slacks)
	for j, v := range p.c {
		c[j] = v
		if p.dir == model.Maximize {
			c[j] = -v
		}
	}
	k := n
	for i, r := range p.rows {
		for j, v := range r.a {
			a.Set(i, j, v)
		}
		switch r.op {
		case model.LessEqual:
			a.Set(i, k, 1)
			k++
		case model.GreaterEqual:
			a.Set(i, k, -1)
			k++
		}
		b[i] = r.b
	}
	opt, _, err := lp.Simplex(c, a, b, 0, nil)
	require.NoError(t, err)
	if p.dir == model.Maximize {
		return -opt
	}
	return opt
}

var (
	productMix = problem{
		name: "product mix", dir: model.Maximize, c: []float64{3, 5},
		rows: []row{
			{[]float64{1, 0}, model.LessEqual, 4},
			{[]float64{0, 2}, model.LessEqual, 12},
			{[]float64{3, 2}, model.LessEqual, 18},
		},
	}
	diet = problem{
		name: "diet", dir: model.Minimize, c: []float64{2, 3},
		rows: []row{
			{[]float64{1, 1}, model.GreaterEqual, 4},
			{[]float64{1, 3}, model.GreaterEqual, 6},
		},
	}
	equality = problem{
		name: "equality", dir: model.Maximize, c: []float64{1, 2},
		rows: []row{
			{[]float64{1, 1}, model.Equal, 4},
			{[]float64{1, 0}, model.LessEqual, 3},
		},
	}
	threeVar = problem{
		name: "three variables", dir: model.Maximize, c: []float64{5, 4, 3},
		rows: []row{
			{[]float64{2, 3, 1}, model.LessEqual, 5},
			{[]float64{4, 1, 2}, model.LessEqual, 11},
			{[]float64{3, 4, 2}, model.LessEqual, 8},
		},
	}
	covering = problem{
		name: "covering", dir: model.Minimize, c: []float64{1, 1, 1},
		rows: []row{
			{[]float64{1, 2, 0}, model.GreaterEqual, 3},
			{[]float64{0, 1, 3}, model.GreaterEqual, 4},
			{[]float64{1, 0, 1}, model.GreaterEqual, 2},
		},
	}
	mixed = problem{
		name: "mixed relations", dir: model.Maximize, c: []float64{2, 3, 1},
		rows: []row{
			{[]float64{1, 1, 1}, model.LessEqual, 4},
			{[]float64{1, 2, 0}, model.Equal, 5},
			{[]float64{3, 0, 1}, model.GreaterEqual, 2},
		},
	}
	infeasible = problem{
		name: "infeasible", dir: model.Maximize, c: []float64{1},
		rows: []row{
			{[]float64{1}, model.LessEqual, 1},
			{[]float64{1}, model.GreaterEqual, 2},
		},
	}
	unbounded = problem{
		name: "unbounded", dir: model.Maximize, c: []float64{1, 1},
		rows: []row{
			{[]float64{1, -1}, model.LessEqual, 1},
		},
	}
)

type solver interface {
	Solve(*tableau.Tableau) (*Result, error)
}

func solvers() map[string]solver {
	return map[string]solver{
		"primal":  NewPrimal(),
		"revised": NewRevised(),
	}
}

func TestSolveKnownOptima(t *testing.T) {
	for _, tc := range []struct {
		p problem
		z float64
		x []float64
	}{
		{productMix, 36, []float64{2, 6}},
		{diet, 9, []float64{3, 1}},
		{equality, 8, []float64{0, 4}},
		{threeVar, 13, []float64{2, 0, 1}},
	} {
		for name, s := range solvers() {
			t.Run(tc.p.name+"/"+name, func(t *testing.T) {
				res, err := s.Solve(tc.p.raw(t))
				require.NoError(t, err)
				assert.Equal(t, tableau.Optimal, res.Status)
				assert.InDelta(t, tc.z, res.Objective(), 1e-9)
				if diff := cmp.Diff(tc.x, res.Solution(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
					t.Errorf("Solution() mismatch (-want +got):\n%s", diff)
				}
				assert.Equal(t, tableau.Final, res.Final.Stage())
				assert.Same(t, res.Final, res.History[len(res.History)-1])
			})
		}
	}
}

func TestSolveMatchesGonum(t *testing.T) {
	for _, p := range []problem{productMix, diet, equality, threeVar, covering, mixed} {
		want := p.oracle(t)
		for name, s := range solvers() {
			t.Run(p.name+"/"+name, func(t *testing.T) {
				res, err := s.Solve(p.raw(t))
				require.NoError(t, err)
				require.Equal(t, tableau.Optimal, res.Status)
				assert.InDelta(t, want, res.Objective(), 1e-7)
			})
		}
	}
}

func TestSolveTerminalStatus(t *testing.T) {
	for _, tc := range []struct {
		p    problem
		want tableau.Status
	}{
		{infeasible, tableau.Infeasible},
		{unbounded, tableau.Unbounded},
	} {
		for name, s := range solvers() {
			t.Run(tc.p.name+"/"+name, func(t *testing.T) {
				res, err := s.Solve(tc.p.raw(t))
				require.NoError(t, err)
				assert.Equal(t, tc.want, res.Status)
				assert.Equal(t, tc.want, res.Final.Status())
			})
		}
	}
}

func TestHistorySnapshots(t *testing.T) {
	for name, s := range solvers() {
		t.Run(name, func(t *testing.T) {
			res, err := s.Solve(diet.raw(t))
			require.NoError(t, err)
			require.NotEmpty(t, res.History)
			assert.Equal(t, "t-i", res.History[0].ID())
			seen := map[string]bool{}
			for _, tab := range res.History {
				assert.NoError(t, tab.CheckIdentity(), tab.ID())
				assert.False(t, seen[tab.ID()], "duplicate id %s", tab.ID())
				seen[tab.ID()] = true
			}
		})
	}
}

func TestPrimalIDs(t *testing.T) {
	res, err := NewPrimal().Solve(productMix.raw(t))
	require.NoError(t, err)

	var ids []string
	for _, tab := range res.History {
		ids = append(ids, tab.ID())
	}
	assert.Equal(t, []string{"t-i", "t-1", "t-2"}, ids)
	assert.Equal(t, 2, res.Iterations)
}

func TestRevisedPriceOuts(t *testing.T) {
	res, err := NewRevised().Solve(productMix.raw(t))
	require.NoError(t, err)
	require.Len(t, res.PriceOuts, 3)
	assert.Equal(t, "t-rev-2", res.Final.ID())

	first := res.PriceOuts[0]
	assert.Equal(t, []float64{0, 0, 0}, first.Prices)
	assert.Equal(t, []float64{3, 5, 0, 0, 0}, first.ReducedCosts)
	assert.Equal(t, 1, first.Entering)
	assert.Equal(t, 1, first.Leaving)
	assert.Equal(t, []float64{0, 2, 2}, first.Direction)

	last := res.PriceOuts[2]
	assert.Equal(t, -1, last.Entering)
	if diff := cmp.Diff([]float64{0, 1.5, 1}, last.Prices, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("shadow prices mismatch (-want +got):\n%s", diff)
	}
}

func TestDualRestart(t *testing.T) {
	for name, s := range solvers() {
		t.Run(name, func(t *testing.T) {
			res, err := s.Solve(productMix.raw(t))
			require.NoError(t, err)

			// x1 <= 1 on the optimal tableau
			coefs := make([]float64, len(res.Final.ColumnLabels())-1)
			coefs[0] = 1
			child, err := res.Final.AddConstraint(coefs, model.LessEqual, 1, "")
			require.NoError(t, err)
			require.True(t, child.HasNegativeRHS())
			require.True(t, child.IsOptimal(), "dual feasible")

			res, err = s.Solve(child)
			require.NoError(t, err)
			assert.Equal(t, tableau.Optimal, res.Status)
			assert.InDelta(t, 33, res.Objective(), 1e-9)
			assert.InDeltaSlice(t, []float64{1, 6}, res.Solution(), 1e-9)
		})
	}
}

func TestFreeVariable(t *testing.T) {
	m := model.New("free", model.Minimize)
	m.AddDefinedVariable("x", model.Continuous, 1, math.Inf(-1), math.Inf(1))
	_, err := m.AddConstraint("", []float64{1}, model.GreaterEqual, -3)
	require.NoError(t, err)
	raw, err := tableau.FromModel(m)
	require.NoError(t, err)

	for name, s := range solvers() {
		t.Run(name, func(t *testing.T) {
			res, err := s.Solve(raw)
			require.NoError(t, err)
			assert.Equal(t, tableau.Optimal, res.Status)
			assert.InDelta(t, -3, res.Objective(), 1e-9)
			assert.InDeltaSlice(t, []float64{-3}, res.Solution(), 1e-9)
		})
	}
}

func TestIterationLimit(t *testing.T) {
	for name, s := range map[string]solver{
		"primal":  NewPrimal(WithMaxIterations(1)),
		"revised": NewRevised(WithMaxIterations(1)),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := s.Solve(productMix.raw(t))
			assert.ErrorIs(t, err, ErrIterationLimit)
			require.NotNil(t, res)
			assert.Equal(t, 1, res.Iterations)
		})
	}
}

func TestBlandRule(t *testing.T) {
	res, err := NewPrimal(WithRule(tableau.Bland), WithDegenerateLimit(0)).Solve(threeVar.raw(t))
	require.NoError(t, err)
	assert.InDelta(t, 13, res.Objective(), 1e-9)
}

func TestStep(t *testing.T) {
	tab, err := productMix.raw(t).Canonical()
	require.NoError(t, err)

	p := NewPrimal()
	next, status, err := p.Step(tab, tableau.Dantzig)
	require.NoError(t, err)
	assert.Equal(t, tableau.Continue, status)
	assert.Equal(t, []string{"s1", "x2", "s3"}, next.BasicVariables())

	next, _, err = p.Step(next, tableau.Dantzig)
	require.NoError(t, err)
	_, status, err = p.Step(next, tableau.Dantzig)
	require.NoError(t, err)
	assert.Equal(t, tableau.Optimal, status)
}

func TestBasisHelpers(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{
		1, 2, 1,
		2, 4, 0,
	})
	_, err := BasisInverse(a, []int{0, 1})
	assert.ErrorIs(t, err, tableau.ErrSingularBasis)

	binv, err := BasisInverse(a, []int{0, 2})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(mat.NewDense(2, 2, []float64{0, 0.5, 1, -0.5}), binv, 1e-12))

	y := PriceVector([]float64{2, 1}, binv)
	assert.InDeltaSlice(t, []float64{1, 0.5}, y, 1e-12)

	d := ReducedCosts([]float64{2, 5, 1}, y, a, []int{0, 2})
	assert.InDeltaSlice(t, []float64{0, 1, 0}, d, 1e-12)

	_, err = BasisInverse(a, []int{0})
	assert.ErrorIs(t, err, tableau.ErrDimensionMismatch)
}
