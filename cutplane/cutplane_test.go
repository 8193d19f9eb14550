package cutplane

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"q.log/lpsolver/bnb"
	"q.log/lpsolver/model"
	"q.log/lpsolver/simplex"
	"q.log/lpsolver/tableau"
)

func solveLP(t *testing.T, m *model.Model) *tableau.Tableau {
	t.Helper()
	raw, err := tableau.FromModel(m)
	require.NoError(t, err)
	res, err := simplex.NewRevised().Solve(raw)
	require.NoError(t, err)
	require.Equal(t, tableau.Optimal, res.Status)
	return res.Final
}

// max x1 s.t. 2x1 <= 5, x1 integer
func halfModel() *model.Model {
	m := model.New("half", model.Maximize)
	m.AddIntegerVariable("x1", 1)
	m.AddConstraint("", []float64{2}, model.LessEqual, 5)
	return m
}

func TestSingleCut(t *testing.T) {
	lp := solveLP(t, halfModel())
	require.InDelta(t, 2.5, lp.Solution()[0], 1e-9)
	assert.True(t, NeedsCut(lp))
	assert.Equal(t, 1, SelectCuttingRow(lp))

	cut, err := GenerateGomoryCut(lp, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cut.RHS)
	assert.Equal(t, []float64{0, 0.5}, cut.Coefficients)
	assert.Equal(t, "x1", cut.Basic)

	res, err := New().Solve(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, tableau.Optimal, res.Status)
	require.Len(t, res.Cuts, 1)
	assert.Equal(t, "g1", res.Cuts[0].Label)
	assert.InDelta(t, 2, res.Objective(), 1e-9)
	assert.InDeltaSlice(t, []float64{2}, res.Solution(), 1e-9)
	assert.False(t, NeedsCut(res.Final))
	assert.Contains(t, res.Final.ColumnLabels(), "g1")
}

func TestCutTableShape(t *testing.T) {
	lp := solveLP(t, halfModel())
	cut, err := GenerateGomoryCut(lp, SelectCuttingRow(lp))
	require.NoError(t, err)
	cut.Label = "g1"

	next, err := AddConstraintToTable(lp, cut)
	require.NoError(t, err)
	rows, cols := lp.Dims()
	nrows, ncols := next.Dims()
	assert.Equal(t, rows+1, nrows)
	assert.Equal(t, cols+1, ncols)
	assert.InDelta(t, -0.5, next.RHS(nrows-1), 1e-12)
	assert.Equal(t, "g1", next.BasicVariables()[nrows-2])
	for i := range rows {
		for j := range cols - 1 {
			assert.Equal(t, lp.At(i, j), next.At(i, j))
		}
	}
}

func TestMatchesBranchAndBound(t *testing.T) {
	m := model.New("ip", model.Maximize)
	m.AddIntegerVariable("x1", 5)
	m.AddIntegerVariable("x2", 8)
	m.AddConstraint("", []float64{1, 1}, model.LessEqual, 6)
	m.AddConstraint("", []float64{5, 9}, model.LessEqual, 45)
	lp := solveLP(t, m)

	cuts, err := New().Solve(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, tableau.Optimal, cuts.Status)
	assert.NotEmpty(t, cuts.Cuts)
	for i, v := range cuts.Solution() {
		assert.True(t, tableau.IsInteger(v), "x%d = %g", i+1, v)
	}

	search, err := bnb.New().Solve(context.Background(), lp)
	require.NoError(t, err)
	assert.InDelta(t, search.Objective(), cuts.Objective(), 1e-7)
	assert.InDelta(t, 40, cuts.Objective(), 1e-7)
}

func TestHistoryIDs(t *testing.T) {
	res, err := New().Solve(context.Background(), solveLP(t, halfModel()))
	require.NoError(t, err)

	var ids []string
	for _, tab := range res.History {
		ids = append(ids, tab.ID())
	}
	assert.Contains(t, ids, "t-cut-1")
	assert.Equal(t, res.Final, res.History[len(res.History)-1])
}

func TestIntegralInputNeedsNoCut(t *testing.T) {
	m := model.New("whole", model.Maximize)
	m.AddIntegerVariable("x1", 1)
	m.AddConstraint("", []float64{1}, model.LessEqual, 3)

	res, err := New().Solve(context.Background(), solveLP(t, m))
	require.NoError(t, err)
	assert.Empty(t, res.Cuts)
	assert.InDelta(t, 3, res.Objective(), 1e-9)
}

func TestPreconditions(t *testing.T) {
	m := model.New("mixed", model.Maximize)
	m.AddIntegerVariable("x1", 1)
	m.AddVariable("y", 1)
	m.AddConstraint("", []float64{1, 1}, model.LessEqual, 2.5)
	_, err := New().Solve(context.Background(), solveLP(t, m))
	assert.ErrorIs(t, err, ErrNotPureInteger)

	lp := solveLP(t, halfModel())
	_, err = GenerateGomoryCut(lp, 0)
	assert.ErrorIs(t, err, tableau.ErrOutOfRange)

	whole := model.New("whole", model.Maximize)
	whole.AddIntegerVariable("x1", 1)
	whole.AddConstraint("", []float64{1}, model.LessEqual, 3)
	_, err = GenerateGomoryCut(solveLP(t, whole), 1)
	assert.ErrorIs(t, err, ErrNoFractionalRow)
}

func TestCutLimit(t *testing.T) {
	m := model.New("ip", model.Maximize)
	m.AddIntegerVariable("x1", 5)
	m.AddIntegerVariable("x2", 8)
	m.AddConstraint("", []float64{1, 1}, model.LessEqual, 6)
	m.AddConstraint("", []float64{5, 9}, model.LessEqual, 45)

	raw, err := tableau.FromModel(m)
	require.NoError(t, err)
	res, err := New(WithMaxCuts(1)).Solve(context.Background(), raw)
	if err != nil {
		assert.ErrorIs(t, err, ErrCutLimit)
		assert.Len(t, res.Cuts, 1)
		return
	}
	assert.Len(t, res.Cuts, 1, "one cut reached integrality")
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Solve(ctx, solveLP(t, halfModel()))
	assert.ErrorIs(t, err, context.Canceled)
}
