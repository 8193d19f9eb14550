package bnb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"q.log/lpsolver/model"
	"q.log/lpsolver/simplex"
	"q.log/lpsolver/tableau"
)

// max 5x1 + 8x2 s.t. x1 + x2 <= 6, 5x1 + 9x2 <= 45, x integer
func integerModel() *model.Model {
	m := model.New("ip", model.Maximize)
	m.AddIntegerVariable("x1", 5)
	m.AddIntegerVariable("x2", 8)
	m.AddConstraint("", []float64{1, 1}, model.LessEqual, 6)
	m.AddConstraint("", []float64{5, 9}, model.LessEqual, 45)
	return m
}

func relaxation(t *testing.T, m *model.Model) *tableau.Tableau {
	t.Helper()
	raw, err := tableau.FromModel(m)
	require.NoError(t, err)
	res, err := simplex.NewPrimal().Solve(raw)
	require.NoError(t, err)
	return res.Final
}

func TestBranchAndBound(t *testing.T) {
	lp := relaxation(t, integerModel())
	require.InDelta(t, 41.25, lp.ObjectiveValue(), 1e-9)
	assert.False(t, IsIntegerSolution(lp))

	for _, rule := range []BranchingRule{FirstFractional, MostFractional} {
		res, err := New(WithBranchingRule(rule)).Solve(context.Background(), lp)
		require.NoError(t, err)
		assert.Equal(t, tableau.Optimal, res.Status)
		assert.InDelta(t, 40, res.Objective(), 1e-9)
		assert.InDeltaSlice(t, []float64{0, 5}, res.Solution(), 1e-9)
		assert.LessOrEqual(t, res.Objective(), lp.ObjectiveValue())
		assert.True(t, IsIntegerSolution(res.Best.Tableau))
		assert.Equal(t, ReasonIncumbent, res.Best.FathomReason)
		assert.Equal(t, res.Tree.Len(), res.Explored, "every created node is evaluated")
	}
}

func TestBranchAndBoundFromRaw(t *testing.T) {
	raw, err := tableau.FromModel(integerModel())
	require.NoError(t, err)
	res, err := New().Solve(context.Background(), raw)
	require.NoError(t, err)
	assert.InDelta(t, 40, res.Objective(), 1e-9)
}

func TestTreeShape(t *testing.T) {
	res, err := New().Solve(context.Background(), relaxation(t, integerModel()))
	require.NoError(t, err)

	root := res.Tree.Root()
	assert.Equal(t, "1", root.Label)
	assert.Equal(t, -1, root.Parent)
	require.Len(t, root.Children, 2)
	left := res.Tree.Node(root.Children[0])
	right := res.Tree.Node(root.Children[1])
	assert.Equal(t, "1.1", left.Label)
	assert.Equal(t, "1.2", right.Label)
	assert.Equal(t, "t-1.1", left.Tableau.ID())
	assert.Equal(t, "x1 <= 2", left.Constraint)
	assert.Equal(t, "x1 >= 3", right.Constraint)
	assert.Equal(t, 0, left.BranchVar)
	assert.InDelta(t, 2.25, left.BranchValue, 1e-9)
	assert.Equal(t, ReasonBound, right.FathomReason)

	res.Tree.Walk(func(n *Node) {
		if len(n.Children) == 0 {
			assert.True(t, n.Fathomed, "leaf %s", n.Label)
		}
		for _, c := range n.Children {
			assert.Equal(t, n.ID, res.Tree.Node(c).Parent)
		}
	})
	path := res.Tree.Path(res.Best.ID)
	assert.Equal(t, 0, path[0])
	assert.Equal(t, res.Best.ID, path[len(path)-1])
}

func TestBranchAndBoundMinimize(t *testing.T) {
	m := model.New("min", model.Minimize)
	m.AddIntegerVariable("x1", 1)
	m.AddIntegerVariable("x2", 1)
	m.AddConstraint("", []float64{2, 2}, model.GreaterEqual, 3)

	lp := relaxation(t, m)
	require.InDelta(t, 1.5, lp.ObjectiveValue(), 1e-9)
	res, err := New().Solve(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, tableau.Optimal, res.Status)
	assert.InDelta(t, 2, res.Objective(), 1e-9)
	assert.GreaterOrEqual(t, res.Objective(), lp.ObjectiveValue())
}

func TestBranchAndBoundInfeasible(t *testing.T) {
	m := model.New("odd", model.Maximize)
	m.AddIntegerVariable("x1", 1)
	m.AddConstraint("", []float64{2}, model.Equal, 1)

	lp := relaxation(t, m)
	require.Equal(t, tableau.Optimal, lp.Status())
	res, err := New().Solve(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, tableau.Infeasible, res.Status)
	assert.Nil(t, res.Best)
	assert.Equal(t, 3, res.Tree.Len())
	for _, id := range res.Tree.Root().Children {
		assert.Equal(t, ReasonInfeasible, res.Tree.Node(id).FathomReason)
	}
}

func TestBranchAndBoundUnbounded(t *testing.T) {
	m := model.New("open", model.Maximize)
	m.AddIntegerVariable("x1", 1)
	m.AddIntegerVariable("x2", 1)
	m.AddConstraint("", []float64{1, -1}, model.LessEqual, 1)

	raw, err := tableau.FromModel(m)
	require.NoError(t, err)
	res, err := New().Solve(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, tableau.Unbounded, res.Status)
}

func TestBranchAndBoundLimits(t *testing.T) {
	lp := relaxation(t, integerModel())

	res, err := New(WithMaxNodes(1)).Solve(context.Background(), lp)
	assert.ErrorIs(t, err, ErrNodeLimit)
	assert.Equal(t, 1, res.Explored)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Solve(ctx, lp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBranchOnVariable(t *testing.T) {
	lp := relaxation(t, integerModel())

	k, v := SelectBranchingVariable(lp, FirstFractional)
	assert.Equal(t, 0, k)
	assert.InDelta(t, 2.25, v, 1e-9)

	le, ge, err := BranchOnVariable(lp, k, v)
	require.NoError(t, err)
	assert.NoError(t, le.CheckIdentity())
	assert.NoError(t, ge.CheckIdentity())
	assert.True(t, le.HasNegativeRHS())
	assert.True(t, ge.HasNegativeRHS())

	_, _, err = BranchOnVariable(le, k, v)
	assert.ErrorIs(t, err, ErrNotOptimal)
}

func TestShouldFathomIdempotent(t *testing.T) {
	lp := relaxation(t, integerModel())
	n := &Node{Tableau: lp, Status: lp.Status(), Objective: lp.ObjectiveValue()}
	before := lp.Matrix()

	for range 2 {
		fathom, reason := ShouldFathom(n, nil)
		assert.False(t, fathom)
		assert.Empty(t, reason)
		assert.False(t, IsIntegerSolution(lp))
	}
	assert.True(t, mat.Equal(before, lp.Matrix()))

	fathom, reason := ShouldFathom(n, &Node{Objective: 41.25})
	assert.True(t, fathom)
	assert.Equal(t, ReasonBound, reason)
}

func knapsackModel(capacity float64) *model.Model {
	m := model.New("knapsack", model.Maximize)
	m.AddBinaryVariable("x1", 10)
	m.AddBinaryVariable("x2", 8)
	m.AddBinaryVariable("x3", 7)
	m.AddConstraint("capacity", []float64{6, 5, 4}, model.LessEqual, capacity)
	return m
}

func TestKnapsack(t *testing.T) {
	for _, tc := range []struct {
		capacity float64
		value    float64
		x        []float64
		nodes    int
	}{
		{10, 17, []float64{1, 0, 1}, 1},
		{9, 15, []float64{0, 1, 1}, 5},
	} {
		res, err := NewKnapsack().Solve(context.Background(), knapsackModel(tc.capacity))
		require.NoError(t, err)
		assert.Equal(t, tableau.Optimal, res.Status)
		assert.Equal(t, tc.value, res.Objective())
		assert.Equal(t, tc.x, res.Solution())
		assert.Equal(t, tc.nodes, res.Tree.Len())
	}
}

func TestKnapsackTree(t *testing.T) {
	res, err := NewKnapsack().Solve(context.Background(), knapsackModel(9))
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, n := range res.Tree.Nodes() {
		reasons[n.Label] = n.FathomReason
	}
	assert.Equal(t, map[string]string{
		"1":     "",
		"1.1":   "",
		"1.2":   ReasonBound,
		"1.1.1": ReasonOverCapacity,
		"1.1.2": ReasonIncumbent,
	}, reasons)
	assert.Equal(t, "1.1.2", res.Best.Label)
	assert.Equal(t, "x3 = 1", res.Tree.Node(res.Tree.Root().Children[0]).Constraint)
}

func TestKnapsackBound(t *testing.T) {
	p, err := NewKnapsackProblem(knapsackModel(9))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, p.Order)

	root := &Node{Fixed: make([]Decision, 3)}
	assert.InDelta(t, 7+10*5.0/6, p.UpperBound(root), 1e-9)
	assert.Equal(t, 2, p.SelectBranchingItem(root))

	include, exclude := BranchOnItem(root.Fixed, 2)
	assert.Equal(t, []Decision{Undecided, Undecided, Included}, include)
	assert.Equal(t, []Decision{Undecided, Undecided, Excluded}, exclude)
	assert.Equal(t, []Decision{Undecided, Undecided, Undecided}, root.Fixed)

	r := p.Relax([]Decision{Included, Included, Undecided})
	assert.True(t, r.Over)
}

func TestIsKnapsackProblem(t *testing.T) {
	assert.NoError(t, IsKnapsackProblem(knapsackModel(10)))

	m := knapsackModel(10)
	m.Direction = model.Minimize
	assert.ErrorIs(t, IsKnapsackProblem(m), ErrNotKnapsack)

	m = knapsackModel(10)
	m.AddConstraint("", []float64{1, 1, 1}, model.LessEqual, 2)
	assert.ErrorIs(t, IsKnapsackProblem(m), ErrNotKnapsack)

	assert.ErrorIs(t, IsKnapsackProblem(integerModel()), ErrNotKnapsack)

	_, err := NewKnapsack().Solve(context.Background(), integerModel())
	assert.ErrorIs(t, err, ErrNotKnapsack)
}
