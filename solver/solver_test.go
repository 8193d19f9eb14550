package solver

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"q.log/lpsolver/bnb"
	"q.log/lpsolver/model"
)

func productMix() *model.Model {
	m := model.New("product mix", model.Maximize)
	m.AddVariable("x1", 3)
	m.AddVariable("x2", 5)
	m.AddConstraint("", []float64{1, 0}, model.LessEqual, 4)
	m.AddConstraint("", []float64{0, 2}, model.LessEqual, 12)
	m.AddConstraint("", []float64{3, 2}, model.LessEqual, 18)
	return m
}

func integerModel() *model.Model {
	m := model.New("ip", model.Maximize)
	m.AddIntegerVariable("x1", 5)
	m.AddIntegerVariable("x2", 8)
	m.AddConstraint("", []float64{1, 1}, model.LessEqual, 6)
	m.AddConstraint("", []float64{5, 9}, model.LessEqual, 45)
	return m
}

func knapsackModel() *model.Model {
	m := model.New("knapsack", model.Maximize)
	m.AddBinaryVariable("x1", 10)
	m.AddBinaryVariable("x2", 8)
	m.AddBinaryVariable("x3", 7)
	m.AddConstraint("", []float64{6, 5, 4}, model.LessEqual, 10)
	return m
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestSolveLP(t *testing.T) {
	for _, lp := range []LPMethod{Primal, Revised} {
		t.Run(lp.String(), func(t *testing.T) {
			run, err := Solve(context.Background(), productMix(), WithLP(lp))
			require.NoError(t, err)
			res := run.Result
			assert.Equal(t, model.StatusOptimal, res.Status)
			assert.InDelta(t, 36, res.Objective, 1e-9)
			if diff := cmp.Diff([]float64{2, 6}, res.X, approx); diff != "" {
				t.Errorf("X mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, lp.String()+" simplex", res.Algorithm)
			assert.Positive(t, res.Iterations)
			assert.NotEmpty(t, run.Tableaux)
			assert.Nil(t, run.Tree)
			if lp == Revised {
				assert.NotEmpty(t, run.PriceOuts)
				assert.Equal(t, []string{"x1", "x2", "s1", "s2", "s3", "RHS"}, run.PriceLabels)
			} else {
				assert.Empty(t, run.PriceOuts)
			}
		})
	}
}

func TestSolveIP(t *testing.T) {
	for _, ip := range []IPMethod{BranchAndBound, CuttingPlane} {
		t.Run(ip.String(), func(t *testing.T) {
			run, err := Solve(context.Background(), integerModel(), WithIP(ip), WithLP(Revised))
			require.NoError(t, err)
			res := run.Result
			assert.Equal(t, model.StatusOptimal, res.Status)
			assert.InDelta(t, 40, res.Objective, 1e-9)
			if diff := cmp.Diff([]float64{0, 5}, res.X, approx); diff != "" {
				t.Errorf("X mismatch (-want +got):\n%s", diff)
			}
			switch ip {
			case BranchAndBound:
				require.NotNil(t, run.Tree)
				assert.Contains(t, res.Diagnostics, "nodes")
			case CuttingPlane:
				assert.NotEmpty(t, run.Cuts)
				assert.Contains(t, res.Diagnostics, "cuts")
			}
		})
	}
}

func TestSolveRelaxation(t *testing.T) {
	run, err := Solve(context.Background(), integerModel())
	require.NoError(t, err)
	assert.InDelta(t, 41.25, run.Result.Objective, 1e-9)
	assert.Equal(t, "true", run.Result.Diagnostics["relaxation"])
}

func TestSolveKnapsack(t *testing.T) {
	run, err := Solve(context.Background(), knapsackModel(), WithIP(Knapsack))
	require.NoError(t, err)
	res := run.Result
	assert.Equal(t, "knapsack branch and bound", res.Algorithm)
	assert.InDelta(t, 17, res.Objective, 1e-9)
	assert.Equal(t, []float64{1, 0, 1}, res.X)
	assert.Equal(t, "1", res.Diagnostics["nodes"])
}

func TestSolveStatuses(t *testing.T) {
	infeasible := model.New("infeasible", model.Maximize)
	infeasible.AddVariable("x1", 1)
	infeasible.AddConstraint("", []float64{1}, model.LessEqual, 1)
	infeasible.AddConstraint("", []float64{1}, model.GreaterEqual, 2)

	unbounded := model.New("unbounded", model.Maximize)
	unbounded.AddVariable("x1", 1)
	unbounded.AddVariable("x2", 1)
	unbounded.AddConstraint("", []float64{1, -1}, model.LessEqual, 1)

	for _, tc := range []struct {
		m    *model.Model
		want model.Status
	}{
		{infeasible, model.StatusInfeasible},
		{unbounded, model.StatusUnbounded},
	} {
		for _, lp := range []LPMethod{Primal, Revised} {
			run, err := Solve(context.Background(), tc.m, WithLP(lp))
			require.NoError(t, err)
			assert.Equal(t, tc.want, run.Result.Status, "%s with %s", tc.m.Name, lp)
			assert.Nil(t, run.Result.X)
		}
	}
}

func TestSolveErrors(t *testing.T) {
	run, err := Solve(context.Background(), model.New("", model.Maximize))
	assert.ErrorIs(t, err, model.ErrEmptyModel)
	assert.Equal(t, model.StatusError, run.Result.Status)
	assert.Equal(t, err.Error(), run.Result.Diagnostics["error"])

	_, err = Solve(context.Background(), productMix(), WithIP(Knapsack))
	assert.ErrorIs(t, err, bnb.ErrNotKnapsack)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err = Solve(ctx, integerModel(), WithIP(BranchAndBound))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StatusError, run.Result.Status)
}

func TestParse(t *testing.T) {
	lp, err := ParseLPMethod("Revised")
	require.NoError(t, err)
	assert.Equal(t, Revised, lp)
	_, err = ParseLPMethod("dual")
	assert.Error(t, err)

	for _, ip := range []IPMethod{None, BranchAndBound, Knapsack, CuttingPlane} {
		got, err := ParseIPMethod(ip.String())
		require.NoError(t, err)
		assert.Equal(t, ip, got)
	}
	_, err = ParseIPMethod("heuristic")
	assert.Error(t, err)
}
