// Package instance reads models from MPS files through GLPK.
package instance

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	log "github.com/golang/glog"
	"github.com/lukpank/go-glpk/glpk"

	"q.log/lpsolver/model"
)

// ErrRead is returned when GLPK cannot read a file.
var ErrRead = errors.New("instance: cannot read model")

// Reader reads a mps file to construct a model
type Reader struct {
	filename string
}

func NewReader(filename string) *Reader {
	return &Reader{
		filename: filename,
	}
}

// relation is one constraint derived from a row's bounds.
type relation struct {
	op  model.Operator
	rhs float64
}

// unbounded maps GLPK's -DBL_MAX and +DBL_MAX to infinities.
func unbounded(v float64) float64 {
	switch v {
	case -math.MaxFloat64:
		return math.Inf(-1)
	case math.MaxFloat64:
		return math.Inf(1)
	}
	return v
}

// rowRelations returns the constraints for a row with bounds lb <= row <= ub.
// A free row gives none and a range row gives two.
func rowRelations(lb, ub float64) []relation {
	lb, ub = unbounded(lb), unbounded(ub)
	switch {
	case math.IsInf(lb, -1) && math.IsInf(ub, 1):
		return nil
	case math.IsInf(lb, -1):
		return []relation{{model.LessEqual, ub}}
	case math.IsInf(ub, 1):
		return []relation{{model.GreaterEqual, lb}}
	case lb == ub:
		return []relation{{model.Equal, lb}}
	}
	return []relation{{model.GreaterEqual, lb}, {model.LessEqual, ub}}
}

func variableType(kind glpk.VarType) model.VariableType {
	switch kind {
	case glpk.BV:
		return model.Binary
	case glpk.IV:
		return model.Integer
	}
	return model.Continuous
}

// ConstructModelFromFile reads the file into a model. The objective
// direction, column kinds and bounds and row names are taken from the file.
func (r *Reader) ConstructModelFromFile() (*model.Model, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	lp := glpk.New()
	defer lp.Delete()
	if err := lp.ReadMPS(glpk.MPS_FILE, nil, r.filename); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, r.filename, err)
	}

	dir := model.Minimize
	if lp.ObjDir() == glpk.MAX {
		dir = model.Maximize
	}
	m := model.New(lp.ProbName(), dir)
	n := lp.NumCols()
	for c := 1; c <= n; c++ {
		m.AddDefinedVariable(lp.ColName(c), variableType(lp.ColKind(c)), lp.ObjCoef(c),
			unbounded(lp.ColLB(c)), unbounded(lp.ColUB(c)))
	}

	for row := 1; row <= lp.NumRows(); row++ {
		coefs := make([]float64, n)
		idxs, vals := lp.MatRow(row)
		for i, v := range idxs {
			if v == 0 {
				continue
			}
			coefs[v-1] = vals[i]
		}
		rels := rowRelations(lp.RowLB(row), lp.RowUB(row))
		for k, rel := range rels {
			name := lp.RowName(row)
			if len(rels) > 1 {
				name = fmt.Sprintf("%s_%d", name, k+1)
			}
			if _, err := m.AddConstraint(name, coefs, rel.op, rel.rhs); err != nil {
				return nil, fmt.Errorf("instance: row %d: %w", row, err)
			}
		}
	}
	log.V(1).Infof("instance: read %s: %d variables, %d constraints", r.filename, m.VariableCount(), m.ConstraintCount())
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("instance: %s: %w", r.filename, err)
	}
	return m, nil
}
