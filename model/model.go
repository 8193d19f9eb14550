// Package model holds the human-authored description of a linear or integer
// program: ordered variables, ordered constraints and the optimization
// direction. It is what an external reader produces and what the tableau
// builder consumes.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when a coefficient vector does not
	// match the number of variables of the model.
	ErrDimensionMismatch = errors.New("model: mismatch number of variables")

	// ErrOutOfRange is returned for a variable or constraint index that does
	// not exist.
	ErrOutOfRange = errors.New("model: index out of range")

	// ErrEmptyModel is returned when a model without variables is validated.
	ErrEmptyModel = errors.New("model: no variables")

	// ErrInvalidValue is returned for NaN coefficients or right-hand sides, or
	// for inconsistent bounds.
	ErrInvalidValue = errors.New("model: invalid value")
)

// Direction is the optimization sense of a model.
type Direction int

const (
	Maximize Direction = iota
	Minimize
)

func (d Direction) String() string {
	if d == Minimize {
		return "min"
	}
	return "max"
}

// Operator is the relation of a constraint.
type Operator int

const (
	LessEqual Operator = iota
	GreaterEqual
	Equal
)

func (o Operator) String() string {
	switch o {
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	default:
		return "<="
	}
}

// Flip returns the relation obtained when both sides are multiplied by -1.
func (o Operator) Flip() Operator {
	switch o {
	case LessEqual:
		return GreaterEqual
	case GreaterEqual:
		return LessEqual
	default:
		return Equal
	}
}

// Model is a linear programming model.
type Model struct {
	Name         string
	Direction    Direction
	Variables    []*Variable
	Constraints  []*Constraint
	OptimalValue float64
	Solved       bool
	Status       Status
}

// New returns an empty model with the given name and direction.
func New(name string, dir Direction) *Model {
	if name == "" {
		name = "Linear Programming Model"
	}
	return &Model{
		Name:      name,
		Direction: dir,
		Status:    StatusNotSolved,
	}
}

// AddVariable adds a non-negative continuous variable with the given
// objective coefficient. Empty names are replaced by x<index+1>.
func (m *Model) AddVariable(name string, coefficient float64) *Variable {
	return m.AddDefinedVariable(name, Continuous, coefficient, 0, math.Inf(1))
}

// AddIntegerVariable adds a non-negative integer variable.
func (m *Model) AddIntegerVariable(name string, coefficient float64) *Variable {
	return m.AddDefinedVariable(name, Integer, coefficient, 0, math.Inf(1))
}

// AddBinaryVariable adds a 0/1 variable.
func (m *Model) AddBinaryVariable(name string, coefficient float64) *Variable {
	return m.AddDefinedVariable(name, Binary, coefficient, 0, 1)
}

// AddDefinedVariable adds a variable with all of its attributes. If varType
// is Binary, the bounds are ignored.
//
// Constraints added before the variable get a zero coefficient for it.
func (m *Model) AddDefinedVariable(name string, varType VariableType, coefficient, lowerBound, upperBound float64) *Variable {
	index := len(m.Variables)
	if name == "" {
		name = fmt.Sprintf("x%d", index+1)
	}
	if varType == Binary {
		lowerBound, upperBound = 0, 1
	}
	v := &Variable{
		Index:       index,
		Name:        name,
		Coefficient: coefficient,
		Type:        varType,
		LowerBound:  lowerBound,
		UpperBound:  upperBound,
	}
	m.Variables = append(m.Variables, v)
	for _, c := range m.Constraints {
		c.SetCoefficient(index, 0)
	}
	return v
}

// AddConstraint adds a constraint with one coefficient per variable.
// Empty names are replaced by C<index+1>.
func (m *Model) AddConstraint(name string, coefs []float64, op Operator, rhs float64) (*Constraint, error) {
	if len(coefs) != len(m.Variables) {
		return nil, fmt.Errorf("%w: %d coefficients for %d variables", ErrDimensionMismatch, len(coefs), len(m.Variables))
	}
	index := len(m.Constraints)
	if name == "" {
		name = fmt.Sprintf("C%d", index+1)
	}
	c := &Constraint{
		Index:        index,
		Name:         name,
		Coefficients: append([]float64(nil), coefs...),
		Operator:     op,
		RHS:          rhs,
	}
	m.Constraints = append(m.Constraints, c)
	return c, nil
}

// SetObjective replaces every objective coefficient at once.
func (m *Model) SetObjective(coefs []float64) error {
	if len(coefs) != len(m.Variables) {
		return fmt.Errorf("%w: %d coefficients for %d variables", ErrDimensionMismatch, len(coefs), len(m.Variables))
	}
	for i, v := range m.Variables {
		v.Coefficient = coefs[i]
	}
	return nil
}

// Variable returns the variable at index i.
func (m *Model) Variable(i int) (*Variable, error) {
	if i < 0 || i >= len(m.Variables) {
		return nil, fmt.Errorf("%w: variable %d", ErrOutOfRange, i)
	}
	return m.Variables[i], nil
}

// Constraint returns the constraint at index i.
func (m *Model) Constraint(i int) (*Constraint, error) {
	if i < 0 || i >= len(m.Constraints) {
		return nil, fmt.Errorf("%w: constraint %d", ErrOutOfRange, i)
	}
	return m.Constraints[i], nil
}

func (m *Model) VariableCount() int   { return len(m.Variables) }
func (m *Model) ConstraintCount() int { return len(m.Constraints) }

// IsInteger reports whether any variable is integer or binary.
func (m *Model) IsInteger() bool {
	for _, v := range m.Variables {
		if v.Type != Continuous {
			return true
		}
	}
	return false
}

// IsPureInteger reports whether every variable is integer or binary.
func (m *Model) IsPureInteger() bool {
	if len(m.Variables) == 0 {
		return false
	}
	for _, v := range m.Variables {
		if v.Type == Continuous {
			return false
		}
	}
	return true
}

// Objective returns the objective coefficients in variable order.
func (m *Model) Objective() []float64 {
	c := make([]float64, len(m.Variables))
	for i, v := range m.Variables {
		c[i] = v.Coefficient
	}
	return c
}

// Validate checks the model for values the solvers cannot work with.
func (m *Model) Validate() error {
	if len(m.Variables) == 0 {
		return ErrEmptyModel
	}
	for _, v := range m.Variables {
		if math.IsNaN(v.Coefficient) || math.IsInf(v.Coefficient, 0) {
			return fmt.Errorf("%w: objective coefficient of %s", ErrInvalidValue, v.Name)
		}
		if math.IsNaN(v.LowerBound) || math.IsNaN(v.UpperBound) || v.LowerBound > v.UpperBound {
			return fmt.Errorf("%w: bounds of %s", ErrInvalidValue, v.Name)
		}
	}
	for _, c := range m.Constraints {
		if len(c.Coefficients) != len(m.Variables) {
			return fmt.Errorf("%w: constraint %s", ErrDimensionMismatch, c.Name)
		}
		for _, a := range c.Coefficients {
			if math.IsNaN(a) || math.IsInf(a, 0) {
				return fmt.Errorf("%w: coefficient in %s", ErrInvalidValue, c.Name)
			}
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("%w: right-hand side of %s", ErrInvalidValue, c.Name)
		}
	}
	return nil
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	out := *m
	out.Variables = make([]*Variable, len(m.Variables))
	for i, v := range m.Variables {
		out.Variables[i] = v.Clone()
	}
	out.Constraints = make([]*Constraint, len(m.Constraints))
	for i, c := range m.Constraints {
		out.Constraints[i] = c.Clone()
	}
	return &out
}

// Reset returns the model to the unsolved state.
func (m *Model) Reset() {
	m.Solved = false
	m.Status = StatusNotSolved
	m.OptimalValue = 0
	for _, v := range m.Variables {
		v.Value = 0
	}
}

// Apply copies a result back onto the model.
func (m *Model) Apply(res *Result) {
	m.Solved = true
	m.Status = res.Status
	m.OptimalValue = res.Objective
	for i, v := range m.Variables {
		if i < len(res.X) {
			v.Value = res.X[i]
		}
	}
}

func (m *Model) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s z =", m.Name, m.Direction)
	for i, v := range m.Variables {
		writeTerm(&sb, i == 0, v.Coefficient, v.Name)
	}
	fmt.Fprintf(&sb, " (%d variables, %d constraints)", len(m.Variables), len(m.Constraints))
	return sb.String()
}

func writeTerm(sb *strings.Builder, first bool, coef float64, name string) {
	switch {
	case first && coef < 0:
		fmt.Fprintf(sb, " -%g %s", -coef, name)
	case first:
		fmt.Fprintf(sb, " %g %s", coef, name)
	case coef < 0:
		fmt.Fprintf(sb, " - %g %s", -coef, name)
	default:
		fmt.Fprintf(sb, " + %g %s", coef, name)
	}
}
