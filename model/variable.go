package model

import "fmt"

// VariableType is the integrality class of a variable.
type VariableType int

const (
	Continuous VariableType = iota
	Integer
	Binary
)

func (t VariableType) String() string {
	switch t {
	case Integer:
		return "int"
	case Binary:
		return "bin"
	default:
		return "cont"
	}
}

// Variable is a decision variable of a model.
type Variable struct {
	Index       int
	Name        string
	Coefficient float64
	Type        VariableType
	Value       float64
	LowerBound  float64
	UpperBound  float64
}

// Clone returns a copy of the variable.
func (v *Variable) Clone() *Variable {
	out := *v
	return &out
}

func (v *Variable) String() string {
	return fmt.Sprintf("%s (%s): Coefficient=%.3f, Value=%.3f", v.Name, v.Type, v.Coefficient, v.Value)
}

// Constraint is a single linear relation over all variables of a model.
type Constraint struct {
	Index        int
	Name         string
	Coefficients []float64
	Operator     Operator
	RHS          float64
}

// Clone returns a deep copy of the constraint.
func (c *Constraint) Clone() *Constraint {
	out := *c
	out.Coefficients = append([]float64(nil), c.Coefficients...)
	return &out
}

// Coefficient returns the coefficient of variable i, 0 when i is out of range.
func (c *Constraint) Coefficient(i int) float64 {
	if i < 0 || i >= len(c.Coefficients) {
		return 0
	}
	return c.Coefficients[i]
}

// SetCoefficient sets the coefficient of variable i, growing the vector with
// zeroes if needed.
func (c *Constraint) SetCoefficient(i int, value float64) {
	if i < 0 {
		return
	}
	for len(c.Coefficients) <= i {
		c.Coefficients = append(c.Coefficients, 0)
	}
	c.Coefficients[i] = value
}

func (c *Constraint) String() string {
	s := ""
	for i, a := range c.Coefficients {
		switch {
		case i == 0:
			s = fmt.Sprintf("%gx%d", a, i+1)
		case a < 0:
			s += fmt.Sprintf(" - %gx%d", -a, i+1)
		default:
			s += fmt.Sprintf(" + %gx%d", a, i+1)
		}
	}
	return fmt.Sprintf("%s: %s %s %g", c.Name, s, c.Operator, c.RHS)
}
