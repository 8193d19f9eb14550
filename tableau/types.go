package tableau

import "math"

// Epsilon is the single numeric tolerance used for pivots, sign tests,
// ratio ties and integrality checks by every algorithm of this module.
const Epsilon = 1e-9

// Kind tags a tableau column.
type Kind int

const (
	Decision Kind = iota
	Slack
	Surplus
	Artificial
	RHS
)

func (k Kind) String() string {
	switch k {
	case Decision:
		return "decision"
	case Slack:
		return "slack"
	case Surplus:
		return "surplus"
	case Artificial:
		return "artificial"
	default:
		return "rhs"
	}
}

// Restriction is the sign or integrality restriction of a decision variable.
type Restriction int

const (
	NonNegative Restriction = iota
	NonPositive
	Unrestricted
	Integer
	Binary
)

func (r Restriction) String() string {
	switch r {
	case NonPositive:
		return "-"
	case Unrestricted:
		return "urs"
	case Integer:
		return "int"
	case Binary:
		return "bin"
	default:
		return "+"
	}
}

// IsIntegral reports whether the restriction demands integer values.
func (r Restriction) IsIntegral() bool { return r == Integer || r == Binary }

// Status is the solve state carried by a snapshot.
type Status int

const (
	Unsolved Status = iota
	Continue
	Optimal
	Infeasible
	Unbounded
	Error
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case Error:
		return "error"
	default:
		return "unsolved"
	}
}

// Terminal reports whether no further iteration can change the status.
func (s Status) Terminal() bool {
	return s == Optimal || s == Infeasible || s == Unbounded || s == Error
}

// Stage is the lifecycle tag of a snapshot.
type Stage int

const (
	Raw Stage = iota
	Canonical
	Iteration
	Final
)

func (s Stage) String() string {
	switch s {
	case Canonical:
		return "canonical"
	case Iteration:
		return "iteration"
	case Final:
		return "optimal"
	default:
		return "raw"
	}
}

// Column describes one tableau column. Source is the index of the decision
// variable the column contributes to (-1 for auxiliary columns) and Sign is
// the factor of that contribution: non-positive variables are stored negated
// and free variables are split into a +1 and a -1 column.
type Column struct {
	Label  string
	Kind   Kind
	Source int
	Sign   float64
}

// Frac returns the fractional part of v in [0, 1), snapping values within
// Epsilon of an integer to 0.
func Frac(v float64) float64 {
	f := v - math.Floor(v)
	if f < Epsilon || f > 1-Epsilon {
		return 0
	}
	return f
}

// IsInteger reports whether v is within Epsilon of an integer.
func IsInteger(v float64) bool { return Frac(v) == 0 }

func chop(v float64) float64 {
	if math.Abs(v) < Epsilon {
		return 0
	}
	return v
}
