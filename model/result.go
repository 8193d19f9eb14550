package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a solve.
type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusError:
		return "error"
	default:
		return "not solved"
	}
}

// Result is the read-only outcome of one solve invocation.
type Result struct {
	Status      Status
	Objective   float64
	X           []float64
	Elapsed     time.Duration
	Algorithm   string
	Iterations  int
	Diagnostics map[string]string
}

// Successful reports whether the solve reached an optimum.
func (r *Result) Successful() bool { return r.Status == StatusOptimal }

// Summary returns a one-line description of the result.
func (r *Result) Summary() string {
	if r.Status != StatusOptimal {
		return fmt.Sprintf("%s: %s after %d iterations (%s)", r.Algorithm, r.Status, r.Iterations, r.Elapsed)
	}
	xs := make([]string, len(r.X))
	for i, x := range r.X {
		xs[i] = fmt.Sprintf("%.3f", x)
	}
	return fmt.Sprintf("%s: %s z=%.3f x=[%s] after %d iterations (%s)",
		r.Algorithm, r.Status, r.Objective, strings.Join(xs, " "), r.Iterations, r.Elapsed)
}
