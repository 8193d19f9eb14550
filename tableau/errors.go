package tableau

import "errors"

var (
	// ErrInvalidPivot is returned when the pivot element is zero (within
	// Epsilon) or its row or column is out of bounds. The solve must stop.
	ErrInvalidPivot = errors.New("tableau: invalid pivot")

	// ErrOutOfRange is returned by accessors for a row or column that does
	// not exist.
	ErrOutOfRange = errors.New("tableau: index out of range")

	// ErrDimensionMismatch is returned when a vector does not match the
	// tableau shape.
	ErrDimensionMismatch = errors.New("tableau: dimension mismatch")

	// ErrStage is returned when a transformation is applied at the wrong
	// point of the lifecycle, e.g. Canonical on a canonical tableau.
	ErrStage = errors.New("tableau: wrong lifecycle stage")

	// ErrNotCanonical is returned when a basic column is not a unit column.
	ErrNotCanonical = errors.New("tableau: basis is not an identity")

	// ErrSingularBasis is returned when the columns of a basis cannot be
	// inverted.
	ErrSingularBasis = errors.New("tableau: singular basis")

	// ErrUnsupported is returned for model features the canonical builder
	// cannot express, such as integer variables with negative lower bounds.
	ErrUnsupported = errors.New("tableau: unsupported model")
)
