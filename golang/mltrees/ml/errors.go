package ml

import (
	"errors"
	"fmt"
)

var (
	//ErrInvalidArgument reports malformed hyperparameters, bad split
	//settings, empty subsets or mismatched dimensions.
	ErrInvalidArgument = errors.New("invalid argument")

	//ErrNotTrained is returned by predictions and result getters called
	//before a successful Train.
	ErrNotTrained = errors.New("model is not trained")

	//ErrUnsupported is returned when an option is declared but has no
	//implementation (surrogate splits, online updates).
	ErrUnsupported = errors.New("unsupported")
)

//DimensionError is returned when the size of an input does not match the
//size implied by the rest of the arguments.
type DimensionError struct {
	What     string
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", e.What, e.Expected, e.Actual)
}

//Unwrap makes DimensionError match ErrInvalidArgument with errors.Is.
func (e *DimensionError) Unwrap() error {
	return ErrInvalidArgument
}

//InvalidArgf formats an error wrapping ErrInvalidArgument.
func InvalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

//Unsupportedf formats an error wrapping ErrUnsupported.
func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}
