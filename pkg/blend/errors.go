package blend

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when the image and mask grids differ in size.
	ErrDimensionMismatch = errors.New("blend: image and mask dimensions differ")
	// ErrInvalidParameter is returned for out-of-range or malformed arguments.
	ErrInvalidParameter = errors.New("blend: invalid parameter")
	// ErrNoiseReductionUnimplemented is reported by PassthroughReducer.
	ErrNoiseReductionUnimplemented = errors.New("blend: noise reduction is not implemented")
)

// DimensionMismatchError carries both grid sizes.
type DimensionMismatchError struct {
	ImageWidth, ImageHeight int
	MaskWidth, MaskHeight   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("blend: image is %dx%d but mask is %dx%d",
		e.ImageWidth, e.ImageHeight, e.MaskWidth, e.MaskHeight)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// InvalidParameterError names the offending parameter.
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("blend: invalid %s %v: %s", e.Name, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }
