package feature

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRegion means a point set produced an empty or inverted box
	ErrInvalidRegion = errors.New("invalid region")
	// ErrOutOfBounds means a paste or crop rectangle leaves the image
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrInvalidRate means a negative or non-finite brightening rate
	ErrInvalidRate = errors.New("invalid brightening rate")
	// ErrInvalidSize means a non-positive resize target
	ErrInvalidSize = errors.New("invalid target size")
	// ErrUnknownFeature means a name outside the fixed feature set
	ErrUnknownFeature = errors.New("unknown feature")
)

// RegionError reports which feature failed and during which operation
type RegionError struct {
	Feature Name
	Op      string
	Err     error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Feature, e.Op, e.Err)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}

func regionError(name Name, op string, err error) error {
	return &RegionError{Feature: name, Op: op, Err: err}
}
