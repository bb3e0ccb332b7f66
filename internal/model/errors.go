package model

import "errors"

// Failure taxonomy shared across the pipeline. Wrap these with fmt.Errorf
// and %w; callers classify with errors.Is.
var (
	// ErrConfig marks an invalid filter or service configuration.
	ErrConfig = errors.New("invalid configuration")

	// ErrData marks malformed or out-of-order input data.
	ErrData = errors.New("bad input data")

	// ErrNotFound marks a lookup of a run or symbol that does not exist.
	ErrNotFound = errors.New("not found")
)
