package dataset

import "errors"

// Sentinel kinds for dataset access errors.
var (
	ErrNotFound    = errors.New("dataset not found")
	ErrInvalidName = errors.New("invalid dataset name")
)
