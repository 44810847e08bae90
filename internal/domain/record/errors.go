package record

import "errors"

// Sentinel kinds for record parsing errors.
var (
	ErrInvalidJSON          = errors.New("invalid record json")
	ErrMissingControlNumber = errors.New("record has no control_number")
)
