package grouping

import "errors"

var (
	// ErrInvalidCriteria indicates a criteria shape that fails validation.
	ErrInvalidCriteria = errors.New("invalid grouping criteria")
	// ErrTooFewEntries indicates fewer than the algorithm's minimum usable entries.
	ErrTooFewEntries = errors.New("too few usable entries")
	// ErrTooManyEntries indicates the entry count exceeds the mode's ceiling.
	ErrTooManyEntries = errors.New("too many entries for grouping mode")
)
