package groupconfig

import "errors"

var (
	// ErrConfigNotFound indicates no config exists for the activity or id.
	ErrConfigNotFound = errors.New("grouping config not found")
	// ErrDuplicateConfig indicates the activity already has a config.
	ErrDuplicateConfig = errors.New("activity already has a grouping config")
	// ErrInvalidInput indicates invalid input for config operations.
	ErrInvalidInput = errors.New("invalid config input")
)
