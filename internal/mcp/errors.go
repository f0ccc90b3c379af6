package mcp

import (
	"errors"
	"fmt"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/domain/run"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// mapError maps domain errors to MCP error codes. The message carries the
// wrapped detail so callers see which field or person was at fault.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, groupconfig.ErrConfigNotFound):
		return &APIError{Code: "CONFIG_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the config or activity id"}
	case errors.Is(err, groupconfig.ErrDuplicateConfig):
		return &APIError{Code: "DUPLICATE_CONFIG", Message: err.Error(), RecoveryHint: "Use update_config on the existing config"}
	case errors.Is(err, run.ErrRunNotFound):
		return &APIError{Code: "RUN_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the run id"}
	case errors.Is(err, run.ErrProposalNotFound):
		return &APIError{Code: "PROPOSAL_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the proposal id"}
	case errors.Is(err, run.ErrStaleVersion):
		return &APIError{Code: "VERSION_CONFLICT", Message: err.Error(), RecoveryHint: "Refetch the run and retry with its current version"}
	case errors.Is(err, run.ErrAlreadyConfirmed):
		return &APIError{Code: "ALREADY_CONFIRMED", Message: err.Error(), RecoveryHint: "Generate a new run instead"}
	case errors.Is(err, run.ErrRunConfirmed):
		return &APIError{Code: "RUN_CONFIRMED", Message: err.Error(), RecoveryHint: "Confirmed runs are immutable, generate a new run"}
	case errors.Is(err, run.ErrMissingCriteria):
		return &APIError{Code: "VALIDATION", Message: err.Error(), RecoveryHint: "Pass criteria or set a config default"}
	case errors.Is(err, run.ErrDuplicateMembers),
		errors.Is(err, run.ErrUnknownMembers),
		errors.Is(err, run.ErrInvalidCoverage),
		errors.Is(err, run.ErrInvalidInput),
		errors.Is(err, groupconfig.ErrInvalidInput):
		return &APIError{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, grouping.ErrInvalidCriteria):
		return &APIError{Code: "VALIDATION", Message: err.Error(), RecoveryHint: "Fix the criteria shape and retry"}
	case errors.Is(err, grouping.ErrTooFewEntries),
		errors.Is(err, grouping.ErrTooManyEntries):
		return &APIError{Code: "VALIDATION", Message: err.Error()}
	default:
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
}
