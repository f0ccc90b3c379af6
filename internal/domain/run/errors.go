package run

import "errors"

var (
	// ErrRunNotFound indicates the run doesn't exist in this organization.
	ErrRunNotFound = errors.New("run not found")
	// ErrProposalNotFound indicates the proposal doesn't exist in this organization.
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrStaleVersion indicates the caller's expected version no longer matches.
	ErrStaleVersion = errors.New("version mismatch, refetch and retry")
	// ErrAlreadyConfirmed indicates the run was confirmed before this call.
	ErrAlreadyConfirmed = errors.New("run already confirmed")
	// ErrRunConfirmed indicates an edit against a confirmed, terminal run.
	ErrRunConfirmed = errors.New("run is confirmed and can no longer be edited")
	// ErrMissingCriteria indicates neither an override nor a config default exists.
	ErrMissingCriteria = errors.New("no grouping criteria supplied")
	// ErrDuplicateMembers indicates repeated person ids in a proposal edit.
	ErrDuplicateMembers = errors.New("duplicate person ids in member list")
	// ErrUnknownMembers indicates person ids that are not part of the run.
	ErrUnknownMembers = errors.New("person ids not present in run")
	// ErrInvalidCoverage indicates a person in zero or in multiple groups at confirm.
	ErrInvalidCoverage = errors.New("every person must appear in exactly one group")
	// ErrInvalidInput indicates invalid input for run operations.
	ErrInvalidInput = errors.New("invalid run input")
)
