package run

import "context"

// Tx is the transaction handle the orchestrator mutates through. Every method
// joins the same atomic transaction; any error rolls the whole step back.
type Tx interface {
	InsertRun(ctx context.Context, r *Run) error
	InsertEntries(ctx context.Context, runID string, entries []Entry) error
	InsertProposals(ctx context.Context, runID string, proposals []Proposal) error
	GetRun(ctx context.Context, orgID, runID string) (*Run, error)
	ListEntries(ctx context.Context, runID string) ([]Entry, error)
	ListProposals(ctx context.Context, runID string) ([]Proposal, error)
	// UpdateRunStatus applies the run's status/version only when the stored
	// version equals expectedVersion; otherwise repository.ErrConflict.
	UpdateRunStatus(ctx context.Context, r *Run, expectedVersion int64) error
	UpdateProposalStatus(ctx context.Context, p *Proposal) error
	InsertHistory(ctx context.Context, pairs []HistoryPair) error
}

// Repository persists runs, proposals and co-grouping history.
type Repository interface {
	// InTx runs fn inside one atomic transaction, committing only when fn
	// returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetRun(ctx context.Context, orgID, runID string) (*Run, error)
	ListEntries(ctx context.Context, runID string) ([]Entry, error)
	ListProposals(ctx context.Context, runID string) ([]Proposal, error)
	GetProposal(ctx context.Context, orgID, proposalID string) (*Proposal, error)
	// UpdateProposalMembers sets the override under the optimistic lock. It
	// fails with repository.ErrConflict when the version is stale or the
	// owning run is no longer generated.
	UpdateProposalMembers(ctx context.Context, orgID, proposalID string, members []string, expectedVersion int64) (*Proposal, error)

	LatestBySession(ctx context.Context, orgID, sessionID string) (*Run, error)
	LatestByActivity(ctx context.Context, orgID, activityID string) (*Run, error)
	ListByActivity(ctx context.Context, orgID string, opts ListRunsOptions) ([]Run, error)
	// ConfirmedPairs returns the co-grouping history of the activity's most
	// recent confirmed runs, newest first, bounded by lookback runs.
	ConfirmedPairs(ctx context.Context, orgID, activityID string, lookback int) ([]HistoryPair, error)
}
