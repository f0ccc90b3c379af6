package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/domain/run"
	"github.com/gatherly/matchkit/internal/repository"
)

// querier is satisfied by both *DB and *sql.Tx so the same statements serve
// transactional and standalone calls.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunRepository implements run.Repository for SQLite
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// InTx executes fn inside a single transaction, rolling back on any error.
func (r *RunRepository) InTx(ctx context.Context, fn func(tx run.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&runTx{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, orgID, runID string) (*run.Run, error) {
	return getRun(ctx, r.db, orgID, runID)
}

func (r *RunRepository) ListEntries(ctx context.Context, runID string) ([]run.Entry, error) {
	return listEntries(ctx, r.db, runID)
}

func (r *RunRepository) ListProposals(ctx context.Context, runID string) ([]run.Proposal, error) {
	return listProposals(ctx, r.db, runID)
}

// GetProposal retrieves a proposal, scoped to the organization through its run
func (r *RunRepository) GetProposal(ctx context.Context, orgID, proposalID string) (*run.Proposal, error) {
	query := `
		SELECT p.id, p.run_id, p.group_index, p.group_name, p.member_ids, p.modified_member_ids, p.status, p.version
		FROM proposals p
		JOIN runs r ON r.id = p.run_id
		WHERE p.id = ? AND r.org_id = ?
	`
	return scanProposal(r.db.QueryRowContext(ctx, query, proposalID, orgID))
}

// UpdateProposalMembers applies a membership override under the optimistic
// lock. The subquery also requires the owning run to still be generated, so a
// concurrent confirm surfaces as a conflict rather than a silent edit.
func (r *RunRepository) UpdateProposalMembers(ctx context.Context, orgID, proposalID string, members []string, expectedVersion int64) (*run.Proposal, error) {
	memberJSON, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("failed to encode member ids: %w", err)
	}

	query := `
		UPDATE proposals
		SET modified_member_ids = ?, status = ?, version = version + 1
		WHERE id = ? AND version = ?
		  AND run_id IN (SELECT id FROM runs WHERE org_id = ? AND status = ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		string(memberJSON), run.ProposalModified, proposalID, expectedVersion, orgID, run.StatusGenerated)
	if err != nil {
		return nil, fmt.Errorf("failed to update proposal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing proposal from a stale version or a run that
		// moved on.
		var exists int
		err := r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM proposals p
			JOIN runs r ON r.id = p.run_id
			WHERE p.id = ? AND r.org_id = ?
		`, proposalID, orgID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check proposal existence: %w", err)
		}
		if exists == 0 {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrConflict
	}

	return r.GetProposal(ctx, orgID, proposalID)
}

// LatestBySession returns the newest run for a session
func (r *RunRepository) LatestBySession(ctx context.Context, orgID, sessionID string) (*run.Run, error) {
	query := runSelect + `
		WHERE org_id = ? AND session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return scanRun(r.db.QueryRowContext(ctx, query, orgID, sessionID))
}

// LatestByActivity returns the newest run across the whole activity
func (r *RunRepository) LatestByActivity(ctx context.Context, orgID, activityID string) (*run.Run, error) {
	query := runSelect + `
		WHERE org_id = ? AND activity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return scanRun(r.db.QueryRowContext(ctx, query, orgID, activityID))
}

// ListByActivity returns an activity's runs, newest first
func (r *RunRepository) ListByActivity(ctx context.Context, orgID string, opts run.ListRunsOptions) ([]run.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := runSelect + `
		WHERE org_id = ? AND activity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, orgID, opts.ActivityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []run.Run
	for rows.Next() {
		rn, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rn)
	}
	return runs, rows.Err()
}

// ConfirmedPairs returns the co-grouping pairs of the activity's most recent
// confirmed runs, bounded by lookback runs.
func (r *RunRepository) ConfirmedPairs(ctx context.Context, orgID, activityID string, lookback int) ([]run.HistoryPair, error) {
	query := `
		SELECT h.run_id, h.person_a, h.person_b
		FROM grouping_history h
		JOIN (
			SELECT id FROM runs
			WHERE org_id = ? AND activity_id = ? AND status = ?
			ORDER BY confirmed_at DESC, id DESC
			LIMIT ?
		) recent ON recent.id = h.run_id
	`
	rows, err := r.db.QueryContext(ctx, query, orgID, activityID, run.StatusConfirmed, lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load grouping history: %w", err)
	}
	defer rows.Close()

	var pairs []run.HistoryPair
	for rows.Next() {
		var p run.HistoryPair
		if err := rows.Scan(&p.RunID, &p.PersonA, &p.PersonB); err != nil {
			return nil, fmt.Errorf("failed to scan history pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// runTx implements run.Tx over a live *sql.Tx
type runTx struct {
	q querier
}

func (t *runTx) InsertRun(ctx context.Context, r *run.Run) error {
	criteria, err := grouping.EncodeCriteria(r.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, org_id, config_id, activity_id, session_id, scope, status,
			version, criteria, entry_count, group_count, excluded_count,
			created_at, confirmed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = t.q.ExecContext(ctx, query,
		r.ID,
		r.OrgID,
		r.ConfigID,
		r.ActivityID,
		nullString(r.SessionID),
		r.Scope,
		r.Status,
		r.Version,
		string(criteria),
		r.EntryCount,
		r.GroupCount,
		r.ExcludedCount,
		r.CreatedAt,
		r.ConfirmedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (t *runTx) InsertEntries(ctx context.Context, runID string, entries []run.Entry) error {
	query := `
		INSERT INTO run_entries (run_id, person_id, attributes, excluded)
		VALUES (?, ?, ?, ?)
	`
	for _, e := range entries {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode attributes: %w", err)
		}
		if _, err := t.q.ExecContext(ctx, query, runID, e.PersonID, string(attrs), e.Excluded); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.PersonID, err)
		}
	}
	return nil
}

func (t *runTx) InsertProposals(ctx context.Context, runID string, proposals []run.Proposal) error {
	query := `
		INSERT INTO proposals (id, run_id, group_index, group_name, member_ids, modified_member_ids, status, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, p := range proposals {
		members, err := json.Marshal(p.MemberIDs)
		if err != nil {
			return fmt.Errorf("failed to encode member ids: %w", err)
		}
		var modified any
		if p.ModifiedMemberIDs != nil {
			data, err := json.Marshal(p.ModifiedMemberIDs)
			if err != nil {
				return fmt.Errorf("failed to encode modified member ids: %w", err)
			}
			modified = string(data)
		}
		if _, err := t.q.ExecContext(ctx, query,
			p.ID, runID, p.GroupIndex, p.GroupName, string(members), modified, p.Status, p.Version); err != nil {
			return fmt.Errorf("failed to insert proposal %s: %w", p.ID, err)
		}
	}
	return nil
}

func (t *runTx) GetRun(ctx context.Context, orgID, runID string) (*run.Run, error) {
	return getRun(ctx, t.q, orgID, runID)
}

func (t *runTx) ListEntries(ctx context.Context, runID string) ([]run.Entry, error) {
	return listEntries(ctx, t.q, runID)
}

func (t *runTx) ListProposals(ctx context.Context, runID string) ([]run.Proposal, error) {
	return listProposals(ctx, t.q, runID)
}

// UpdateRunStatus applies the run's new status and version with optimistic
// concurrency control. The confirmed-session unique index maps to
// repository.ErrUniqueViolation.
func (t *runTx) UpdateRunStatus(ctx context.Context, r *run.Run, expectedVersion int64) error {
	query := `
		UPDATE runs
		SET status = ?, version = ?, confirmed_at = ?
		WHERE id = ? AND org_id = ? AND version = ?
	`
	result, err := t.q.ExecContext(ctx, query,
		r.Status, r.Version, r.ConfirmedAt, r.ID, r.OrgID, expectedVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrUniqueViolation
		}
		return fmt.Errorf("failed to update run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		var exists int
		err := t.q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM runs WHERE id = ? AND org_id = ?`, r.ID, r.OrgID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check run existence: %w", err)
		}
		if exists == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

func (t *runTx) UpdateProposalStatus(ctx context.Context, p *run.Proposal) error {
	query := `UPDATE proposals SET status = ?, version = ? WHERE id = ?`
	result, err := t.q.ExecContext(ctx, query, p.Status, p.Version, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *runTx) InsertHistory(ctx context.Context, pairs []run.HistoryPair) error {
	query := `INSERT INTO grouping_history (run_id, person_a, person_b) VALUES (?, ?, ?)`
	for _, p := range pairs {
		if _, err := t.q.ExecContext(ctx, query, p.RunID, p.PersonA, p.PersonB); err != nil {
			return fmt.Errorf("failed to insert history pair: %w", err)
		}
	}
	return nil
}

const runSelect = `
	SELECT id, org_id, config_id, activity_id, session_id, scope, status,
	       version, criteria, entry_count, group_count, excluded_count,
	       created_at, confirmed_at
	FROM runs
`

func getRun(ctx context.Context, q querier, orgID, runID string) (*run.Run, error) {
	query := runSelect + ` WHERE id = ? AND org_id = ?`
	return scanRun(q.QueryRowContext(ctx, query, runID, orgID))
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunFields(s rowScanner) (*run.Run, error) {
	var r run.Run
	var sessionID sql.NullString
	var criteria string
	var confirmedAt sql.NullTime
	err := s.Scan(
		&r.ID,
		&r.OrgID,
		&r.ConfigID,
		&r.ActivityID,
		&sessionID,
		&r.Scope,
		&r.Status,
		&r.Version,
		&criteria,
		&r.EntryCount,
		&r.GroupCount,
		&r.ExcludedCount,
		&r.CreatedAt,
		&confirmedAt,
	)
	if err != nil {
		return nil, err
	}
	r.SessionID = sessionID.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		r.ConfirmedAt = &t
	}
	c, err := grouping.DecodeCriteria([]byte(criteria))
	if err != nil {
		return nil, fmt.Errorf("failed to decode criteria: %w", err)
	}
	r.Criteria = c
	return &r, nil
}

func scanRun(row *sql.Row) (*run.Run, error) {
	r, err := scanRunFields(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

func scanRunRows(rows *sql.Rows) (*run.Run, error) {
	r, err := scanRunFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return r, nil
}

func listEntries(ctx context.Context, q querier, runID string) ([]run.Entry, error) {
	query := `
		SELECT run_id, person_id, attributes, excluded
		FROM run_entries
		WHERE run_id = ?
		ORDER BY person_id
	`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []run.Entry
	for rows.Next() {
		var e run.Entry
		var attrs string
		if err := rows.Scan(&e.RunID, &e.PersonID, &attrs, &e.Excluded); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func listProposals(ctx context.Context, q querier, runID string) ([]run.Proposal, error) {
	query := `
		SELECT id, run_id, group_index, group_name, member_ids, modified_member_ids, status, version
		FROM proposals
		WHERE run_id = ?
		ORDER BY group_index
	`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []run.Proposal
	for rows.Next() {
		p, err := scanProposalFields(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

func scanProposalFields(s rowScanner) (*run.Proposal, error) {
	var p run.Proposal
	var members string
	var modified sql.NullString
	err := s.Scan(
		&p.ID,
		&p.RunID,
		&p.GroupIndex,
		&p.GroupName,
		&members,
		&modified,
		&p.Status,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(members), &p.MemberIDs); err != nil {
		return nil, fmt.Errorf("failed to decode member ids: %w", err)
	}
	if modified.Valid {
		if err := json.Unmarshal([]byte(modified.String), &p.ModifiedMemberIDs); err != nil {
			return nil, fmt.Errorf("failed to decode modified member ids: %w", err)
		}
	}
	return &p, nil
}

func scanProposal(row *sql.Row) (*run.Proposal, error) {
	p, err := scanProposalFields(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
