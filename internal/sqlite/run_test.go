package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/domain/run"
	"github.com/gatherly/matchkit/internal/repository"
	"github.com/stretchr/testify/require"
)

func insertConfig(t *testing.T, db *DB, id, orgID, activityID string) {
	t.Helper()
	now := time.Now().UTC()
	repo := NewConfigRepository(db)
	cfg := &groupconfig.Config{ID: id, OrgID: orgID, ActivityID: activityID, Name: "Config", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(context.Background(), orgID, cfg))
}

func testCriteria() grouping.Criteria {
	return grouping.SimilarityCriteria{
		Fields:     []grouping.WeightedField{{FieldID: "session:score", Weight: 1}},
		GroupCount: 2,
	}
}

func insertTestRun(t *testing.T, repo *RunRepository, r *run.Run, entries []run.Entry, proposals []run.Proposal) {
	t.Helper()
	err := repo.InTx(context.Background(), func(tx run.Tx) error {
		if err := tx.InsertRun(context.Background(), r); err != nil {
			return err
		}
		if err := tx.InsertEntries(context.Background(), r.ID, entries); err != nil {
			return err
		}
		return tx.InsertProposals(context.Background(), r.ID, proposals)
	})
	require.NoError(t, err)
}

func sampleRun(id, sessionID string, createdAt time.Time) *run.Run {
	scope := run.ScopeSession
	if sessionID == "" {
		scope = run.ScopeActivity
	}
	return &run.Run{
		ID:         id,
		OrgID:      "org1",
		ConfigID:   "c1",
		ActivityID: "act1",
		SessionID:  sessionID,
		Scope:      scope,
		Status:     run.StatusGenerated,
		Version:    1,
		Criteria:   testCriteria(),
		EntryCount: 2,
		GroupCount: 1,
		CreatedAt:  createdAt,
	}
}

func TestRunRepository_InsertGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	r := sampleRun("r1", "s1", time.Now().UTC())
	entries := []run.Entry{
		{RunID: "r1", PersonID: "p1", Attributes: map[string]grouping.Value{"session:score": grouping.Number(10)}},
		{RunID: "r1", PersonID: "p2", Attributes: map[string]grouping.Value{"session:score": grouping.Number(90)}, Excluded: true},
	}
	proposals := []run.Proposal{
		{ID: "g1", RunID: "r1", GroupIndex: 0, GroupName: "Group 1", MemberIDs: []string{"p1"}, Status: run.ProposalProposed, Version: 1},
	}
	insertTestRun(t, repo, r, entries, proposals)

	loaded, err := repo.GetRun(ctx, "org1", "r1")
	require.NoError(t, err)
	require.Equal(t, "s1", loaded.SessionID)
	require.Equal(t, run.StatusGenerated, loaded.Status)
	require.Equal(t, grouping.ModeSimilarity, loaded.Criteria.Mode())
	require.Nil(t, loaded.ConfirmedAt)

	gotEntries, err := repo.ListEntries(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, gotEntries, 2)
	require.True(t, gotEntries[1].Excluded)
	score, ok := gotEntries[0].Attributes["session:score"].Numeric()
	require.True(t, ok)
	require.Equal(t, float64(10), score)

	gotProposals, err := repo.ListProposals(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, gotProposals, 1)
	require.Equal(t, []string{"p1"}, gotProposals[0].MemberIDs)
	require.Nil(t, gotProposals[0].ModifiedMemberIDs)
}

func TestRunRepository_OrgIsolation(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	insertTestRun(t, repo, sampleRun("r1", "s1", time.Now().UTC()), nil, nil)

	_, err := repo.GetRun(ctx, "org2", "r1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunRepository_UpdateProposalMembers(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	r := sampleRun("r1", "s1", time.Now().UTC())
	proposals := []run.Proposal{
		{ID: "g1", RunID: "r1", GroupIndex: 0, GroupName: "Group 1", MemberIDs: []string{"p1", "p2"}, Status: run.ProposalProposed, Version: 1},
	}
	insertTestRun(t, repo, r, nil, proposals)

	updated, err := repo.UpdateProposalMembers(ctx, "org1", "g1", []string{"p1", "p3"}, 1)
	require.NoError(t, err)
	require.Equal(t, run.ProposalModified, updated.Status)
	require.Equal(t, int64(2), updated.Version)
	require.Equal(t, []string{"p1", "p2"}, updated.MemberIDs)
	require.Equal(t, []string{"p1", "p3"}, updated.ModifiedMemberIDs)

	// Stale version
	_, err = repo.UpdateProposalMembers(ctx, "org1", "g1", []string{"p1"}, 1)
	require.ErrorIs(t, err, repository.ErrConflict)

	// Unknown proposal
	_, err = repo.UpdateProposalMembers(ctx, "org1", "missing", []string{"p1"}, 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunRepository_UpdateProposalMembers_ConfirmedRun(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	r := sampleRun("r1", "s1", time.Now().UTC())
	proposals := []run.Proposal{
		{ID: "g1", RunID: "r1", GroupIndex: 0, GroupName: "Group 1", MemberIDs: []string{"p1"}, Status: run.ProposalProposed, Version: 1},
	}
	insertTestRun(t, repo, r, nil, proposals)

	// Confirm the run, then the edit must conflict.
	err := repo.InTx(ctx, func(tx run.Tx) error {
		now := time.Now().UTC()
		r.Status = run.StatusConfirmed
		r.ConfirmedAt = &now
		r.Version = 2
		return tx.UpdateRunStatus(ctx, r, 1)
	})
	require.NoError(t, err)

	_, err = repo.UpdateProposalMembers(ctx, "org1", "g1", []string{"p1"}, 1)
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestRunRepository_UpdateRunStatus_VersionCheck(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	r := sampleRun("r1", "s1", time.Now().UTC())
	insertTestRun(t, repo, r, nil, nil)

	stale := *r
	stale.Status = run.StatusConfirmed
	stale.Version = 2
	err := repo.InTx(ctx, func(tx run.Tx) error {
		return tx.UpdateRunStatus(ctx, &stale, 5)
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	missing := *r
	missing.ID = "missing"
	err = repo.InTx(ctx, func(tx run.Tx) error {
		return tx.UpdateRunStatus(ctx, &missing, 1)
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunRepository_ConfirmUniqueViolation(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	now := time.Now().UTC()

	first := sampleRun("r1", "s1", now)
	second := sampleRun("r2", "s1", now.Add(time.Second))
	insertTestRun(t, repo, first, nil, nil)
	insertTestRun(t, repo, second, nil, nil)

	confirm := func(r *run.Run) error {
		return repo.InTx(ctx, func(tx run.Tx) error {
			c := *r
			c.Status = run.StatusConfirmed
			c.ConfirmedAt = &now
			c.Version = 2
			return tx.UpdateRunStatus(ctx, &c, 1)
		})
	}

	require.NoError(t, confirm(first))
	// The session already has a confirmed run, so the partial index fires.
	require.ErrorIs(t, confirm(second), repository.ErrUniqueViolation)
}

func TestRunRepository_InTxRollsBack(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	boom := repository.ErrInvalidInput
	err := repo.InTx(ctx, func(tx run.Tx) error {
		if err := tx.InsertRun(ctx, sampleRun("r1", "s1", time.Now().UTC())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.GetRun(ctx, "org1", "r1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunRepository_LatestAndList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	base := time.Now().UTC().Truncate(time.Second)
	insertTestRun(t, repo, sampleRun("r1", "s1", base), nil, nil)
	insertTestRun(t, repo, sampleRun("r2", "s1", base.Add(time.Minute)), nil, nil)
	insertTestRun(t, repo, sampleRun("r3", "", base.Add(2*time.Minute)), nil, nil)

	latest, err := repo.LatestBySession(ctx, "org1", "s1")
	require.NoError(t, err)
	require.Equal(t, "r2", latest.ID)

	latest, err = repo.LatestByActivity(ctx, "org1", "act1")
	require.NoError(t, err)
	require.Equal(t, "r3", latest.ID)

	_, err = repo.LatestBySession(ctx, "org1", "unknown")
	require.ErrorIs(t, err, repository.ErrNotFound)

	runs, err := repo.ListByActivity(ctx, "org1", run.ListRunsOptions{ActivityID: "act1"})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "r3", runs[0].ID)

	runs, err = repo.ListByActivity(ctx, "org1", run.ListRunsOptions{ActivityID: "act1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestRunRepository_ConfirmedPairs(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertConfig(t, db, "c1", "org1", "act1")

	repo := NewRunRepository(db)
	base := time.Now().UTC().Truncate(time.Second)

	confirmWithHistory := func(id string, createdAt time.Time, pairs []run.HistoryPair) {
		r := sampleRun(id, "", createdAt)
		insertTestRun(t, repo, r, nil, nil)
		err := repo.InTx(ctx, func(tx run.Tx) error {
			c := *r
			c.Status = run.StatusConfirmed
			c.ConfirmedAt = &createdAt
			c.Version = 2
			if err := tx.UpdateRunStatus(ctx, &c, 1); err != nil {
				return err
			}
			return tx.InsertHistory(ctx, pairs)
		})
		require.NoError(t, err)
	}

	confirmWithHistory("r1", base, []run.HistoryPair{run.NewHistoryPair("r1", "p2", "p1")})
	confirmWithHistory("r2", base.Add(time.Minute), []run.HistoryPair{run.NewHistoryPair("r2", "p3", "p4")})
	confirmWithHistory("r3", base.Add(2*time.Minute), []run.HistoryPair{run.NewHistoryPair("r3", "p1", "p3")})

	pairs, err := repo.ConfirmedPairs(ctx, "org1", "act1", 10)
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	// Lookback bounds the history to the newest confirmed runs.
	pairs, err = repo.ConfirmedPairs(ctx, "org1", "act1", 2)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		require.NotEqual(t, "r1", p.RunID)
	}
}
