// Package mocks provides testify mocks for the repository and profile
// interfaces, used by the domain service tests.
package mocks

import (
	"context"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/domain/run"
	"github.com/gatherly/matchkit/internal/profile"
	"github.com/stretchr/testify/mock"
)

// ConfigRepository is a mock for groupconfig.Repository.
type ConfigRepository struct {
	mock.Mock
}

func (m *ConfigRepository) Create(ctx context.Context, orgID string, cfg *groupconfig.Config) error {
	args := m.Called(ctx, orgID, cfg)
	return args.Error(0)
}

func (m *ConfigRepository) Update(ctx context.Context, orgID string, cfg *groupconfig.Config) error {
	args := m.Called(ctx, orgID, cfg)
	return args.Error(0)
}

func (m *ConfigRepository) Get(ctx context.Context, orgID, id string) (*groupconfig.Config, error) {
	args := m.Called(ctx, orgID, id)
	if cfg, ok := args.Get(0).(*groupconfig.Config); ok {
		return cfg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ConfigRepository) GetByActivity(ctx context.Context, orgID, activityID string) (*groupconfig.Config, error) {
	args := m.Called(ctx, orgID, activityID)
	if cfg, ok := args.Get(0).(*groupconfig.Config); ok {
		return cfg, args.Error(1)
	}
	return nil, args.Error(1)
}

// RunRepository is a mock for run.Repository. InTx runs the callback against
// the Tx mock wired in via the Tx field.
type RunRepository struct {
	mock.Mock
	Tx *RunTx
}

func (m *RunRepository) InTx(ctx context.Context, fn func(tx run.Tx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

func (m *RunRepository) GetRun(ctx context.Context, orgID, runID string) (*run.Run, error) {
	args := m.Called(ctx, orgID, runID)
	if r, ok := args.Get(0).(*run.Run); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) ListEntries(ctx context.Context, runID string) ([]run.Entry, error) {
	args := m.Called(ctx, runID)
	if entries, ok := args.Get(0).([]run.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) ListProposals(ctx context.Context, runID string) ([]run.Proposal, error) {
	args := m.Called(ctx, runID)
	if props, ok := args.Get(0).([]run.Proposal); ok {
		return props, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) GetProposal(ctx context.Context, orgID, proposalID string) (*run.Proposal, error) {
	args := m.Called(ctx, orgID, proposalID)
	if p, ok := args.Get(0).(*run.Proposal); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) UpdateProposalMembers(ctx context.Context, orgID, proposalID string, members []string, expectedVersion int64) (*run.Proposal, error) {
	args := m.Called(ctx, orgID, proposalID, members, expectedVersion)
	if p, ok := args.Get(0).(*run.Proposal); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) LatestBySession(ctx context.Context, orgID, sessionID string) (*run.Run, error) {
	args := m.Called(ctx, orgID, sessionID)
	if r, ok := args.Get(0).(*run.Run); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) LatestByActivity(ctx context.Context, orgID, activityID string) (*run.Run, error) {
	args := m.Called(ctx, orgID, activityID)
	if r, ok := args.Get(0).(*run.Run); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) ListByActivity(ctx context.Context, orgID string, opts run.ListRunsOptions) ([]run.Run, error) {
	args := m.Called(ctx, orgID, opts)
	if runs, ok := args.Get(0).([]run.Run); ok {
		return runs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) ConfirmedPairs(ctx context.Context, orgID, activityID string, lookback int) ([]run.HistoryPair, error) {
	args := m.Called(ctx, orgID, activityID, lookback)
	if pairs, ok := args.Get(0).([]run.HistoryPair); ok {
		return pairs, args.Error(1)
	}
	return nil, args.Error(1)
}

// RunTx is a mock for run.Tx.
type RunTx struct {
	mock.Mock
}

func (m *RunTx) InsertRun(ctx context.Context, r *run.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *RunTx) InsertEntries(ctx context.Context, runID string, entries []run.Entry) error {
	args := m.Called(ctx, runID, entries)
	return args.Error(0)
}

func (m *RunTx) InsertProposals(ctx context.Context, runID string, proposals []run.Proposal) error {
	args := m.Called(ctx, runID, proposals)
	return args.Error(0)
}

func (m *RunTx) GetRun(ctx context.Context, orgID, runID string) (*run.Run, error) {
	args := m.Called(ctx, orgID, runID)
	if r, ok := args.Get(0).(*run.Run); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunTx) ListEntries(ctx context.Context, runID string) ([]run.Entry, error) {
	args := m.Called(ctx, runID)
	if entries, ok := args.Get(0).([]run.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunTx) ListProposals(ctx context.Context, runID string) ([]run.Proposal, error) {
	args := m.Called(ctx, runID)
	if props, ok := args.Get(0).([]run.Proposal); ok {
		return props, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunTx) UpdateRunStatus(ctx context.Context, r *run.Run, expectedVersion int64) error {
	args := m.Called(ctx, r, expectedVersion)
	return args.Error(0)
}

func (m *RunTx) UpdateProposalStatus(ctx context.Context, p *run.Proposal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *RunTx) InsertHistory(ctx context.Context, pairs []run.HistoryPair) error {
	args := m.Called(ctx, pairs)
	return args.Error(0)
}

// ProfileSource is a mock for profile.Source.
type ProfileSource struct {
	mock.Mock
}

func (m *ProfileSource) BuildMemberProfiles(ctx context.Context, q profile.Query) ([]profile.MemberProfile, error) {
	args := m.Called(ctx, q)
	if profiles, ok := args.Get(0).([]profile.MemberProfile); ok {
		return profiles, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileSource) AvailableFields(ctx context.Context, q profile.Query) ([]grouping.FieldCatalogEntry, error) {
	args := m.Called(ctx, q)
	if fields, ok := args.Get(0).([]grouping.FieldCatalogEntry); ok {
		return fields, args.Error(1)
	}
	return nil, args.Error(1)
}
