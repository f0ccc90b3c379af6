package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/profile"
	"github.com/gatherly/matchkit/internal/repository"
	"github.com/google/uuid"
)

// Per-mode person-count ceilings. Generation fails validation above these
// before anything touches storage.
const (
	MaxSplitEntries    = 50000
	MaxClusterEntries  = 15000
	MaxBalancedEntries = 30000
)

// Service owns the generate → edit → confirm state machine.
type Service struct {
	configs  groupconfig.Repository
	runs     Repository
	profiles profile.Source
	logger   *slog.Logger
	schedule grouping.Schedule
	lookback int
}

// NewService creates a run service with the production refinement schedule.
func NewService(configs groupconfig.Repository, runs Repository, profiles profile.Source, logger *slog.Logger) *Service {
	return NewServiceWithSchedule(configs, runs, profiles, logger, grouping.DefaultSchedule(), grouping.DefaultLookback)
}

// NewServiceWithSchedule lets tests pin a deterministic refinement schedule
// and history lookback.
func NewServiceWithSchedule(configs groupconfig.Repository, runs Repository, profiles profile.Source, logger *slog.Logger, schedule grouping.Schedule, lookback int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		configs:  configs,
		runs:     runs,
		profiles: profiles,
		logger:   logger,
		schedule: schedule,
		lookback: lookback,
	}
}

// GenerateRequest describes one generation attempt.
type GenerateRequest struct {
	ConfigID  string
	Scope     Scope
	SessionID string
	// Criteria overrides the config default when set.
	Criteria grouping.Criteria
	// PersonIDs restricts the roster; empty means everyone in scope.
	PersonIDs []string
}

// Generate computes group proposals and persists the run atomically. All
// validation that needs no storage snapshot happens before the transaction.
func (s *Service) Generate(ctx context.Context, orgID string, req GenerateRequest) (*Details, error) {
	if req.ConfigID == "" {
		return nil, ErrInvalidInput
	}
	if req.Scope != ScopeSession && req.Scope != ScopeActivity {
		return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, req.Scope)
	}
	if req.Scope == ScopeSession && req.SessionID == "" {
		return nil, fmt.Errorf("%w: session scope requires a session id", ErrInvalidInput)
	}

	cfg, err := s.configs.Get(ctx, orgID, req.ConfigID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, groupconfig.ErrConfigNotFound
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}

	criteria := req.Criteria
	if criteria == nil {
		criteria = cfg.DefaultCriteria
	}
	if criteria == nil {
		return nil, ErrMissingCriteria
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	query := profile.Query{
		OrgID:      orgID,
		ActivityID: cfg.ActivityID,
		SessionID:  req.SessionID,
		PersonIDs:  req.PersonIDs,
	}
	profiles, err := s.profiles.BuildMemberProfiles(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("building member profiles: %w", err)
	}
	if ceiling := modeCeiling(criteria.Mode()); len(profiles) > ceiling {
		return nil, fmt.Errorf("%w: %d people exceeds the %s ceiling of %d",
			grouping.ErrTooManyEntries, len(profiles), criteria.Mode(), ceiling)
	}

	catalog, err := s.profiles.AvailableFields(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading field catalog: %w", err)
	}

	usable, excluded := partitionUsable(profiles, criteria)
	if min := modeMinimum(criteria.Mode()); len(usable) < min {
		return nil, fmt.Errorf("%w: %d usable entries, need at least %d",
			grouping.ErrTooFewEntries, len(usable), min)
	}

	groups, err := s.computeGroups(ctx, orgID, cfg.ActivityID, criteria, catalog, usable)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &Run{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		ConfigID:      cfg.ID,
		ActivityID:    cfg.ActivityID,
		SessionID:     req.SessionID,
		Scope:         req.Scope,
		Status:        StatusGenerated,
		Version:       1,
		Criteria:      criteria,
		EntryCount:    len(profiles),
		GroupCount:    len(groups),
		ExcludedCount: len(excluded),
		CreatedAt:     now,
	}

	entries := make([]Entry, 0, len(profiles))
	for _, e := range usable {
		entries = append(entries, Entry{RunID: r.ID, PersonID: e.PersonID, Attributes: e.Attributes})
	}
	for _, e := range excluded {
		entries = append(entries, Entry{RunID: r.ID, PersonID: e.PersonID, Attributes: e.Attributes, Excluded: true})
	}

	proposals := make([]Proposal, len(groups))
	for i, g := range groups {
		proposals[i] = Proposal{
			ID:         uuid.NewString(),
			RunID:      r.ID,
			GroupIndex: i,
			GroupName:  g.Name,
			MemberIDs:  g.MemberIDs,
			Status:     ProposalProposed,
			Version:    1,
		}
	}

	err = s.runs.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertRun(ctx, r); err != nil {
			return err
		}
		if err := tx.InsertEntries(ctx, r.ID, entries); err != nil {
			return err
		}
		return tx.InsertProposals(ctx, r.ID, proposals)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting run: %w", err)
	}

	s.logger.Info("run generated",
		"run_id", r.ID,
		"mode", criteria.Mode(),
		"entries", r.EntryCount,
		"groups", r.GroupCount,
		"excluded", r.ExcludedCount,
	)
	return &Details{Run: *r, Entries: entries, Proposals: proposals}, nil
}

func (s *Service) computeGroups(ctx context.Context, orgID, activityID string, criteria grouping.Criteria, catalog []grouping.FieldCatalogEntry, usable []grouping.Entry) ([]grouping.Group, error) {
	var penalties *grouping.PenaltyTable
	if vw := grouping.VarietyWeight(criteria); vw > 0 {
		pairs, err := s.runs.ConfirmedPairs(ctx, orgID, activityID, s.lookback)
		if err != nil {
			return nil, fmt.Errorf("loading co-grouping history: %w", err)
		}
		penalties = grouping.NewPenaltyTable(s.lookback)
		for _, p := range pairs {
			penalties.Record(p.PersonA, p.PersonB)
		}
	}

	switch crit := criteria.(type) {
	case grouping.SplitCriteria:
		return grouping.SplitByFields(usable, crit.Fields), nil
	case grouping.SimilarityCriteria:
		metas := grouping.BuildFieldMetas(crit.Fields, catalog, usable)
		return grouping.ClusterGroups(usable, metas, crit.GroupCount, grouping.ObjectiveSimilarity, penalties, crit.VarietyWeight, s.schedule), nil
	case grouping.DiversityCriteria:
		metas := grouping.BuildFieldMetas(crit.Fields, catalog, usable)
		return grouping.ClusterGroups(usable, metas, crit.GroupCount, grouping.ObjectiveDiversity, penalties, crit.VarietyWeight, s.schedule), nil
	case grouping.BalancedCriteria:
		metas := grouping.BuildFieldMetas(crit.BalanceFields, catalog, usable)
		return grouping.BalancedTeams(usable, metas, crit.TeamCount, crit.PartitionFields, penalties, crit.VarietyWeight, s.schedule), nil
	default:
		return nil, fmt.Errorf("%w: unsupported criteria %T", grouping.ErrInvalidCriteria, criteria)
	}
}

// UpdateMembersRequest carries a proposal membership override.
type UpdateMembersRequest struct {
	ProposalID      string
	MemberIDs       []string
	ExpectedVersion int64
}

// UpdateProposalMembers overrides a proposal's membership while the owning
// run is still generated. Stale versions and confirmed runs are conflicts.
func (s *Service) UpdateProposalMembers(ctx context.Context, orgID string, req UpdateMembersRequest) (*Proposal, error) {
	if req.ProposalID == "" {
		return nil, ErrInvalidInput
	}
	if hasDuplicates(req.MemberIDs) {
		return nil, ErrDuplicateMembers
	}

	prop, err := s.runs.GetProposal(ctx, orgID, req.ProposalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("loading proposal: %w", err)
	}

	r, err := s.runs.GetRun(ctx, orgID, prop.RunID)
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	if r.Status == StatusConfirmed {
		return nil, ErrRunConfirmed
	}

	entries, err := s.runs.ListEntries(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.Excluded {
			known[e.PersonID] = true
		}
	}
	for _, id := range req.MemberIDs {
		if !known[id] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMembers, id)
		}
	}

	updated, err := s.runs.UpdateProposalMembers(ctx, orgID, req.ProposalID, req.MemberIDs, req.ExpectedVersion)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrStaleVersion
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("updating proposal: %w", err)
	}

	s.logger.Info("proposal modified", "proposal_id", updated.ID, "run_id", updated.RunID, "version", updated.Version)
	return updated, nil
}

// ConfirmRequest asks to finalize a run at the observed version.
type ConfirmRequest struct {
	RunID           string
	ExpectedVersion int64
}

// Confirm flips the run to its terminal state: it validates that every
// included person sits in exactly one group, marks proposals accepted or
// modified, and appends pairwise history, all inside one transaction.
func (s *Service) Confirm(ctx context.Context, orgID string, req ConfirmRequest) (*Run, error) {
	if req.RunID == "" {
		return nil, ErrInvalidInput
	}

	var confirmed *Run
	err := s.runs.InTx(ctx, func(tx Tx) error {
		r, err := tx.GetRun(ctx, orgID, req.RunID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRunNotFound
			}
			return fmt.Errorf("loading run: %w", err)
		}
		if r.Status == StatusConfirmed {
			return ErrAlreadyConfirmed
		}
		if r.Version != req.ExpectedVersion {
			return ErrStaleVersion
		}

		entries, err := tx.ListEntries(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("loading entries: %w", err)
		}
		proposals, err := tx.ListProposals(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("loading proposals: %w", err)
		}

		if err := validateCoverage(entries, proposals); err != nil {
			return err
		}

		now := time.Now().UTC()
		r.Status = StatusConfirmed
		r.ConfirmedAt = &now
		r.Version++
		if err := tx.UpdateRunStatus(ctx, r, req.ExpectedVersion); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrStaleVersion
			}
			if errors.Is(err, repository.ErrUniqueViolation) {
				// The storage guard caught a concurrent confirm that the
				// version check alone could not see.
				return ErrAlreadyConfirmed
			}
			return fmt.Errorf("updating run: %w", err)
		}

		var history []HistoryPair
		for i := range proposals {
			p := &proposals[i]
			if p.ModifiedMemberIDs != nil {
				p.Status = ProposalModified
			} else {
				p.Status = ProposalAccepted
			}
			p.Version++
			if err := tx.UpdateProposalStatus(ctx, p); err != nil {
				return fmt.Errorf("updating proposal %s: %w", p.ID, err)
			}
			members := p.EffectiveMembers()
			for a := 0; a < len(members); a++ {
				for b := a + 1; b < len(members); b++ {
					history = append(history, NewHistoryPair(r.ID, members[a], members[b]))
				}
			}
		}
		if len(history) > 0 {
			if err := tx.InsertHistory(ctx, history); err != nil {
				return fmt.Errorf("recording history: %w", err)
			}
		}

		confirmed = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("run confirmed", "run_id", confirmed.ID, "version", confirmed.Version)
	return confirmed, nil
}

// Get loads a run with its entries and proposals.
func (s *Service) Get(ctx context.Context, orgID, runID string) (*Details, error) {
	r, err := s.runs.GetRun(ctx, orgID, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("loading run: %w", err)
	}
	entries, err := s.runs.ListEntries(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	proposals, err := s.runs.ListProposals(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading proposals: %w", err)
	}
	return &Details{Run: *r, Entries: entries, Proposals: proposals}, nil
}

// Latest returns the newest run for a session, or for the whole activity when
// sessionID is empty.
func (s *Service) Latest(ctx context.Context, orgID, activityID, sessionID string) (*Run, error) {
	var (
		r   *Run
		err error
	)
	if sessionID != "" {
		r, err = s.runs.LatestBySession(ctx, orgID, sessionID)
	} else {
		r, err = s.runs.LatestByActivity(ctx, orgID, activityID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("loading latest run: %w", err)
	}
	return r, nil
}

// List returns an activity's run history, newest first.
func (s *Service) List(ctx context.Context, orgID string, opts ListRunsOptions) ([]Run, error) {
	if opts.ActivityID == "" {
		return nil, ErrInvalidInput
	}
	runs, err := s.runs.ListByActivity(ctx, orgID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// partitionUsable splits profiles into entries the algorithm can use and
// entries missing required data. Split mode never excludes anyone.
func partitionUsable(profiles []profile.MemberProfile, criteria grouping.Criteria) (usable, excluded []grouping.Entry) {
	required := grouping.RequiredFields(criteria)
	balanced, isBalanced := criteria.(grouping.BalancedCriteria)

	for _, p := range profiles {
		entry := grouping.Entry{PersonID: p.PersonID, Attributes: p.Attributes}
		ok := true
		if isBalanced {
			// Balance fields must be numeric; partition fields may be
			// missing and bucket under "Unknown" instead.
			for _, f := range balanced.BalanceFields {
				if _, numeric := entry.Attr(f.FieldID).Numeric(); !numeric {
					ok = false
					break
				}
			}
		} else {
			for _, fieldID := range required {
				if !entry.HasValue(fieldID) {
					ok = false
					break
				}
			}
		}
		if ok {
			usable = append(usable, entry)
		} else {
			excluded = append(excluded, entry)
		}
	}
	return usable, excluded
}

// validateCoverage checks that every included person appears in exactly one
// proposal's effective membership, and that proposals reference no outsiders.
func validateCoverage(entries []Entry, proposals []Proposal) error {
	included := make(map[string]int, len(entries))
	for _, e := range entries {
		if !e.Excluded {
			included[e.PersonID] = 0
		}
	}

	for _, p := range proposals {
		for _, id := range p.EffectiveMembers() {
			count, known := included[id]
			if !known {
				return fmt.Errorf("%w: %s", ErrUnknownMembers, id)
			}
			included[id] = count + 1
		}
	}

	for id, count := range included {
		if count != 1 {
			return fmt.Errorf("%w: person %s appears in %d groups", ErrInvalidCoverage, id, count)
		}
	}
	return nil
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}

func modeCeiling(mode grouping.Mode) int {
	switch mode {
	case grouping.ModeSplit:
		return MaxSplitEntries
	case grouping.ModeBalanced:
		return MaxBalancedEntries
	default:
		return MaxClusterEntries
	}
}

func modeMinimum(mode grouping.Mode) int {
	if mode == grouping.ModeSplit {
		return 1
	}
	return 2
}
