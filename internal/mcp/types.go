package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/domain/run"
)

// Criteria travel over the wire as a tagged envelope:
// {"mode": "similarity", "criteria": {...}}.

type CreateConfigParams struct {
	ActivityID      string          `json:"activity_id"`
	Name            string          `json:"name"`
	DefaultCriteria json.RawMessage `json:"default_criteria,omitempty"`
}

type UpdateConfigParams struct {
	ConfigID        string          `json:"config_id"`
	Name            *string         `json:"name,omitempty"`
	DefaultCriteria json.RawMessage `json:"default_criteria,omitempty"`
}

type GetConfigParams struct {
	ConfigID   string `json:"config_id,omitempty"`
	ActivityID string `json:"activity_id,omitempty"`
}

type GenerateGroupsParams struct {
	ConfigID  string          `json:"config_id"`
	Scope     string          `json:"scope"`
	SessionID string          `json:"session_id,omitempty"`
	Criteria  json.RawMessage `json:"criteria,omitempty"`
	PersonIDs []string        `json:"person_ids,omitempty"`
}

type UpdateProposalMembersParams struct {
	ProposalID      string   `json:"proposal_id"`
	MemberIDs       []string `json:"member_ids"`
	ExpectedVersion int64    `json:"expected_version"`
}

type ConfirmRunParams struct {
	RunID           string `json:"run_id"`
	ExpectedVersion int64  `json:"expected_version"`
}

type GetRunParams struct {
	RunID string `json:"run_id"`
}

type GetLatestRunParams struct {
	ActivityID string `json:"activity_id"`
	SessionID  string `json:"session_id,omitempty"`
}

type ListRunsParams struct {
	ActivityID string `json:"activity_id"`
	Limit      int    `json:"limit,omitempty"`
}

// ConfigResponse mirrors groupconfig.Config with the criteria envelope intact.
type ConfigResponse struct {
	ID              string          `json:"id"`
	ActivityID      string          `json:"activity_id"`
	Name            string          `json:"name"`
	DefaultCriteria json.RawMessage `json:"default_criteria,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RunResponse mirrors run.Run with the criteria envelope intact.
type RunResponse struct {
	ID            string          `json:"id"`
	ConfigID      string          `json:"config_id"`
	ActivityID    string          `json:"activity_id"`
	SessionID     string          `json:"session_id,omitempty"`
	Scope         run.Scope       `json:"scope"`
	Status        run.Status      `json:"status"`
	Version       int64           `json:"version"`
	Criteria      json.RawMessage `json:"criteria"`
	EntryCount    int             `json:"entry_count"`
	GroupCount    int             `json:"group_count"`
	ExcludedCount int             `json:"excluded_count"`
	CreatedAt     time.Time       `json:"created_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

// RunDetailsResponse bundles a run with its entries and proposals.
type RunDetailsResponse struct {
	Run       RunResponse    `json:"run"`
	Entries   []run.Entry    `json:"entries"`
	Proposals []run.Proposal `json:"proposals"`
}

func configResponse(cfg *groupconfig.Config) (*ConfigResponse, error) {
	resp := &ConfigResponse{
		ID:         cfg.ID,
		ActivityID: cfg.ActivityID,
		Name:       cfg.Name,
		CreatedAt:  cfg.CreatedAt,
		UpdatedAt:  cfg.UpdatedAt,
	}
	if cfg.DefaultCriteria != nil {
		data, err := grouping.EncodeCriteria(cfg.DefaultCriteria)
		if err != nil {
			return nil, fmt.Errorf("encoding criteria: %w", err)
		}
		resp.DefaultCriteria = data
	}
	return resp, nil
}

func runResponse(r *run.Run) (*RunResponse, error) {
	criteria, err := grouping.EncodeCriteria(r.Criteria)
	if err != nil {
		return nil, fmt.Errorf("encoding criteria: %w", err)
	}
	return &RunResponse{
		ID:            r.ID,
		ConfigID:      r.ConfigID,
		ActivityID:    r.ActivityID,
		SessionID:     r.SessionID,
		Scope:         r.Scope,
		Status:        r.Status,
		Version:       r.Version,
		Criteria:      criteria,
		EntryCount:    r.EntryCount,
		GroupCount:    r.GroupCount,
		ExcludedCount: r.ExcludedCount,
		CreatedAt:     r.CreatedAt,
		ConfirmedAt:   r.ConfirmedAt,
	}, nil
}

func detailsResponse(d *run.Details) (*RunDetailsResponse, error) {
	rr, err := runResponse(&d.Run)
	if err != nil {
		return nil, err
	}
	return &RunDetailsResponse{
		Run:       *rr,
		Entries:   d.Entries,
		Proposals: d.Proposals,
	}, nil
}

// decodeCriteriaField parses an optional criteria envelope from params.
func decodeCriteriaField(raw json.RawMessage) (grouping.Criteria, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	c, err := grouping.DecodeCriteria(raw)
	if err != nil {
		return nil, &APIError{
			Code:    "VALIDATION",
			Message: fmt.Sprintf("invalid criteria: %v", err),
		}
	}
	return c, nil
}
