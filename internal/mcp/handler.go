package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/run"
)

// ConfigService defines grouping-config operations needed by MCP.
type ConfigService interface {
	Create(ctx context.Context, orgID string, req groupconfig.CreateRequest) (*groupconfig.Config, error)
	Update(ctx context.Context, orgID string, req groupconfig.UpdateRequest) (*groupconfig.Config, error)
	Get(ctx context.Context, orgID, id string) (*groupconfig.Config, error)
	GetByActivity(ctx context.Context, orgID, activityID string) (*groupconfig.Config, error)
}

// RunService defines run operations needed by MCP.
type RunService interface {
	Generate(ctx context.Context, orgID string, req run.GenerateRequest) (*run.Details, error)
	UpdateProposalMembers(ctx context.Context, orgID string, req run.UpdateMembersRequest) (*run.Proposal, error)
	Confirm(ctx context.Context, orgID string, req run.ConfirmRequest) (*run.Run, error)
	Get(ctx context.Context, orgID, runID string) (*run.Details, error)
	Latest(ctx context.Context, orgID, activityID, sessionID string) (*run.Run, error)
	List(ctx context.Context, orgID string, opts run.ListRunsOptions) ([]run.Run, error)
}

// Handler dispatches MCP commands.
type Handler struct {
	configs ConfigService
	runs    RunService
}

// NewHandler creates a new MCP handler.
func NewHandler(configs ConfigService, runs RunService) *Handler {
	return &Handler{configs: configs, runs: runs}
}

// Handle dispatches MCP requests to domain services.
func (h *Handler) Handle(ctx context.Context, orgID, method string, params json.RawMessage) (any, error) {
	switch method {
	case "create_config":
		var req CreateConfigParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		criteria, err := decodeCriteriaField(req.DefaultCriteria)
		if err != nil {
			return nil, err
		}
		cfg, err := h.configs.Create(ctx, orgID, groupconfig.CreateRequest{
			ActivityID:      req.ActivityID,
			Name:            req.Name,
			DefaultCriteria: criteria,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return configResponse(cfg)
	case "update_config":
		var req UpdateConfigParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		criteria, err := decodeCriteriaField(req.DefaultCriteria)
		if err != nil {
			return nil, err
		}
		cfg, err := h.configs.Update(ctx, orgID, groupconfig.UpdateRequest{
			ConfigID:        req.ConfigID,
			Name:            req.Name,
			DefaultCriteria: criteria,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return configResponse(cfg)
	case "get_config":
		var req GetConfigParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		var (
			cfg *groupconfig.Config
			err error
		)
		if req.ConfigID != "" {
			cfg, err = h.configs.Get(ctx, orgID, req.ConfigID)
		} else {
			cfg, err = h.configs.GetByActivity(ctx, orgID, req.ActivityID)
		}
		if err != nil {
			return nil, mapError(err)
		}
		return configResponse(cfg)
	case "generate_groups":
		var req GenerateGroupsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		criteria, err := decodeCriteriaField(req.Criteria)
		if err != nil {
			return nil, err
		}
		details, err := h.runs.Generate(ctx, orgID, run.GenerateRequest{
			ConfigID:  req.ConfigID,
			Scope:     run.Scope(req.Scope),
			SessionID: req.SessionID,
			Criteria:  criteria,
			PersonIDs: req.PersonIDs,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return detailsResponse(details)
	case "update_proposal_members":
		var req UpdateProposalMembersParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		prop, err := h.runs.UpdateProposalMembers(ctx, orgID, run.UpdateMembersRequest{
			ProposalID:      req.ProposalID,
			MemberIDs:       req.MemberIDs,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return prop, nil
	case "confirm_run":
		var req ConfirmRunParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		confirmed, err := h.runs.Confirm(ctx, orgID, run.ConfirmRequest{
			RunID:           req.RunID,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return runResponse(confirmed)
	case "get_run":
		var req GetRunParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		details, err := h.runs.Get(ctx, orgID, req.RunID)
		if err != nil {
			return nil, mapError(err)
		}
		return detailsResponse(details)
	case "get_latest_run":
		var req GetLatestRunParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		r, err := h.runs.Latest(ctx, orgID, req.ActivityID, req.SessionID)
		if err != nil {
			return nil, mapError(err)
		}
		return runResponse(r)
	case "list_runs":
		var req ListRunsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		runs, err := h.runs.List(ctx, orgID, run.ListRunsOptions{
			ActivityID: req.ActivityID,
			Limit:      req.Limit,
		})
		if err != nil {
			return nil, mapError(err)
		}
		resp := make([]RunResponse, 0, len(runs))
		for i := range runs {
			rr, err := runResponse(&runs[i])
			if err != nil {
				return nil, err
			}
			resp = append(resp, *rr)
		}
		return resp, nil
	default:
		return nil, &APIError{
			Code:    "METHOD_NOT_FOUND",
			Message: fmt.Sprintf("unknown method %q", method),
		}
	}
}

func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return &APIError{
			Code:    "VALIDATION",
			Message: fmt.Sprintf("invalid params: %v", err),
		}
	}
	return nil
}
