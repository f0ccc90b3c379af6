package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition describes a callable tool
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// criteriaSchema is the tagged envelope accepted everywhere criteria appear.
func criteriaSchema(description string) map[string]any {
	return map[string]any{
		"type":        "object",
		"description": description,
		"properties": map[string]any{
			"mode": map[string]any{
				"type":        "string",
				"description": "Grouping mode",
				"enum":        []string{"split", "similarity", "diversity", "balanced"},
			},
			"criteria": map[string]any{
				"type":        "object",
				"description": "Mode-specific criteria body. split: {fields: [field_id]}. similarity/diversity: {fields: [{field_id, weight}], group_count, variety_weight}. balanced: {balance_fields: [{field_id, weight}], team_count, partition_fields, variety_weight}.",
			},
		},
		"required": []string{"mode", "criteria"},
	}
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Configs
		{
			Name:        "create_config",
			Description: "Create the grouping config for an activity, optionally with default criteria",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"activity_id": map[string]any{
						"type":        "string",
						"description": "Activity the config belongs to (one config per activity)",
					},
					"name": map[string]any{
						"type":        "string",
						"description": "Config display name",
					},
					"default_criteria": criteriaSchema("Criteria used when generate_groups passes none"),
				},
				"required": []string{"activity_id", "name"},
			},
		},
		{
			Name:        "update_config",
			Description: "Update a grouping config's name and/or default criteria",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"config_id": map[string]any{
						"type":        "string",
						"description": "Config ID",
					},
					"name": map[string]any{
						"type":        "string",
						"description": "New display name (omit to keep)",
					},
					"default_criteria": criteriaSchema("New default criteria (omit to keep)"),
				},
				"required": []string{"config_id"},
			},
		},
		{
			Name:        "get_config",
			Description: "Get a grouping config by ID or by its activity",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"config_id": map[string]any{
						"type":        "string",
						"description": "Config ID (omit to look up by activity_id)",
					},
					"activity_id": map[string]any{
						"type":        "string",
						"description": "Activity ID, used when config_id is omitted",
					},
				},
			},
		},

		// Runs
		{
			Name:        "generate_groups",
			Description: "Generate group proposals for a session or a whole activity. The run starts in the generated state and must be confirmed to become final.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"config_id": map[string]any{
						"type":        "string",
						"description": "Grouping config to run under",
					},
					"scope": map[string]any{
						"type":        "string",
						"description": "Whether to group one session's participants or all activity members",
						"enum":        []string{"session", "activity"},
					},
					"session_id": map[string]any{
						"type":        "string",
						"description": "Session ID, required for session scope",
					},
					"criteria": criteriaSchema("Criteria override; falls back to the config default"),
					"person_ids": map[string]any{
						"type":        "array",
						"description": "Restrict the roster to these people (omit for everyone in scope)",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []string{"config_id", "scope"},
			},
		},
		{
			Name:        "update_proposal_members",
			Description: "Override a proposal's membership while the run is still generated. Requires the proposal's current version.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"proposal_id": map[string]any{
						"type":        "string",
						"description": "Proposal ID",
					},
					"member_ids": map[string]any{
						"type":        "array",
						"description": "Full replacement membership, no duplicates",
						"items":       map[string]any{"type": "string"},
					},
					"expected_version": map[string]any{
						"type":        "integer",
						"description": "Proposal version observed by the caller",
					},
				},
				"required": []string{"proposal_id", "member_ids", "expected_version"},
			},
		},
		{
			Name:        "confirm_run",
			Description: "Finalize a run: every included person must sit in exactly one group. Confirmation records co-grouping history and makes the run immutable.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"run_id": map[string]any{
						"type":        "string",
						"description": "Run ID",
					},
					"expected_version": map[string]any{
						"type":        "integer",
						"description": "Run version observed by the caller",
					},
				},
				"required": []string{"run_id", "expected_version"},
			},
		},
		{
			Name:        "get_run",
			Description: "Get a run with its entries and group proposals",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"run_id": map[string]any{
						"type":        "string",
						"description": "Run ID",
					},
				},
				"required": []string{"run_id"},
			},
		},
		{
			Name:        "get_latest_run",
			Description: "Get the newest run for a session, or for the whole activity when session_id is omitted",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"activity_id": map[string]any{
						"type":        "string",
						"description": "Activity ID",
					},
					"session_id": map[string]any{
						"type":        "string",
						"description": "Session ID (omit for activity scope)",
					},
				},
				"required": []string{"activity_id"},
			},
		},
		{
			Name:        "list_runs",
			Description: "List an activity's runs, newest first",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"activity_id": map[string]any{
						"type":        "string",
						"description": "Activity ID",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of runs to return",
					},
				},
				"required": []string{"activity_id"},
			},
		},
	}
}

// registerTools adds every catalog tool to the SDK server, dispatching calls
// through the method handler.
func registerTools(server *sdkmcp.Server, handler *Handler) error {
	for _, def := range buildToolCatalog() {
		schema, err := toSchema(def.InputSchema)
		if err != nil {
			return fmt.Errorf("tool %s: %w", def.Name, err)
		}
		method := def.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			return callTool(ctx, handler, method, req)
		})
	}
	return nil
}

func callTool(ctx context.Context, handler *Handler, method string, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
	var args json.RawMessage
	if req != nil && req.Params != nil {
		args = req.Params.Arguments
	}

	result, err := handler.Handle(ctx, getOrgID(ctx), method, args)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			apiErr = &APIError{Code: "INTERNAL", Message: err.Error()}
		}
		data, merr := json.Marshal(apiErr)
		if merr != nil {
			data = []byte(apiErr.Error())
		}
		return &sdkmcp.CallToolResult{
			IsError: true,
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		}, nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content:           []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		StructuredContent: result,
	}, nil
}

// toSchema converts a map-based JSON schema to the SDK's schema type.
func toSchema(m map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	return &schema, nil
}
