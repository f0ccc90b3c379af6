package testserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gatherly/matchkit/internal/mcp"
	"github.com/gatherly/matchkit/internal/profile"
	"github.com/gatherly/matchkit/internal/testserver"
	"github.com/gatherly/matchkit/internal/transport"
	"github.com/stretchr/testify/require"
)

const fixture = `
activities:
  act1:
    fields:
      - field_id: "session:score"
        label: "Quiz score"
        type: numeric
    members:
      - person_id: p1
        attributes: {"session:score": 10}
      - person_id: p2
        attributes: {"session:score": 12}
      - person_id: p3
        attributes: {"session:score": 90}
      - person_id: p4
        attributes: {"session:score": 88}
      - person_id: p5
        attributes: {}
`

func call(t *testing.T, ts *testserver.TestServer, method string, params any) (json.RawMessage, *transport.Error) {
	t.Helper()

	paramsJSON, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  json.RawMessage(paramsJSON),
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/mcp", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rpcResp struct {
		Result json.RawMessage  `json:"result"`
		Error  *transport.Error `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return rpcResp.Result, rpcResp.Error
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestFullWorkflow(t *testing.T) {
	profiles, err := profile.ParseStaticSource([]byte(fixture))
	require.NoError(t, err)
	ts := testserver.New(t, "test-token", "org1", profiles)

	// Create a config with default similarity criteria.
	result, rpcErr := call(t, ts, "create_config", map[string]any{
		"activity_id": "act1",
		"name":        "Quiz groups",
		"default_criteria": map[string]any{
			"mode": "similarity",
			"criteria": map[string]any{
				"fields":      []map[string]any{{"field_id": "session:score", "weight": 1}},
				"group_count": 2,
			},
		},
	})
	require.Nil(t, rpcErr)
	cfg := decode[mcp.ConfigResponse](t, result)
	require.NotEmpty(t, cfg.ID)

	// Generate using the config's default criteria.
	result, rpcErr = call(t, ts, "generate_groups", map[string]any{
		"config_id":  cfg.ID,
		"scope":      "session",
		"session_id": "s1",
	})
	require.Nil(t, rpcErr)
	details := decode[mcp.RunDetailsResponse](t, result)
	require.Equal(t, "generated", string(details.Run.Status))
	require.Equal(t, int64(1), details.Run.Version)
	require.Len(t, details.Proposals, 2)
	require.Len(t, details.Entries, 5)
	require.Equal(t, 1, details.Run.ExcludedCount)

	// Similar scores land together.
	byMember := map[string]int{}
	for i, p := range details.Proposals {
		for _, id := range p.MemberIDs {
			byMember[id] = i
		}
	}
	require.Equal(t, byMember["p1"], byMember["p2"])
	require.Equal(t, byMember["p3"], byMember["p4"])
	require.NotEqual(t, byMember["p1"], byMember["p3"])
	require.NotContains(t, byMember, "p5")

	// Swap two members by hand.
	g0 := details.Proposals[0]
	g1 := details.Proposals[1]
	result, rpcErr = call(t, ts, "update_proposal_members", map[string]any{
		"proposal_id":      g0.ID,
		"member_ids":       []string{g0.MemberIDs[0], g1.MemberIDs[0]},
		"expected_version": 1,
	})
	require.Nil(t, rpcErr)

	// The other group must give up the moved member before coverage holds.
	_, rpcErr = call(t, ts, "confirm_run", map[string]any{
		"run_id": details.Run.ID, "expected_version": 1,
	})
	require.NotNil(t, rpcErr)
	require.Contains(t, rpcErr.Message, "VALIDATION")

	result, rpcErr = call(t, ts, "update_proposal_members", map[string]any{
		"proposal_id":      g1.ID,
		"member_ids":       []string{g0.MemberIDs[1], g1.MemberIDs[1]},
		"expected_version": 1,
	})
	require.Nil(t, rpcErr)

	// Confirm with the run's current version.
	result, rpcErr = call(t, ts, "confirm_run", map[string]any{
		"run_id": details.Run.ID, "expected_version": 1,
	})
	require.Nil(t, rpcErr)
	confirmed := decode[mcp.RunResponse](t, result)
	require.Equal(t, "confirmed", string(confirmed.Status))
	require.Equal(t, int64(2), confirmed.Version)
	require.NotNil(t, confirmed.ConfirmedAt)

	// A second confirm of the same session is rejected.
	_, rpcErr = call(t, ts, "confirm_run", map[string]any{
		"run_id": details.Run.ID, "expected_version": 2,
	})
	require.NotNil(t, rpcErr)
	require.Contains(t, rpcErr.Message, "ALREADY_CONFIRMED")

	// The confirmed run is the session's latest.
	result, rpcErr = call(t, ts, "get_latest_run", map[string]any{
		"activity_id": "act1", "session_id": "s1",
	})
	require.Nil(t, rpcErr)
	latest := decode[mcp.RunResponse](t, result)
	require.Equal(t, details.Run.ID, latest.ID)
	require.Equal(t, "confirmed", string(latest.Status))
}

func TestStaleVersionConflict(t *testing.T) {
	profiles, err := profile.ParseStaticSource([]byte(fixture))
	require.NoError(t, err)
	ts := testserver.New(t, "test-token", "org1", profiles)

	result, rpcErr := call(t, ts, "create_config", map[string]any{
		"activity_id": "act1",
		"name":        "Quiz groups",
		"default_criteria": map[string]any{
			"mode": "similarity",
			"criteria": map[string]any{
				"fields":      []map[string]any{{"field_id": "session:score", "weight": 1}},
				"group_count": 2,
			},
		},
	})
	require.Nil(t, rpcErr)
	cfg := decode[mcp.ConfigResponse](t, result)

	result, rpcErr = call(t, ts, "generate_groups", map[string]any{
		"config_id": cfg.ID, "scope": "activity",
	})
	require.Nil(t, rpcErr)
	details := decode[mcp.RunDetailsResponse](t, result)

	_, rpcErr = call(t, ts, "confirm_run", map[string]any{
		"run_id": details.Run.ID, "expected_version": 99,
	})
	require.NotNil(t, rpcErr)
	require.Contains(t, rpcErr.Message, "VERSION_CONFLICT")
}

func TestUnauthorizedToken(t *testing.T) {
	profiles, err := profile.ParseStaticSource([]byte(fixture))
	require.NoError(t, err)
	ts := testserver.New(t, "test-token", "org1", profiles)

	body := bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"list_runs","params":{"activity_id":"act1"}}`)
	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/mcp", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
