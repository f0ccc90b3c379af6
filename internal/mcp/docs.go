package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `matchkit builds groups of people from their attribute profiles.

Core concepts:
- Config: per-activity grouping settings, including optional default criteria.
- Criteria: a tagged envelope {mode, criteria}. Modes: split (bucket by 1-2 field values), similarity (alike groups), diversity (mixed groups), balanced (equal-strength teams from numeric fields).
- Run: one generation attempt. Starts "generated", ends "confirmed". Confirmed runs are immutable.
- Proposal: one group within a run. Admins may override its membership before confirming.
- Variety: criteria with variety_weight > 0 penalize repeating pairs from recent confirmed runs of the same activity.

Default workflow:
1) create_config once per activity (or get_config to find it).
2) generate_groups with scope "session" (one event) or "activity" (everyone).
3) Inspect the returned proposals; adjust with update_proposal_members if needed.
4) confirm_run with the run's current version. Every included person must sit in exactly one group.
5) Later runs read confirmed history, so confirm the groupings you actually used.

Concurrency: update_proposal_members and confirm_run take expected_version. On VERSION_CONFLICT, refetch with get_run and retry against the new version.

Docs:
- matchkit://docs/criteria (criteria shapes per mode)
- matchkit://docs/fields (field namespaces and types)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "matchkit://docs/criteria",
		Name:        "docs_criteria",
		Title:       "Criteria reference",
		Description: "The criteria envelope and the body shape for each grouping mode.",
		Content: `# Criteria reference

Every criteria value is a tagged envelope:

    {"mode": "<split|similarity|diversity|balanced>", "criteria": {...}}

## split

Buckets people by the literal values of 1-2 fields. Nobody is excluded;
missing values land in an "Unknown" bucket.

    {"mode": "split", "criteria": {"fields": ["org:gender"]}}

## similarity / diversity

Clusters people so groups are internally alike (similarity) or internally
mixed (diversity). 1-10 weighted fields, group_count >= 2. People missing a
value on any criteria field are excluded from grouping but stay on the run
for audit.

    {"mode": "similarity", "criteria": {
      "fields": [{"field_id": "session:skill", "weight": 2},
                 {"field_id": "org:department", "weight": 1}],
      "group_count": 4,
      "variety_weight": 0.5
    }}

## balanced

Builds team_count teams of near-equal total strength from numeric balance
fields. Optional partition_fields (up to 2) spread categories evenly across
teams; people with non-numeric balance values are excluded.

    {"mode": "balanced", "criteria": {
      "balance_fields": [{"field_id": "ranking:elo", "weight": 1}],
      "team_count": 2,
      "partition_fields": ["org:gender"]
    }}

## variety_weight

0 disables the repeat-pair penalty. Higher values push recently co-grouped
people apart. The penalty looks back over the activity's recent confirmed
runs only, so unconfirmed experiments never count.
`,
	},
	{
		URI:         "matchkit://docs/fields",
		Name:        "docs_fields",
		Title:       "Field reference",
		Description: "Field id namespaces, value types, and how each type is compared.",
		Content: `# Field reference

Field ids are namespaced by origin so ids never collide:

- org:<id>      organization-level member attributes
- session:<id>  answers collected for one session
- ranking:<id>  computed scores and ratings

Value types and their distance semantics:

- categorical  equal (case-insensitive) = 0, different = 1
- text         same as categorical
- boolean      strict equality, no coercion
- multi        Jaccard distance over the two sets
- numeric      |a-b| / observed range; zero-variance fields compare equal
- ordinal      rank distance / rank span when the catalog defines ranks

A missing value on either side always compares as maximally distant (1.0).
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
