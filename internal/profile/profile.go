// Package profile defines the contract with the member-profile aggregation
// collaborator. The engine consumes attribute snapshots and the field catalog
// through it; how profiles are assembled is outside this subsystem.
package profile

import (
	"context"

	"github.com/gatherly/matchkit/internal/domain/grouping"
)

// MemberProfile is one person's aggregated attribute map. Field ids are
// namespaced by source ("org:", "session:", "ranking:") so ids from different
// origins never collide.
type MemberProfile struct {
	PersonID   string                    `json:"person_id"`
	Attributes map[string]grouping.Value `json:"attributes"`
}

// Query scopes a profile or catalog lookup. SessionID is empty for
// activity-scope requests. An empty PersonIDs means everyone in scope.
type Query struct {
	OrgID      string
	ActivityID string
	SessionID  string
	PersonIDs  []string
}

// Source supplies member profiles and the field catalog.
type Source interface {
	BuildMemberProfiles(ctx context.Context, q Query) ([]MemberProfile, error)
	AvailableFields(ctx context.Context, q Query) ([]grouping.FieldCatalogEntry, error)
}
