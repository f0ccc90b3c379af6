package run

import (
	"time"

	"github.com/gatherly/matchkit/internal/domain/grouping"
)

// Scope says whether a run covers one session's participants or the whole
// activity's members.
type Scope string

const (
	ScopeSession  Scope = "session"
	ScopeActivity Scope = "activity"
)

// Status is the run lifecycle state. Runs start generated and end confirmed;
// there are no other transitions.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusConfirmed Status = "confirmed"
)

// ProposalStatus tracks what happened to a generated group.
type ProposalStatus string

const (
	ProposalProposed ProposalStatus = "proposed"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalModified ProposalStatus = "modified"
)

// Run is one generation attempt. Version starts at 1 and only moves under a
// successful optimistic-lock update.
type Run struct {
	ID            string            `json:"id"`
	OrgID         string            `json:"org_id"`
	ConfigID      string            `json:"config_id"`
	ActivityID    string            `json:"activity_id"`
	SessionID     string            `json:"session_id,omitempty"`
	Scope         Scope             `json:"scope"`
	Status        Status            `json:"status"`
	Version       int64             `json:"version"`
	Criteria      grouping.Criteria `json:"criteria"`
	EntryCount    int               `json:"entry_count"`
	GroupCount    int               `json:"group_count"`
	ExcludedCount int               `json:"excluded_count"`
	CreatedAt     time.Time         `json:"created_at"`
	ConfirmedAt   *time.Time        `json:"confirmed_at,omitempty"`
}

// Entry is one person's attribute snapshot inside a run. People excluded from
// grouping are kept with Excluded set, for audit and display.
type Entry struct {
	RunID      string                    `json:"run_id"`
	PersonID   string                    `json:"person_id"`
	Attributes map[string]grouping.Value `json:"attributes"`
	Excluded   bool                      `json:"excluded"`
}

// Proposal is one group within a run. ModifiedMemberIDs, when set, overrides
// the generated membership.
type Proposal struct {
	ID                string         `json:"id"`
	RunID             string         `json:"run_id"`
	GroupIndex        int            `json:"group_index"`
	GroupName         string         `json:"group_name"`
	MemberIDs         []string       `json:"member_ids"`
	ModifiedMemberIDs []string       `json:"modified_member_ids,omitempty"`
	Status            ProposalStatus `json:"status"`
	Version           int64          `json:"version"`
}

// EffectiveMembers returns the membership that counts: the admin override when
// present, otherwise the generated one.
func (p *Proposal) EffectiveMembers() []string {
	if p.ModifiedMemberIDs != nil {
		return p.ModifiedMemberIDs
	}
	return p.MemberIDs
}

// HistoryPair records that two people were confirmed together in a run.
// PersonA is always the lexicographically smaller id.
type HistoryPair struct {
	RunID   string `json:"run_id"`
	PersonA string `json:"person_a"`
	PersonB string `json:"person_b"`
}

// NewHistoryPair canonicalizes the pair ordering.
func NewHistoryPair(runID, a, b string) HistoryPair {
	if b < a {
		a, b = b, a
	}
	return HistoryPair{RunID: runID, PersonA: a, PersonB: b}
}

// Details bundles a run with its entries and proposals.
type Details struct {
	Run       Run        `json:"run"`
	Entries   []Entry    `json:"entries"`
	Proposals []Proposal `json:"proposals"`
}

// ListRunsOptions provides filtering options for run history queries.
type ListRunsOptions struct {
	ActivityID string
	Limit      int
}
