package groupconfig

import (
	"time"

	"github.com/gatherly/matchkit/internal/domain/grouping"
)

// Config holds the grouping setup for one activity. Each activity has at most
// one config; the default criteria can be overridden per generation request.
type Config struct {
	ID              string            `json:"id"`
	OrgID           string            `json:"org_id"`
	ActivityID      string            `json:"activity_id"`
	Name            string            `json:"name"`
	DefaultCriteria grouping.Criteria `json:"default_criteria,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
