package groupconfig

import "context"

// Repository persists grouping configs.
type Repository interface {
	Create(ctx context.Context, orgID string, cfg *Config) error
	Update(ctx context.Context, orgID string, cfg *Config) error
	Get(ctx context.Context, orgID, id string) (*Config, error)
	GetByActivity(ctx context.Context, orgID, activityID string) (*Config, error)
}
