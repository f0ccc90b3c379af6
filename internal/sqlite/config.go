package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/repository"
)

// ConfigRepository implements groupconfig.Repository for SQLite
type ConfigRepository struct {
	db *DB
}

// NewConfigRepository creates a new ConfigRepository
func NewConfigRepository(db *DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Create inserts a config. The (org_id, activity_id) unique constraint maps
// to repository.ErrUniqueViolation.
func (r *ConfigRepository) Create(ctx context.Context, orgID string, cfg *groupconfig.Config) error {
	criteria, err := encodeCriteria(cfg.DefaultCriteria)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO group_configs (id, org_id, activity_id, name, default_criteria, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		cfg.ID,
		orgID,
		cfg.ActivityID,
		cfg.Name,
		criteria,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrUniqueViolation
		}
		return fmt.Errorf("failed to create config: %w", err)
	}
	return nil
}

// Update rewrites the config's mutable fields
func (r *ConfigRepository) Update(ctx context.Context, orgID string, cfg *groupconfig.Config) error {
	criteria, err := encodeCriteria(cfg.DefaultCriteria)
	if err != nil {
		return err
	}

	query := `
		UPDATE group_configs
		SET name = ?, default_criteria = ?, updated_at = ?
		WHERE id = ? AND org_id = ?
	`
	result, err := r.db.ExecContext(ctx, query, cfg.Name, criteria, cfg.UpdatedAt, cfg.ID, orgID)
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Get retrieves a config by ID
func (r *ConfigRepository) Get(ctx context.Context, orgID, id string) (*groupconfig.Config, error) {
	query := `
		SELECT id, org_id, activity_id, name, default_criteria, created_at, updated_at
		FROM group_configs
		WHERE id = ? AND org_id = ?
	`
	return r.scanConfig(r.db.QueryRowContext(ctx, query, id, orgID))
}

// GetByActivity retrieves the activity's single config
func (r *ConfigRepository) GetByActivity(ctx context.Context, orgID, activityID string) (*groupconfig.Config, error) {
	query := `
		SELECT id, org_id, activity_id, name, default_criteria, created_at, updated_at
		FROM group_configs
		WHERE activity_id = ? AND org_id = ?
	`
	return r.scanConfig(r.db.QueryRowContext(ctx, query, activityID, orgID))
}

func (r *ConfigRepository) scanConfig(row *sql.Row) (*groupconfig.Config, error) {
	var cfg groupconfig.Config
	var criteria sql.NullString
	err := row.Scan(
		&cfg.ID,
		&cfg.OrgID,
		&cfg.ActivityID,
		&cfg.Name,
		&criteria,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	if criteria.Valid {
		c, err := grouping.DecodeCriteria([]byte(criteria.String))
		if err != nil {
			return nil, fmt.Errorf("failed to decode criteria: %w", err)
		}
		cfg.DefaultCriteria = c
	}
	return &cfg, nil
}

// encodeCriteria serializes criteria to a nullable TEXT column value.
func encodeCriteria(c grouping.Criteria) (any, error) {
	if c == nil {
		return nil, nil
	}
	data, err := grouping.EncodeCriteria(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}
	return string(data), nil
}
