package groupconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/repository"
	"github.com/google/uuid"
)

// Service handles grouping-config operations.
type Service struct {
	configs Repository
	logger  *slog.Logger
}

// NewService creates a new config service.
func NewService(configs Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{configs: configs, logger: logger}
}

// CreateRequest describes a new config for an activity.
type CreateRequest struct {
	ActivityID      string
	Name            string
	DefaultCriteria grouping.Criteria
}

// UpdateRequest carries partial config changes.
type UpdateRequest struct {
	ConfigID        string
	Name            *string
	DefaultCriteria grouping.Criteria
}

// Create registers the single grouping config for an activity.
func (s *Service) Create(ctx context.Context, orgID string, req CreateRequest) (*Config, error) {
	if req.ActivityID == "" || req.Name == "" {
		return nil, ErrInvalidInput
	}
	if req.DefaultCriteria != nil {
		if err := req.DefaultCriteria.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	cfg := &Config{
		ID:              uuid.NewString(),
		OrgID:           orgID,
		ActivityID:      req.ActivityID,
		Name:            req.Name,
		DefaultCriteria: req.DefaultCriteria,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.configs.Create(ctx, orgID, cfg); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, ErrDuplicateConfig
		}
		return nil, fmt.Errorf("creating config: %w", err)
	}

	s.logger.Info("grouping config created", "config_id", cfg.ID, "activity_id", cfg.ActivityID)
	return cfg, nil
}

// Update changes a config's name and/or default criteria.
func (s *Service) Update(ctx context.Context, orgID string, req UpdateRequest) (*Config, error) {
	if req.ConfigID == "" {
		return nil, ErrInvalidInput
	}

	cfg, err := s.configs.Get(ctx, orgID, req.ConfigID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, ErrInvalidInput
		}
		cfg.Name = *req.Name
	}
	if req.DefaultCriteria != nil {
		if err := req.DefaultCriteria.Validate(); err != nil {
			return nil, err
		}
		cfg.DefaultCriteria = req.DefaultCriteria
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := s.configs.Update(ctx, orgID, cfg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("updating config: %w", err)
	}
	return cfg, nil
}

// Get loads a config by id.
func (s *Service) Get(ctx context.Context, orgID, id string) (*Config, error) {
	cfg, err := s.configs.Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// GetByActivity loads the activity's config.
func (s *Service) GetByActivity(ctx context.Context, orgID, activityID string) (*Config, error) {
	if activityID == "" {
		return nil, ErrInvalidInput
	}
	cfg, err := s.configs.GetByActivity(ctx, orgID, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
