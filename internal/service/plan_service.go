package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/studyhall-labs/planner-api/internal/models"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
)

type planReader interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	ListSessions(ctx context.Context, planID string) ([]models.PlanSession, error)
	List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, int, error)
	Delete(ctx context.Context, id string) error
}

// PlanService exposes read and delete operations over persisted plans.
type PlanService struct {
	repo   planReader
	logger *zap.Logger
}

// NewPlanService constructs the service.
func NewPlanService(repo planReader, logger *zap.Logger) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{repo: repo, logger: logger}
}

// PlanWithSessions aggregates a plan and its sessions for API consumption.
type PlanWithSessions struct {
	Plan     models.Plan          `json:"plan"`
	Sessions []models.PlanSession `json:"sessions"`
}

// List returns the caller's plans.
func (s *PlanService) List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return plans, pagination, nil
}

// Get returns a plan with its sessions. Cross-tenant lookups surface as not
// found rather than forbidden to avoid leaking plan existence.
func (s *PlanService) Get(ctx context.Context, id, orgID, userID string) (*PlanWithSessions, error) {
	plan, err := s.loadOwned(ctx, id, orgID, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListSessions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan sessions")
	}
	return &PlanWithSessions{Plan: *plan, Sessions: sessions}, nil
}

// Delete removes a plan and its sessions.
func (s *PlanService) Delete(ctx context.Context, id, orgID, userID string) error {
	if _, err := s.loadOwned(ctx, id, orgID, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan")
	}
	s.logger.Sugar().Infow("plan deleted", "plan_id", id, "org_id", orgID, "user_id", userID)
	return nil
}

func (s *PlanService) loadOwned(ctx context.Context, id, orgID, userID string) (*models.Plan, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.OrgID != orgID || plan.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	return plan, nil
}
