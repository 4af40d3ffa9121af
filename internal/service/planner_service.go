package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyhall-labs/planner-api/internal/dto"
	"github.com/studyhall-labs/planner-api/internal/freebusy"
	"github.com/studyhall-labs/planner-api/internal/models"
	"github.com/studyhall-labs/planner-api/internal/planner"
	"github.com/studyhall-labs/planner-api/internal/repository"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
)

type planStore interface {
	ListSessionsOverlapping(ctx context.Context, orgID, userID string, courseID *string, from, to time.Time) ([]models.PlanSession, error)
	CreateWithSessions(ctx context.Context, plan *models.Plan, sessions []models.PlanSession) error
}

type plannerMetrics interface {
	ObservePlanAccepted(sessions int)
	ObservePlanConflicts(pairs int)
}

// PlannerService runs the full planning pipeline: validate constraints, load
// existing commitments, generate candidates, detect conflicts, and persist
// the accepted plan atomically. Steps before persistence are read-only, so a
// failed request leaves no partial state and is safe to retry.
type PlannerService struct {
	plans     planStore
	busy      freebusy.Source
	validator *validator.Validate
	logger    *zap.Logger
	metrics   plannerMetrics
	cfg       PlannerServiceConfig
}

// PlannerServiceConfig governs generation defaults and limits.
type PlannerServiceConfig struct {
	// DefaultLocation is used when a request carries no timezone. Nil falls
	// back to time.Local.
	DefaultLocation *time.Location
	// MaxRangeDays caps the planning window; zero disables the cap.
	MaxRangeDays int
}

// NewPlannerService wires the planning pipeline.
func NewPlannerService(plans planStore, busy freebusy.Source, validate *validator.Validate, logger *zap.Logger, metrics plannerMetrics, cfg PlannerServiceConfig) *PlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlannerService{
		plans:     plans,
		busy:      busy,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Plan executes one planning request for the authenticated org/user.
// Error taxonomy: malformed input returns a validation error before any
// collaborator is touched; conflicts return *models.PlanConflictError; a
// failing busy-window provider propagates rather than being ignored.
func (s *PlannerService) Plan(ctx context.Context, req dto.PlanRequest, orgID, userID string) (*dto.PlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	if req.PreferredStartHour != nil && req.PreferredEndHour != nil && *req.PreferredEndHour <= *req.PreferredStartHour {
		return nil, appErrors.Clone(appErrors.ErrValidation, "preferredEndHour must exceed preferredStartHour")
	}

	loc, err := s.resolveLocation(req.Timezone)
	if err != nil {
		return nil, err
	}

	from, err := parsePlanDate(req.FromDate, loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("fromDate: %v", err))
	}
	to, err := parsePlanDate(req.ToDate, loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("toDate: %v", err))
	}

	if s.cfg.MaxRangeDays > 0 && to.After(from.AddDate(0, 0, s.cfg.MaxRangeDays)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.cfg.MaxRangeDays))
	}

	constraints := planner.Constraints{
		From:               from,
		To:                 to,
		SessionMinutes:     req.SessionMinutes,
		DailyCap:           req.DailyCap,
		PreferredStartHour: req.PreferredStartHour,
		PreferredEndHour:   req.PreferredEndHour,
		Topics:             req.Topics,
		Description:        req.Description,
		Location:           loc,
	}

	// Range end is exclusive: the day after the last planned day.
	rangeStart := startOfDayIn(from, loc)
	rangeEnd := startOfDayIn(to, loc).AddDate(0, 0, 1)
	if rangeEnd.Before(rangeStart) {
		rangeEnd = rangeStart
	}

	existingSessions, err := s.plans.ListSessionsOverlapping(ctx, orgID, userID, req.CourseID, rangeStart, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing sessions")
	}

	busyWindows, err := s.busy.BusyWindows(ctx, orgID, userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load busy windows")
	}

	drafts := constraints.Generate()

	existing := make([]planner.Interval, 0, len(existingSessions)+len(busyWindows))
	for _, session := range existingSessions {
		existing = append(existing, planner.Interval{Start: session.StartAt, End: session.EndAt, Ref: "session:" + session.ID})
	}
	for _, window := range busyWindows {
		existing = append(existing, planner.Interval{Start: window.Start, End: window.End, Ref: "busy:" + window.Source})
	}

	proposed := make([]planner.Interval, 0, len(drafts))
	for _, draft := range drafts {
		proposed = append(proposed, planner.Interval{Start: draft.Start, End: draft.End})
	}

	conflicts := planner.DetectConflicts(existing, proposed)
	if len(conflicts) > 0 {
		if s.metrics != nil {
			s.metrics.ObservePlanConflicts(len(conflicts))
		}
		s.logger.Sugar().Infow("plan rejected",
			"org_id", orgID, "user_id", userID, "conflicts", len(conflicts))
		return nil, &models.PlanConflictError{Count: len(conflicts), Conflicts: conflicts}
	}

	plan := &models.Plan{
		OrgID:    orgID,
		UserID:   userID,
		CourseID: req.CourseID,
		FromDate: rangeStart,
		ToDate:   startOfDayIn(to, loc),
		Constraints: models.PlanConstraintsSnapshot{
			FromDate:           req.FromDate,
			ToDate:             req.ToDate,
			SessionMinutes:     req.SessionMinutes,
			DailyCap:           req.DailyCap,
			PreferredStartHour: req.PreferredStartHour,
			PreferredEndHour:   req.PreferredEndHour,
			Topics:             req.Topics,
			Description:        req.Description,
			Timezone:           loc.String(),
		},
	}

	sessions := make([]models.PlanSession, 0, len(drafts))
	for _, draft := range drafts {
		sessions = append(sessions, models.PlanSession{
			StartAt:     draft.Start,
			EndAt:       draft.End,
			Topic:       draft.Topic,
			Description: draft.Description,
			Status:      models.SessionStatusScheduled,
		})
	}

	if err := s.plans.CreateWithSessions(ctx, plan, sessions); err != nil {
		if errors.Is(err, repository.ErrOverlapCommitted) {
			// A concurrent request committed overlapping sessions between our
			// read and the transaction; surface it as a conflict outcome.
			if s.metrics != nil {
				s.metrics.ObservePlanConflicts(1)
			}
			return nil, &models.PlanConflictError{Count: 1}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersist.Code, appErrors.ErrPersist.Status, "failed to persist plan")
	}

	if s.metrics != nil {
		s.metrics.ObservePlanAccepted(len(sessions))
	}
	s.logger.Sugar().Infow("plan accepted",
		"plan_id", plan.ID, "org_id", orgID, "user_id", userID, "sessions", len(sessions))

	resp := &dto.PlanResponse{PlanID: plan.ID, Sessions: make([]dto.PlanSessionResponse, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, dto.PlanSessionResponse{
			Start:       session.StartAt.Format(time.RFC3339),
			End:         session.EndAt.Format(time.RFC3339),
			Topic:       session.Topic,
			Description: session.Description,
			Status:      string(session.Status),
		})
	}
	return resp, nil
}

func (s *PlannerService) resolveLocation(tz string) (*time.Location, error) {
	if tz == "" {
		if s.cfg.DefaultLocation != nil {
			return s.cfg.DefaultLocation, nil
		}
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown timezone %q", tz))
	}
	return loc, nil
}

// parsePlanDate accepts RFC3339 timestamps or bare calendar dates.
func parsePlanDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func startOfDayIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
