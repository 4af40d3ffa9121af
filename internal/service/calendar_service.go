package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyhall-labs/planner-api/internal/models"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
)

type calendarRepository interface {
	List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error)
	GetByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, id string) error
}

// CalendarService manages the user calendar events that double as local busy
// windows for planning.
type CalendarService struct {
	repo      calendarRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, validator: validate, logger: logger}
}

// CalendarListRequest describes filters for listing events.
type CalendarListRequest struct {
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// UpsertCalendarEventRequest describes create/update payloads.
type UpsertCalendarEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description *string   `json:"description"`
	StartAt     time.Time `json:"start_at" validate:"required"`
	EndAt       time.Time `json:"end_at" validate:"required"`
	Location    *string   `json:"location"`
}

// List returns the caller's calendar events.
func (s *CalendarService) List(ctx context.Context, orgID, userID string, req CalendarListRequest) ([]models.CalendarEvent, *models.Pagination, error) {
	filter := models.CalendarFilter{
		OrgID:    orgID,
		UserID:   userID,
		From:     req.From,
		To:       req.To,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendar events")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return events, pagination, nil
}

// Get returns an event by id, scoped to the caller.
func (s *CalendarService) Get(ctx context.Context, id, orgID, userID string) (*models.CalendarEvent, error) {
	return s.loadOwned(ctx, id, orgID, userID)
}

// Create registers a new event.
func (s *CalendarService) Create(ctx context.Context, orgID, userID string, req UpsertCalendarEventRequest) (*models.CalendarEvent, error) {
	if err := s.validateEvent(req); err != nil {
		return nil, err
	}
	event := &models.CalendarEvent{
		OrgID:       orgID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Location:    req.Location,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Update modifies an event.
func (s *CalendarService) Update(ctx context.Context, id, orgID, userID string, req UpsertCalendarEventRequest) (*models.CalendarEvent, error) {
	if err := s.validateEvent(req); err != nil {
		return nil, err
	}
	event, err := s.loadOwned(ctx, id, orgID, userID)
	if err != nil {
		return nil, err
	}
	event.Title = req.Title
	event.Description = req.Description
	event.StartAt = req.StartAt
	event.EndAt = req.EndAt
	event.Location = req.Location
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Delete removes a calendar event.
func (s *CalendarService) Delete(ctx context.Context, id, orgID, userID string) error {
	if _, err := s.loadOwned(ctx, id, orgID, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}

func (s *CalendarService) validateEvent(req UpsertCalendarEventRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !req.EndAt.After(req.StartAt) {
		return appErrors.Clone(appErrors.ErrValidation, "end_at must be after start_at")
	}
	return nil
}

func (s *CalendarService) loadOwned(ctx context.Context, id, orgID, userID string) (*models.CalendarEvent, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.OrgID != orgID || event.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return event, nil
}
