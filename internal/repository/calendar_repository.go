package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyhall-labs/planner-api/internal/models"
)

// CalendarRepository persists user calendar events.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

const eventColumns = "id, org_id, user_id, title, description, start_at, end_at, location, created_at, updated_at"

// List returns calendar events matching filters.
func (r *CalendarRepository) List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error) {
	where := []string{"org_id = $1", "user_id = $2"}
	args := []interface{}{filter.OrgID, filter.UserID}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("end_at > $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("start_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM calendar_events WHERE %s ORDER BY start_at ASC LIMIT %d OFFSET %d",
		eventColumns, whereClause, size, offset)
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list calendar events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM calendar_events WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count calendar events: %w", err)
	}
	return events, total, nil
}

// ListInRange returns events overlapping [from, to) for the busy source.
func (r *CalendarRepository) ListInRange(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.CalendarEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_events
WHERE org_id = $1 AND user_id = $2 AND start_at < $3 AND end_at > $4 ORDER BY start_at ASC`, eventColumns)
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, orgID, userID, to, from); err != nil {
		return nil, fmt.Errorf("list calendar events in range: %w", err)
	}
	return events, nil
}

// GetByID fetches an event.
func (r *CalendarRepository) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM calendar_events WHERE id = $1", eventColumns)
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts an event.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO calendar_events (id, org_id, user_id, title, description, start_at, end_at, location, created_at, updated_at)
VALUES (:id, :org_id, :user_id, :title, :description, :start_at, :end_at, :location, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// Update modifies an event.
func (r *CalendarRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendar_events SET title = :title, description = :description, start_at = :start_at,
end_at = :end_at, location = :location, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	return nil
}

// Delete removes an event.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
