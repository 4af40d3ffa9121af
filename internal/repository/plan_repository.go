package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyhall-labs/planner-api/internal/models"
)

// ErrOverlapCommitted is returned when the in-transaction re-check finds
// sessions committed by a concurrent request after the caller's optimistic
// conflict pass.
var ErrOverlapCommitted = errors.New("overlapping sessions committed concurrently")

// PlanRepository persists plans and their sessions.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs a plan repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const sessionColumns = "s.id, s.plan_id, s.start_at, s.end_at, s.topic, s.description, s.status, s.created_at"

// ListSessionsOverlapping returns non-cancelled sessions for the org/user
// whose half-open [start_at, end_at) interval intersects [from, to).
func (r *PlanRepository) ListSessionsOverlapping(ctx context.Context, orgID, userID string, courseID *string, from, to time.Time) ([]models.PlanSession, error) {
	where := []string{"p.org_id = $1", "p.user_id = $2", "s.start_at < $3", "s.end_at > $4", "s.status <> 'cancelled'"}
	args := []interface{}{orgID, userID, to, from}
	if courseID != nil && *courseID != "" {
		where = append(where, fmt.Sprintf("p.course_id = $%d", len(args)+1))
		args = append(args, *courseID)
	}
	query := fmt.Sprintf(`SELECT %s FROM plan_sessions s
JOIN plans p ON p.id = s.plan_id
WHERE %s ORDER BY s.start_at ASC`, sessionColumns, strings.Join(where, " AND "))

	var sessions []models.PlanSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list overlapping sessions: %w", err)
	}
	return sessions, nil
}

// CreateWithSessions atomically persists a plan and all of its sessions.
// A per-(org,user) advisory lock serializes concurrent planning commits, and
// the overlap check is repeated inside the transaction so the loser of a
// race gets ErrOverlapCommitted instead of a double booking.
func (r *PlanRepository) CreateWithSessions(ctx context.Context, plan *models.Plan, sessions []models.PlanSession) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin plan tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", plan.OrgID+":"+plan.UserID); err != nil {
		return fmt.Errorf("acquire plan lock: %w", err)
	}

	var committed int
	const recheck = `SELECT COUNT(*) FROM plan_sessions s
JOIN plans p ON p.id = s.plan_id
WHERE p.org_id = $1 AND p.user_id = $2 AND s.start_at < $3 AND s.end_at > $4 AND s.status <> 'cancelled'`
	if err := tx.GetContext(ctx, &committed, recheck, plan.OrgID, plan.UserID, plan.ToDate.AddDate(0, 0, 1), plan.FromDate); err != nil {
		return fmt.Errorf("recheck overlap: %w", err)
	}
	if committed > 0 {
		if conflicted, err := r.anySessionOverlaps(ctx, tx, plan, sessions); err != nil {
			return err
		} else if conflicted {
			return ErrOverlapCommitted
		}
	}

	const insertPlan = `INSERT INTO plans (id, org_id, user_id, course_id, constraints, from_date, to_date, created_at)
VALUES (:id, :org_id, :user_id, :course_id, :constraints, :from_date, :to_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertPlan, plan); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	const insertSession = `INSERT INTO plan_sessions (id, plan_id, start_at, end_at, topic, description, status, created_at)
VALUES (:id, :plan_id, :start_at, :end_at, :topic, :description, :status, :created_at)`
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
		sessions[i].PlanID = plan.ID
		if sessions[i].Status == "" {
			sessions[i].Status = models.SessionStatusScheduled
		}
		if sessions[i].CreatedAt.IsZero() {
			sessions[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertSession, sessions[i]); err != nil {
			return fmt.Errorf("insert plan session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan: %w", err)
	}
	return nil
}

// anySessionOverlaps narrows the coarse date-range count down to exact
// interval collisions against the proposed sessions.
func (r *PlanRepository) anySessionOverlaps(ctx context.Context, tx *sqlx.Tx, plan *models.Plan, sessions []models.PlanSession) (bool, error) {
	const query = `SELECT COUNT(*) FROM plan_sessions s
JOIN plans p ON p.id = s.plan_id
WHERE p.org_id = $1 AND p.user_id = $2 AND s.start_at < $3 AND s.end_at > $4 AND s.status <> 'cancelled'`
	for _, session := range sessions {
		var count int
		if err := tx.GetContext(ctx, &count, query, plan.OrgID, plan.UserID, session.EndAt, session.StartAt); err != nil {
			return false, fmt.Errorf("recheck session overlap: %w", err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// GetByID fetches a plan.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	const query = `SELECT id, org_id, user_id, course_id, constraints, from_date, to_date, created_at
FROM plans WHERE id = $1`
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListSessions returns a plan's sessions in chronological order.
func (r *PlanRepository) ListSessions(ctx context.Context, planID string) ([]models.PlanSession, error) {
	const query = `SELECT id, plan_id, start_at, end_at, topic, description, status, created_at
FROM plan_sessions WHERE plan_id = $1 ORDER BY start_at ASC`
	var sessions []models.PlanSession
	if err := r.db.SelectContext(ctx, &sessions, query, planID); err != nil {
		return nil, fmt.Errorf("list plan sessions: %w", err)
	}
	return sessions, nil
}

// List returns plans matching the filter.
func (r *PlanRepository) List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, int, error) {
	where := []string{"org_id = $1", "user_id = $2"}
	args := []interface{}{filter.OrgID, filter.UserID}
	if filter.CourseID != nil && *filter.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, *filter.CourseID)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, org_id, user_id, course_id, constraints, from_date, to_date, created_at
FROM plans WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, whereClause, size, offset)
	var plans []models.Plan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM plans WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count plans: %w", err)
	}
	return plans, total, nil
}

// Delete removes a plan; plan_sessions cascade via FK.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM plans WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
