package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus captures the lifecycle of a persisted study session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Plan is a persisted aggregate of one accepted generation run, scoped to an
// org/user and optionally a course. A plan and its sessions are created in a
// single transaction and never partially written.
type Plan struct {
	ID          string                  `db:"id" json:"id"`
	OrgID       string                  `db:"org_id" json:"org_id"`
	UserID      string                  `db:"user_id" json:"user_id"`
	CourseID    *string                 `db:"course_id" json:"course_id,omitempty"`
	Constraints PlanConstraintsSnapshot `db:"constraints" json:"constraints"`
	FromDate    time.Time               `db:"from_date" json:"from_date"`
	ToDate      time.Time               `db:"to_date" json:"to_date"`
	CreatedAt   time.Time               `db:"created_at" json:"created_at"`
}

// PlanSession is one accepted study interval belonging to a plan.
type PlanSession struct {
	ID          string        `db:"id" json:"id"`
	PlanID      string        `db:"plan_id" json:"plan_id"`
	StartAt     time.Time     `db:"start_at" json:"start"`
	EndAt       time.Time     `db:"end_at" json:"end"`
	Topic       *string       `db:"topic" json:"topic,omitempty"`
	Description *string       `db:"description" json:"description,omitempty"`
	Status      SessionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// PlanConstraintsSnapshot stores the request constraints as JSONB alongside
// the plan so a generation run can be audited or re-run later.
type PlanConstraintsSnapshot struct {
	FromDate           string   `json:"fromDate"`
	ToDate             string   `json:"toDate"`
	SessionMinutes     int      `json:"sessionMinutes"`
	DailyCap           int      `json:"dailyCap"`
	PreferredStartHour *int     `json:"preferredStartHour,omitempty"`
	PreferredEndHour   *int     `json:"preferredEndHour,omitempty"`
	Topics             []string `json:"topics,omitempty"`
	Description        *string  `json:"description,omitempty"`
	Timezone           string   `json:"timezone,omitempty"`
}

// Value marshals the snapshot to JSON for persistence.
func (p PlanConstraintsSnapshot) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal plan constraints: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the snapshot struct.
func (p *PlanConstraintsSnapshot) Scan(value interface{}) error {
	if value == nil {
		*p = PlanConstraintsSnapshot{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for PlanConstraintsSnapshot", value)
	}
	if len(data) == 0 {
		*p = PlanConstraintsSnapshot{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal plan constraints: %w", err)
	}
	return nil
}

// PlanFilter narrows down plan listings.
type PlanFilter struct {
	OrgID    string
	UserID   string
	CourseID *string
	Page     int
	PageSize int
}
