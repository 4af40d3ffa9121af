package models

import "time"

// CalendarEvent represents a user-owned calendar entry. Events double as
// busy windows when planning study sessions.
type CalendarEvent struct {
	ID          string    `db:"id" json:"id"`
	OrgID       string    `db:"org_id" json:"org_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	StartAt     time.Time `db:"start_at" json:"start_at"`
	EndAt       time.Time `db:"end_at" json:"end_at"`
	Location    *string   `db:"location" json:"location,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CalendarFilter narrows down events.
type CalendarFilter struct {
	OrgID    string
	UserID   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
