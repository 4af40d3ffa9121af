package models

import (
	"fmt"

	"github.com/studyhall-labs/planner-api/internal/planner"
)

// PlanConflictError is returned when proposed sessions collide with existing
// commitments. It is an expected business outcome, not an internal failure;
// the handler renders it as a 409 with the pair count.
type PlanConflictError struct {
	Count     int                `json:"count"`
	Conflicts []planner.Conflict `json:"conflicts,omitempty"`
}

// Error implements the error interface.
func (e *PlanConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("plan conflicts with %d existing commitment pair(s)", e.Count)
}
