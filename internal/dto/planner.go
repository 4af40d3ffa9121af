package dto

// PlanRequest is the payload for POST /planner/plan.
type PlanRequest struct {
	CourseID           *string  `json:"courseId"`
	FromDate           string   `json:"fromDate" validate:"required"`
	ToDate             string   `json:"toDate" validate:"required"`
	SessionMinutes     int      `json:"sessionMinutes" validate:"required,gt=0"`
	DailyCap           int      `json:"dailyCap" validate:"required,gt=0"`
	PreferredStartHour *int     `json:"preferredStartHour" validate:"omitempty,gte=0,lte=23"`
	PreferredEndHour   *int     `json:"preferredEndHour" validate:"omitempty,gte=0,lte=23"`
	Topics             []string `json:"topics"`
	Description        *string  `json:"description"`
	Timezone           string   `json:"timezone"`
}

// PlanSessionResponse echoes one accepted session with ISO timestamps.
type PlanSessionResponse struct {
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Topic       *string `json:"topic,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status"`
}

// PlanResponse is the 201 body for an accepted plan.
type PlanResponse struct {
	PlanID   string                `json:"planId"`
	Sessions []PlanSessionResponse `json:"sessions"`
}
