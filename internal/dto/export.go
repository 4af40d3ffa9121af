package dto

import "github.com/studyhall-labs/planner-api/internal/models"

// ExportRequest is the payload for POST /planner/plans/:id/exports.
type ExportRequest struct {
	Format   string `json:"format" validate:"required,oneof=csv pdf ics"`
	Timezone string `json:"timezone"`
}

// ExportJobResponse acknowledges a queued export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes job progress and the signed download token
// once the export finishes.
type ExportStatusResponse struct {
	ID            string              `json:"id"`
	PlanID        string              `json:"plan_id"`
	Status        models.ExportStatus `json:"status"`
	Format        models.ExportFormat `json:"format"`
	DownloadToken *string             `json:"download_token,omitempty"`
	ErrorMessage  *string             `json:"error_message,omitempty"`
}
