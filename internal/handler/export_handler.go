package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhall-labs/planner-api/internal/dto"
	"github.com/studyhall-labs/planner-api/internal/middleware"
	"github.com/studyhall-labs/planner-api/internal/models"
	"github.com/studyhall-labs/planner-api/internal/service"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
	"github.com/studyhall-labs/planner-api/pkg/response"
)

var exportContentTypes = map[models.ExportFormat]string{
	models.ExportFormatCSV: "text/csv",
	models.ExportFormatPDF: "application/pdf",
	models.ExportFormatICS: "text/calendar",
}

// ExportHandler manages plan export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: svc}
}

// Create godoc
// @Summary Queue an export of a plan's sessions
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.ExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /planner/plans/{id}/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	job, err := h.exports.CreateJob(c.Request.Context(), c.Param("id"), claims.OrgID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Report export job progress
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.exports.GetStatus(c.Request.Context(), c.Param("id"), claims.OrgID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Stream a finished export using a signed token
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Export job ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /exports/{id}/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing download token"))
		return
	}

	download, err := h.exports.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	contentType := exportContentTypes[download.Format]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Content-Type", contentType)
	http.ServeContent(c.Writer, c.Request, download.Filename, info.ModTime(), download.File)
}
