package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyhall-labs/planner-api/internal/dto"
	"github.com/studyhall-labs/planner-api/internal/middleware"
	"github.com/studyhall-labs/planner-api/internal/models"
	"github.com/studyhall-labs/planner-api/internal/service"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
	"github.com/studyhall-labs/planner-api/pkg/response"
)

type plannerRunner interface {
	Plan(ctx context.Context, req dto.PlanRequest, orgID, userID string) (*dto.PlanResponse, error)
}

type planBrowser interface {
	List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, *models.Pagination, error)
	Get(ctx context.Context, id, orgID, userID string) (*service.PlanWithSessions, error)
	Delete(ctx context.Context, id, orgID, userID string) error
}

// PlannerHandler manages planning and plan endpoints.
type PlannerHandler struct {
	planner plannerRunner
	plans   planBrowser
}

// NewPlannerHandler constructs handler.
func NewPlannerHandler(plannerSvc plannerRunner, planSvc planBrowser) *PlannerHandler {
	return &PlannerHandler{planner: plannerSvc, plans: planSvc}
}

// Plan godoc
// @Summary Generate and persist a study plan
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.PlanRequest true "Plan constraints"
// @Success 201 {object} dto.PlanResponse
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} map[string]interface{}
// @Router /planner/plan [post]
func (h *PlannerHandler) Plan(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	resp, err := h.planner.Plan(c.Request.Context(), req, claims.OrgID, claims.UserID)
	if err != nil {
		var conflictErr *models.PlanConflictError
		if errors.As(err, &conflictErr) {
			// Conflicts are a first-class business outcome with their own
			// wire shape, not an error envelope.
			c.JSON(http.StatusConflict, gin.H{"error": "conflicts", "count": conflictErr.Count})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// List godoc
// @Summary List the caller's plans
// @Tags Planner
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /planner/plans [get]
func (h *PlannerHandler) List(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PlanFilter{OrgID: claims.OrgID, UserID: claims.UserID}
	if courseID := c.Query("courseId"); courseID != "" {
		filter.CourseID = &courseID
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	plans, pagination, err := h.plans.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Fetch a plan with its sessions
// @Tags Planner
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /planner/plans/{id} [get]
func (h *PlannerHandler) Get(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	plan, err := h.plans.Get(c.Request.Context(), c.Param("id"), claims.OrgID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete a plan and its sessions
// @Tags Planner
// @Produce json
// @Param id path string true "Plan ID"
// @Success 204
// @Router /planner/plans/{id} [delete]
func (h *PlannerHandler) Delete(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.plans.Delete(c.Request.Context(), c.Param("id"), claims.OrgID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
