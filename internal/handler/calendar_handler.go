package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyhall-labs/planner-api/internal/middleware"
	"github.com/studyhall-labs/planner-api/internal/service"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
	"github.com/studyhall-labs/planner-api/pkg/response"
)

// CalendarHandler manages busy-window calendar endpoints.
type CalendarHandler struct {
	calendar *service.CalendarService
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: svc}
}

// List godoc
// @Summary List the caller's calendar events
// @Tags Calendar
// @Produce json
// @Param from query string false "RFC3339 range start"
// @Param to query string false "RFC3339 range end"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar/events [get]
func (h *CalendarHandler) List(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CalendarListRequest
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid from timestamp"))
			return
		}
		req.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid to timestamp"))
			return
		}
		req.To = &ts
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = limit
	}

	events, pagination, err := h.calendar.List(c.Request.Context(), claims.OrgID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Fetch a calendar event
// @Tags Calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/events/{id} [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	event, err := h.calendar.Get(c.Request.Context(), c.Param("id"), claims.OrgID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Create a calendar event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.UpsertCalendarEventRequest true "Event"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar/events [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpsertCalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	event, err := h.calendar.Create(c.Request.Context(), claims.OrgID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update a calendar event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpsertCalendarEventRequest true "Event"
// @Success 200 {object} response.Envelope
// @Router /calendar/events/{id} [put]
func (h *CalendarHandler) Update(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpsertCalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	event, err := h.calendar.Update(c.Request.Context(), c.Param("id"), claims.OrgID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete a calendar event
// @Tags Calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 204
// @Router /calendar/events/{id} [delete]
func (h *CalendarHandler) Delete(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.calendar.Delete(c.Request.Context(), c.Param("id"), claims.OrgID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
