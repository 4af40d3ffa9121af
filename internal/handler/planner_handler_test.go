package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall-labs/planner-api/internal/dto"
	"github.com/studyhall-labs/planner-api/internal/middleware"
	"github.com/studyhall-labs/planner-api/internal/models"
	"github.com/studyhall-labs/planner-api/internal/service"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
)

type fakePlannerSrv struct {
	resp    *dto.PlanResponse
	err     error
	lastReq dto.PlanRequest
	lastOrg string
	called  bool
}

func (f *fakePlannerSrv) Plan(_ context.Context, req dto.PlanRequest, orgID, _ string) (*dto.PlanResponse, error) {
	f.called = true
	f.lastReq = req
	f.lastOrg = orgID
	return f.resp, f.err
}

type fakePlanBrowser struct {
	plans     []models.Plan
	plan      *service.PlanWithSessions
	err       error
	deletedID string
}

func (f *fakePlanBrowser) List(context.Context, models.PlanFilter) ([]models.Plan, *models.Pagination, error) {
	return f.plans, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.plans)}, f.err
}

func (f *fakePlanBrowser) Get(context.Context, string, string, string) (*service.PlanWithSessions, error) {
	return f.plan, f.err
}

func (f *fakePlanBrowser) Delete(_ context.Context, id, _, _ string) error {
	f.deletedID = id
	return f.err
}

func plannerTestContext(t *testing.T, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", OrgID: "org-1"})
	return c, rec
}

func TestPlannerHandlerPlanCreated(t *testing.T) {
	srv := &fakePlannerSrv{resp: &dto.PlanResponse{
		PlanID: "plan-1",
		Sessions: []dto.PlanSessionResponse{
			{Start: "2026-09-01T09:00:00Z", End: "2026-09-01T09:45:00Z", Status: "scheduled"},
		},
	}}
	h := NewPlannerHandler(srv, &fakePlanBrowser{})

	c, rec := plannerTestContext(t, http.MethodPost, "/planner/plan", dto.PlanRequest{
		FromDate:       "2026-09-01",
		ToDate:         "2026-09-01",
		SessionMinutes: 45,
		DailyCap:       2,
	})
	h.Plan(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, srv.called)
	assert.Equal(t, "org-1", srv.lastOrg)

	var envelope struct {
		Data dto.PlanResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "plan-1", envelope.Data.PlanID)
	require.Len(t, envelope.Data.Sessions, 1)
	assert.Equal(t, "scheduled", envelope.Data.Sessions[0].Status)
}

func TestPlannerHandlerPlanConflictShape(t *testing.T) {
	srv := &fakePlannerSrv{err: &models.PlanConflictError{Count: 3}}
	h := NewPlannerHandler(srv, &fakePlanBrowser{})

	c, rec := plannerTestContext(t, http.MethodPost, "/planner/plan", dto.PlanRequest{
		FromDate:       "2026-09-01",
		ToDate:         "2026-09-01",
		SessionMinutes: 45,
		DailyCap:       2,
	})
	h.Plan(c)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "conflicts", body["error"])
	assert.Equal(t, float64(3), body["count"])
}

func TestPlannerHandlerPlanRejectsMalformedBody(t *testing.T) {
	srv := &fakePlannerSrv{}
	h := NewPlannerHandler(srv, &fakePlanBrowser{})

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/planner/plan", bytes.NewReader([]byte("{not json")))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", OrgID: "org-1"})

	h.Plan(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, srv.called)
}

func TestPlannerHandlerPlanPropagatesValidationError(t *testing.T) {
	srv := &fakePlannerSrv{err: appErrors.Clone(appErrors.ErrValidation, "preferredEndHour must exceed preferredStartHour")}
	h := NewPlannerHandler(srv, &fakePlanBrowser{})

	c, rec := plannerTestContext(t, http.MethodPost, "/planner/plan", dto.PlanRequest{
		FromDate:       "2026-09-01",
		ToDate:         "2026-09-01",
		SessionMinutes: 45,
		DailyCap:       2,
	})
	h.Plan(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlannerHandlerPlanRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/planner/plan", bytes.NewReader(nil))

	h := NewPlannerHandler(&fakePlannerSrv{}, &fakePlanBrowser{})
	h.Plan(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlannerHandlerDelete(t *testing.T) {
	browser := &fakePlanBrowser{}
	h := NewPlannerHandler(&fakePlannerSrv{}, browser)

	c, rec := plannerTestContext(t, http.MethodDelete, "/planner/plans/plan-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "plan-1"}}
	h.Delete(c)
	// Flush the lazily written status so the recorder sees it.
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "plan-1", browser.deletedID)
}
