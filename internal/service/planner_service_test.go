package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyhall-labs/planner-api/internal/dto"
	"github.com/studyhall-labs/planner-api/internal/models"
	"github.com/studyhall-labs/planner-api/internal/repository"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
)

type mockPlanStore struct {
	sessions    []models.PlanSession
	listErr     error
	createErr   error
	listCalls   int
	createCalls int

	createdPlan     *models.Plan
	createdSessions []models.PlanSession
}

func (m *mockPlanStore) ListSessionsOverlapping(ctx context.Context, orgID, userID string, courseID *string, from, to time.Time) ([]models.PlanSession, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sessions, nil
}

func (m *mockPlanStore) CreateWithSessions(ctx context.Context, plan *models.Plan, sessions []models.PlanSession) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	plan.ID = "plan-1"
	m.createdPlan = plan
	m.createdSessions = sessions
	return nil
}

type stubBusySource struct {
	windows []models.FreeBusyWindow
	err     error
	calls   int
}

func (s *stubBusySource) BusyWindows(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.FreeBusyWindow, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.windows, nil
}

type recordingMetrics struct {
	accepted  int
	conflicts int
}

func (r *recordingMetrics) ObservePlanAccepted(sessions int) { r.accepted += sessions }
func (r *recordingMetrics) ObservePlanConflicts(pairs int)   { r.conflicts += pairs }

func intPtr(v int) *int { return &v }

func basicRequest() dto.PlanRequest {
	return dto.PlanRequest{
		FromDate:           "2026-09-01",
		ToDate:             "2026-09-01",
		SessionMinutes:     45,
		DailyCap:           2,
		PreferredStartHour: intPtr(9),
		PreferredEndHour:   intPtr(11),
		Topics:             []string{"algebra", "geometry"},
		Timezone:           "UTC",
	}
}

func newTestPlannerService(store *mockPlanStore, busy *stubBusySource, metrics *recordingMetrics) *PlannerService {
	// Keep the interface truly nil when no recorder is wanted; a typed-nil
	// pointer would slip past the service's nil guard.
	var m plannerMetrics
	if metrics != nil {
		m = metrics
	}
	return NewPlannerService(store, busy, nil, zap.NewNop(), m, PlannerServiceConfig{
		DefaultLocation: time.UTC,
		MaxRangeDays:    92,
	})
}

func TestPlannerServicePlanHappyPath(t *testing.T) {
	store := &mockPlanStore{}
	busy := &stubBusySource{}
	metrics := &recordingMetrics{}
	svc := newTestPlannerService(store, busy, metrics)

	resp, err := svc.Plan(context.Background(), basicRequest(), "org-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, "plan-1", resp.PlanID)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, "2026-09-01T09:00:00Z", resp.Sessions[0].Start)
	assert.Equal(t, "2026-09-01T09:45:00Z", resp.Sessions[0].End)
	assert.Equal(t, "2026-09-01T09:45:00Z", resp.Sessions[1].Start)
	assert.Equal(t, "2026-09-01T10:30:00Z", resp.Sessions[1].End)
	require.NotNil(t, resp.Sessions[0].Topic)
	assert.Equal(t, "algebra", *resp.Sessions[0].Topic)
	require.NotNil(t, resp.Sessions[1].Topic)
	assert.Equal(t, "geometry", *resp.Sessions[1].Topic)
	assert.Equal(t, "scheduled", resp.Sessions[0].Status)

	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 1, busy.calls)
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, 2, metrics.accepted)
	assert.Equal(t, 0, metrics.conflicts)

	require.NotNil(t, store.createdPlan)
	assert.Equal(t, "org-1", store.createdPlan.OrgID)
	assert.Equal(t, "user-1", store.createdPlan.UserID)
	assert.Equal(t, "UTC", store.createdPlan.Constraints.Timezone)
}

func TestPlannerServicePlanRejectsInvalidPayload(t *testing.T) {
	store := &mockPlanStore{}
	busy := &stubBusySource{}
	svc := newTestPlannerService(store, busy, nil)

	req := basicRequest()
	req.SessionMinutes = 0

	_, err := svc.Plan(context.Background(), req, "org-1", "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, 0, store.listCalls)
	assert.Equal(t, 0, busy.calls)
}

func TestPlannerServicePlanRejectsInvertedHours(t *testing.T) {
	svc := newTestPlannerService(&mockPlanStore{}, &stubBusySource{}, nil)

	req := basicRequest()
	req.PreferredStartHour = intPtr(11)
	req.PreferredEndHour = intPtr(9)

	_, err := svc.Plan(context.Background(), req, "org-1", "user-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPlannerServicePlanRejectsUnknownTimezone(t *testing.T) {
	svc := newTestPlannerService(&mockPlanStore{}, &stubBusySource{}, nil)

	req := basicRequest()
	req.Timezone = "Mars/Olympus_Mons"

	_, err := svc.Plan(context.Background(), req, "org-1", "user-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPlannerServicePlanRejectsExcessiveRange(t *testing.T) {
	svc := newTestPlannerService(&mockPlanStore{}, &stubBusySource{}, nil)

	req := basicRequest()
	req.ToDate = "2027-09-01"

	_, err := svc.Plan(context.Background(), req, "org-1", "user-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPlannerServicePlanReportsBusyWindowConflicts(t *testing.T) {
	store := &mockPlanStore{}
	busy := &stubBusySource{windows: []models.FreeBusyWindow{{
		Start:  time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
		Source: "calendar",
	}}}
	metrics := &recordingMetrics{}
	svc := newTestPlannerService(store, busy, metrics)

	_, err := svc.Plan(context.Background(), basicRequest(), "org-1", "user-1")
	require.Error(t, err)

	var conflictErr *models.PlanConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, 1, conflictErr.Count)
	assert.Equal(t, 0, store.createCalls)
	assert.Equal(t, 1, metrics.conflicts)
}

func TestPlannerServicePlanReportsExistingSessionConflicts(t *testing.T) {
	store := &mockPlanStore{sessions: []models.PlanSession{{
		ID:      "sess-1",
		StartAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 9, 1, 10, 45, 0, 0, time.UTC),
	}}}
	svc := newTestPlannerService(store, &stubBusySource{}, nil)

	_, err := svc.Plan(context.Background(), basicRequest(), "org-1", "user-1")

	var conflictErr *models.PlanConflictError
	require.ErrorAs(t, err, &conflictErr)
	// The existing 10:00-10:45 session overlaps only the 09:45-10:30 draft.
	assert.Equal(t, 1, conflictErr.Count)
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, "session:sess-1", conflictErr.Conflicts[0].Existing.Ref)
	assert.Equal(t, 0, store.createCalls)
}

func TestPlannerServicePlanConflictWithoutMetricsRecorder(t *testing.T) {
	store := &mockPlanStore{sessions: []models.PlanSession{{
		ID:      "sess-1",
		StartAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 9, 1, 9, 45, 0, 0, time.UTC),
	}}}
	svc := newTestPlannerService(store, &stubBusySource{}, nil)

	_, err := svc.Plan(context.Background(), basicRequest(), "org-1", "user-1")

	var conflictErr *models.PlanConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, 1, conflictErr.Count)
}

func TestPlannerServicePlanPropagatesBusySourceFailure(t *testing.T) {
	store := &mockPlanStore{}
	busy := &stubBusySource{err: errors.New("provider unreachable")}
	svc := newTestPlannerService(store, busy, nil)

	_, err := svc.Plan(context.Background(), basicRequest(), "org-1", "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, 0, store.createCalls)
}

func TestPlannerServicePlanTreatsCommittedOverlapAsConflict(t *testing.T) {
	store := &mockPlanStore{createErr: repository.ErrOverlapCommitted}
	metrics := &recordingMetrics{}
	svc := newTestPlannerService(store, &stubBusySource{}, metrics)

	_, err := svc.Plan(context.Background(), basicRequest(), "org-1", "user-1")

	var conflictErr *models.PlanConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, 1, conflictErr.Count)
	assert.Equal(t, 1, metrics.conflicts)
}

func TestPlannerServicePlanWrapsPersistFailure(t *testing.T) {
	store := &mockPlanStore{createErr: errors.New("connection reset")}
	svc := newTestPlannerService(store, &stubBusySource{}, nil)

	_, err := svc.Plan(context.Background(), basicRequest(), "org-1", "user-1")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPersist.Code, appErr.Code)
}

func TestPlannerServicePlanPersistsEmptyPlanForInvertedDates(t *testing.T) {
	store := &mockPlanStore{}
	svc := newTestPlannerService(store, &stubBusySource{}, &recordingMetrics{})

	req := basicRequest()
	req.FromDate = "2026-09-10"
	req.ToDate = "2026-09-01"

	resp, err := svc.Plan(context.Background(), req, "org-1", "user-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Sessions)
	assert.Equal(t, 1, store.createCalls)
	assert.Empty(t, store.createdSessions)
}
