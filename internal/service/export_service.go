package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyhall-labs/planner-api/internal/dto"
	"github.com/studyhall-labs/planner-api/internal/models"
	"github.com/studyhall-labs/planner-api/internal/repository"
	appErrors "github.com/studyhall-labs/planner-api/pkg/errors"
	"github.com/studyhall-labs/planner-api/pkg/export"
	"github.com/studyhall-labs/planner-api/pkg/jobs"
	"github.com/studyhall-labs/planner-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
}

type exportPlanReader interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	ListSessions(ctx context.Context, planID string) ([]models.PlanSession, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ExportService renders accepted plans to CSV, PDF or ICS files in the
// background and serves them through signed download tokens.
type ExportService struct {
	repo      exportJobStore
	plans     exportPlanReader
	queue     jobDispatcher
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	ics       *export.ICSExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File     *os.File
	Filename string
	Format   models.ExportFormat
}

// NewExportService constructs the export pipeline.
func NewExportService(repo exportJobStore, plans exportPlanReader, queue jobDispatcher, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:      repo,
		plans:     plans,
		queue:     queue,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		ics:       export.NewICSExporter(),
		validator: validate,
		logger:    logger,
	}
}

// CreateJob validates the request, persists a job row and enqueues rendering.
func (s *ExportService) CreateJob(ctx context.Context, planID, orgID, userID string, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if _, err := s.loadOwnedPlan(ctx, planID, orgID, userID); err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		PlanID:    planID,
		Params:    models.ExportJobParams{Format: models.ExportFormat(req.Format), Timezone: req.Timezone},
		Status:    models.ExportStatusQueued,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "plan_export"}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata to its creator, including a signed download
// token once rendering finishes.
func (s *ExportService) GetStatus(ctx context.Context, id, orgID, userID string) (*dto.ExportStatusResponse, error) {
	job, err := s.loadOwnedJob(ctx, id, orgID, userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ExportStatusResponse{
		ID:           job.ID,
		PlanID:       job.PlanID,
		Status:       job.Status,
		Format:       job.Params.Format,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Status == models.ExportStatusFinished && job.ResultPath != nil {
		token, _, err := s.signer.Generate(job.ID, *job.ResultPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
		}
		resp.DownloadToken = &token
	}
	return resp, nil
}

// ResolveDownload validates a signed token and opens the rendered file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export result unavailable")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{File: file, Filename: fmt.Sprintf("plan-%s.%s", job.PlanID, job.Params.Format), Format: job.Params.Format}, nil
}

// Process is the queue handler: it renders the plan and records the outcome.
func (s *ExportService) Process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", queued.ID, err)
	}

	processing := models.ExportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	relPath, renderErr := s.render(ctx, job)
	now := time.Now().UTC()
	if renderErr != nil {
		status := models.ExportStatusFailed
		msg := renderErr.Error()
		if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); err != nil {
			s.logger.Sugar().Errorw("failed to record export failure", "job_id", job.ID, "error", err)
		}
		return renderErr
	}

	status := models.ExportStatusFinished
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &status,
		ResultPath: &relPath,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("record export result: %w", err)
	}
	s.logger.Sugar().Infow("export finished", "job_id", job.ID, "plan_id", job.PlanID, "format", job.Params.Format)
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) (string, error) {
	plan, err := s.plans.GetByID(ctx, job.PlanID)
	if err != nil {
		return "", fmt.Errorf("load plan %s: %w", job.PlanID, err)
	}
	sessions, err := s.plans.ListSessions(ctx, job.PlanID)
	if err != nil {
		return "", fmt.Errorf("load plan sessions: %w", err)
	}

	var data []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		data, err = s.csv.Render(sessionDataset(sessions))
	case models.ExportFormatPDF:
		data, err = s.pdf.Render(sessionDataset(sessions), fmt.Sprintf("Study plan %s", plan.ID))
	case models.ExportFormatICS:
		data, err = s.ics.Render("Study plan", sessionEvents(sessions))
	default:
		return "", fmt.Errorf("unsupported export format %q", job.Params.Format)
	}
	if err != nil {
		return "", fmt.Errorf("render %s export: %w", job.Params.Format, err)
	}

	relPath := fmt.Sprintf("%s/%s.%s", plan.ID, job.ID, job.Params.Format)
	if _, err := s.store.Save(relPath, data); err != nil {
		return "", fmt.Errorf("store export file: %w", err)
	}
	return relPath, nil
}

func sessionDataset(sessions []models.PlanSession) export.Dataset {
	rows := make([]map[string]string, 0, len(sessions))
	for _, session := range sessions {
		topic := ""
		if session.Topic != nil {
			topic = *session.Topic
		}
		description := ""
		if session.Description != nil {
			description = *session.Description
		}
		rows = append(rows, map[string]string{
			"Start":       session.StartAt.Format(time.RFC3339),
			"End":         session.EndAt.Format(time.RFC3339),
			"Topic":       topic,
			"Description": description,
			"Status":      string(session.Status),
		})
	}
	return export.Dataset{
		Headers: []string{"Start", "End", "Topic", "Description", "Status"},
		Rows:    rows,
	}
}

func sessionEvents(sessions []models.PlanSession) []export.ICSEvent {
	events := make([]export.ICSEvent, 0, len(sessions))
	for _, session := range sessions {
		summary := "Study session"
		if session.Topic != nil && *session.Topic != "" {
			summary = "Study: " + *session.Topic
		}
		description := ""
		if session.Description != nil {
			description = *session.Description
		}
		events = append(events, export.ICSEvent{
			UID:         session.ID + "@planner-api",
			Start:       session.StartAt,
			End:         session.EndAt,
			Summary:     summary,
			Description: description,
		})
	}
	return events
}

func (s *ExportService) loadOwnedPlan(ctx context.Context, planID, orgID, userID string) (*models.Plan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.OrgID != orgID || plan.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	return plan, nil
}

func (s *ExportService) loadOwnedJob(ctx context.Context, id, orgID, userID string) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if _, err := s.loadOwnedPlan(ctx, job.PlanID, orgID, userID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	return job, nil
}
