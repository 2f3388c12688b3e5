// Package deadlines owns the deadline lifecycle and its time-window
// queries. A deadline moves Pending -> Completed exactly once and is never
// deleted.
package deadlines

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// Repository is the slice of the deadline repository the tracker uses.
type Repository interface {
	Insert(ctx context.Context, d *models.Deadline) error
	GetByID(ctx context.Context, id string) (*models.Deadline, error)
	Complete(ctx context.Context, id, byUserID string, at time.Time) (*models.Deadline, error)
	ListInWindow(ctx context.Context, from, to time.Time) ([]models.Deadline, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.Deadline, error)
}

// FileRepository resolves the file a deadline belongs to.
type FileRepository interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
}

// Events receives best-effort notifications after deadline writes.
type Events interface {
	DeadlineAdded(ctx context.Context, d *models.Deadline)
}

// Service implements the deadline tracker.
type Service struct {
	repo   Repository
	files  FileRepository
	events Events
	logger ectologger.Logger
	now    func() time.Time
}

// NewService creates a new deadline tracker.
func NewService(repo Repository, files FileRepository, events Events, logger ectologger.Logger) *Service {
	return &Service{
		repo:   repo,
		files:  files,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Create schedules a deadline against a file.
func (s *Service) Create(ctx context.Context, fileID string, req models.CreateDeadlineRequest) (*models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadlines.Service.Create")
	defer span.End()

	if req.DueDate.IsZero() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "due_date is required")
	}
	if !req.Type.Valid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid deadline type: %s", req.Type)
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if file.Status == models.FileStatusClosed {
		return nil, httperror.NewHTTPError(http.StatusConflict, "file is closed; no new deadlines may be added")
	}

	deadline := &models.Deadline{
		ID:          uuid.New().String(),
		FileID:      fileID,
		Type:        req.Type,
		DueDate:     req.DueDate.UTC(),
		Description: req.Description,
		Status:      models.DeadlinePending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, deadline); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"deadline_id": deadline.ID, "file_id": fileID, "due_date": deadline.DueDate}).Info("created deadline")
	if s.events != nil {
		s.events.DeadlineAdded(ctx, deadline)
	}
	return deadline, nil
}

// Complete marks a pending deadline completed. Completing an already
// completed deadline is rejected; the record is immutable afterward.
func (s *Service) Complete(ctx context.Context, deadlineID, completedBy string) (*models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadlines.Service.Complete")
	defer span.End()

	existing, err := s.repo.GetByID(ctx, deadlineID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "deadline not found")
	}
	if existing.Status == models.DeadlineCompleted {
		return nil, httperror.NewHTTPError(http.StatusConflict, "deadline is already completed")
	}

	completed, err := s.repo.Complete(ctx, deadlineID, completedBy, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if completed == nil {
		return nil, httperror.NewHTTPError(http.StatusConflict, "deadline is already completed")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"deadline_id": deadlineID, "user_id": completedBy}).Info("completed deadline")
	return completed, nil
}

// GetUpcoming returns pending deadlines due between now and now plus
// windowDays.
func (s *Service) GetUpcoming(ctx context.Context, windowDays int) ([]models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadlines.Service.GetUpcoming")
	defer span.End()

	if windowDays <= 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "window_days must be positive")
	}

	now := s.now().UTC()
	return s.repo.ListInWindow(ctx, now, now.Add(time.Duration(windowDays)*24*time.Hour))
}

// GetOverdue returns pending deadlines whose due date has passed.
func (s *Service) GetOverdue(ctx context.Context) ([]models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadlines.Service.GetOverdue")
	defer span.End()

	return s.repo.ListOverdue(ctx, s.now().UTC())
}
