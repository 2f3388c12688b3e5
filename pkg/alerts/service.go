package alerts

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/capability"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// Repository is the persistence surface the alert service needs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	ListActive(ctx context.Context) ([]models.Alert, error)
	ListActiveForUser(ctx context.Context, userID string) ([]models.Alert, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Dismiss(ctx context.Context, id string, at time.Time) (*models.Alert, error)
}

// Service exposes the alert inbox: listing, read tracking and dismissal.
type Service struct {
	alerts Repository
	logger ectologger.Logger
	now    func() time.Time
}

// NewService creates a new alert service.
func NewService(alerts Repository, logger ectologger.Logger) *Service {
	return &Service{
		alerts: alerts,
		logger: logger,
		now:    time.Now,
	}
}

// List returns the active alerts the actor may see: everything for users
// with the view-all capability, otherwise targeted plus broadcast alerts.
func (s *Service) List(ctx context.Context, actor *models.User) (*models.AlertListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "alerts.Service.List")
	defer span.End()

	var (
		items []models.Alert
		err   error
	)
	if capability.ActorHas(actor, capability.ViewAllFiles) {
		items, err = s.alerts.ListActive(ctx)
	} else {
		items, err = s.alerts.ListActiveForUser(ctx, actor.ID)
	}
	if err != nil {
		return nil, err
	}

	return &models.AlertListResponse{
		Items:      items,
		TotalCount: len(items),
	}, nil
}

// MarkAllRead flags every alert visible to the actor as read and returns
// how many were flipped.
func (s *Service) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "alerts.Service.MarkAllRead")
	defer span.End()

	count, err := s.alerts.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"user_id": actor.ID, "count": count}).Debug("Marked alerts read")
	return count, nil
}

// Dismiss terminally dismisses an alert. Only the alert's target, anyone
// for a broadcast alert, or a user with the view-all capability may
// dismiss. Dismissing an already-dismissed alert is a conflict.
func (s *Service) Dismiss(ctx context.Context, actor *models.User, alertID string) (*models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "alerts.Service.Dismiss")
	defer span.End()

	existing, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "alert not found")
	}

	targeted := existing.TargetUserID == nil || *existing.TargetUserID == actor.ID
	if !targeted && !capability.ActorHas(actor, capability.ViewAllFiles) {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "alert is not addressed to you")
	}
	if existing.Dismissed {
		return nil, httperror.NewHTTPError(http.StatusConflict, "alert is already dismissed")
	}

	dismissed, err := s.alerts.Dismiss(ctx, alertID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if dismissed == nil {
		// Lost a race with a concurrent dismissal.
		return nil, httperror.NewHTTPError(http.StatusConflict, "alert is already dismissed")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"alert_id": alertID, "user_id": actor.ID}).Info("Dismissed alert")
	return dismissed, nil
}
