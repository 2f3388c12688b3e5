package alert

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// Repository handles alert persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new alert repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateIfNew inserts the alert unless an active alert with the same
// (type, file_id, target_user_id) already exists. The partial unique index
// backing ON CONFLICT DO NOTHING makes the check-and-insert atomic, so
// overlapping scans cannot double-insert. Returns whether a row was
// created.
func (r *Repository) CreateIfNew(ctx context.Context, a *models.Alert) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "alert.Repository.CreateIfNew")
	defer span.End()

	ib := alertStruct.InsertInto(alertsTable, FromAlert(a))
	ib.OnConflictDoNothing()
	query, args := ib.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"alert_type": a.Type, "file_id": a.FileID, "target_user_id": a.TargetUserID}).Error("Failed to create alert")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create alert")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create alert")
	}
	return rowsAffected > 0, nil
}

// GetByID returns the alert with the given id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "alert.Repository.GetByID")
	defer span.End()

	sb := alertStruct.SelectFrom(alertsTable)
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()

	var row AlertRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("alert_id", id).Error("Failed to get alert")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get alert")
	}
	return ToAlert(&row), nil
}

// ListActive returns every non-dismissed alert, newest first. Serves users
// holding the view-all capability.
func (r *Repository) ListActive(ctx context.Context) ([]models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "alert.Repository.ListActive")
	defer span.End()

	sb := alertStruct.SelectFrom(alertsTable)
	sb.Where(sb.Equal("dismissed", false))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()

	var rows []AlertRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active alerts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list alerts")
	}
	return ToAlerts(rows), nil
}

// ListActiveForUser returns non-dismissed alerts targeted at the user or
// broadcast (NULL target), newest first.
func (r *Repository) ListActiveForUser(ctx context.Context, userID string) ([]models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "alert.Repository.ListActiveForUser")
	defer span.End()

	query := `
		SELECT id, type, severity, file_id, deadline_id, target_user_id, message,
		       created_at, read, dismissed, dismissed_at
		FROM alerts
		WHERE NOT dismissed AND (target_user_id = $1 OR target_user_id IS NULL)
		ORDER BY created_at DESC
	`

	var rows []AlertRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Error("Failed to list alerts for user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list alerts")
	}
	return ToAlerts(rows), nil
}

// MarkAllRead flags every active alert visible to the user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "alert.Repository.MarkAllRead")
	defer span.End()

	query := `
		UPDATE alerts
		SET read = TRUE
		WHERE NOT dismissed AND NOT read AND (target_user_id = $1 OR target_user_id IS NULL)
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Error("Failed to mark alerts read")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark alerts read")
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}

// Dismiss terminally dismisses an alert, re-arming the dedup key for its
// condition. Returns nil when no active row matched.
func (r *Repository) Dismiss(ctx context.Context, id string, at time.Time) (*models.Alert, error) {
	ctx, span := tracing.StartSpan(ctx, "alert.Repository.Dismiss")
	defer span.End()

	query := `
		UPDATE alerts
		SET dismissed = TRUE, dismissed_at = $1
		WHERE id = $2 AND NOT dismissed
		RETURNING id, type, severity, file_id, deadline_id, target_user_id, message,
		          created_at, read, dismissed, dismissed_at
	`

	var row AlertRow
	err := r.db.GetContext(ctx, &row, query, at, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("alert_id", id).Error("Failed to dismiss alert")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to dismiss alert")
	}
	return ToAlert(&row), nil
}
