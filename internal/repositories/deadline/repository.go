package deadline

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

// Repository handles deadline persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new deadline repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Insert writes a new deadline row.
func (r *Repository) Insert(ctx context.Context, d *models.Deadline) error {
	ctx, span := tracing.StartSpan(ctx, "deadline.Repository.Insert")
	defer span.End()

	ib := deadlineStruct.InsertInto(deadlinesTable, FromDeadline(d))
	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"deadline_id": d.ID, "file_id": d.FileID}).Error("Failed to insert deadline")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert deadline")
	}
	return nil
}

// GetByID returns the deadline with the given id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadline.Repository.GetByID")
	defer span.End()

	sb := deadlineStruct.SelectFrom(deadlinesTable)
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()

	var row DeadlineRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("deadline_id", id).Error("Failed to get deadline")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get deadline")
	}
	return ToDeadline(&row), nil
}

// Complete marks a pending deadline completed in one statement; the status
// guard makes the transition one-shot. Returns nil when no pending row
// matched.
func (r *Repository) Complete(ctx context.Context, id, byUserID string, at time.Time) (*models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadline.Repository.Complete")
	defer span.End()

	query := `
		UPDATE deadlines
		SET status = $1, completed_at = $2, completed_by = $3
		WHERE id = $4 AND status = $5
		RETURNING id, file_id, type, due_date, description, status, completed_at, completed_by, created_at
	`

	var row DeadlineRow
	err := r.db.GetContext(ctx, &row, query,
		string(models.DeadlineCompleted), at, byUserID, id, string(models.DeadlinePending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"deadline_id": id, "user_id": byUserID}).Error("Failed to complete deadline")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete deadline")
	}
	return ToDeadline(&row), nil
}

// ListPending returns every pending deadline ordered by due date.
func (r *Repository) ListPending(ctx context.Context) ([]models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadline.Repository.ListPending")
	defer span.End()

	sb := deadlineStruct.SelectFrom(deadlinesTable)
	sb.Where(sb.Equal("status", string(models.DeadlinePending)))
	sb.OrderBy("due_date")

	query, args := sb.Build()

	var rows []DeadlineRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending deadlines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending deadlines")
	}
	return ToDeadlines(rows), nil
}

// ListInWindow returns pending deadlines with from <= due_date <= to.
func (r *Repository) ListInWindow(ctx context.Context, from, to time.Time) ([]models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadline.Repository.ListInWindow")
	defer span.End()

	sb := deadlineStruct.SelectFrom(deadlinesTable)
	sb.Where(
		sb.Equal("status", string(models.DeadlinePending)),
		sb.GreaterEqualThan("due_date", from),
		sb.LessEqualThan("due_date", to),
	)
	sb.OrderBy("due_date")

	query, args := sb.Build()

	var rows []DeadlineRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list deadlines in window")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list deadlines")
	}
	return ToDeadlines(rows), nil
}

// ListOverdue returns pending deadlines whose due date is strictly in the
// past.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time) ([]models.Deadline, error) {
	ctx, span := tracing.StartSpan(ctx, "deadline.Repository.ListOverdue")
	defer span.End()

	sb := deadlineStruct.SelectFrom(deadlinesTable)
	sb.Where(
		sb.Equal("status", string(models.DeadlinePending)),
		sb.LessThan("due_date", now),
	)
	sb.OrderBy("due_date")

	query, args := sb.Build()

	var rows []DeadlineRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list overdue deadlines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list overdue deadlines")
	}
	return ToDeadlines(rows), nil
}
