package movement

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

// Repository handles movement persistence. Movements are append-only: the
// only update this repository exposes touches the acknowledgment fields,
// and only on an unacknowledged row.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new movement repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a movement. Joins the transaction on ctx; the ledger calls
// it in the same transaction that repoints the file's custodian.
func (r *Repository) Insert(ctx context.Context, m *models.Movement) error {
	ctx, span := tracing.StartSpan(ctx, "movement.Repository.Insert")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert movement")
	}

	ib := movementStruct.InsertInto(movementsTable, FromMovement(m))
	query, args := ib.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"movement_id": m.ID, "file_id": m.FileID}).Error("Failed to insert movement")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert movement")
	}
	return nil
}

// GetByID returns the movement with the given id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "movement.Repository.GetByID")
	defer span.End()

	sb := movementStruct.SelectFrom(movementsTable)
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()

	var row MovementRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("movement_id", id).Error("Failed to get movement")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get movement")
	}
	return ToMovement(&row), nil
}

// Acknowledge records the receipt confirmation in a single statement. The
// status guard makes the transition one-shot: a second acknowledgment of
// the same movement matches no row.
func (r *Repository) Acknowledge(ctx context.Context, id, byUserID string, at time.Time) (*models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "movement.Repository.Acknowledge")
	defer span.End()

	query := `
		UPDATE movements
		SET acknowledged = TRUE, acknowledged_at = $1, acknowledged_by = $2
		WHERE id = $3 AND NOT acknowledged
		RETURNING id, file_id, from_custodian, to_custodian, purpose, notes, logged_by,
		          moved_at, acknowledged, acknowledged_at, acknowledged_by
	`

	var row MovementRow
	err := r.db.GetContext(ctx, &row, query, at, byUserID, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"movement_id": id, "user_id": byUserID}).Error("Failed to acknowledge movement")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to acknowledge movement")
	}
	return ToMovement(&row), nil
}

// ListByFile returns the full custody chain for a file, oldest first.
func (r *Repository) ListByFile(ctx context.Context, fileID string) ([]models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "movement.Repository.ListByFile")
	defer span.End()

	sb := movementStruct.SelectFrom(movementsTable)
	sb.Where(sb.Equal("file_id", fileID))
	sb.OrderBy("moved_at")

	query, args := sb.Build()

	var rows []MovementRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("file_id", fileID).Error("Failed to list movements for file")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list movements")
	}
	return ToMovements(rows), nil
}

// ListPendingForUser returns unacknowledged movements addressed to the
// user, most recent first.
func (r *Repository) ListPendingForUser(ctx context.Context, userID string) ([]models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "movement.Repository.ListPendingForUser")
	defer span.End()

	sb := movementStruct.SelectFrom(movementsTable)
	sb.Where(
		sb.Equal("to_custodian", userID),
		sb.Equal("acknowledged", false),
	)
	sb.OrderBy("moved_at DESC")

	query, args := sb.Build()

	var rows []MovementRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Error("Failed to list pending acknowledgments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending acknowledgments")
	}
	return ToMovements(rows), nil
}

// ListUnacknowledgedBefore returns movements still unacknowledged whose
// timestamp is at or before the cutoff.
func (r *Repository) ListUnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "movement.Repository.ListUnacknowledgedBefore")
	defer span.End()

	sb := movementStruct.SelectFrom(movementsTable)
	sb.Where(
		sb.Equal("acknowledged", false),
		sb.LessEqualThan("moved_at", cutoff),
	)
	sb.OrderBy("moved_at")

	query, args := sb.Build()

	var rows []MovementRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unacknowledged movements")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unacknowledged movements")
	}
	return ToMovements(rows), nil
}

// ListLatestForActiveFiles returns the most recent movement of every active
// file. Feeds the bottleneck analyzer.
func (r *Repository) ListLatestForActiveFiles(ctx context.Context) ([]models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "movement.Repository.ListLatestForActiveFiles")
	defer span.End()

	query := `
		SELECT DISTINCT ON (m.file_id)
		       m.id, m.file_id, m.from_custodian, m.to_custodian, m.purpose, m.notes,
		       m.logged_by, m.moved_at, m.acknowledged, m.acknowledged_at, m.acknowledged_by
		FROM movements m
		JOIN files f ON f.id = m.file_id
		WHERE f.status = $1
		ORDER BY m.file_id, m.moved_at DESC
	`

	var rows []MovementRow
	if err := r.db.SelectContext(ctx, &rows, query, string(models.FileStatusActive)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list latest movements")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list latest movements")
	}
	return ToMovements(rows), nil
}
