package file

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// Repository handles case file persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new file repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// NextID reserves the next registration id for the given year, producing
// ids of the form CT-<year>-<4-digit-seq>. Joins the transaction on ctx so
// the reservation commits or aborts with the registration itself.
func (r *Repository) NextID(ctx context.Context, year int) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.NextID")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to reserve file id")
	}

	query := `
		INSERT INTO file_sequences (year, seq) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET seq = file_sequences.seq + 1
		RETURNING seq
	`

	var seq int
	if err := tx.GetContext(ctx, &seq, query, year); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("year", year).Error("Failed to reserve file sequence")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to reserve file id")
	}

	return fmt.Sprintf("CT-%d-%04d", year, seq), nil
}

// Insert writes a new file row. Joins the transaction on ctx.
func (r *Repository) Insert(ctx context.Context, f *models.File) error {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.Insert")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert file")
	}

	ib := fileStruct.InsertInto(filesTable, FromFile(f))
	query, args := ib.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("file_id", f.ID).Error("Failed to insert file")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert file")
	}
	return nil
}

// GetByID returns the file with the given id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.GetByID")
	defer span.End()

	sb := fileStruct.SelectFrom(filesTable)
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()

	var row FileRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("file_id", id).Error("Failed to get file")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get file")
	}
	return ToFile(&row), nil
}

// GetByIDForUpdate locks the file row for the remainder of the transaction
// on ctx. Concurrent transfers for the same file serialize on this lock;
// transfers on different files proceed independently.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id string) (*models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.GetByIDForUpdate")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock file")
	}

	sb := fileStruct.SelectFrom(filesTable)
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	query += " FOR UPDATE"

	var row FileRow
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("file_id", id).Error("Failed to lock file")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock file")
	}
	return ToFile(&row), nil
}

// UpdateCustodian points the file at its new custodian. Joins the
// transaction on ctx; the ledger always calls this in the same transaction
// as the movement insert so the two are never observable apart.
func (r *Repository) UpdateCustodian(ctx context.Context, id, custodianID string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.UpdateCustodian")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update custodian")
	}

	ub := database.NewUpdateBuilder()
	ub.Update(filesTable)
	ub.Set(
		ub.Assign("current_custodian", custodianID),
		ub.Assign("updated_at", at),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"file_id": id, "custodian_id": custodianID}).Error("Failed to update custodian")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update custodian")
	}
	return nil
}

// Close marks the file closed. Returns the updated file, or an InvalidState
// error when the file is already closed.
func (r *Repository) Close(ctx context.Context, id string, at time.Time) (*models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.Close")
	defer span.End()

	query := `
		UPDATE files
		SET status = $1, date_closed = $2, updated_at = $2
		WHERE id = $3 AND status <> $1
		RETURNING id
	`

	var updated string
	err := r.db.GetContext(ctx, &updated, query, string(models.FileStatusClosed), at, id)
	if err == sql.ErrNoRows {
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "file not found")
		}
		return nil, httperror.NewHTTPError(http.StatusConflict, "file is already closed")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("file_id", id).Error("Failed to close file")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to close file")
	}

	return r.GetByID(ctx, id)
}

// List returns a page of files, most recently opened first.
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]models.File, int, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.List")
	defer span.End()

	sb := fileStruct.SelectFrom(filesTable)
	sb.OrderBy("date_opened DESC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()

	var rows []FileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list files")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list files")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM files"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count files")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list files")
	}

	return ToFiles(rows), total, nil
}

// ListActive returns every active file.
func (r *Repository) ListActive(ctx context.Context) ([]models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.ListActive")
	defer span.End()

	sb := fileStruct.SelectFrom(filesTable)
	sb.Where(sb.Equal("status", string(models.FileStatusActive)))
	sb.OrderBy("date_opened")

	query, args := sb.Build()

	var rows []FileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active files")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active files")
	}
	return ToFiles(rows), nil
}

// ListActiveWithoutAttachments returns active files that have no linked
// digital documents. Feeds the missing-digital-link alert pass.
func (r *Repository) ListActiveWithoutAttachments(ctx context.Context) ([]models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.ListActiveWithoutAttachments")
	defer span.End()

	query := `
		SELECT f.id, f.title, f.client_name, f.status, f.current_custodian,
		       f.assigned_advocates, f.date_opened, f.date_closed, f.created_at, f.updated_at
		FROM files f
		WHERE f.status = $1
		  AND NOT EXISTS (SELECT 1 FROM attachments a WHERE a.file_id = f.id)
		ORDER BY f.date_opened
	`

	var rows []FileRow
	if err := r.db.SelectContext(ctx, &rows, query, string(models.FileStatusActive)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list files without attachments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list files without attachments")
	}
	return ToFiles(rows), nil
}
