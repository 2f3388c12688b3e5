package attachment

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

const attachmentsTable = "attachments"

// AttachmentRow represents the database row for an attachment link
type AttachmentRow struct {
	ID         sql.NullString `db:"id"`
	FileID     sql.NullString `db:"file_id"`
	Name       sql.NullString `db:"name"`
	StorageKey sql.NullString `db:"storage_key"`
	LinkedBy   sql.NullString `db:"linked_by"`
	CreatedAt  sql.NullTime   `db:"created_at"`
}

var attachmentStruct = database.NewStruct(new(AttachmentRow))

func toAttachment(row *AttachmentRow) models.Attachment {
	return models.Attachment{
		ID:         row.ID.String,
		FileID:     row.FileID.String,
		Name:       row.Name.String,
		StorageKey: row.StorageKey.String,
		LinkedBy:   row.LinkedBy.String,
		CreatedAt:  row.CreatedAt.Time,
	}
}

// Repository handles attachment link persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new attachment repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Link records a digital document link against a file.
func (r *Repository) Link(ctx context.Context, a *models.Attachment) error {
	ctx, span := tracing.StartSpan(ctx, "attachment.Repository.Link")
	defer span.End()

	row := &AttachmentRow{
		ID:         sql.NullString{String: a.ID, Valid: a.ID != ""},
		FileID:     sql.NullString{String: a.FileID, Valid: a.FileID != ""},
		Name:       sql.NullString{String: a.Name, Valid: true},
		StorageKey: sql.NullString{String: a.StorageKey, Valid: true},
		LinkedBy:   sql.NullString{String: a.LinkedBy, Valid: a.LinkedBy != ""},
		CreatedAt:  sql.NullTime{Time: a.CreatedAt, Valid: !a.CreatedAt.IsZero()},
	}

	ib := attachmentStruct.InsertInto(attachmentsTable, row)
	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("file_id", a.FileID).Error("Failed to link attachment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to link attachment")
	}
	return nil
}

// ListByFile returns the attachment links for a file, oldest first.
func (r *Repository) ListByFile(ctx context.Context, fileID string) ([]models.Attachment, error) {
	ctx, span := tracing.StartSpan(ctx, "attachment.Repository.ListByFile")
	defer span.End()

	sb := attachmentStruct.SelectFrom(attachmentsTable)
	sb.Where(sb.Equal("file_id", fileID))
	sb.OrderBy("created_at")

	query, args := sb.Build()

	var rows []AttachmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("file_id", fileID).Error("Failed to list attachments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list attachments")
	}

	attachments := make([]models.Attachment, len(rows))
	for i, row := range rows {
		attachments[i] = toAttachment(&row)
	}
	return attachments, nil
}
