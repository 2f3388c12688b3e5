package deadline

import (
	"database/sql"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
)

const deadlinesTable = "deadlines"

// DeadlineRow represents the database row for a deadline
type DeadlineRow struct {
	ID          sql.NullString `db:"id"`
	FileID      sql.NullString `db:"file_id"`
	Type        sql.NullString `db:"type"`
	DueDate     sql.NullTime   `db:"due_date"`
	Description sql.NullString `db:"description"`
	Status      sql.NullString `db:"status"`
	CompletedAt sql.NullTime   `db:"completed_at"`
	CompletedBy sql.NullString `db:"completed_by"`
	CreatedAt   sql.NullTime   `db:"created_at"`
}

var deadlineStruct = database.NewStruct(new(DeadlineRow))

// FromDeadline converts a domain model to a database row
func FromDeadline(d *models.Deadline) *DeadlineRow {
	row := &DeadlineRow{
		ID:          sql.NullString{String: d.ID, Valid: d.ID != ""},
		FileID:      sql.NullString{String: d.FileID, Valid: d.FileID != ""},
		Type:        sql.NullString{String: string(d.Type), Valid: d.Type != ""},
		DueDate:     sql.NullTime{Time: d.DueDate, Valid: !d.DueDate.IsZero()},
		Description: sql.NullString{String: d.Description, Valid: true},
		Status:      sql.NullString{String: string(d.Status), Valid: d.Status != ""},
		CreatedAt:   sql.NullTime{Time: d.CreatedAt, Valid: !d.CreatedAt.IsZero()},
	}
	if d.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *d.CompletedAt, Valid: true}
	}
	if d.CompletedBy != nil {
		row.CompletedBy = sql.NullString{String: *d.CompletedBy, Valid: true}
	}
	return row
}

// ToDeadline converts a database row to a domain model
func ToDeadline(row *DeadlineRow) *models.Deadline {
	d := &models.Deadline{
		ID:          row.ID.String,
		FileID:      row.FileID.String,
		Type:        models.DeadlineType(row.Type.String),
		DueDate:     row.DueDate.Time,
		Description: row.Description.String,
		Status:      models.DeadlineStatus(row.Status.String),
		CreatedAt:   row.CreatedAt.Time,
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		d.CompletedAt = &t
	}
	if row.CompletedBy.Valid {
		s := row.CompletedBy.String
		d.CompletedBy = &s
	}
	return d
}

// ToDeadlines converts a slice of database rows to domain models
func ToDeadlines(rows []DeadlineRow) []models.Deadline {
	deadlines := make([]models.Deadline, len(rows))
	for i, row := range rows {
		deadlines[i] = *ToDeadline(&row)
	}
	return deadlines
}
