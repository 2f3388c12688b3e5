package file

import (
	"database/sql"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
)

const filesTable = "files"

// FileRow represents the database row for a case file
type FileRow struct {
	ID                sql.NullString            `db:"id"`
	Title             sql.NullString            `db:"title"`
	ClientName        sql.NullString            `db:"client_name"`
	Status            sql.NullString            `db:"status"`
	CurrentCustodian  sql.NullString            `db:"current_custodian"`
	AssignedAdvocates database.JSONB[[]string]  `db:"assigned_advocates"`
	DateOpened        sql.NullTime              `db:"date_opened"`
	DateClosed        sql.NullTime              `db:"date_closed"`
	CreatedAt         sql.NullTime              `db:"created_at"`
	UpdatedAt         sql.NullTime              `db:"updated_at"`
}

var fileStruct = database.NewStruct(new(FileRow))

// FromFile converts a domain model to a database row
func FromFile(f *models.File) *FileRow {
	row := &FileRow{
		ID:                sql.NullString{String: f.ID, Valid: f.ID != ""},
		Title:             sql.NullString{String: f.Title, Valid: true},
		ClientName:        sql.NullString{String: f.ClientName, Valid: true},
		Status:            sql.NullString{String: string(f.Status), Valid: f.Status != ""},
		CurrentCustodian:  sql.NullString{String: f.CurrentCustodian, Valid: f.CurrentCustodian != ""},
		AssignedAdvocates: database.JSONB[[]string]{Data: f.AssignedAdvocates},
		DateOpened:        sql.NullTime{Time: f.DateOpened, Valid: !f.DateOpened.IsZero()},
		CreatedAt:         sql.NullTime{Time: f.CreatedAt, Valid: !f.CreatedAt.IsZero()},
		UpdatedAt:         sql.NullTime{Time: f.UpdatedAt, Valid: !f.UpdatedAt.IsZero()},
	}
	if f.DateClosed != nil {
		row.DateClosed = sql.NullTime{Time: *f.DateClosed, Valid: true}
	}
	if row.AssignedAdvocates.Data == nil {
		row.AssignedAdvocates.Data = []string{}
	}
	return row
}

// ToFile converts a database row to a domain model
func ToFile(row *FileRow) *models.File {
	f := &models.File{
		ID:                row.ID.String,
		Title:             row.Title.String,
		ClientName:        row.ClientName.String,
		Status:            models.FileStatus(row.Status.String),
		CurrentCustodian:  row.CurrentCustodian.String,
		AssignedAdvocates: row.AssignedAdvocates.Data,
		DateOpened:        row.DateOpened.Time,
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}
	if row.DateClosed.Valid {
		t := row.DateClosed.Time
		f.DateClosed = &t
	}
	if f.AssignedAdvocates == nil {
		f.AssignedAdvocates = []string{}
	}
	return f
}

// ToFiles converts a slice of database rows to domain models
func ToFiles(rows []FileRow) []models.File {
	files := make([]models.File, len(rows))
	for i, row := range rows {
		files[i] = *ToFile(&row)
	}
	return files
}
