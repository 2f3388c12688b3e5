package movement

import (
	"database/sql"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
)

const movementsTable = "movements"

// MovementRow represents the database row for a custody movement
type MovementRow struct {
	ID             sql.NullString `db:"id"`
	FileID         sql.NullString `db:"file_id"`
	FromCustodian  sql.NullString `db:"from_custodian"`
	ToCustodian    sql.NullString `db:"to_custodian"`
	Purpose        sql.NullString `db:"purpose"`
	Notes          sql.NullString `db:"notes"`
	LoggedBy       sql.NullString `db:"logged_by"`
	MovedAt        sql.NullTime   `db:"moved_at"`
	Acknowledged   sql.NullBool   `db:"acknowledged"`
	AcknowledgedAt sql.NullTime   `db:"acknowledged_at"`
	AcknowledgedBy sql.NullString `db:"acknowledged_by"`
}

var movementStruct = database.NewStruct(new(MovementRow))

// FromMovement converts a domain model to a database row
func FromMovement(m *models.Movement) *MovementRow {
	row := &MovementRow{
		ID:           sql.NullString{String: m.ID, Valid: m.ID != ""},
		FileID:       sql.NullString{String: m.FileID, Valid: m.FileID != ""},
		ToCustodian:  sql.NullString{String: m.ToCustodian, Valid: m.ToCustodian != ""},
		Purpose:      sql.NullString{String: string(m.Purpose), Valid: m.Purpose != ""},
		Notes:        sql.NullString{String: m.Notes, Valid: true},
		LoggedBy:     sql.NullString{String: m.LoggedBy, Valid: m.LoggedBy != ""},
		MovedAt:      sql.NullTime{Time: m.MovedAt, Valid: !m.MovedAt.IsZero()},
		Acknowledged: sql.NullBool{Bool: m.Acknowledged, Valid: true},
	}
	if m.FromCustodian != nil {
		row.FromCustodian = sql.NullString{String: *m.FromCustodian, Valid: true}
	}
	if m.AcknowledgedAt != nil {
		row.AcknowledgedAt = sql.NullTime{Time: *m.AcknowledgedAt, Valid: true}
	}
	if m.AcknowledgedBy != nil {
		row.AcknowledgedBy = sql.NullString{String: *m.AcknowledgedBy, Valid: true}
	}
	return row
}

// ToMovement converts a database row to a domain model
func ToMovement(row *MovementRow) *models.Movement {
	m := &models.Movement{
		ID:           row.ID.String,
		FileID:       row.FileID.String,
		ToCustodian:  row.ToCustodian.String,
		Purpose:      models.MovementPurpose(row.Purpose.String),
		Notes:        row.Notes.String,
		LoggedBy:     row.LoggedBy.String,
		MovedAt:      row.MovedAt.Time,
		Acknowledged: row.Acknowledged.Bool,
	}
	if row.FromCustodian.Valid {
		s := row.FromCustodian.String
		m.FromCustodian = &s
	}
	if row.AcknowledgedAt.Valid {
		t := row.AcknowledgedAt.Time
		m.AcknowledgedAt = &t
	}
	if row.AcknowledgedBy.Valid {
		s := row.AcknowledgedBy.String
		m.AcknowledgedBy = &s
	}
	return m
}

// ToMovements converts a slice of database rows to domain models
func ToMovements(rows []MovementRow) []models.Movement {
	movements := make([]models.Movement, len(rows))
	for i, row := range rows {
		movements[i] = *ToMovement(&row)
	}
	return movements
}
