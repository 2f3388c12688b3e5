package alert

import (
	"database/sql"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
)

const alertsTable = "alerts"

// AlertRow represents the database row for an alert
type AlertRow struct {
	ID           sql.NullString `db:"id"`
	Type         sql.NullString `db:"type"`
	Severity     sql.NullString `db:"severity"`
	FileID       sql.NullString `db:"file_id"`
	DeadlineID   sql.NullString `db:"deadline_id"`
	TargetUserID sql.NullString `db:"target_user_id"`
	Message      sql.NullString `db:"message"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	Read         sql.NullBool   `db:"read"`
	Dismissed    sql.NullBool   `db:"dismissed"`
	DismissedAt  sql.NullTime   `db:"dismissed_at"`
}

var alertStruct = database.NewStruct(new(AlertRow))

// FromAlert converts a domain model to a database row
func FromAlert(a *models.Alert) *AlertRow {
	row := &AlertRow{
		ID:        sql.NullString{String: a.ID, Valid: a.ID != ""},
		Type:      sql.NullString{String: string(a.Type), Valid: a.Type != ""},
		Severity:  sql.NullString{String: string(a.Severity), Valid: a.Severity != ""},
		Message:   sql.NullString{String: a.Message, Valid: true},
		CreatedAt: sql.NullTime{Time: a.CreatedAt, Valid: !a.CreatedAt.IsZero()},
		Read:      sql.NullBool{Bool: a.Read, Valid: true},
		Dismissed: sql.NullBool{Bool: a.Dismissed, Valid: true},
	}
	if a.FileID != nil {
		row.FileID = sql.NullString{String: *a.FileID, Valid: true}
	}
	if a.DeadlineID != nil {
		row.DeadlineID = sql.NullString{String: *a.DeadlineID, Valid: true}
	}
	if a.TargetUserID != nil {
		row.TargetUserID = sql.NullString{String: *a.TargetUserID, Valid: true}
	}
	if a.DismissedAt != nil {
		row.DismissedAt = sql.NullTime{Time: *a.DismissedAt, Valid: true}
	}
	return row
}

// ToAlert converts a database row to a domain model
func ToAlert(row *AlertRow) *models.Alert {
	a := &models.Alert{
		ID:        row.ID.String,
		Type:      models.AlertType(row.Type.String),
		Severity:  models.Severity(row.Severity.String),
		Message:   row.Message.String,
		CreatedAt: row.CreatedAt.Time,
		Read:      row.Read.Bool,
		Dismissed: row.Dismissed.Bool,
	}
	if row.FileID.Valid {
		s := row.FileID.String
		a.FileID = &s
	}
	if row.DeadlineID.Valid {
		s := row.DeadlineID.String
		a.DeadlineID = &s
	}
	if row.TargetUserID.Valid {
		s := row.TargetUserID.String
		a.TargetUserID = &s
	}
	if row.DismissedAt.Valid {
		t := row.DismissedAt.Time
		a.DismissedAt = &t
	}
	return a
}

// ToAlerts converts a slice of database rows to domain models
func ToAlerts(rows []AlertRow) []models.Alert {
	alerts := make([]models.Alert, len(rows))
	for i, row := range rows {
		alerts[i] = *ToAlert(&row)
	}
	return alerts
}
