package models

import "time"

// AlertType is the closed set of conditions the alert engine raises.
type AlertType string

const (
	AlertDeadlineUpcoming       AlertType = "deadline_upcoming"
	AlertDeadlineOverdue        AlertType = "deadline_overdue"
	AlertFileOverdueAtCustodian AlertType = "file_overdue_at_custodian"
	AlertMovementUnacknowledged AlertType = "movement_unacknowledged"
	AlertMissingDigitalLink     AlertType = "missing_digital_link"
	AlertEscalation             AlertType = "escalation"
	AlertFileLocationWarning    AlertType = "file_location_warning"
	AlertFileRequest            AlertType = "file_request"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertDeadlineUpcoming, AlertDeadlineOverdue, AlertFileOverdueAtCustodian,
		AlertMovementUnacknowledged, AlertMissingDigitalLink, AlertEscalation,
		AlertFileLocationWarning, AlertFileRequest:
		return true
	}
	return false
}

// Severity of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a derived, disposable artifact: everything except its own
// read/dismissed flags can be regenerated from file, movement and deadline
// state. At most one active (non-dismissed) alert may exist per
// (type, file_id, target_user_id); dismissal is terminal and re-arms the
// dedup key so a recurring condition can alert again.
type Alert struct {
	ID           string     `json:"id"`
	Type         AlertType  `json:"type"`
	Severity     Severity   `json:"severity"`
	FileID       *string    `json:"file_id,omitempty"`
	DeadlineID   *string    `json:"deadline_id,omitempty"`
	TargetUserID *string    `json:"target_user_id,omitempty"` // nil means broadcast
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"created_at"`
	Read         bool       `json:"read"`
	Dismissed    bool       `json:"dismissed"`
	DismissedAt  *time.Time `json:"dismissed_at,omitempty"`
}

// AlertListResponse wraps an alert listing.
type AlertListResponse struct {
	Items      []Alert `json:"items"`
	TotalCount int     `json:"total_count"`
}

// ScanResultResponse summarizes an alert engine scan.
type ScanResultResponse struct {
	Created  int       `json:"created"`
	Failures int       `json:"failures"`
	ScanAt   time.Time `json:"scan_at"`
}
