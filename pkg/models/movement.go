package models

import "time"

// MovementPurpose is the closed set of reasons a file changes hands.
type MovementPurpose string

const (
	PurposeRegistration MovementPurpose = "registration"
	PurposeFiling       MovementPurpose = "filing"
	PurposeReview       MovementPurpose = "review"
	PurposeHearing      MovementPurpose = "hearing"
	PurposeSafekeeping  MovementPurpose = "safekeeping"
	PurposeDispatch     MovementPurpose = "dispatch"
)

func (p MovementPurpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposeFiling, PurposeReview, PurposeHearing, PurposeSafekeeping, PurposeDispatch:
		return true
	}
	return false
}

// Movement is the append-only audit unit of the custody ledger. Once
// created, only the acknowledgment fields may change, exactly once, and
// only by the recipient (or a holder of the override capability).
// FromCustodian is nil on the registration movement. Ordering of a file's
// chain is always by MovedAt, never by id.
type Movement struct {
	ID             string          `json:"id"`
	FileID         string          `json:"file_id"`
	FromCustodian  *string         `json:"from_custodian,omitempty"`
	ToCustodian    string          `json:"to_custodian"`
	Purpose        MovementPurpose `json:"purpose"`
	Notes          string          `json:"notes"`
	LoggedBy       string          `json:"logged_by"`
	MovedAt        time.Time       `json:"moved_at"`
	Acknowledged   bool            `json:"acknowledged"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string         `json:"acknowledged_by,omitempty"`
}

// TransferRequest is the payload for a custody transfer.
type TransferRequest struct {
	FileID      string          `json:"file_id" validate:"required"`
	ToCustodian string          `json:"to_custodian" validate:"required"`
	Purpose     MovementPurpose `json:"purpose" validate:"required"`
	Notes       string          `json:"notes"`
}

// MovementResponse wraps a single movement.
type MovementResponse struct {
	Movement Movement `json:"movement"`
}

// MovementListResponse wraps a movement listing.
type MovementListResponse struct {
	Items      []Movement `json:"items"`
	TotalCount int        `json:"total_count"`
}
