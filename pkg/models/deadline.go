package models

import "time"

// DeadlineType is the closed set of dated obligations tied to a file.
type DeadlineType string

const (
	DeadlineHearing    DeadlineType = "hearing"
	DeadlineFiling     DeadlineType = "filing"
	DeadlineMention    DeadlineType = "mention"
	DeadlineSubmission DeadlineType = "submission"
	DeadlineAppeal     DeadlineType = "appeal"
)

func (t DeadlineType) Valid() bool {
	switch t {
	case DeadlineHearing, DeadlineFiling, DeadlineMention, DeadlineSubmission, DeadlineAppeal:
		return true
	}
	return false
}

// DeadlineStatus moves Pending -> Completed exactly once. Deadlines are
// never deleted; completed ones are immutable historical records.
type DeadlineStatus string

const (
	DeadlinePending   DeadlineStatus = "pending"
	DeadlineCompleted DeadlineStatus = "completed"
)

// Deadline is a dated obligation on a case file.
type Deadline struct {
	ID          string         `json:"id"`
	FileID      string         `json:"file_id"`
	Type        DeadlineType   `json:"type"`
	DueDate     time.Time      `json:"due_date"`
	Description string         `json:"description"`
	Status      DeadlineStatus `json:"status"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CompletedBy *string        `json:"completed_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// DaysUntil computes whole days between now and the due date, rounding up:
// a deadline due in 6h23m is 1 day away, not 0. Negative for overdue
// deadlines. The alert engine's exact-match thresholds depend on this
// ceiling, so it must not be changed to floor or round.
func (d *Deadline) DaysUntil(now time.Time) int {
	diff := d.DueDate.Sub(now)
	days := diff / (24 * time.Hour)
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}

// CreateDeadlineRequest is the payload for scheduling a deadline.
type CreateDeadlineRequest struct {
	Type        DeadlineType `json:"type" validate:"required"`
	DueDate     time.Time    `json:"due_date" validate:"required"`
	Description string       `json:"description"`
}

// DeadlineResponse wraps a single deadline.
type DeadlineResponse struct {
	Deadline Deadline `json:"deadline"`
}

// DeadlineListResponse wraps a deadline listing.
type DeadlineListResponse struct {
	Items      []Deadline `json:"items"`
	TotalCount int        `json:"total_count"`
}
