package models

import "time"

// RiskLevel tiers a bottleneck by how long the file has sat still.
type RiskLevel string

const (
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Bottleneck is an active file held by one custodian without movement for
// at least the analysis threshold.
type Bottleneck struct {
	File             File      `json:"file"`
	CurrentCustodian string    `json:"current_custodian"`
	LastMovement     Movement  `json:"last_movement"`
	DaysHeld         int       `json:"days_held"`
	RiskLevel        RiskLevel `json:"risk_level"`
}

// DaysHeld computes whole days since the last movement, rounded to the
// nearest day (13.4 days held is 13, 13.6 is 14).
func DaysHeld(lastMoved, now time.Time) int {
	diff := now.Sub(lastMoved)
	days := diff / (24 * time.Hour)
	if diff%(24*time.Hour) >= 12*time.Hour {
		days++
	}
	return int(days)
}

// BottleneckListResponse wraps a bottleneck report.
type BottleneckListResponse struct {
	Items      []Bottleneck `json:"items"`
	TotalCount int          `json:"total_count"`
}
