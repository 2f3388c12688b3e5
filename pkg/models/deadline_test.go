package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadline_DaysUntil(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"due right now", now, 0},
		{"due in six hours rounds up", now.Add(6 * time.Hour), 1},
		{"due in exactly one day", now.Add(24 * time.Hour), 1},
		{"due in one day and a minute rounds up", now.Add(24*time.Hour + time.Minute), 2},
		{"due in a week", now.Add(7 * 24 * time.Hour), 7},
		{"one hour overdue", now.Add(-time.Hour), 0},
		{"one full day overdue", now.Add(-24 * time.Hour), -1},
		{"thirty hours overdue", now.Add(-30 * time.Hour), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Deadline{DueDate: tt.due}
			assert.Equal(t, tt.want, d.DaysUntil(now))
		})
	}
}

func TestDeadlineType_Valid(t *testing.T) {
	for _, valid := range []DeadlineType{DeadlineHearing, DeadlineFiling, DeadlineMention, DeadlineSubmission, DeadlineAppeal} {
		assert.True(t, valid.Valid(), string(valid))
	}
	assert.False(t, DeadlineType("").Valid())
	assert.False(t, DeadlineType("vacation").Valid())
}
