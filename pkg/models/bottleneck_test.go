package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysHeld(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		lastMoved time.Time
		want      int
	}{
		{"moved just now", now, 0},
		{"eleven hours rounds down", now.Add(-11 * time.Hour), 0},
		{"twelve hours rounds up", now.Add(-12 * time.Hour), 1},
		{"exactly seven days", now.Add(-7 * 24 * time.Hour), 7},
		{"seven days eleven hours stays seven", now.Add(-(7*24 + 11) * time.Hour), 7},
		{"seven days twelve hours becomes eight", now.Add(-(7*24 + 12) * time.Hour), 8},
		{"two weeks", now.Add(-14 * 24 * time.Hour), 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysHeld(tt.lastMoved, now))
		})
	}
}
