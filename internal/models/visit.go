package models

import (
	"time"

	"github.com/google/uuid"
)

// ZoneVisit is one contiguous dwell of a user inside a favorite zone.
// ExitedAt is nil while the visit is ongoing; at most one open visit may
// exist per (user, zone) pair.
type ZoneVisit struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ZoneID          uuid.UUID  `json:"zone_id"`
	EnteredAt       time.Time  `json:"entered_at"`
	ExitedAt        *time.Time `json:"exited_at,omitempty"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty"`
}

// Open reports whether the visit has not been closed yet.
func (v *ZoneVisit) Open() bool {
	return v.ExitedAt == nil
}
