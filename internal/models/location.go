package models

import (
	"time"

	"github.com/google/uuid"
)

// LocationFix is a single GPS fix reported by a client.
type LocationFix struct {
	UserID         uuid.UUID `json:"user_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}
