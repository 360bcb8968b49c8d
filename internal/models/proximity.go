package models

import (
	"time"

	"github.com/google/uuid"
)

// TargetBam is the target type for alerts about nearby incident reports.
const TargetBam = "bam"

// ProximityNotification records that a user was alerted about a nearby
// target. At most one record per (user, target type, target id) may carry a
// timestamp within the trailing 24 hours.
type ProximityNotification struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	TargetType     string    `json:"target_type"`
	TargetID       uuid.UUID `json:"target_id"`
	DistanceMeters float64   `json:"distance_meters"`
	CreatedAt      time.Time `json:"created_at"`
}
