package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType distinguishes enter and exit geofence alerts.
type AlertType string

const (
	AlertEnter AlertType = "enter"
	AlertExit  AlertType = "exit"
)

// GeofenceAlert is a persisted notification created on a qualifying zone
// transition. Only the read flag is mutated after creation.
type GeofenceAlert struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ZoneID    uuid.UUID `json:"zone_id"`
	Type      AlertType `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
