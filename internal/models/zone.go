package models

import (
	"time"

	"github.com/google/uuid"
)

// FavoriteZone is a circular region a user wants monitored for entry and exit.
type FavoriteZone struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Name          string    `json:"name"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	RadiusMeters  float64   `json:"radius_meters"`
	NotifyOnEnter bool      `json:"notify_on_enter"`
	NotifyOnExit  bool      `json:"notify_on_exit"`
	CreatedAt     time.Time `json:"created_at"`
}
