package models

import (
	"time"

	"github.com/google/uuid"
)

// BamStatus is the lifecycle state of an incident report.
type BamStatus string

const (
	BamActive   BamStatus = "active"
	BamResolved BamStatus = "resolved"
	BamArchived BamStatus = "archived"
)

// Bam is an incident report pinned to a location. Its thread doubles as a
// real-time room for participants.
type Bam struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Status    BamStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
