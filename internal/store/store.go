package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Loutxo/bam-backend-sub000/internal/models"
)

// DataStore defines the interface for durable storage behind the realtime
// and geofence engines. Both PostgresStore and SQLiteStore implement it.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Favorite zones
	CreateZone(ctx context.Context, zone *models.FavoriteZone) (*models.FavoriteZone, error)
	GetZone(ctx context.Context, id uuid.UUID) (*models.FavoriteZone, error)
	ListZonesByUser(ctx context.Context, userID uuid.UUID) ([]models.FavoriteZone, error)
	DeleteZone(ctx context.Context, id, userID uuid.UUID) (bool, error)

	// Zone visits
	GetOpenVisit(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneVisit, error)
	OpenVisit(ctx context.Context, userID, zoneID uuid.UUID, enteredAt time.Time) (*models.ZoneVisit, error)
	CloseVisit(ctx context.Context, visitID uuid.UUID, exitedAt time.Time, durationMinutes int64) error

	// Geofence alerts
	CreateAlert(ctx context.Context, alert *models.GeofenceAlert) (*models.GeofenceAlert, error)
	ListAlertsByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.GeofenceAlert, error)
	MarkAlertRead(ctx context.Context, id, userID uuid.UUID) (bool, error)

	// Proximity de-duplication
	HasRecentProximityNotification(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID, since time.Time) (bool, error)
	CreateProximityNotification(ctx context.Context, rec *models.ProximityNotification) error

	// Incident reports (points of interest and room backing entities)
	GetBam(ctx context.Context, id uuid.UUID) (*models.Bam, error)
	ListActiveBamsInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]models.Bam, error)
	IsBamParticipant(ctx context.Context, bamID, userID uuid.UUID) (bool, error)

	// Location history
	SaveLocation(ctx context.Context, fix *models.LocationFix) error
}
