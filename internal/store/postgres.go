package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Loutxo/bam-backend-sub000/internal/metrics"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CreateZone creates a favorite zone for a user.
func (s *PostgresStore) CreateZone(ctx context.Context, zone *models.FavoriteZone) (*models.FavoriteZone, error) {
	defer observe("create_zone", time.Now())

	created := &models.FavoriteZone{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO favorite_zones (user_id, name, latitude, longitude, radius_meters, notify_on_enter, notify_on_exit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, name, latitude, longitude, radius_meters, notify_on_enter, notify_on_exit, created_at
	`, zone.UserID, zone.Name, zone.Latitude, zone.Longitude, zone.RadiusMeters, zone.NotifyOnEnter, zone.NotifyOnExit).Scan(
		&created.ID,
		&created.UserID,
		&created.Name,
		&created.Latitude,
		&created.Longitude,
		&created.RadiusMeters,
		&created.NotifyOnEnter,
		&created.NotifyOnExit,
		&created.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetZone retrieves a zone by ID.
func (s *PostgresStore) GetZone(ctx context.Context, id uuid.UUID) (*models.FavoriteZone, error) {
	defer observe("get_zone", time.Now())

	zone := &models.FavoriteZone{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, latitude, longitude, radius_meters, notify_on_enter, notify_on_exit, created_at
		FROM favorite_zones WHERE id = $1
	`, id).Scan(
		&zone.ID,
		&zone.UserID,
		&zone.Name,
		&zone.Latitude,
		&zone.Longitude,
		&zone.RadiusMeters,
		&zone.NotifyOnEnter,
		&zone.NotifyOnExit,
		&zone.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return zone, nil
}

// ListZonesByUser retrieves all favorite zones of a user.
func (s *PostgresStore) ListZonesByUser(ctx context.Context, userID uuid.UUID) ([]models.FavoriteZone, error) {
	defer observe("list_zones", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, latitude, longitude, radius_meters, notify_on_enter, notify_on_exit, created_at
		FROM favorite_zones WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []models.FavoriteZone
	for rows.Next() {
		var z models.FavoriteZone
		if err := rows.Scan(&z.ID, &z.UserID, &z.Name, &z.Latitude, &z.Longitude, &z.RadiusMeters, &z.NotifyOnEnter, &z.NotifyOnExit, &z.CreatedAt); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// DeleteZone removes a zone owned by the given user. Returns false if no
// such zone exists.
func (s *PostgresStore) DeleteZone(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	defer observe("delete_zone", time.Now())

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM favorite_zones WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetOpenVisit retrieves the open visit for a (user, zone) pair, if any.
func (s *PostgresStore) GetOpenVisit(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneVisit, error) {
	defer observe("get_open_visit", time.Now())

	visit := &models.ZoneVisit{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, zone_id, entered_at, exited_at, duration_minutes
		FROM zone_visits
		WHERE user_id = $1 AND zone_id = $2 AND exited_at IS NULL
	`, userID, zoneID).Scan(
		&visit.ID,
		&visit.UserID,
		&visit.ZoneID,
		&visit.EnteredAt,
		&visit.ExitedAt,
		&visit.DurationMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return visit, nil
}

// OpenVisit creates a new open visit. A partial unique index on
// (user_id, zone_id) WHERE exited_at IS NULL enforces the at-most-one-open
// invariant at the storage layer as well.
func (s *PostgresStore) OpenVisit(ctx context.Context, userID, zoneID uuid.UUID, enteredAt time.Time) (*models.ZoneVisit, error) {
	defer observe("open_visit", time.Now())

	visit := &models.ZoneVisit{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO zone_visits (user_id, zone_id, entered_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, zone_id, entered_at, exited_at, duration_minutes
	`, userID, zoneID, enteredAt).Scan(
		&visit.ID,
		&visit.UserID,
		&visit.ZoneID,
		&visit.EnteredAt,
		&visit.ExitedAt,
		&visit.DurationMinutes,
	)
	if err != nil {
		return nil, err
	}
	return visit, nil
}

// CloseVisit stamps the exit time and duration on an open visit.
func (s *PostgresStore) CloseVisit(ctx context.Context, visitID uuid.UUID, exitedAt time.Time, durationMinutes int64) error {
	defer observe("close_visit", time.Now())

	_, err := s.pool.Exec(ctx, `
		UPDATE zone_visits
		SET exited_at = $2, duration_minutes = $3
		WHERE id = $1 AND exited_at IS NULL
	`, visitID, exitedAt, durationMinutes)
	return err
}

// CreateAlert persists a geofence alert.
func (s *PostgresStore) CreateAlert(ctx context.Context, alert *models.GeofenceAlert) (*models.GeofenceAlert, error) {
	defer observe("create_alert", time.Now())

	created := &models.GeofenceAlert{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO geofence_alerts (user_id, zone_id, type, title, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, zone_id, type, title, message, read, created_at
	`, alert.UserID, alert.ZoneID, alert.Type, alert.Title, alert.Message).Scan(
		&created.ID,
		&created.UserID,
		&created.ZoneID,
		&created.Type,
		&created.Title,
		&created.Message,
		&created.Read,
		&created.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListAlertsByUser retrieves alerts for a user, most recent first.
func (s *PostgresStore) ListAlertsByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.GeofenceAlert, error) {
	defer observe("list_alerts", time.Now())

	query := `
		SELECT id, user_id, zone_id, type, title, message, read, created_at
		FROM geofence_alerts
		WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.GeofenceAlert
	for rows.Next() {
		var a models.GeofenceAlert
		if err := rows.Scan(&a.ID, &a.UserID, &a.ZoneID, &a.Type, &a.Title, &a.Message, &a.Read, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertRead flips the read flag. Returns false if the alert does not
// belong to the user or does not exist.
func (s *PostgresStore) MarkAlertRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	defer observe("mark_alert_read", time.Now())

	tag, err := s.pool.Exec(ctx, `
		UPDATE geofence_alerts SET read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HasRecentProximityNotification reports whether a record for the
// (user, target) pair exists at or after the given time.
func (s *PostgresStore) HasRecentProximityNotification(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID, since time.Time) (bool, error) {
	defer observe("has_recent_proximity", time.Now())

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM proximity_notifications
			WHERE user_id = $1 AND target_type = $2 AND target_id = $3 AND created_at >= $4
		)
	`, userID, targetType, targetID, since).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateProximityNotification persists a proximity notification record.
func (s *PostgresStore) CreateProximityNotification(ctx context.Context, rec *models.ProximityNotification) error {
	defer observe("create_proximity", time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO proximity_notifications (user_id, target_type, target_id, distance_meters)
		VALUES ($1, $2, $3, $4)
	`, rec.UserID, rec.TargetType, rec.TargetID, rec.DistanceMeters)
	return err
}

// GetBam retrieves an incident report by ID.
func (s *PostgresStore) GetBam(ctx context.Context, id uuid.UUID) (*models.Bam, error) {
	defer observe("get_bam", time.Now())

	bam := &models.Bam{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, author_id, title, category, latitude, longitude, status, created_at
		FROM bams WHERE id = $1
	`, id).Scan(
		&bam.ID,
		&bam.AuthorID,
		&bam.Title,
		&bam.Category,
		&bam.Latitude,
		&bam.Longitude,
		&bam.Status,
		&bam.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return bam, nil
}

// ListActiveBamsInBox retrieves active incident reports inside a lat/lon
// bounding box. Callers refine with an exact distance check.
func (s *PostgresStore) ListActiveBamsInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]models.Bam, error) {
	defer observe("list_bams_in_box", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT id, author_id, title, category, latitude, longitude, status, created_at
		FROM bams
		WHERE status = 'active'
		  AND latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
	`, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bams []models.Bam
	for rows.Next() {
		var b models.Bam
		if err := rows.Scan(&b.ID, &b.AuthorID, &b.Title, &b.Category, &b.Latitude, &b.Longitude, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		bams = append(bams, b)
	}
	return bams, rows.Err()
}

// IsBamParticipant reports whether a user participates in an incident
// thread (author or commenter).
func (s *PostgresStore) IsBamParticipant(ctx context.Context, bamID, userID uuid.UUID) (bool, error) {
	defer observe("is_bam_participant", time.Now())

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bams WHERE id = $1 AND author_id = $2
			UNION
			SELECT 1 FROM bam_participants WHERE bam_id = $1 AND user_id = $2
		)
	`, bamID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// SaveLocation appends a location fix to the user's history.
func (s *PostgresStore) SaveLocation(ctx context.Context, fix *models.LocationFix) error {
	defer observe("save_location", time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_locations (user_id, latitude, longitude, accuracy_meters, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, fix.UserID, fix.Latitude, fix.Longitude, fix.AccuracyMeters, fix.RecordedAt)
	return err
}
