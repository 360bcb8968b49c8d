package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Loutxo/bam-backend-sub000/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback behind the same DataStore interface as PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/bam.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/bam.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS favorite_zones (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		radius_meters REAL NOT NULL,
		notify_on_enter INTEGER DEFAULT 1,
		notify_on_exit INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS zone_visits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		zone_id TEXT NOT NULL,
		entered_at DATETIME NOT NULL,
		exited_at DATETIME,
		duration_minutes INTEGER
	);

	CREATE TABLE IF NOT EXISTS geofence_alerts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		zone_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT DEFAULT '',
		read INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS proximity_notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		distance_meters REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bams (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT DEFAULT '',
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		status TEXT DEFAULT 'active',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bam_participants (
		bam_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (bam_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS user_locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		accuracy_meters REAL DEFAULT 0,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_zones_user ON favorite_zones(user_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_open ON zone_visits(user_id, zone_id) WHERE exited_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_alerts_user ON geofence_alerts(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_proximity_triple ON proximity_notifications(user_id, target_type, target_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_bams_status_lat ON bams(status, latitude);
	CREATE INDEX IF NOT EXISTS idx_locations_user ON user_locations(user_id, recorded_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateZone creates a favorite zone for a user.
func (s *SQLiteStore) CreateZone(ctx context.Context, zone *models.FavoriteZone) (*models.FavoriteZone, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorite_zones (id, user_id, name, latitude, longitude, radius_meters, notify_on_enter, notify_on_exit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), zone.UserID.String(), zone.Name, zone.Latitude, zone.Longitude, zone.RadiusMeters, zone.NotifyOnEnter, zone.NotifyOnExit, now)
	if err != nil {
		return nil, err
	}

	created := *zone
	created.ID = id
	created.CreatedAt = now
	return &created, nil
}

// GetZone retrieves a zone by ID.
func (s *SQLiteStore) GetZone(ctx context.Context, id uuid.UUID) (*models.FavoriteZone, error) {
	zone := &models.FavoriteZone{}
	var zoneID, userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, latitude, longitude, radius_meters, notify_on_enter, notify_on_exit, created_at
		FROM favorite_zones WHERE id = ?
	`, id.String()).Scan(
		&zoneID,
		&userID,
		&zone.Name,
		&zone.Latitude,
		&zone.Longitude,
		&zone.RadiusMeters,
		&zone.NotifyOnEnter,
		&zone.NotifyOnExit,
		&zone.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	zone.ID, _ = uuid.Parse(zoneID)
	zone.UserID, _ = uuid.Parse(userID)
	return zone, nil
}

// ListZonesByUser retrieves all favorite zones of a user.
func (s *SQLiteStore) ListZonesByUser(ctx context.Context, userID uuid.UUID) ([]models.FavoriteZone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, latitude, longitude, radius_meters, notify_on_enter, notify_on_exit, created_at
		FROM favorite_zones WHERE user_id = ?
		ORDER BY created_at
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []models.FavoriteZone
	for rows.Next() {
		var z models.FavoriteZone
		var zID, uID string
		if err := rows.Scan(&zID, &uID, &z.Name, &z.Latitude, &z.Longitude, &z.RadiusMeters, &z.NotifyOnEnter, &z.NotifyOnExit, &z.CreatedAt); err != nil {
			return nil, err
		}
		z.ID, _ = uuid.Parse(zID)
		z.UserID, _ = uuid.Parse(uID)
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// DeleteZone removes a zone owned by the given user.
func (s *SQLiteStore) DeleteZone(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM favorite_zones WHERE id = ? AND user_id = ?
	`, id.String(), userID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOpenVisit retrieves the open visit for a (user, zone) pair, if any.
func (s *SQLiteStore) GetOpenVisit(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneVisit, error) {
	visit := &models.ZoneVisit{}
	var vID, uID, zID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, zone_id, entered_at, exited_at, duration_minutes
		FROM zone_visits
		WHERE user_id = ? AND zone_id = ? AND exited_at IS NULL
	`, userID.String(), zoneID.String()).Scan(
		&vID,
		&uID,
		&zID,
		&visit.EnteredAt,
		&visit.ExitedAt,
		&visit.DurationMinutes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	visit.ID, _ = uuid.Parse(vID)
	visit.UserID, _ = uuid.Parse(uID)
	visit.ZoneID, _ = uuid.Parse(zID)
	return visit, nil
}

// OpenVisit creates a new open visit. The partial unique index idx_visits_open
// rejects a second open visit for the same pair.
func (s *SQLiteStore) OpenVisit(ctx context.Context, userID, zoneID uuid.UUID, enteredAt time.Time) (*models.ZoneVisit, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zone_visits (id, user_id, zone_id, entered_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), userID.String(), zoneID.String(), enteredAt)
	if err != nil {
		return nil, err
	}
	return &models.ZoneVisit{
		ID:        id,
		UserID:    userID,
		ZoneID:    zoneID,
		EnteredAt: enteredAt,
	}, nil
}

// CloseVisit stamps the exit time and duration on an open visit.
func (s *SQLiteStore) CloseVisit(ctx context.Context, visitID uuid.UUID, exitedAt time.Time, durationMinutes int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE zone_visits
		SET exited_at = ?, duration_minutes = ?
		WHERE id = ? AND exited_at IS NULL
	`, exitedAt, durationMinutes, visitID.String())
	return err
}

// CreateAlert persists a geofence alert.
func (s *SQLiteStore) CreateAlert(ctx context.Context, alert *models.GeofenceAlert) (*models.GeofenceAlert, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geofence_alerts (id, user_id, zone_id, type, title, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), alert.UserID.String(), alert.ZoneID.String(), string(alert.Type), alert.Title, alert.Message, now)
	if err != nil {
		return nil, err
	}

	created := *alert
	created.ID = id
	created.Read = false
	created.CreatedAt = now
	return &created, nil
}

// ListAlertsByUser retrieves alerts for a user, most recent first.
func (s *SQLiteStore) ListAlertsByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.GeofenceAlert, error) {
	query := `
		SELECT id, user_id, zone_id, type, title, message, read, created_at
		FROM geofence_alerts
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, userID.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.GeofenceAlert
	for rows.Next() {
		var a models.GeofenceAlert
		var aID, uID, zID string
		if err := rows.Scan(&aID, &uID, &zID, &a.Type, &a.Title, &a.Message, &a.Read, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ID, _ = uuid.Parse(aID)
		a.UserID, _ = uuid.Parse(uID)
		a.ZoneID, _ = uuid.Parse(zID)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertRead flips the read flag.
func (s *SQLiteStore) MarkAlertRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE geofence_alerts SET read = 1 WHERE id = ? AND user_id = ?
	`, id.String(), userID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasRecentProximityNotification reports whether a record for the
// (user, target) pair exists at or after the given time.
func (s *SQLiteStore) HasRecentProximityNotification(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM proximity_notifications
			WHERE user_id = ? AND target_type = ? AND target_id = ? AND created_at >= ?
		)
	`, userID.String(), targetType, targetID.String(), since).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateProximityNotification persists a proximity notification record.
func (s *SQLiteStore) CreateProximityNotification(ctx context.Context, rec *models.ProximityNotification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proximity_notifications (id, user_id, target_type, target_id, distance_meters, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), rec.UserID.String(), rec.TargetType, rec.TargetID.String(), rec.DistanceMeters, time.Now().UTC())
	return err
}

// GetBam retrieves an incident report by ID.
func (s *SQLiteStore) GetBam(ctx context.Context, id uuid.UUID) (*models.Bam, error) {
	bam := &models.Bam{}
	var bID, aID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, title, category, latitude, longitude, status, created_at
		FROM bams WHERE id = ?
	`, id.String()).Scan(
		&bID,
		&aID,
		&bam.Title,
		&bam.Category,
		&bam.Latitude,
		&bam.Longitude,
		&bam.Status,
		&bam.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	bam.ID, _ = uuid.Parse(bID)
	bam.AuthorID, _ = uuid.Parse(aID)
	return bam, nil
}

// ListActiveBamsInBox retrieves active incident reports inside a bounding box.
func (s *SQLiteStore) ListActiveBamsInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]models.Bam, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, title, category, latitude, longitude, status, created_at
		FROM bams
		WHERE status = 'active'
		  AND latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
	`, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bams []models.Bam
	for rows.Next() {
		var b models.Bam
		var bID, aID string
		if err := rows.Scan(&bID, &aID, &b.Title, &b.Category, &b.Latitude, &b.Longitude, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.ID, _ = uuid.Parse(bID)
		b.AuthorID, _ = uuid.Parse(aID)
		bams = append(bams, b)
	}
	return bams, rows.Err()
}

// IsBamParticipant reports whether a user participates in an incident thread.
func (s *SQLiteStore) IsBamParticipant(ctx context.Context, bamID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bams WHERE id = ? AND author_id = ?
			UNION
			SELECT 1 FROM bam_participants WHERE bam_id = ? AND user_id = ?
		)
	`, bamID.String(), userID.String(), bamID.String(), userID.String()).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// SaveLocation appends a location fix to the user's history.
func (s *SQLiteStore) SaveLocation(ctx context.Context, fix *models.LocationFix) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_locations (user_id, latitude, longitude, accuracy_meters, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, fix.UserID.String(), fix.Latitude, fix.Longitude, fix.AccuracyMeters, fix.RecordedAt)
	return err
}
