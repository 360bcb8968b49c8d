package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. The engine owns only these
// tables; user accounts live in the main application schema.
const schema = `
CREATE TABLE IF NOT EXISTS favorite_zones (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id UUID NOT NULL,
	name TEXT NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	radius_meters DOUBLE PRECISION NOT NULL,
	notify_on_enter BOOLEAN DEFAULT TRUE,
	notify_on_exit BOOLEAN DEFAULT FALSE,
	created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS zone_visits (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id UUID NOT NULL,
	zone_id UUID NOT NULL,
	entered_at TIMESTAMPTZ NOT NULL,
	exited_at TIMESTAMPTZ,
	duration_minutes BIGINT
);

CREATE TABLE IF NOT EXISTS geofence_alerts (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id UUID NOT NULL,
	zone_id UUID NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT DEFAULT '',
	read BOOLEAN DEFAULT FALSE,
	created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS proximity_notifications (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id UUID NOT NULL,
	target_type TEXT NOT NULL,
	target_id UUID NOT NULL,
	distance_meters DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bams (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	author_id UUID NOT NULL,
	title TEXT NOT NULL,
	category TEXT DEFAULT '',
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	status TEXT DEFAULT 'active',
	created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bam_participants (
	bam_id UUID NOT NULL,
	user_id UUID NOT NULL,
	PRIMARY KEY (bam_id, user_id)
);

CREATE TABLE IF NOT EXISTS user_locations (
	id BIGSERIAL PRIMARY KEY,
	user_id UUID NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	accuracy_meters DOUBLE PRECISION DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_zones_user ON favorite_zones(user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_open ON zone_visits(user_id, zone_id) WHERE exited_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_alerts_user ON geofence_alerts(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_proximity_triple ON proximity_notifications(user_id, target_type, target_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bams_box ON bams(status, latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_locations_user ON user_locations(user_id, recorded_at DESC);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, schema)
	return err
}
