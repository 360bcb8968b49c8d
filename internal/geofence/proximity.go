package geofence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/geo"
	"github.com/Loutxo/bam-backend-sub000/internal/metrics"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
	"github.com/Loutxo/bam-backend-sub000/internal/store"
)

// dedupWindow is the rolling window inside which a (user, target) pair is
// alerted at most once.
const dedupWindow = 24 * time.Hour

// ProximityNotifier scans active incident reports near a user's position
// and emits at most one alert per (user, target) per rolling 24 hours. It
// is always invoked under the evaluator's per-user lock, which makes the
// check-then-create sequence a single logical unit for a given pair.
type ProximityNotifier struct {
	store    store.DataStore
	notifier Notifier
	radius   float64
	logger   zerolog.Logger
	now      func() time.Time
}

// NewProximityNotifier creates a notifier with the given alert radius.
func NewProximityNotifier(s store.DataStore, n Notifier, radius float64, logger zerolog.Logger) *ProximityNotifier {
	return &ProximityNotifier{
		store:    s,
		notifier: n,
		radius:   radius,
		logger:   logger.With().Str("component", "proximity").Logger(),
		now:      time.Now,
	}
}

// Evaluate checks the user's position against nearby active reports.
// Failures abandon the affected candidate only; the durable record is
// written before the transient push.
func (p *ProximityNotifier) Evaluate(ctx context.Context, userID uuid.UUID, lat, lon float64) {
	if p.radius <= 0 {
		return
	}

	minLat, maxLat, minLon, maxLon := geo.BoundingBox(lat, lon, p.radius)
	bams, err := p.store.ListActiveBamsInBox(ctx, minLat, maxLat, minLon, maxLon)
	if err != nil {
		p.logger.Error().Str("user_id", userID.String()).Err(err).Msg("nearby scan failed")
		return
	}

	since := p.now().Add(-dedupWindow)

	for i := range bams {
		bam := &bams[i]
		if bam.AuthorID == userID {
			continue // no alerts about your own report
		}

		dist := geo.Distance(lat, lon, bam.Latitude, bam.Longitude)
		if dist > p.radius {
			continue
		}

		seen, err := p.store.HasRecentProximityNotification(ctx, userID, models.TargetBam, bam.ID, since)
		if err != nil {
			p.logger.Error().Str("bam_id", bam.ID.String()).Err(err).Msg("dedup lookup failed")
			continue
		}
		if seen {
			continue
		}

		rec := &models.ProximityNotification{
			UserID:         userID,
			TargetType:     models.TargetBam,
			TargetID:       bam.ID,
			DistanceMeters: dist,
		}
		if err := p.store.CreateProximityNotification(ctx, rec); err != nil {
			p.logger.Error().Str("bam_id", bam.ID.String()).Err(err).Msg("record create failed")
			continue
		}
		metrics.ProximityAlerts.Inc()

		err = p.notifier.Dispatch(ctx, realtime.EventProximityAlert, realtime.Target{UserID: userID}, map[string]any{
			"target_type":     models.TargetBam,
			"target_id":       bam.ID.String(),
			"title":           bam.Title,
			"distance_meters": dist,
		})
		if err != nil {
			p.logger.Warn().Str("bam_id", bam.ID.String()).Err(err).Msg("dispatch failed")
		}
	}
}
