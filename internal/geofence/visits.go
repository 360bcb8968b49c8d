package geofence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/models"
	"github.com/Loutxo/bam-backend-sub000/internal/store"
)

// VisitTracker owns the lifecycle of zone visits: opened on entry, closed
// on exit, persisted through the durable store. It holds no cache beyond a
// single evaluation; the store's view of open visits is the truth, which
// bounds the blast radius of a crash mid-transition.
type VisitTracker struct {
	store  store.DataStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewVisitTracker creates a tracker over the durable store.
func NewVisitTracker(s store.DataStore, logger zerolog.Logger) *VisitTracker {
	return &VisitTracker{
		store:  s,
		logger: logger.With().Str("component", "visits").Logger(),
		now:    time.Now,
	}
}

// OpenVisitFor returns the open visit for the (user, zone) pair, or nil.
func (t *VisitTracker) OpenVisitFor(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneVisit, error) {
	return t.store.GetOpenVisit(ctx, userID, zoneID)
}

// Enter opens a visit for the pair. If an open visit already exists it is
// returned unchanged, preserving the at-most-one-open invariant under
// duplicate evaluations.
func (t *VisitTracker) Enter(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneVisit, error) {
	if existing, err := t.store.GetOpenVisit(ctx, userID, zoneID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}
	return t.store.OpenVisit(ctx, userID, zoneID, t.now().UTC())
}

// Exit closes the given open visit and returns the dwell duration in whole
// minutes.
func (t *VisitTracker) Exit(ctx context.Context, visit *models.ZoneVisit) (int64, error) {
	exitedAt := t.now().UTC()
	duration := int64(exitedAt.Sub(visit.EnteredAt).Minutes())
	if duration < 0 {
		duration = 0
	}
	if err := t.store.CloseVisit(ctx, visit.ID, exitedAt, duration); err != nil {
		return 0, err
	}
	return duration, nil
}
