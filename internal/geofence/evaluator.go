package geofence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/geo"
	"github.com/Loutxo/bam-backend-sub000/internal/metrics"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
	"github.com/Loutxo/bam-backend-sub000/internal/store"
)

// Notifier pushes domain events into the realtime engine. Satisfied by
// *realtime.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, t realtime.EventType, target realtime.Target, payload map[string]any) error
}

// Config tunes the location filters and proximity scan.
type Config struct {
	// DebounceMeters / DebounceWindow: a fix within both of the previous
	// accepted fix is discarded to avoid visit-state chatter from GPS
	// jitter. Product heuristics, kept configurable.
	DebounceMeters float64
	DebounceWindow time.Duration
	// MaxAccuracyMeters discards fixes whose reported accuracy is worse
	// than this. Zero disables the filter.
	MaxAccuracyMeters float64
	// ProximityRadius is the alert threshold for nearby incident reports.
	ProximityRadius float64
}

type acceptedFix struct {
	lat, lon float64
	at       time.Time
}

type userState struct {
	mu   sync.Mutex
	last *acceptedFix

	qmu     sync.Mutex
	pending []*models.LocationFix
	running bool
}

// Evaluator runs the per-zone OUTSIDE/INSIDE state machine over incoming
// location fixes and hands qualifying positions to the proximity scan.
// Evaluation is serialized per user: the debounce check and the geofence
// pass both key off the same last-accepted fix, so they run under one
// per-user lock. Across users evaluations are independent.
type Evaluator struct {
	store     store.DataStore
	visits    *VisitTracker
	proximity *ProximityNotifier
	notifier  Notifier
	cfg       Config
	logger    zerolog.Logger

	mu    sync.Mutex
	users map[uuid.UUID]*userState

	now func() time.Time
}

// NewEvaluator wires the evaluator. The notifier is injected by reference;
// the evaluator never reaches into the registry or room table directly.
func NewEvaluator(s store.DataStore, notifier Notifier, cfg Config, logger zerolog.Logger) *Evaluator {
	log := logger.With().Str("component", "geofence").Logger()
	return &Evaluator{
		store:     s,
		visits:    NewVisitTracker(s, logger),
		proximity: NewProximityNotifier(s, notifier, cfg.ProximityRadius, log),
		notifier:  notifier,
		cfg:       cfg,
		users:     make(map[uuid.UUID]*userState),
		logger:    log,
		now:       time.Now,
	}
}

func (e *Evaluator) userState(userID uuid.UUID) *userState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.users[userID]
	if !ok {
		st = &userState{}
		e.users[userID] = st
	}
	return st
}

// Enqueue hands a fix to the user's evaluation queue and returns without
// waiting for evaluation. The append happens on the caller's goroutine, so
// two fixes submitted in sequence for one user are evaluated in that
// sequence: a single worker drains each user's queue in arrival order.
func (e *Evaluator) Enqueue(fix *models.LocationFix) {
	st := e.userState(fix.UserID)
	st.qmu.Lock()
	st.pending = append(st.pending, fix)
	if !st.running {
		st.running = true
		go e.drain(st)
	}
	st.qmu.Unlock()
}

func (e *Evaluator) drain(st *userState) {
	for {
		st.qmu.Lock()
		if len(st.pending) == 0 {
			st.running = false
			st.qmu.Unlock()
			return
		}
		fix := st.pending[0]
		st.pending = st.pending[1:]
		st.qmu.Unlock()

		e.ProcessLocation(context.Background(), fix)
	}
}

// ProcessLocation evaluates one fix. Store failures are contained: the
// evaluation for this fix is abandoned (logged, counted) and the next fix
// is evaluated fresh against whatever the store last durably held. The
// caller's submission succeeds regardless.
func (e *Evaluator) ProcessLocation(ctx context.Context, fix *models.LocationFix) {
	st := e.userState(fix.UserID)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := e.now()

	if e.cfg.MaxAccuracyMeters > 0 && fix.AccuracyMeters > e.cfg.MaxAccuracyMeters {
		metrics.LocationUpdates.WithLabelValues("inaccurate").Inc()
		return
	}

	if st.last != nil {
		moved := geo.Distance(st.last.lat, st.last.lon, fix.Latitude, fix.Longitude)
		if moved < e.cfg.DebounceMeters && now.Sub(st.last.at) < e.cfg.DebounceWindow {
			metrics.LocationUpdates.WithLabelValues("debounced").Inc()
			return
		}
	}
	st.last = &acceptedFix{lat: fix.Latitude, lon: fix.Longitude, at: now}
	metrics.LocationUpdates.WithLabelValues("accepted").Inc()

	e.evaluateZones(ctx, fix)
	e.proximity.Evaluate(ctx, fix.UserID, fix.Latitude, fix.Longitude)
}

// evaluateZones walks the user's favorite zones and applies the state
// machine: outside->inside opens a visit, inside->outside closes it, every
// other combination is a no-op. Errors abandon the affected zone only.
func (e *Evaluator) evaluateZones(ctx context.Context, fix *models.LocationFix) {
	zones, err := e.store.ListZonesByUser(ctx, fix.UserID)
	if err != nil {
		e.logger.Error().Str("user_id", fix.UserID.String()).Err(err).Msg("zone fetch failed, evaluation abandoned")
		return
	}

	for i := range zones {
		zone := &zones[i]
		dist := geo.Distance(fix.Latitude, fix.Longitude, zone.Latitude, zone.Longitude)
		insideNow := dist <= zone.RadiusMeters

		open, err := e.visits.OpenVisitFor(ctx, fix.UserID, zone.ID)
		if err != nil {
			e.logger.Error().Str("zone_id", zone.ID.String()).Err(err).Msg("visit lookup failed")
			continue
		}

		switch {
		case insideNow && open == nil:
			e.handleEnter(ctx, fix.UserID, zone)
		case !insideNow && open != nil:
			e.handleExit(ctx, fix.UserID, zone, open)
		}
	}
}

func (e *Evaluator) handleEnter(ctx context.Context, userID uuid.UUID, zone *models.FavoriteZone) {
	if _, err := e.visits.Enter(ctx, userID, zone.ID); err != nil {
		e.logger.Error().Str("zone_id", zone.ID.String()).Err(err).Msg("visit open failed")
		return
	}
	metrics.ZoneTransitions.WithLabelValues("enter").Inc()

	if !zone.NotifyOnEnter {
		return
	}
	e.alert(ctx, userID, zone, models.AlertEnter, realtime.EventZoneEnter, map[string]any{
		"zone_id":   zone.ID.String(),
		"zone_name": zone.Name,
	})
}

func (e *Evaluator) handleExit(ctx context.Context, userID uuid.UUID, zone *models.FavoriteZone, open *models.ZoneVisit) {
	duration, err := e.visits.Exit(ctx, open)
	if err != nil {
		e.logger.Error().Str("zone_id", zone.ID.String()).Err(err).Msg("visit close failed")
		return
	}
	metrics.ZoneTransitions.WithLabelValues("exit").Inc()

	if !zone.NotifyOnExit {
		return
	}
	e.alert(ctx, userID, zone, models.AlertExit, realtime.EventZoneExit, map[string]any{
		"zone_id":          zone.ID.String(),
		"zone_name":        zone.Name,
		"duration_minutes": duration,
	})
}

// alert persists a GeofenceAlert and pushes the transient event. The
// durable record is written first; if it fails the push is skipped so a
// client never sees a notification that has no backing alert.
func (e *Evaluator) alert(ctx context.Context, userID uuid.UUID, zone *models.FavoriteZone, kind models.AlertType, event realtime.EventType, payload map[string]any) {
	title := "Entered " + zone.Name
	if kind == models.AlertExit {
		title = "Left " + zone.Name
	}
	_, err := e.store.CreateAlert(ctx, &models.GeofenceAlert{
		UserID:  userID,
		ZoneID:  zone.ID,
		Type:    kind,
		Title:   title,
		Message: zone.Name,
	})
	if err != nil {
		e.logger.Error().Str("zone_id", zone.ID.String()).Err(err).Msg("alert persist failed")
		return
	}

	if err := e.notifier.Dispatch(ctx, event, realtime.Target{UserID: userID}, payload); err != nil {
		e.logger.Warn().Str("event", string(event)).Err(err).Msg("dispatch failed")
	}
}
