package geofence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/models"
	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
)

type mockStore struct {
	listZonesFn    func(ctx context.Context, userID uuid.UUID) ([]models.FavoriteZone, error)
	getOpenVisitFn func(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneVisit, error)
	openVisitFn    func(ctx context.Context, userID, zoneID uuid.UUID, enteredAt time.Time) (*models.ZoneVisit, error)
	closeVisitFn   func(ctx context.Context, visitID uuid.UUID, exitedAt time.Time, durationMinutes int64) error
	createAlertFn  func(ctx context.Context, alert *models.GeofenceAlert) (*models.GeofenceAlert, error)
	hasRecentFn    func(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID, since time.Time) (bool, error)
	createProxFn   func(ctx context.Context, rec *models.ProximityNotification) error
	listBamsFn     func(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]models.Bam, error)
}

func (m *mockStore) Close()                         {}
func (m *mockStore) Ping(context.Context) error     { return nil }
func (m *mockStore) CreateZone(ctx context.Context, zone *models.FavoriteZone) (*models.FavoriteZone, error) {
	return zone, nil
}
func (m *mockStore) GetZone(context.Context, uuid.UUID) (*models.FavoriteZone, error) {
	return nil, nil
}
func (m *mockStore) ListZonesByUser(ctx context.Context, userID uuid.UUID) ([]models.FavoriteZone, error) {
	if m.listZonesFn != nil {
		return m.listZonesFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockStore) DeleteZone(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
func (m *mockStore) GetOpenVisit(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneVisit, error) {
	if m.getOpenVisitFn != nil {
		return m.getOpenVisitFn(ctx, userID, zoneID)
	}
	return nil, nil
}
func (m *mockStore) OpenVisit(ctx context.Context, userID, zoneID uuid.UUID, enteredAt time.Time) (*models.ZoneVisit, error) {
	if m.openVisitFn != nil {
		return m.openVisitFn(ctx, userID, zoneID, enteredAt)
	}
	return &models.ZoneVisit{ID: uuid.New(), UserID: userID, ZoneID: zoneID, EnteredAt: enteredAt}, nil
}
func (m *mockStore) CloseVisit(ctx context.Context, visitID uuid.UUID, exitedAt time.Time, durationMinutes int64) error {
	if m.closeVisitFn != nil {
		return m.closeVisitFn(ctx, visitID, exitedAt, durationMinutes)
	}
	return nil
}
func (m *mockStore) CreateAlert(ctx context.Context, alert *models.GeofenceAlert) (*models.GeofenceAlert, error) {
	if m.createAlertFn != nil {
		return m.createAlertFn(ctx, alert)
	}
	return alert, nil
}
func (m *mockStore) ListAlertsByUser(context.Context, uuid.UUID, bool, int, int) ([]models.GeofenceAlert, error) {
	return nil, nil
}
func (m *mockStore) MarkAlertRead(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
func (m *mockStore) HasRecentProximityNotification(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID, since time.Time) (bool, error) {
	if m.hasRecentFn != nil {
		return m.hasRecentFn(ctx, userID, targetType, targetID, since)
	}
	return false, nil
}
func (m *mockStore) CreateProximityNotification(ctx context.Context, rec *models.ProximityNotification) error {
	if m.createProxFn != nil {
		return m.createProxFn(ctx, rec)
	}
	return nil
}
func (m *mockStore) GetBam(context.Context, uuid.UUID) (*models.Bam, error) { return nil, nil }
func (m *mockStore) ListActiveBamsInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]models.Bam, error) {
	if m.listBamsFn != nil {
		return m.listBamsFn(ctx, minLat, maxLat, minLon, maxLon)
	}
	return nil, nil
}
func (m *mockStore) IsBamParticipant(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
func (m *mockStore) SaveLocation(context.Context, *models.LocationFix) error { return nil }

type dispatched struct {
	event   realtime.EventType
	target  realtime.Target
	payload map[string]any
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []dispatched
}

func (n *mockNotifier) Dispatch(_ context.Context, t realtime.EventType, target realtime.Target, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, dispatched{event: t, target: target, payload: payload})
	return nil
}

func (n *mockNotifier) ofType(t realtime.EventType) []dispatched {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []dispatched
	for _, c := range n.calls {
		if c.event == t {
			out = append(out, c)
		}
	}
	return out
}

var testConfig = Config{
	DebounceMeters:    50,
	DebounceWindow:    5 * time.Minute,
	MaxAccuracyMeters: 100,
	ProximityRadius:   0, // proximity scan covered separately
}

// visitTable is a tiny in-memory visit store shared by the transition tests.
type visitTable struct {
	mu     sync.Mutex
	open   map[uuid.UUID]*models.ZoneVisit // zoneID -> open visit
	opens  int
	closes int
}

func (v *visitTable) install(m *mockStore) {
	v.open = make(map[uuid.UUID]*models.ZoneVisit)
	m.getOpenVisitFn = func(_ context.Context, _, zoneID uuid.UUID) (*models.ZoneVisit, error) {
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.open[zoneID], nil
	}
	m.openVisitFn = func(_ context.Context, userID, zoneID uuid.UUID, enteredAt time.Time) (*models.ZoneVisit, error) {
		v.mu.Lock()
		defer v.mu.Unlock()
		visit := &models.ZoneVisit{ID: uuid.New(), UserID: userID, ZoneID: zoneID, EnteredAt: enteredAt}
		v.open[zoneID] = visit
		v.opens++
		return visit, nil
	}
	m.closeVisitFn = func(_ context.Context, visitID uuid.UUID, _ time.Time, _ int64) error {
		v.mu.Lock()
		defer v.mu.Unlock()
		for zoneID, visit := range v.open {
			if visit.ID == visitID {
				delete(v.open, zoneID)
				v.closes++
				return nil
			}
		}
		return errors.New("visit not found")
	}
}

func fix(userID uuid.UUID, lat, lon float64) *models.LocationFix {
	return &models.LocationFix{
		UserID:         userID,
		Latitude:       lat,
		Longitude:      lon,
		AccuracyMeters: 10,
		RecordedAt:     time.Now(),
	}
}

func TestProcessLocation_EnterThenExit(t *testing.T) {
	userID := uuid.New()
	zone := models.FavoriteZone{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          "Home",
		Latitude:      48.8566,
		Longitude:     2.3522,
		RadiusMeters:  500,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
	}

	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			return []models.FavoriteZone{zone}, nil
		},
	}
	var visits visitTable
	visits.install(store)
	notifier := &mockNotifier{}

	e := NewEvaluator(store, notifier, testConfig, zerolog.Nop())

	// Fix at the zone center: opens a visit, one enter alert.
	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))
	if visits.opens != 1 {
		t.Fatalf("expected 1 opened visit, got %d", visits.opens)
	}
	enters := notifier.ofType(realtime.EventZoneEnter)
	if len(enters) != 1 {
		t.Fatalf("expected 1 zone_enter, got %d", len(enters))
	}
	if enters[0].target.UserID != userID {
		t.Error("enter alert addressed to the wrong user")
	}
	if enters[0].payload["zone_name"] != "Home" {
		t.Errorf("unexpected payload: %v", enters[0].payload)
	}

	// Fix well outside (≈4.8km north): closes the visit, one exit alert.
	e.ProcessLocation(context.Background(), fix(userID, 48.90, 2.3522))
	if visits.closes != 1 {
		t.Fatalf("expected 1 closed visit, got %d", visits.closes)
	}
	exits := notifier.ofType(realtime.EventZoneExit)
	if len(exits) != 1 {
		t.Fatalf("expected 1 zone_exit, got %d", len(exits))
	}
	if d, ok := exits[0].payload["duration_minutes"].(int64); !ok || d < 0 {
		t.Errorf("expected non-negative whole-minute duration, got %v", exits[0].payload["duration_minutes"])
	}
}

func TestEnqueue_EvaluatesFixesInArrivalOrder(t *testing.T) {
	userID := uuid.New()
	zone := models.FavoriteZone{
		ID: uuid.New(), UserID: userID, Name: "Home",
		Latitude: 48.8566, Longitude: 2.3522, RadiusMeters: 500,
		NotifyOnEnter: true, NotifyOnExit: true,
	}

	zoneCalls := 0
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			zoneCalls++
			if zoneCalls == 1 {
				// Slow first evaluation: if the second fix could jump the
				// queue it would be applied while this one is in flight.
				time.Sleep(30 * time.Millisecond)
			}
			return []models.FavoriteZone{zone}, nil
		},
	}
	var visits visitTable
	visits.install(store)
	notifier := &mockNotifier{}

	e := NewEvaluator(store, notifier, testConfig, zerolog.Nop())

	// Inside, then outside, submitted back to back from one goroutine.
	e.Enqueue(fix(userID, 48.8566, 2.3522))
	e.Enqueue(fix(userID, 48.90, 2.3522))

	deadline := time.Now().Add(time.Second)
	for len(notifier.ofType(realtime.EventZoneExit)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("the exit transition never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	visits.mu.Lock()
	opens, closes, stillOpen := visits.opens, visits.closes, len(visits.open)
	visits.mu.Unlock()
	if closes != 1 {
		t.Errorf("expected exactly one closed visit, got %d", closes)
	}
	if opens != 1 {
		t.Errorf("expected exactly one opened visit, got %d", opens)
	}
	if stillOpen != 0 {
		t.Error("older inside fix applied after the exit left a visit open")
	}
	if got := len(notifier.ofType(realtime.EventZoneEnter)); got != 1 {
		t.Errorf("expected 1 zone_enter, got %d", got)
	}
	if got := len(notifier.ofType(realtime.EventZoneExit)); got != 1 {
		t.Errorf("expected 1 zone_exit, got %d", got)
	}
}

func TestProcessLocation_RepeatedFixInsideIsIdempotent(t *testing.T) {
	userID := uuid.New()
	zone := models.FavoriteZone{
		ID: uuid.New(), UserID: userID, Name: "Work",
		Latitude: 48.8566, Longitude: 2.3522, RadiusMeters: 500,
		NotifyOnEnter: true,
	}
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			return []models.FavoriteZone{zone}, nil
		},
	}
	var visits visitTable
	visits.install(store)
	notifier := &mockNotifier{}

	cfg := testConfig
	cfg.DebounceMeters = 0 // let every fix through to exercise the state machine
	e := NewEvaluator(store, notifier, cfg, zerolog.Nop())

	for i := 0; i < 3; i++ {
		e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))
	}

	if visits.opens != 1 {
		t.Errorf("staying inside must open exactly one visit, got %d", visits.opens)
	}
	if got := len(notifier.ofType(realtime.EventZoneEnter)); got != 1 {
		t.Errorf("staying inside must alert exactly once, got %d", got)
	}
}

func TestProcessLocation_DebounceDropsJitter(t *testing.T) {
	userID := uuid.New()
	var zoneCalls int
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			zoneCalls++
			return nil, nil
		},
	}
	e := NewEvaluator(store, &mockNotifier{}, testConfig, zerolog.Nop())

	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))
	// ~11m east: inside both the distance and time thresholds, dropped.
	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.35235))
	if zoneCalls != 1 {
		t.Errorf("jittery fix should have been debounced, evaluations=%d", zoneCalls)
	}

	// ~550m east: movement alone defeats the debounce.
	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3597))
	if zoneCalls != 2 {
		t.Errorf("real movement must be evaluated, evaluations=%d", zoneCalls)
	}
}

func TestProcessLocation_DebounceExpiresWithTime(t *testing.T) {
	userID := uuid.New()
	var zoneCalls int
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			zoneCalls++
			return nil, nil
		},
	}
	e := NewEvaluator(store, &mockNotifier{}, testConfig, zerolog.Nop())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))
	current = current.Add(6 * time.Minute)
	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))

	if zoneCalls != 2 {
		t.Errorf("a stationary fix after the window must be evaluated, evaluations=%d", zoneCalls)
	}
}

func TestProcessLocation_RejectsInaccurateFix(t *testing.T) {
	userID := uuid.New()
	var zoneCalls int
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			zoneCalls++
			return nil, nil
		},
	}
	e := NewEvaluator(store, &mockNotifier{}, testConfig, zerolog.Nop())

	bad := fix(userID, 48.8566, 2.3522)
	bad.AccuracyMeters = 250
	e.ProcessLocation(context.Background(), bad)

	if zoneCalls != 0 {
		t.Error("a fix with poor accuracy must not be evaluated")
	}
}

func TestProcessLocation_SilentTransitionsWhenNotifyDisabled(t *testing.T) {
	userID := uuid.New()
	zone := models.FavoriteZone{
		ID: uuid.New(), UserID: userID, Name: "Gym",
		Latitude: 48.8566, Longitude: 2.3522, RadiusMeters: 500,
		NotifyOnEnter: false, NotifyOnExit: false,
	}
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			return []models.FavoriteZone{zone}, nil
		},
	}
	var visits visitTable
	visits.install(store)
	notifier := &mockNotifier{}
	e := NewEvaluator(store, notifier, testConfig, zerolog.Nop())

	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))
	e.ProcessLocation(context.Background(), fix(userID, 48.90, 2.3522))

	// Visits are still tracked for statistics; only the alerts are muted.
	if visits.opens != 1 || visits.closes != 1 {
		t.Errorf("expected the visit lifecycle to run, opens=%d closes=%d", visits.opens, visits.closes)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("expected no alerts, got %v", notifier.calls)
	}
}

func TestProcessLocation_AlertSkippedWhenPersistFails(t *testing.T) {
	userID := uuid.New()
	zone := models.FavoriteZone{
		ID: uuid.New(), UserID: userID, Name: "Home",
		Latitude: 48.8566, Longitude: 2.3522, RadiusMeters: 500,
		NotifyOnEnter: true,
	}
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			return []models.FavoriteZone{zone}, nil
		},
		createAlertFn: func(context.Context, *models.GeofenceAlert) (*models.GeofenceAlert, error) {
			return nil, errors.New("db down")
		},
	}
	var visits visitTable
	visits.install(store)
	notifier := &mockNotifier{}
	e := NewEvaluator(store, notifier, testConfig, zerolog.Nop())

	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))

	// No durable record means no push.
	if len(notifier.calls) != 0 {
		t.Errorf("expected no push without a persisted alert, got %v", notifier.calls)
	}
	// The visit itself was opened; the next fix evaluates fresh.
	if visits.opens != 1 {
		t.Errorf("expected the visit to open regardless, opens=%d", visits.opens)
	}
}

func TestProcessLocation_StoreFailureAbandonsEvaluation(t *testing.T) {
	userID := uuid.New()
	calls := 0
	store := &mockStore{
		listZonesFn: func(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection refused")
			}
			return nil, nil
		},
	}
	notifier := &mockNotifier{}
	cfg := testConfig
	cfg.DebounceMeters = 0
	e := NewEvaluator(store, notifier, cfg, zerolog.Nop())

	// First fix fails mid-evaluation; second starts fresh.
	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))
	e.ProcessLocation(context.Background(), fix(userID, 48.8566, 2.3522))

	if calls != 2 {
		t.Errorf("expected the second fix to be evaluated, calls=%d", calls)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("no events should escape a failed evaluation, got %v", notifier.calls)
	}
}
