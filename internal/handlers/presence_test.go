package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/config"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
)

type stubStore struct {
	getBamFn        func(ctx context.Context, id uuid.UUID) (*models.Bam, error)
	isParticipantFn func(ctx context.Context, bamID, userID uuid.UUID) (bool, error)
}

func (s *stubStore) Close()                     {}
func (s *stubStore) Ping(context.Context) error { return nil }
func (s *stubStore) CreateZone(_ context.Context, zone *models.FavoriteZone) (*models.FavoriteZone, error) {
	return zone, nil
}
func (s *stubStore) GetZone(context.Context, uuid.UUID) (*models.FavoriteZone, error) {
	return nil, nil
}
func (s *stubStore) ListZonesByUser(context.Context, uuid.UUID) ([]models.FavoriteZone, error) {
	return nil, nil
}
func (s *stubStore) DeleteZone(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
func (s *stubStore) GetOpenVisit(context.Context, uuid.UUID, uuid.UUID) (*models.ZoneVisit, error) {
	return nil, nil
}
func (s *stubStore) OpenVisit(_ context.Context, userID, zoneID uuid.UUID, enteredAt time.Time) (*models.ZoneVisit, error) {
	return &models.ZoneVisit{ID: uuid.New(), UserID: userID, ZoneID: zoneID, EnteredAt: enteredAt}, nil
}
func (s *stubStore) CloseVisit(context.Context, uuid.UUID, time.Time, int64) error { return nil }
func (s *stubStore) CreateAlert(_ context.Context, alert *models.GeofenceAlert) (*models.GeofenceAlert, error) {
	return alert, nil
}
func (s *stubStore) ListAlertsByUser(context.Context, uuid.UUID, bool, int, int) ([]models.GeofenceAlert, error) {
	return nil, nil
}
func (s *stubStore) MarkAlertRead(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
func (s *stubStore) HasRecentProximityNotification(context.Context, uuid.UUID, string, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}
func (s *stubStore) CreateProximityNotification(context.Context, *models.ProximityNotification) error {
	return nil
}
func (s *stubStore) GetBam(ctx context.Context, id uuid.UUID) (*models.Bam, error) {
	if s.getBamFn != nil {
		return s.getBamFn(ctx, id)
	}
	return nil, nil
}
func (s *stubStore) ListActiveBamsInBox(context.Context, float64, float64, float64, float64) ([]models.Bam, error) {
	return nil, nil
}
func (s *stubStore) IsBamParticipant(ctx context.Context, bamID, userID uuid.UUID) (bool, error) {
	if s.isParticipantFn != nil {
		return s.isParticipantFn(ctx, bamID, userID)
	}
	return false, nil
}
func (s *stubStore) SaveLocation(context.Context, *models.LocationFix) error { return nil }

func newHistoryHandler(t *testing.T, store *stubStore) *Handler {
	t.Helper()
	logger := zerolog.Nop()
	registry := realtime.NewRegistry(logger)
	rooms := realtime.NewRooms(registry, logger)
	b := realtime.NewBroadcaster(registry, rooms, logger)
	dispatcher := realtime.NewDispatcher(b, registry, nil, 0, logger)
	return NewHandler(store, nil, registry, rooms, dispatcher, nil, nil, &config.Config{}, logger)
}

func getRoomEvents(t *testing.T, h *Handler, userID, roomID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/rooms/"+roomID.String()+"/events", nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", roomID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserContextKey, userID)

	rec := httptest.NewRecorder()
	h.RoomEvents(rec, req.WithContext(ctx))
	return rec
}

func TestRoomEvents_DeniedForNonParticipant(t *testing.T) {
	roomID := uuid.New()
	store := &stubStore{
		getBamFn: func(_ context.Context, id uuid.UUID) (*models.Bam, error) {
			return &models.Bam{ID: id, AuthorID: uuid.New(), Status: models.BamActive}, nil
		},
		isParticipantFn: func(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
			return false, nil
		},
	}
	h := newHistoryHandler(t, store)

	rec := getRoomEvents(t, h, uuid.New(), roomID)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-participant, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRoomEvents_NotFoundForMissingRoom(t *testing.T) {
	h := newHistoryHandler(t, &stubStore{})

	rec := getRoomEvents(t, h, uuid.New(), uuid.New())
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing room, got %d", rec.Code)
	}
}

func TestRoomEvents_ParticipantGetsHistory(t *testing.T) {
	roomID := uuid.New()
	userID := uuid.New()
	store := &stubStore{
		getBamFn: func(_ context.Context, id uuid.UUID) (*models.Bam, error) {
			return &models.Bam{ID: id, AuthorID: userID, Status: models.BamActive}, nil
		},
		isParticipantFn: func(_ context.Context, _, uid uuid.UUID) (bool, error) {
			return uid == userID, nil
		},
	}
	h := newHistoryHandler(t, store)

	rec := getRoomEvents(t, h, userID, roomID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a participant, got %d: %s", rec.Code, rec.Body.String())
	}
	// No redis configured: an empty list, never an error.
	var events []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty history, got %v", events)
	}
}

func TestRoomEvents_StoreFailureIsNotADenial(t *testing.T) {
	store := &stubStore{
		getBamFn: func(context.Context, uuid.UUID) (*models.Bam, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := newHistoryHandler(t, store)

	rec := getRoomEvents(t, h, uuid.New(), uuid.New())
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for a store failure, got %d", rec.Code)
	}
}
