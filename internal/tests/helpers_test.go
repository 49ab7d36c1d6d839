package tests

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/service"
	"shuttle/internal/token"
)

var (
	// campusZone is the service time zone used by the tests (UTC-3, no DST).
	campusZone = time.FixedZone("BRT", -3*60*60)

	// scenarioDate is the calendar date "today" resolves to in the tests.
	scenarioDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	pointXLat = -23.5505
	pointXLng = -46.6333
)

type harness struct {
	store         *MemoryStore
	clock         *clock.MockClock
	tokens        *token.Generator
	cache         *MockTripCache
	recorder      *MockRecorder
	trips         *service.TripService
	checkins      *service.CheckInService
	notifications *service.NotificationService
	reports       *service.ReportService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithGeofence(t, service.GeofencePolicy{})
}

func newHarnessWithGeofence(t *testing.T, geofence service.GeofencePolicy) *harness {
	t.Helper()

	store := NewMemoryStore()
	store.AddRoute(domain.Route{ID: "route-7", Name: "Linha 7", DriverID: "driver-7"})
	store.AddRoute(domain.Route{ID: "route-9", Name: "Linha 9", DriverID: "driver-9"})
	store.AddPoint(domain.Point{
		ID:           "point-x",
		RouteID:      "route-7",
		Name:         "Praca Central",
		Latitude:     &pointXLat,
		Longitude:    &pointXLng,
		RadiusMeters: 100,
	})
	store.AddPoint(domain.Point{ID: "point-y", RouteID: "route-9", Name: "Terminal"})

	// 10:30 UTC is 07:30 on 2024-05-01 in the campus zone.
	clk := clock.NewMockClock(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	tokens := token.NewGenerator("test-pepper")
	cache := NewMockTripCache()
	recorder := NewMockRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps := service.Lifecycle{
		Store:    store,
		Tokens:   tokens,
		Clock:    clk,
		Location: campusZone,
		Cache:    cache,
		Recorder: recorder,
		Logger:   logger,
	}

	notifications := service.NewNotificationService(store, clk, recorder, logger)

	return &harness{
		store:         store,
		clock:         clk,
		tokens:        tokens,
		cache:         cache,
		recorder:      recorder,
		trips:         service.NewTripService(deps, notifications),
		checkins:      service.NewCheckInService(deps, geofence),
		notifications: notifications,
		reports:       service.NewReportService(store.Reports(), store.Repos().Trips, clk, campusZone),
	}
}

// createTrip creates today's trip of a route and returns it with its creation token.
func (h *harness) createTrip(t *testing.T, routeID string) (*domain.Trip, string) {
	t.Helper()
	result, err := h.trips.GetOrCreateDailyTrip(context.Background(), routeID, scenarioDate)
	require.NoError(t, err)
	require.True(t, result.Created)
	return result.Trip, result.Token
}

// enroll enrolls a passenger in today's trip of a route.
func (h *harness) enroll(t *testing.T, passengerID, routeID, pointID string) *domain.Enrollment {
	t.Helper()
	result, err := h.checkins.Enroll(context.Background(), service.EnrollRequest{
		PassengerID: passengerID,
		RouteID:     routeID,
		Date:        scenarioDate,
		PointID:     pointID,
	})
	require.NoError(t, err)
	return result.Enrollment
}

// start starts today's trip of the driver and returns the new token.
func (h *harness) start(t *testing.T, driverID string) (*domain.Trip, string) {
	t.Helper()
	result, err := h.trips.StartTrip(context.Background(), driverID)
	require.NoError(t, err)
	return result.Trip, result.Token
}

func (h *harness) checkIn(passengerID, tok string) (*service.CheckResult, error) {
	return h.checkins.CheckIn(context.Background(), service.CheckInRequest{PassengerID: passengerID, Token: tok})
}

func (h *harness) checkOut(passengerID, tok string) (*service.CheckResult, error) {
	return h.checkins.CheckOut(context.Background(), service.CheckOutRequest{PassengerID: passengerID, Token: tok})
}
