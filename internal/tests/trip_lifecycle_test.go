package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle/internal/domain"
	"shuttle/internal/service"
)

// ──────────────────────────────────────────────
// 1. DAILY TRIP CREATION
// ──────────────────────────────────────────────

func TestGetOrCreateDailyTrip_TokenOnlyOnCreation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.trips.GetOrCreateDailyTrip(ctx, "route-7", scenarioDate)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.Token)
	assert.Equal(t, domain.TripStatusPlanned, first.Trip.Status)
	assert.True(t, h.tokens.Validate(first.Token, first.Trip.TokenHash))
	assert.NotEqual(t, first.Token, first.Trip.TokenHash, "plaintext must never be stored")

	second, err := h.trips.GetOrCreateDailyTrip(ctx, "route-7", scenarioDate)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Empty(t, second.Token)
	assert.Equal(t, first.Trip.ID, second.Trip.ID)

	assert.Equal(t, 1, h.store.CountTrips("route-7", scenarioDate))
	assert.Equal(t, 1, h.recorder.Transitions[string(domain.TripStatusPlanned)])
}

func TestGetOrCreateDailyTrip_ConcurrentCallersCreateOneTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	const callers = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[string]bool)
		created int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.trips.GetOrCreateDailyTrip(context.Background(), "route-7", scenarioDate)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[result.Trip.ID] = true
			if result.Created {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, h.store.CountTrips("route-7", scenarioDate))
}

func TestGetOrCreateDailyTrip_Validation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.trips.GetOrCreateDailyTrip(ctx, "", scenarioDate)
	assert.ErrorIs(t, err, service.ErrInvalidRouteID)

	_, err = h.trips.GetOrCreateDailyTrip(ctx, "route-7", time.Time{})
	assert.ErrorIs(t, err, service.ErrInvalidDate)

	_, err = h.trips.GetOrCreateDailyTrip(ctx, "route-404", scenarioDate)
	assert.ErrorIs(t, err, service.ErrRouteNotFound)
}

func TestGetOrCreateDailyTrip_NormalizesDate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	afternoon := time.Date(2024, 5, 1, 15, 45, 0, 0, time.UTC)
	result, err := h.trips.GetOrCreateDailyTrip(context.Background(), "route-7", afternoon)
	require.NoError(t, err)
	assert.Equal(t, scenarioDate, result.Trip.Date)
}

func TestGetDailyTrip_ReadThroughCache(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.trips.GetDailyTrip(ctx, "route-7", scenarioDate)
	assert.ErrorIs(t, err, service.ErrTripNotFound)
	assert.Equal(t, 0, h.store.CountTrips("route-7", scenarioDate), "read must not create")

	trip, _ := h.createTrip(t, "route-7")

	got, err := h.trips.GetDailyTrip(ctx, "route-7", scenarioDate)
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)

	got, err = h.trips.GetDailyTrip(ctx, "route-7", scenarioDate)
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)
	assert.Equal(t, int32(1), h.cache.HitCount)
	assert.Empty(t, got.TokenHash, "cached trips never carry the token hash")

	// Enrolling changes the counters and must drop the cached copy.
	h.enroll(t, "passenger-p", "route-7", "")
	got, err = h.trips.GetDailyTrip(ctx, "route-7", scenarioDate)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlannedCount)
}

func TestGetDailyTrip_CacheErrorFallsBackToStore(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.cache.GetError = errors.New("redis down")

	trip, _ := h.createTrip(t, "route-7")

	got, err := h.trips.GetDailyTrip(context.Background(), "route-7", scenarioDate)
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)
}

// ──────────────────────────────────────────────
// 2. START TRIP
// ──────────────────────────────────────────────

func TestStartTrip_RotatesToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, t1 := h.createTrip(t, "route-7")
	h.enroll(t, "passenger-p", "route-7", "")

	trip, t2 := h.start(t, "driver-7")
	assert.Equal(t, domain.TripStatusInProgress, trip.Status)
	assert.Equal(t, h.clock.Now(), trip.StartedAt)
	assert.NotEqual(t, t1, t2)

	_, err := h.checkIn("passenger-p", t1)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	_, err = h.checkIn("passenger-p", t2)
	assert.NoError(t, err)
}

func TestStartTrip_NotPlanned_FailsWithoutMutation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	started, _ := h.start(t, "driver-7")
	before := h.store.Trip(started.ID)

	h.clock.Advance(time.Hour)
	_, err := h.trips.StartTrip(context.Background(), "driver-7")
	assert.ErrorIs(t, err, service.ErrAlreadyStarted)

	after := h.store.Trip(started.ID)
	assert.Equal(t, before, after)
}

func TestStartTrip_Preconditions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.trips.StartTrip(ctx, "")
	assert.ErrorIs(t, err, service.ErrInvalidDriverID)

	_, err = h.trips.StartTrip(ctx, "driver-without-route")
	assert.ErrorIs(t, err, service.ErrNoRouteForDriver)

	_, err = h.trips.StartTrip(ctx, "driver-7")
	assert.ErrorIs(t, err, service.ErrNoPlannedTrip)
}

func TestStartTrip_UsesInjectedClockForToday(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")

	// 02:00 UTC on May 2nd is still May 1st in the campus zone.
	h.clock.Set(time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC))
	_, err := h.trips.StartTrip(context.Background(), "driver-7")
	require.NoError(t, err)
}

func TestStartTrip_YesterdaysTripIsNotPicked(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	h.clock.Advance(24 * time.Hour)

	_, err := h.trips.StartTrip(context.Background(), "driver-7")
	assert.ErrorIs(t, err, service.ErrNoPlannedTrip)
}

func TestStartTrip_NotifiesEnrolledPassengers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	h.enroll(t, "passenger-a", "route-7", "")
	h.enroll(t, "passenger-b", "route-7", "")
	h.start(t, "driver-7")

	for _, p := range []string{"passenger-a", "passenger-b"} {
		notes := h.store.Notifications(p)
		require.Len(t, notes, 1)
		assert.Equal(t, domain.NotificationTripStarted, notes[0].Type)
	}
	assert.Equal(t, 2, h.recorder.Notifications[string(domain.NotificationTripStarted)])
}

func TestStartTrip_NotificationFailureDoesNotFailStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	h.enroll(t, "passenger-a", "route-7", "")
	h.store.InjectError("Notifications.Create", errors.New("disk full"))

	trip, _ := h.start(t, "driver-7")
	assert.Equal(t, domain.TripStatusInProgress, h.store.Trip(trip.ID).Status)
	assert.Empty(t, h.store.Notifications("passenger-a"))
}

// ──────────────────────────────────────────────
// 3. END TRIP
// ──────────────────────────────────────────────

func TestEndTrip_MarksOnlyWaitingPassengersAbsent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	h.enroll(t, "boarded", "route-7", "")
	h.enroll(t, "alighted", "route-7", "")
	h.enroll(t, "waiting", "route-7", "")
	trip, tok := h.start(t, "driver-7")

	_, err := h.checkIn("boarded", tok)
	require.NoError(t, err)
	_, err = h.checkIn("alighted", tok)
	require.NoError(t, err)
	_, err = h.checkOut("alighted", tok)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	result, err := h.trips.EndTrip(context.Background(), "driver-7")
	require.NoError(t, err)

	assert.Equal(t, 1, result.AbsentCount)
	assert.Equal(t, domain.TripStatusFinished, result.Trip.Status)
	assert.Equal(t, h.clock.Now(), result.Trip.FinishedAt)

	assert.Equal(t, domain.EnrollmentStatusAbsent, h.store.Enrollment(trip.ID, "waiting").Status)
	assert.Equal(t, domain.EnrollmentStatusBoarded, h.store.Enrollment(trip.ID, "boarded").Status)
	assert.Equal(t, domain.EnrollmentStatusDisembarked, h.store.Enrollment(trip.ID, "alighted").Status)

	stored := h.store.Trip(trip.ID)
	assert.Equal(t, 3, stored.PlannedCount)
	assert.Equal(t, 2, stored.BoardedCount)
	assert.Equal(t, 1, stored.DisembarkedCount)
	assert.Empty(t, stored.TokenHash, "a finished trip has no live token")

	_, err = h.checkIn("waiting", tok)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestEndTrip_RequiresTripInProgress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.trips.EndTrip(ctx, "driver-7")
	assert.ErrorIs(t, err, service.ErrNoActiveTrip)

	h.createTrip(t, "route-7")
	_, err = h.trips.EndTrip(ctx, "driver-7")
	assert.ErrorIs(t, err, service.ErrNoActiveTrip)

	h.start(t, "driver-7")
	_, err = h.trips.EndTrip(ctx, "driver-7")
	require.NoError(t, err)

	_, err = h.trips.EndTrip(ctx, "driver-7")
	assert.ErrorIs(t, err, service.ErrNoActiveTrip)

	_, err = h.trips.StartTrip(ctx, "driver-7")
	assert.ErrorIs(t, err, service.ErrAlreadyStarted)
}

func TestEndTrip_FailureRollsBackEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	h.enroll(t, "waiting", "route-7", "")
	trip, _ := h.start(t, "driver-7")

	h.store.InjectError("Trips.RefreshCounts", errors.New("connection reset"))
	_, err := h.trips.EndTrip(context.Background(), "driver-7")
	require.Error(t, err)

	assert.Equal(t, domain.TripStatusInProgress, h.store.Trip(trip.ID).Status)
	assert.Equal(t, domain.EnrollmentStatusWaiting, h.store.Enrollment(trip.ID, "waiting").Status)
}

func TestEndTrip_NotifiesPassengers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	h.enroll(t, "passenger-a", "route-7", "")
	h.start(t, "driver-7")
	_, err := h.trips.EndTrip(context.Background(), "driver-7")
	require.NoError(t, err)

	var types []domain.NotificationType
	for _, n := range h.store.Notifications("passenger-a") {
		types = append(types, n.Type)
	}
	assert.ElementsMatch(t, []domain.NotificationType{domain.NotificationTripStarted, domain.NotificationTripFinished}, types)
}

// ──────────────────────────────────────────────
// 4. DELETE / GET
// ──────────────────────────────────────────────

func TestDeletePlannedTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	trip, _ := h.createTrip(t, "route-7")
	h.enroll(t, "passenger-a", "route-7", "")

	require.NoError(t, h.trips.DeletePlannedTrip(ctx, trip.ID))
	assert.Nil(t, h.store.Trip(trip.ID))
	assert.Equal(t, 0, h.store.CountEnrollments(trip.ID))

	assert.ErrorIs(t, h.trips.DeletePlannedTrip(ctx, trip.ID), service.ErrTripNotFound)
	assert.ErrorIs(t, h.trips.DeletePlannedTrip(ctx, ""), service.ErrInvalidTripID)
}

func TestDeletePlannedTrip_StartedTripIsKept(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	trip, _ := h.start(t, "driver-7")

	err := h.trips.DeletePlannedTrip(context.Background(), trip.ID)
	assert.ErrorIs(t, err, service.ErrTripNotDeletable)
	assert.NotNil(t, h.store.Trip(trip.ID))
}

func TestGetTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	trip, _ := h.createTrip(t, "route-7")

	got, err := h.trips.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)

	_, err = h.trips.GetTrip(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrTripNotFound)

	_, err = h.trips.GetTrip(ctx, "")
	assert.ErrorIs(t, err, service.ErrInvalidTripID)
}

// ──────────────────────────────────────────────
// 5. SCENARIOS
// ──────────────────────────────────────────────

func TestScenario_Route7FullDay(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.trips.GetOrCreateDailyTrip(ctx, "route-7", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, created.Created)
	assert.Equal(t, domain.TripStatusPlanned, created.Trip.Status)
	t1 := created.Token

	started, err := h.trips.StartTrip(ctx, "driver-7")
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusInProgress, started.Trip.Status)
	t2 := started.Token
	assert.False(t, h.tokens.Validate(t1, started.Trip.TokenHash))

	enrolled := h.enroll(t, "P", "route-7", "point-x")
	assert.Equal(t, "point-x", enrolled.PointID)

	in, err := h.checkIn("P", t2)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusBoarded, in.Enrollment.Status)
	assert.Equal(t, 1, in.Trip.BoardedCount)

	out, err := h.checkOut("P", t2)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusDisembarked, out.Enrollment.Status)
	assert.Equal(t, 1, out.Trip.DisembarkedCount)

	ended, err := h.trips.EndTrip(ctx, "driver-7")
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusFinished, ended.Trip.Status)
	assert.Equal(t, 0, ended.AbsentCount)

	roster, err := h.reports.TripRoster(ctx, ended.Trip.ID)
	require.NoError(t, err)
	for _, entry := range roster {
		assert.NotEqual(t, domain.EnrollmentStatusWaiting, entry.Status)
	}
}

func TestScenario_PassengerNeverChecksIn(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.createTrip(t, "route-7")
	h.enroll(t, "Q", "route-7", "")
	trip, _ := h.start(t, "driver-7")

	_, err := h.trips.EndTrip(context.Background(), "driver-7")
	require.NoError(t, err)

	assert.Equal(t, domain.EnrollmentStatusAbsent, h.store.Enrollment(trip.ID, "Q").Status)
}
