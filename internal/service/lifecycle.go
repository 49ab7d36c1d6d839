package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/repository"
	"shuttle/internal/token"
)

// TripCache caches read-only daily trip lookups. GetDailyTrip returns nil, nil on a miss.
type TripCache interface {
	GetDailyTrip(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error)
	SetDailyTrip(ctx context.Context, trip *domain.Trip) error
	InvalidateDailyTrip(ctx context.Context, routeID string, date time.Time) error
}

// Recorder receives lifecycle events for metrics.
type Recorder interface {
	TripTransition(status string)
	CheckEvent(kind, outcome string)
	NotificationsSent(notificationType string, n int)
}

// Lifecycle bundles the collaborators shared by TripService and CheckInService.
// Cache, Recorder and Logger are optional.
type Lifecycle struct {
	Store    repository.Store
	Tokens   *token.Generator
	Clock    clock.Clock
	Location *time.Location
	Cache    TripCache
	Recorder Recorder
	Logger   *slog.Logger
}

func (l Lifecycle) withDefaults() Lifecycle {
	if l.Clock == nil {
		l.Clock = clock.RealClock{}
	}
	if l.Location == nil {
		l.Location = time.UTC
	}
	if l.Cache == nil {
		l.Cache = nopCache{}
	}
	if l.Recorder == nil {
		l.Recorder = nopRecorder{}
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
	return l
}

// today returns the current calendar date in the configured zone.
func (l Lifecycle) today() time.Time {
	return clock.Today(l.Clock, l.Location)
}

// invalidate drops the cached daily trip. Cache failures are logged only.
func (l Lifecycle) invalidate(ctx context.Context, trip *domain.Trip) {
	if err := l.Cache.InvalidateDailyTrip(ctx, trip.RouteID, trip.Date); err != nil {
		l.Logger.Warn("failed to invalidate trip cache",
			slog.String("route_id", trip.RouteID),
			slog.String("error", err.Error()))
	}
}

// getOrCreateTrip returns the trip of (routeID, date), creating it in PLANEJADA
// with a fresh token when absent. The plaintext token is only returned when
// this call inserted the row.
func (l Lifecycle) getOrCreateTrip(ctx context.Context, repos repository.Repositories, routeID string, date time.Time) (*domain.Trip, string, bool, error) {
	trip, err := repos.Trips.GetByRouteAndDate(ctx, routeID, date)
	if err == nil {
		return trip, "", false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", false, err
	}

	if _, err := repos.Routes.GetByID(ctx, routeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", false, ErrRouteNotFound
		}
		return nil, "", false, err
	}

	plaintext, hash, err := l.Tokens.Generate()
	if err != nil {
		return nil, "", false, err
	}

	trip = &domain.Trip{
		ID:        uuid.New().String(),
		RouteID:   routeID,
		Date:      date,
		Status:    domain.TripStatusPlanned,
		TokenHash: hash,
	}

	err = repos.Trips.Create(ctx, trip)
	if errors.Is(err, repository.ErrDuplicate) {
		// Another caller created it first.
		trip, err = repos.Trips.GetByRouteAndDate(ctx, routeID, date)
		if err != nil {
			return nil, "", false, err
		}
		return trip, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}

	return trip, plaintext, true, nil
}

// outcome turns an operation result into a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, ErrAlreadyCheckedIn), errors.Is(err, ErrAlreadyCheckedOut):
		return "duplicate"
	case errors.Is(err, ErrMustCheckInFirst):
		return "not_boarded"
	case errors.Is(err, ErrTooFarFromPoint):
		return "too_far"
	case errors.Is(err, ErrInvalidPassengerID), errors.Is(err, ErrInvalidLocation):
		return "invalid_request"
	default:
		return "error"
	}
}

type nopCache struct{}

func (nopCache) GetDailyTrip(context.Context, string, time.Time) (*domain.Trip, error) {
	return nil, nil
}

func (nopCache) SetDailyTrip(context.Context, *domain.Trip) error {
	return nil
}

func (nopCache) InvalidateDailyTrip(context.Context, string, time.Time) error {
	return nil
}

type nopRecorder struct{}

func (nopRecorder) TripTransition(string)         {}
func (nopRecorder) CheckEvent(string, string)     {}
func (nopRecorder) NotificationsSent(string, int) {}
