package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// TripService drives the daily trip state machine:
// PLANEJADA -> EM_ANDAMENTO -> FINALIZADA.
type TripService struct {
	Lifecycle
	notificationService *NotificationService
}

// NewTripService creates a new TripService.
func NewTripService(deps Lifecycle, notificationService *NotificationService) *TripService {
	return &TripService{
		Lifecycle:           deps.withDefaults(),
		notificationService: notificationService,
	}
}

// DailyTripResult is the outcome of GetOrCreateDailyTrip. Token is only set
// when Created is true.
type DailyTripResult struct {
	Trip    *domain.Trip
	Token   string
	Created bool
}

// GetOrCreateDailyTrip returns the trip of a route on a date, creating it in
// PLANEJADA when absent. Concurrent callers observe a single row.
func (s *TripService) GetOrCreateDailyTrip(ctx context.Context, routeID string, date time.Time) (*DailyTripResult, error) {
	if routeID == "" {
		return nil, ErrInvalidRouteID
	}
	if date.IsZero() {
		return nil, ErrInvalidDate
	}
	date = domain.CalendarDate(date, time.UTC)

	var result DailyTripResult
	err := s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, plaintext, created, err := s.getOrCreateTrip(ctx, repos, routeID, date)
		if err != nil {
			return err
		}
		result = DailyTripResult{Trip: trip, Token: plaintext, Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		s.Recorder.TripTransition(string(domain.TripStatusPlanned))
		s.Logger.Info("daily trip created",
			slog.String("trip_id", result.Trip.ID),
			slog.String("route_id", routeID),
			slog.String("date", date.Format(domain.DateLayout)))
	}

	return &result, nil
}

// Today returns the current calendar date in the service time zone.
func (s *TripService) Today() time.Time {
	return s.today()
}

// GetDailyTrip returns the trip of a route on a date without creating it.
// Reads go through the trip cache.
func (s *TripService) GetDailyTrip(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error) {
	if routeID == "" {
		return nil, ErrInvalidRouteID
	}
	date = domain.CalendarDate(date, time.UTC)

	cached, err := s.Cache.GetDailyTrip(ctx, routeID, date)
	if err != nil {
		s.Logger.Warn("trip cache read failed", slog.String("route_id", routeID), slog.String("error", err.Error()))
	}
	if cached != nil {
		return cached, nil
	}

	trip, err := s.Store.Repos().Trips.GetByRouteAndDate(ctx, routeID, date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}

	if err := s.Cache.SetDailyTrip(ctx, trip); err != nil {
		s.Logger.Warn("trip cache write failed", slog.String("trip_id", trip.ID), slog.String("error", err.Error()))
	}

	return trip, nil
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.Store.Repos().Trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return trip, nil
}

// StartTripResult carries the started trip and the plaintext token to be
// shown as a QR code. The token is not recoverable afterwards.
type StartTripResult struct {
	Trip  *domain.Trip
	Token string
}

// StartTrip moves today's trip of the driver's route from PLANEJADA to
// EM_ANDAMENTO and rotates its token.
func (s *TripService) StartTrip(ctx context.Context, driverID string) (*StartTripResult, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	route, err := s.routeForDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	now := s.Clock.Now()

	var (
		result     StartTripResult
		recipients []string
	)
	err = s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := repos.Trips.LockByRouteAndDate(ctx, route.ID, today)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoPlannedTrip
			}
			return err
		}

		if !trip.Status.CanTransitionTo(domain.TripStatusInProgress) {
			return ErrAlreadyStarted
		}

		plaintext, hash, err := s.Tokens.Generate()
		if err != nil {
			return err
		}

		trip.Status = domain.TripStatusInProgress
		trip.StartedAt = now
		trip.TokenHash = hash

		if err := repos.Trips.Update(ctx, trip); err != nil {
			return err
		}

		recipients, err = passengerIDs(ctx, repos, trip.ID)
		if err != nil {
			return err
		}

		result = StartTripResult{Trip: trip, Token: plaintext}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Trip)
	s.Recorder.TripTransition(string(domain.TripStatusInProgress))
	s.Logger.Info("trip started",
		slog.String("trip_id", result.Trip.ID),
		slog.String("route_id", route.ID),
		slog.String("driver_id", driverID))

	if s.notificationService != nil {
		if err := s.notificationService.NotifyTripStarted(ctx, result.Trip, recipients); err != nil {
			s.Logger.Error("failed to notify trip start", slog.String("trip_id", result.Trip.ID), slog.String("error", err.Error()))
		}
	}

	return &result, nil
}

// EndTripResult carries the finished trip and how many passengers were marked absent.
type EndTripResult struct {
	Trip        *domain.Trip
	AbsentCount int
}

// EndTrip finishes today's in-progress trip of the driver's route. Every
// enrollment still AGUARDANDO becomes FALTOU in the same transaction.
func (s *TripService) EndTrip(ctx context.Context, driverID string) (*EndTripResult, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	route, err := s.routeForDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	now := s.Clock.Now()

	var (
		result     EndTripResult
		recipients []string
	)
	err = s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := repos.Trips.LockByRouteAndDate(ctx, route.ID, today)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoActiveTrip
			}
			return err
		}

		if !trip.Status.CanTransitionTo(domain.TripStatusFinished) {
			return ErrNoActiveTrip
		}

		trip.Status = domain.TripStatusFinished
		trip.FinishedAt = now
		trip.TokenHash = ""

		if err := repos.Trips.Update(ctx, trip); err != nil {
			return err
		}

		absent, err := repos.Enrollments.MarkAbsent(ctx, trip.ID)
		if err != nil {
			return err
		}

		counts, err := repos.Trips.RefreshCounts(ctx, trip.ID)
		if err != nil {
			return err
		}
		counts.Apply(trip)

		recipients, err = passengerIDs(ctx, repos, trip.ID)
		if err != nil {
			return err
		}

		result = EndTripResult{Trip: trip, AbsentCount: absent}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Trip)
	s.Recorder.TripTransition(string(domain.TripStatusFinished))
	s.Logger.Info("trip finished",
		slog.String("trip_id", result.Trip.ID),
		slog.Int("boarded", result.Trip.BoardedCount),
		slog.Int("absent", result.AbsentCount))

	if s.notificationService != nil {
		if err := s.notificationService.NotifyTripFinished(ctx, result.Trip, recipients); err != nil {
			s.Logger.Error("failed to notify trip finish", slog.String("trip_id", result.Trip.ID), slog.String("error", err.Error()))
		}
	}

	return &result, nil
}

// DeletePlannedTrip removes a trip and its enrollments while it is still PLANEJADA.
func (s *TripService) DeletePlannedTrip(ctx context.Context, tripID string) error {
	if tripID == "" {
		return ErrInvalidTripID
	}

	var deleted *domain.Trip
	err := s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := repos.Trips.GetByID(ctx, tripID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTripNotFound
			}
			return err
		}

		// Lock before checking status so a concurrent start cannot slip in.
		trip, err = repos.Trips.LockByRouteAndDate(ctx, trip.RouteID, trip.Date)
		if err != nil {
			return err
		}

		if trip.Status != domain.TripStatusPlanned {
			return ErrTripNotDeletable
		}

		if err := repos.Trips.DeletePlanned(ctx, trip.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTripNotDeletable
			}
			return err
		}

		deleted = trip
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, deleted)
	s.Logger.Info("planned trip deleted", slog.String("trip_id", tripID))
	return nil
}

func (s *TripService) routeForDriver(ctx context.Context, driverID string) (*domain.Route, error) {
	route, err := s.Store.Repos().Routes.GetByDriverID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoRouteForDriver
		}
		return nil, err
	}
	return route, nil
}

// passengerIDs lists the passengers enrolled in a trip.
func passengerIDs(ctx context.Context, repos repository.Repositories, tripID string) ([]string, error) {
	enrollments, err := repos.Enrollments.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.PassengerID)
	}
	return ids, nil
}
