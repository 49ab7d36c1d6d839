package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/domain"
	"shuttle/internal/geo"
	"shuttle/internal/repository"
)

// GeofencePolicy configures the optional proximity check on check-in.
type GeofencePolicy struct {
	Enabled             bool
	DefaultRadiusMeters float64
}

// CheckInService handles passenger enrollment and check-in/check-out.
type CheckInService struct {
	Lifecycle
	geofence GeofencePolicy
}

// NewCheckInService creates a new CheckInService.
func NewCheckInService(deps Lifecycle, geofence GeofencePolicy) *CheckInService {
	return &CheckInService{
		Lifecycle: deps.withDefaults(),
		geofence:  geofence,
	}
}

// EnrollRequest contains the parameters for enrolling a passenger.
type EnrollRequest struct {
	PassengerID string
	RouteID     string
	Date        time.Time
	PointID     string
}

// EnrollResult is the outcome of Enroll. AlreadyEnrolled is informational.
type EnrollResult struct {
	Enrollment      *domain.Enrollment
	Trip            *domain.Trip
	AlreadyEnrolled bool
}

// Enroll enrolls a passenger in the daily trip of a route, creating the trip
// when needed. Enrolling twice returns the existing row.
func (s *CheckInService) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	if req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if req.RouteID == "" {
		return nil, ErrInvalidRouteID
	}
	if req.Date.IsZero() {
		return nil, ErrInvalidDate
	}
	date := domain.CalendarDate(req.Date, time.UTC)

	var result EnrollResult
	err := s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := s.lockDailyTrip(ctx, repos, req.RouteID, date)
		if err != nil {
			return err
		}

		enrollment, existed, err := s.enrollLocked(ctx, repos, trip, req.PassengerID, req.PointID)
		if err != nil {
			return err
		}

		counts, err := repos.Trips.RefreshCounts(ctx, trip.ID)
		if err != nil {
			return err
		}
		counts.Apply(trip)

		result = EnrollResult{Enrollment: enrollment, Trip: trip, AlreadyEnrolled: existed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyEnrolled {
		s.invalidate(ctx, result.Trip)
		s.Logger.Info("passenger enrolled",
			slog.String("trip_id", result.Trip.ID),
			slog.String("passenger_id", req.PassengerID))
	}

	return &result, nil
}

// Assignment is one passenger of an administrative bulk assignment.
type Assignment struct {
	PassengerID string
	PointID     string
}

// AssignResult summarizes a bulk assignment.
type AssignResult struct {
	Trip            *domain.Trip
	Enrolled        int
	AlreadyEnrolled int
}

// AssignPassengers enrolls many passengers into the daily trip of a route in
// one transaction. Either every assignment applies or none does.
func (s *CheckInService) AssignPassengers(ctx context.Context, routeID string, date time.Time, assignments []Assignment) (*AssignResult, error) {
	if routeID == "" {
		return nil, ErrInvalidRouteID
	}
	if date.IsZero() {
		return nil, ErrInvalidDate
	}
	if len(assignments) == 0 {
		return nil, ErrNoAssignments
	}
	for _, a := range assignments {
		if a.PassengerID == "" {
			return nil, ErrInvalidPassengerID
		}
	}
	date = domain.CalendarDate(date, time.UTC)

	var result AssignResult
	err := s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := s.lockDailyTrip(ctx, repos, routeID, date)
		if err != nil {
			return err
		}

		result = AssignResult{}
		for _, a := range assignments {
			_, existed, err := s.enrollLocked(ctx, repos, trip, a.PassengerID, a.PointID)
			if err != nil {
				return err
			}
			if existed {
				result.AlreadyEnrolled++
			} else {
				result.Enrolled++
			}
		}

		counts, err := repos.Trips.RefreshCounts(ctx, trip.ID)
		if err != nil {
			return err
		}
		counts.Apply(trip)

		result.Trip = trip
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Trip)
	s.Logger.Info("passengers assigned",
		slog.String("trip_id", result.Trip.ID),
		slog.Int("enrolled", result.Enrolled),
		slog.Int("already_enrolled", result.AlreadyEnrolled))

	return &result, nil
}

// GeoPoint is a latitude/longitude pair reported by the passenger's device.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// CheckInRequest contains the parameters for a check-in.
type CheckInRequest struct {
	PassengerID string
	Token       string
	Location    *GeoPoint
}

// CheckOutRequest contains the parameters for a check-out.
type CheckOutRequest struct {
	PassengerID string
	Token       string
}

// CheckResult is the outcome of a successful check-in or check-out.
type CheckResult struct {
	TripID     string
	Enrollment *domain.Enrollment
	Trip       *domain.Trip
	At         time.Time
}

// CheckIn boards a passenger on the trip whose current token was presented.
// A check-in on a PLANEJADA trip also moves it to EM_ANDAMENTO.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckResult, error) {
	result, err := s.checkIn(ctx, req)
	s.Recorder.CheckEvent("checkin", outcome(err))
	return result, err
}

func (s *CheckInService) checkIn(ctx context.Context, req CheckInRequest) (*CheckResult, error) {
	if req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if req.Location != nil && !validCoordinates(req.Location.Lat, req.Location.Lng) {
		return nil, ErrInvalidLocation
	}

	hash, err := s.Tokens.Hash(req.Token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	today := s.today()
	now := s.Clock.Now()

	var (
		result   CheckResult
		promoted bool
	)
	err = s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, enrollment, err := s.resolveEnrollment(ctx, repos, req.PassengerID, req.Token, hash, today)
		if err != nil {
			return err
		}

		if !enrollment.Status.CanTransitionTo(domain.EnrollmentStatusBoarded) {
			return ErrAlreadyCheckedIn
		}

		if err := s.checkProximity(ctx, repos, enrollment, req.Location); err != nil {
			return err
		}

		enrollment.Status = domain.EnrollmentStatusBoarded
		enrollment.CheckInAt = now
		if err := repos.Enrollments.Update(ctx, enrollment); err != nil {
			return err
		}

		counts, err := repos.Trips.RefreshCounts(ctx, trip.ID)
		if err != nil {
			return err
		}
		counts.Apply(trip)

		if trip.Status.CanTransitionTo(domain.TripStatusInProgress) {
			trip.Status = domain.TripStatusInProgress
			trip.StartedAt = now
			if err := repos.Trips.Update(ctx, trip); err != nil {
				return err
			}
			promoted = true
		}

		result = CheckResult{TripID: trip.ID, Enrollment: enrollment, Trip: trip, At: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Trip)
	if promoted {
		s.Recorder.TripTransition(string(domain.TripStatusInProgress))
		s.Logger.Info("trip started by first check-in", slog.String("trip_id", result.TripID))
	}
	s.Logger.Info("passenger checked in",
		slog.String("trip_id", result.TripID),
		slog.String("passenger_id", req.PassengerID),
		slog.Int("boarded", result.Trip.BoardedCount))

	return &result, nil
}

// CheckOut marks a boarded passenger as DESEMBARCADO.
func (s *CheckInService) CheckOut(ctx context.Context, req CheckOutRequest) (*CheckResult, error) {
	result, err := s.checkOut(ctx, req)
	s.Recorder.CheckEvent("checkout", outcome(err))
	return result, err
}

func (s *CheckInService) checkOut(ctx context.Context, req CheckOutRequest) (*CheckResult, error) {
	if req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}

	hash, err := s.Tokens.Hash(req.Token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	today := s.today()
	now := s.Clock.Now()

	var result CheckResult
	err = s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, enrollment, err := s.resolveEnrollment(ctx, repos, req.PassengerID, req.Token, hash, today)
		if err != nil {
			return err
		}

		switch enrollment.Status {
		case domain.EnrollmentStatusBoarded:
		case domain.EnrollmentStatusDisembarked:
			return ErrAlreadyCheckedOut
		default:
			return ErrMustCheckInFirst
		}

		enrollment.Status = domain.EnrollmentStatusDisembarked
		enrollment.CheckOutAt = now
		if err := repos.Enrollments.Update(ctx, enrollment); err != nil {
			return err
		}

		counts, err := repos.Trips.RefreshCounts(ctx, trip.ID)
		if err != nil {
			return err
		}
		counts.Apply(trip)

		result = CheckResult{TripID: trip.ID, Enrollment: enrollment, Trip: trip, At: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Trip)
	s.Logger.Info("passenger checked out",
		slog.String("trip_id", result.TripID),
		slog.String("passenger_id", req.PassengerID),
		slog.Int("disembarked", result.Trip.DisembarkedCount))

	return &result, nil
}

// lockDailyTrip gets or creates the daily trip and locks its row.
func (s *CheckInService) lockDailyTrip(ctx context.Context, repos repository.Repositories, routeID string, date time.Time) (*domain.Trip, error) {
	if _, _, _, err := s.getOrCreateTrip(ctx, repos, routeID, date); err != nil {
		return nil, err
	}
	return repos.Trips.LockByRouteAndDate(ctx, routeID, date)
}

// enrollLocked inserts an enrollment into a locked trip unless the passenger
// already has one. The bool reports whether the row already existed.
func (s *CheckInService) enrollLocked(ctx context.Context, repos repository.Repositories, trip *domain.Trip, passengerID, pointID string) (*domain.Enrollment, bool, error) {
	existing, err := repos.Enrollments.GetByTripAndPassenger(ctx, trip.ID, passengerID)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	if trip.Status == domain.TripStatusFinished {
		return nil, false, ErrTripFinished
	}

	if pointID != "" {
		point, err := repos.Routes.GetPoint(ctx, pointID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, false, ErrPointNotFound
			}
			return nil, false, err
		}
		if point.RouteID != trip.RouteID {
			return nil, false, ErrPointNotFound
		}
	}

	enrollment := &domain.Enrollment{
		ID:          uuid.New().String(),
		TripID:      trip.ID,
		PassengerID: passengerID,
		PointID:     pointID,
		Status:      domain.EnrollmentStatusWaiting,
	}

	err = repos.Enrollments.Create(ctx, enrollment)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, err := repos.Enrollments.GetByTripAndPassenger(ctx, trip.ID, passengerID)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	return enrollment, false, nil
}

// resolveEnrollment locks the live trip matching the token and loads the
// passenger's enrollment in it.
func (s *CheckInService) resolveEnrollment(ctx context.Context, repos repository.Repositories, passengerID, plaintext, hash string, today time.Time) (*domain.Trip, *domain.Enrollment, error) {
	trip, err := repos.Trips.LockByTokenHash(ctx, hash, today)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	if !s.Tokens.Validate(plaintext, trip.TokenHash) {
		return nil, nil, ErrInvalidToken
	}

	enrollment, err := repos.Enrollments.GetByTripAndPassenger(ctx, trip.ID, passengerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotEnrolled
		}
		return nil, nil, err
	}

	return trip, enrollment, nil
}

// checkProximity enforces the geofence when enabled and both the passenger
// location and the boarding point coordinates are known.
func (s *CheckInService) checkProximity(ctx context.Context, repos repository.Repositories, enrollment *domain.Enrollment, loc *GeoPoint) error {
	if !s.geofence.Enabled || loc == nil || enrollment.PointID == "" {
		return nil
	}

	point, err := repos.Routes.GetPoint(ctx, enrollment.PointID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if !point.HasCoordinates() {
		return nil
	}

	radius := point.RadiusMeters
	if radius <= 0 {
		radius = s.geofence.DefaultRadiusMeters
	}
	if radius <= 0 {
		return nil
	}

	distance, ok := geo.Within(loc.Lat, loc.Lng, *point.Latitude, *point.Longitude, radius)
	if !ok {
		return &TooFarFromPointError{DistanceMeters: distance, RadiusMeters: radius}
	}
	return nil
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
