package service

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	// ErrTripNotFound is returned when no trip matches the query.
	ErrTripNotFound = errors.New("trip not found")

	// ErrNoPlannedTrip is returned when the driver's route has no trip today.
	ErrNoPlannedTrip = errors.New("no planned trip for today")

	// ErrNoActiveTrip is returned when ending a trip that is not in progress.
	ErrNoActiveTrip = errors.New("no active trip for today")

	// ErrAlreadyStarted is returned when starting a trip that is not planned.
	ErrAlreadyStarted = errors.New("trip already started")

	// ErrTripFinished is returned when enrolling into a finished trip.
	ErrTripFinished = errors.New("trip already finished")

	// ErrTripNotDeletable is returned when deleting a trip that left PLANEJADA.
	ErrTripNotDeletable = errors.New("trip can only be deleted while planned")

	// ErrRouteNotFound is returned when the route does not exist.
	ErrRouteNotFound = errors.New("route not found")

	// ErrNoRouteForDriver is returned when the driver has no route assigned.
	ErrNoRouteForDriver = errors.New("driver has no route assigned")

	// ErrPointNotFound is returned when the boarding point does not exist on the route.
	ErrPointNotFound = errors.New("boarding point not found")
)

// Check-in errors.
var (
	// ErrInvalidToken is returned when a token matches no live trip. It never
	// says which part of the match failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotEnrolled is returned when the passenger has no enrollment in the trip.
	ErrNotEnrolled = errors.New("passenger not enrolled in trip")

	// ErrAlreadyCheckedIn is returned on a second check-in.
	ErrAlreadyCheckedIn = errors.New("passenger already checked in")

	// ErrAlreadyCheckedOut is returned on a second check-out.
	ErrAlreadyCheckedOut = errors.New("passenger already checked out")

	// ErrMustCheckInFirst is returned when checking out before checking in.
	ErrMustCheckInFirst = errors.New("passenger must check in first")

	// ErrTooFarFromPoint is matched by TooFarFromPointError.
	ErrTooFarFromPoint = errors.New("too far from boarding point")
)

// Notification errors.
var (
	// ErrNotificationNotFound is returned when the notification does not exist
	// or belongs to someone else.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrNotTripDriver is returned when a driver messages a trip of another route.
	ErrNotTripDriver = errors.New("driver is not assigned to this trip")
)

// Validation errors.
var (
	ErrInvalidRouteID     = errors.New("invalid route id")
	ErrInvalidTripID      = errors.New("invalid trip id")
	ErrInvalidDriverID    = errors.New("invalid driver id")
	ErrInvalidPassengerID = errors.New("invalid passenger id")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidLocation    = errors.New("invalid location")
	ErrEmptyMessage       = errors.New("message must not be empty")
	ErrNoAssignments      = errors.New("no assignments given")
)

// TooFarFromPointError reports how far the passenger was from the boarding point.
type TooFarFromPointError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *TooFarFromPointError) Error() string {
	return fmt.Sprintf("%s: %.0fm away, radius %.0fm", ErrTooFarFromPoint, e.DistanceMeters, e.RadiusMeters)
}

// Is makes errors.Is(err, ErrTooFarFromPoint) match.
func (e *TooFarFromPointError) Is(target error) bool {
	return target == ErrTooFarFromPoint
}
