package repository

import (
	"context"
	"time"

	"shuttle/internal/domain"
)

// TripRepository defines the persistence operations for daily trips.
type TripRepository interface {
	// Create persists a new trip.
	// Returns ErrDuplicate if a trip already exists for the same route and date.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByRouteAndDate retrieves the trip of a route on a calendar date.
	GetByRouteAndDate(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error)

	// LockByRouteAndDate is GetByRouteAndDate with a row lock held until the
	// surrounding transaction ends.
	LockByRouteAndDate(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error)

	// LockByTokenHash retrieves and locks the not-yet-finished trip of the given
	// date whose current token hash matches.
	LockByTokenHash(ctx context.Context, tokenHash string, date time.Time) (*domain.Trip, error)

	// Update updates status, timestamps and token hash of an existing trip.
	Update(ctx context.Context, trip *domain.Trip) error

	// RefreshCounts recomputes the trip counters from its enrollments and
	// persists them.
	RefreshCounts(ctx context.Context, tripID string) (domain.TripCounts, error)

	// DeletePlanned removes a trip and its enrollments if it is still planned.
	// Returns ErrNotFound if no planned trip with that ID exists.
	DeletePlanned(ctx context.Context, id string) error
}
