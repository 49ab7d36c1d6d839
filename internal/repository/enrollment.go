package repository

import (
	"context"

	"shuttle/internal/domain"
)

// EnrollmentRepository defines the persistence operations for trip enrollments.
type EnrollmentRepository interface {
	// Create persists a new enrollment.
	// Returns ErrDuplicate if the passenger is already enrolled in the trip.
	Create(ctx context.Context, enrollment *domain.Enrollment) error

	// GetByTripAndPassenger retrieves the enrollment of a passenger in a trip.
	GetByTripAndPassenger(ctx context.Context, tripID, passengerID string) (*domain.Enrollment, error)

	// ListByTrip retrieves all enrollments of a trip.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.Enrollment, error)

	// Update updates status and check-in/out timestamps.
	Update(ctx context.Context, enrollment *domain.Enrollment) error

	// MarkAbsent moves every waiting enrollment of the trip to absent and
	// returns how many rows changed.
	MarkAbsent(ctx context.Context, tripID string) (int, error)
}
