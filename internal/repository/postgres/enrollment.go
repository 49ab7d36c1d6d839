package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// EnrollmentRepository is a PostgreSQL implementation of repository.EnrollmentRepository.
type EnrollmentRepository struct {
	q Querier
}

const enrollmentColumns = `id, trip_id, passenger_id, COALESCE(point_id, ''), status,
	check_in_at, check_out_at, created_at`

// Create persists a new enrollment. A second enrollment of the same passenger
// in the same trip is reported as repository.ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	query := `
		INSERT INTO passageiros_viagem (id, trip_id, passenger_id, point_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trip_id, passenger_id) DO NOTHING
		RETURNING created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		enrollment.ID,
		enrollment.TripID,
		enrollment.PassengerID,
		toNullString(enrollment.PointID),
		enrollment.Status,
	).Scan(&enrollment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	return nil
}

// GetByTripAndPassenger retrieves the enrollment of a passenger in a trip.
func (r *EnrollmentRepository) GetByTripAndPassenger(ctx context.Context, tripID, passengerID string) (*domain.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM passageiros_viagem WHERE trip_id = $1 AND passenger_id = $2`

	enrollment, err := scanEnrollment(r.q.QueryRowContext(ctx, query, tripID, passengerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return enrollment, nil
}

// ListByTrip retrieves all enrollments of a trip in enrollment order.
func (r *EnrollmentRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM passageiros_viagem WHERE trip_id = $1 ORDER BY created_at, id`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*domain.Enrollment
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, enrollment)
	}

	return enrollments, rows.Err()
}

// Update updates status and check-in/out timestamps.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *domain.Enrollment) error {
	query := `
		UPDATE passageiros_viagem
		SET status = $1, check_in_at = $2, check_out_at = $3
		WHERE id = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		enrollment.Status,
		toNullTime(enrollment.CheckInAt),
		toNullTime(enrollment.CheckOutAt),
		enrollment.ID,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// MarkAbsent moves every waiting enrollment of the trip to FALTOU.
func (r *EnrollmentRepository) MarkAbsent(ctx context.Context, tripID string) (int, error) {
	query := `UPDATE passageiros_viagem SET status = $1 WHERE trip_id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query,
		domain.EnrollmentStatusAbsent,
		tripID,
		domain.EnrollmentStatusWaiting,
	)
	if err != nil {
		return 0, fmt.Errorf("mark absent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(rowsAffected), nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(s scanner) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	var checkInAt sql.NullTime
	var checkOutAt sql.NullTime

	if err := s.Scan(
		&enrollment.ID,
		&enrollment.TripID,
		&enrollment.PassengerID,
		&enrollment.PointID,
		&enrollment.Status,
		&checkInAt,
		&checkOutAt,
		&enrollment.CreatedAt,
	); err != nil {
		return nil, err
	}

	enrollment.CheckInAt = nullTime(checkInAt)
	enrollment.CheckOutAt = nullTime(checkOutAt)

	return &enrollment, nil
}

// Ensure EnrollmentRepository implements repository.EnrollmentRepository.
var _ repository.EnrollmentRepository = (*EnrollmentRepository)(nil)
