package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
// Instances are handed out by Store, bound to the pool or to a transaction.
type TripRepository struct {
	q Querier
}

const tripColumns = `id, route_id, trip_date, status, planned_count, boarded_count,
	disembarked_count, started_at, finished_at, COALESCE(token_hash, ''), created_at`

// Create persists a new trip. The (route_id, trip_date) conflict is absorbed by
// the insert so the surrounding transaction stays usable.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO viagens (id, route_id, trip_date, status, planned_count, boarded_count,
			disembarked_count, started_at, finished_at, token_hash)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (route_id, trip_date) DO NOTHING
		RETURNING created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		trip.ID,
		trip.RouteID,
		trip.Date.Format(domain.DateLayout),
		trip.Status,
		trip.PlannedCount,
		trip.BoardedCount,
		trip.DisembarkedCount,
		toNullTime(trip.StartedAt),
		toNullTime(trip.FinishedAt),
		toNullString(trip.TokenHash),
	).Scan(&trip.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert trip: %w", err)
	}

	return nil
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM viagens WHERE id = $1`
	return scanTrip(r.q.QueryRowContext(ctx, query, id))
}

// GetByRouteAndDate retrieves the trip of a route on a calendar date.
func (r *TripRepository) GetByRouteAndDate(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM viagens WHERE route_id = $1 AND trip_date = $2::date`
	return scanTrip(r.q.QueryRowContext(ctx, query, routeID, date.Format(domain.DateLayout)))
}

// LockByRouteAndDate retrieves the trip of a route on a date and locks its row.
func (r *TripRepository) LockByRouteAndDate(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM viagens WHERE route_id = $1 AND trip_date = $2::date FOR UPDATE`
	return scanTrip(r.q.QueryRowContext(ctx, query, routeID, date.Format(domain.DateLayout)))
}

// LockByTokenHash retrieves and locks the unfinished trip of the date whose
// current token hash matches.
func (r *TripRepository) LockByTokenHash(ctx context.Context, tokenHash string, date time.Time) (*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM viagens
		WHERE token_hash = $1 AND trip_date = $2::date AND status <> $3
		FOR UPDATE
	`
	return scanTrip(r.q.QueryRowContext(ctx, query, tokenHash, date.Format(domain.DateLayout), domain.TripStatusFinished))
}

// Update updates status, timestamps and token hash of an existing trip.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE viagens
		SET status = $1, started_at = $2, finished_at = $3, token_hash = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		trip.Status,
		toNullTime(trip.StartedAt),
		toNullTime(trip.FinishedAt),
		toNullString(trip.TokenHash),
		trip.ID,
	)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
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

// RefreshCounts recomputes the trip counters from passageiros_viagem.
func (r *TripRepository) RefreshCounts(ctx context.Context, tripID string) (domain.TripCounts, error) {
	query := `
		UPDATE viagens v
		SET planned_count = c.planned,
		    boarded_count = c.boarded,
		    disembarked_count = c.disembarked
		FROM (
			SELECT COUNT(*) AS planned,
			       COUNT(*) FILTER (WHERE status IN ($2, $3)) AS boarded,
			       COUNT(*) FILTER (WHERE status = $3) AS disembarked
			FROM passageiros_viagem
			WHERE trip_id = $1
		) c
		WHERE v.id = $1
		RETURNING v.planned_count, v.boarded_count, v.disembarked_count
	`

	var counts domain.TripCounts
	err := r.q.QueryRowContext(ctx, query,
		tripID,
		domain.EnrollmentStatusBoarded,
		domain.EnrollmentStatusDisembarked,
	).Scan(&counts.Planned, &counts.Boarded, &counts.Disembarked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TripCounts{}, repository.ErrNotFound
		}
		return domain.TripCounts{}, fmt.Errorf("refresh trip counts: %w", err)
	}

	return counts, nil
}

// DeletePlanned removes a planned trip; enrollments go with it via ON DELETE CASCADE.
func (r *TripRepository) DeletePlanned(ctx context.Context, id string) error {
	query := `DELETE FROM viagens WHERE id = $1 AND status = $2`

	result, err := r.q.ExecContext(ctx, query, id, domain.TripStatusPlanned)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
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

func scanTrip(row *sql.Row) (*domain.Trip, error) {
	var trip domain.Trip
	var startedAt sql.NullTime
	var finishedAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.RouteID,
		&trip.Date,
		&trip.Status,
		&trip.PlannedCount,
		&trip.BoardedCount,
		&trip.DisembarkedCount,
		&startedAt,
		&finishedAt,
		&trip.TokenHash,
		&trip.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	trip.Date = domain.CalendarDate(trip.Date, time.UTC)
	trip.StartedAt = nullTime(startedAt)
	trip.FinishedAt = nullTime(finishedAt)

	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
