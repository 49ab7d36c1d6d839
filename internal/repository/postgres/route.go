package postgres

import (
	"context"
	"database/sql"
	"errors"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// RouteRepository is a PostgreSQL implementation of repository.RouteRepository.
type RouteRepository struct {
	q Querier
}

// GetByID retrieves a route by ID.
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	query := `SELECT id, name, COALESCE(driver_id, '') FROM linhas WHERE id = $1`
	return scanRoute(r.q.QueryRowContext(ctx, query, id))
}

// GetByDriverID retrieves the route a driver is assigned to.
func (r *RouteRepository) GetByDriverID(ctx context.Context, driverID string) (*domain.Route, error) {
	query := `SELECT id, name, COALESCE(driver_id, '') FROM linhas WHERE driver_id = $1 LIMIT 1`
	return scanRoute(r.q.QueryRowContext(ctx, query, driverID))
}

// GetPoint retrieves a boarding point by ID.
func (r *RouteRepository) GetPoint(ctx context.Context, pointID string) (*domain.Point, error) {
	query := `
		SELECT id, route_id, name, latitude, longitude, COALESCE(radius_meters, 0)
		FROM pontos WHERE id = $1
	`

	var point domain.Point
	var lat sql.NullFloat64
	var lng sql.NullFloat64

	err := r.q.QueryRowContext(ctx, query, pointID).Scan(
		&point.ID,
		&point.RouteID,
		&point.Name,
		&lat,
		&lng,
		&point.RadiusMeters,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if lat.Valid {
		point.Latitude = &lat.Float64
	}
	if lng.Valid {
		point.Longitude = &lng.Float64
	}

	return &point, nil
}

func scanRoute(row *sql.Row) (*domain.Route, error) {
	var route domain.Route
	if err := row.Scan(&route.ID, &route.Name, &route.DriverID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &route, nil
}

// Ensure RouteRepository implements repository.RouteRepository.
var _ repository.RouteRepository = (*RouteRepository)(nil)
