package repository

import (
	"context"

	"shuttle/internal/domain"
)

// RouteRepository provides read access to route reference data.
type RouteRepository interface {
	// GetByID retrieves a route by ID.
	GetByID(ctx context.Context, id string) (*domain.Route, error)

	// GetByDriverID retrieves the route a driver is assigned to.
	GetByDriverID(ctx context.Context, driverID string) (*domain.Route, error)

	// GetPoint retrieves a boarding point by ID.
	GetPoint(ctx context.Context, pointID string) (*domain.Point, error)
}
