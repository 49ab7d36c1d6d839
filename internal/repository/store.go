package repository

import "context"

// Repositories groups the repositories that share one connection or transaction.
type Repositories struct {
	Trips         TripRepository
	Enrollments   EnrollmentRepository
	Routes        RouteRepository
	Notifications NotificationRepository
}

// Store hands out repositories, optionally scoped to a transaction.
type Store interface {
	// Repos returns repositories that run outside any transaction.
	Repos() Repositories

	// WithinTx runs fn with repositories bound to one transaction. The
	// transaction commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}
