package repository

import (
	"context"
	"time"

	"shuttle/internal/domain"
)

// ReportRepository runs read-only aggregations over trips and enrollments.
type ReportRepository interface {
	DailySummary(ctx context.Context, date time.Time) ([]domain.TripSummary, error)
	TripRoster(ctx context.Context, tripID string) ([]domain.RosterEntry, error)
	PassengerHistory(ctx context.Context, passengerID string, limit int) ([]domain.HistoryEntry, error)
}
