package service

import (
	"context"
	"errors"
	"time"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
)

// ReportService serves read-only dashboards over trips and enrollments.
type ReportService struct {
	reports repository.ReportRepository
	trips   repository.TripRepository
	clock   clock.Clock
	loc     *time.Location
}

// NewReportService creates a new ReportService.
func NewReportService(reports repository.ReportRepository, trips repository.TripRepository, clk clock.Clock, loc *time.Location) *ReportService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{reports: reports, trips: trips, clock: clk, loc: loc}
}

// DailySummary returns every trip of a date with its counters. A zero date
// means today.
func (s *ReportService) DailySummary(ctx context.Context, date time.Time) ([]domain.TripSummary, error) {
	if date.IsZero() {
		date = clock.Today(s.clock, s.loc)
	}
	return s.reports.DailySummary(ctx, domain.CalendarDate(date, time.UTC))
}

// TripRoster returns the enrollments of a trip.
func (s *ReportService) TripRoster(ctx context.Context, tripID string) ([]domain.RosterEntry, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	if _, err := s.trips.GetByID(ctx, tripID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}

	return s.reports.TripRoster(ctx, tripID)
}

// PassengerHistory returns the latest trips of a passenger.
func (s *ReportService) PassengerHistory(ctx context.Context, passengerID string, limit int) ([]domain.HistoryEntry, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.reports.PassengerHistory(ctx, passengerID, limit)
}
