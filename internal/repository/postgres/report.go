package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// ReportRepository runs read-only aggregations with sqlx struct scanning.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository wraps the shared connection pool for reporting queries.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: sqlx.NewDb(db, "postgres")}
}

// DailySummary returns one row per trip on the given date.
func (r *ReportRepository) DailySummary(ctx context.Context, date time.Time) ([]domain.TripSummary, error) {
	query := `
		SELECT v.id AS trip_id,
		       v.route_id,
		       l.name AS route_name,
		       v.trip_date,
		       v.status,
		       v.planned_count,
		       v.boarded_count,
		       v.disembarked_count,
		       COUNT(p.id) FILTER (WHERE p.status = $2) AS absent_count
		FROM viagens v
		JOIN linhas l ON l.id = v.route_id
		LEFT JOIN passageiros_viagem p ON p.trip_id = v.id
		WHERE v.trip_date = $1::date
		GROUP BY v.id, l.name
		ORDER BY l.name
	`

	summaries := []domain.TripSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, date.Format(domain.DateLayout), domain.EnrollmentStatusAbsent); err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}

	for i := range summaries {
		summaries[i].Date = domain.CalendarDate(summaries[i].Date, time.UTC)
	}
	return summaries, nil
}

// TripRoster returns every enrollment of a trip with its boarding point name.
func (r *ReportRepository) TripRoster(ctx context.Context, tripID string) ([]domain.RosterEntry, error) {
	query := `
		SELECT p.id AS enrollment_id,
		       p.passenger_id,
		       p.point_id,
		       pt.name AS point_name,
		       p.status,
		       p.check_in_at,
		       p.check_out_at
		FROM passageiros_viagem p
		LEFT JOIN pontos pt ON pt.id = p.point_id
		WHERE p.trip_id = $1
		ORDER BY p.created_at, p.id
	`

	roster := []domain.RosterEntry{}
	if err := r.db.SelectContext(ctx, &roster, query, tripID); err != nil {
		return nil, fmt.Errorf("trip roster: %w", err)
	}
	return roster, nil
}

// PassengerHistory returns the most recent trips of a passenger.
func (r *ReportRepository) PassengerHistory(ctx context.Context, passengerID string, limit int) ([]domain.HistoryEntry, error) {
	query := `
		SELECT v.id AS trip_id,
		       l.name AS route_name,
		       v.trip_date,
		       p.status,
		       p.check_in_at,
		       p.check_out_at
		FROM passageiros_viagem p
		JOIN viagens v ON v.id = p.trip_id
		JOIN linhas l ON l.id = v.route_id
		WHERE p.passenger_id = $1
		ORDER BY v.trip_date DESC
		LIMIT $2
	`

	history := []domain.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &history, query, passengerID, limit); err != nil {
		return nil, fmt.Errorf("passenger history: %w", err)
	}

	for i := range history {
		history[i].Date = domain.CalendarDate(history[i].Date, time.UTC)
	}
	return history, nil
}

// Ensure ReportRepository implements repository.ReportRepository.
var _ repository.ReportRepository = (*ReportRepository)(nil)
