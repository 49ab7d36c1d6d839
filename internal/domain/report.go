package domain

import "time"

// TripSummary is a read-only row of the daily dashboard.
type TripSummary struct {
	TripID           string     `db:"trip_id"`
	RouteID          string     `db:"route_id"`
	RouteName        string     `db:"route_name"`
	Date             time.Time  `db:"trip_date"`
	Status           TripStatus `db:"status"`
	PlannedCount     int        `db:"planned_count"`
	BoardedCount     int        `db:"boarded_count"`
	DisembarkedCount int        `db:"disembarked_count"`
	AbsentCount      int        `db:"absent_count"`
}

// RosterEntry is one passenger line of a trip roster.
type RosterEntry struct {
	EnrollmentID string           `db:"enrollment_id"`
	PassengerID  string           `db:"passenger_id"`
	PointID      *string          `db:"point_id"`
	PointName    *string          `db:"point_name"`
	Status       EnrollmentStatus `db:"status"`
	CheckInAt    *time.Time       `db:"check_in_at"`
	CheckOutAt   *time.Time       `db:"check_out_at"`
}

// HistoryEntry is one trip in a passenger's history.
type HistoryEntry struct {
	TripID     string           `db:"trip_id"`
	RouteName  string           `db:"route_name"`
	Date       time.Time        `db:"trip_date"`
	Status     EnrollmentStatus `db:"status"`
	CheckInAt  *time.Time       `db:"check_in_at"`
	CheckOutAt *time.Time       `db:"check_out_at"`
}
