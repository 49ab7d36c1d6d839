package domain

import "time"

// TripStatus represents the lifecycle stage of a daily trip.
type TripStatus string

const (
	TripStatusPlanned    TripStatus = "PLANEJADA"
	TripStatusInProgress TripStatus = "EM_ANDAMENTO"
	TripStatusFinished   TripStatus = "FINALIZADA"
)

// tripStatusOrder ranks statuses so transitions can only move forward.
var tripStatusOrder = map[TripStatus]int{
	TripStatusPlanned:    0,
	TripStatusInProgress: 1,
	TripStatusFinished:   2,
}

// Valid reports whether s is a known trip status.
func (s TripStatus) Valid() bool {
	_, ok := tripStatusOrder[s]
	return ok
}

// CanTransitionTo reports whether a trip in status s may move to next.
// Only single forward steps are allowed.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	from, ok := tripStatusOrder[s]
	if !ok {
		return false
	}
	to, ok := tripStatusOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// DateLayout is the calendar-date format used for trip dates.
const DateLayout = "2006-01-02"

// Trip is one scheduled run of a route on a calendar date (a "viagem").
type Trip struct {
	ID               string
	RouteID          string
	Date             time.Time // calendar date, midnight UTC
	Status           TripStatus
	PlannedCount     int
	BoardedCount     int
	DisembarkedCount int
	StartedAt        time.Time
	FinishedAt       time.Time
	TokenHash        string // hash of the current check-in token, never the plaintext
	CreatedAt        time.Time
}

// TripCounts holds the aggregate enrollment counters of a trip.
type TripCounts struct {
	Planned     int
	Boarded     int
	Disembarked int
}

// Apply copies the counters onto the trip.
func (c TripCounts) Apply(t *Trip) {
	t.PlannedCount = c.Planned
	t.BoardedCount = c.Boarded
	t.DisembarkedCount = c.Disembarked
}

// CalendarDate truncates t to its calendar date in loc and returns it as midnight UTC,
// which is how trip dates are stored and compared.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
