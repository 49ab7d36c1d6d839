package domain

import "time"

// EnrollmentStatus represents a passenger's progress within one trip.
type EnrollmentStatus string

const (
	EnrollmentStatusWaiting     EnrollmentStatus = "AGUARDANDO"
	EnrollmentStatusBoarded     EnrollmentStatus = "EMBARCADO"
	EnrollmentStatusDisembarked EnrollmentStatus = "DESEMBARCADO"
	EnrollmentStatusAbsent      EnrollmentStatus = "FALTOU"
)

// CanTransitionTo reports whether an enrollment in status s may move to next.
//
//	AGUARDANDO -> EMBARCADO -> DESEMBARCADO
//	AGUARDANDO -> FALTOU (terminal)
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusWaiting:
		return next == EnrollmentStatusBoarded || next == EnrollmentStatusAbsent
	case EnrollmentStatusBoarded:
		return next == EnrollmentStatusDisembarked
	default:
		return false
	}
}

// HasBoarded reports whether the passenger checked in at some point.
func (s EnrollmentStatus) HasBoarded() bool {
	return s == EnrollmentStatusBoarded || s == EnrollmentStatusDisembarked
}

// Enrollment is a passenger's participation record within one trip.
type Enrollment struct {
	ID          string
	TripID      string
	PassengerID string
	PointID     string // optional boarding point
	Status      EnrollmentStatus
	CheckInAt   time.Time
	CheckOutAt  time.Time
	CreatedAt   time.Time
}
