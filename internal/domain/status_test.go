package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to TripStatus
		want     bool
	}{
		{TripStatusPlanned, TripStatusInProgress, true},
		{TripStatusInProgress, TripStatusFinished, true},
		{TripStatusPlanned, TripStatusFinished, false},
		{TripStatusInProgress, TripStatusPlanned, false},
		{TripStatusFinished, TripStatusInProgress, false},
		{TripStatusFinished, TripStatusFinished, false},
		{TripStatus("CANCELADA"), TripStatusInProgress, false},
		{TripStatusPlanned, TripStatus("CANCELADA"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTripStatus_Valid(t *testing.T) {
	assert.True(t, TripStatusPlanned.Valid())
	assert.True(t, TripStatusFinished.Valid())
	assert.False(t, TripStatus("").Valid())
	assert.False(t, TripStatus("planejada").Valid())
}

func TestEnrollmentStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, EnrollmentStatusWaiting.CanTransitionTo(EnrollmentStatusBoarded))
	assert.True(t, EnrollmentStatusWaiting.CanTransitionTo(EnrollmentStatusAbsent))
	assert.True(t, EnrollmentStatusBoarded.CanTransitionTo(EnrollmentStatusDisembarked))

	assert.False(t, EnrollmentStatusBoarded.CanTransitionTo(EnrollmentStatusWaiting))
	assert.False(t, EnrollmentStatusBoarded.CanTransitionTo(EnrollmentStatusAbsent))
	assert.False(t, EnrollmentStatusDisembarked.CanTransitionTo(EnrollmentStatusBoarded))
	assert.False(t, EnrollmentStatusAbsent.CanTransitionTo(EnrollmentStatusBoarded))
}
