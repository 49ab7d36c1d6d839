package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
	"shuttle/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error          string   `json:"error"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	RadiusMeters   *float64 `json:"radius_meters,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unmapped errors are reported as a generic message.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	_ = c.Error(err)

	response := ErrorResponse{Error: err.Error()}
	if code == http.StatusInternalServerError {
		response.Error = "internal server error"
	}

	var tooFar *service.TooFarFromPointError
	if errors.As(err, &tooFar) {
		response.DistanceMeters = &tooFar.DistanceMeters
		response.RadiusMeters = &tooFar.RadiusMeters
	}

	c.JSON(code, response)
}

// respondBadRequest sends a 400 with a fixed message.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrTripNotFound),
		errors.Is(err, service.ErrNoPlannedTrip),
		errors.Is(err, service.ErrNoActiveTrip),
		errors.Is(err, service.ErrRouteNotFound),
		errors.Is(err, service.ErrNoRouteForDriver),
		errors.Is(err, service.ErrPointNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return http.StatusNotFound

	// Token errors
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized

	// Forbidden
	case errors.Is(err, service.ErrNotEnrolled),
		errors.Is(err, service.ErrNotTripDriver):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, service.ErrAlreadyStarted),
		errors.Is(err, service.ErrAlreadyCheckedIn),
		errors.Is(err, service.ErrAlreadyCheckedOut),
		errors.Is(err, service.ErrMustCheckInFirst),
		errors.Is(err, service.ErrTripFinished),
		errors.Is(err, service.ErrTripNotDeletable):
		return http.StatusConflict

	// Geofence
	case errors.Is(err, service.ErrTooFarFromPoint):
		return http.StatusUnprocessableEntity

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRouteID),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPassengerID),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrNoAssignments):
		return http.StatusBadRequest

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// TripResponse is the HTTP representation of a trip. The token hash is never exposed.
type TripResponse struct {
	TripID           string `json:"trip_id"`
	RouteID          string `json:"route_id"`
	Date             string `json:"date"`
	Status           string `json:"status"`
	PlannedCount     int    `json:"planned_count"`
	BoardedCount     int    `json:"boarded_count"`
	DisembarkedCount int    `json:"disembarked_count"`
	StartedAt        string `json:"started_at,omitempty"`
	FinishedAt       string `json:"finished_at,omitempty"`
}

func newTripResponse(trip *domain.Trip) TripResponse {
	return TripResponse{
		TripID:           trip.ID,
		RouteID:          trip.RouteID,
		Date:             trip.Date.Format(domain.DateLayout),
		Status:           string(trip.Status),
		PlannedCount:     trip.PlannedCount,
		BoardedCount:     trip.BoardedCount,
		DisembarkedCount: trip.DisembarkedCount,
		StartedAt:        formatTime(trip.StartedAt),
		FinishedAt:       formatTime(trip.FinishedAt),
	}
}

// EnrollmentResponse is the HTTP representation of an enrollment.
type EnrollmentResponse struct {
	EnrollmentID string `json:"enrollment_id"`
	TripID       string `json:"trip_id"`
	PassengerID  string `json:"passenger_id"`
	PointID      string `json:"point_id,omitempty"`
	Status       string `json:"status"`
	CheckInAt    string `json:"check_in_at,omitempty"`
	CheckOutAt   string `json:"check_out_at,omitempty"`
}

func newEnrollmentResponse(e *domain.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		EnrollmentID: e.ID,
		TripID:       e.TripID,
		PassengerID:  e.PassengerID,
		PointID:      e.PointID,
		Status:       string(e.Status),
		CheckInAt:    formatTime(e.CheckInAt),
		CheckOutAt:   formatTime(e.CheckOutAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// parseDateParam parses an optional YYYY-MM-DD value. Empty means the zero time.
func parseDateParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	date, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, service.ErrInvalidDate
	}
	return date, nil
}
