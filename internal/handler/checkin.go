package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/middleware"
	"shuttle/internal/service"
)

// CheckInHandler handles passenger enrollment and boarding.
type CheckInHandler struct {
	checkInService *service.CheckInService
	tripService    *service.TripService
}

// NewCheckInHandler creates a new CheckInHandler.
func NewCheckInHandler(checkInService *service.CheckInService, tripService *service.TripService) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService, tripService: tripService}
}

// EnrollRequest is the HTTP request body for enrolling in a trip.
type EnrollRequest struct {
	RouteID string `json:"route_id"`
	Date    string `json:"date"`
	PointID string `json:"point_id"`
}

// EnrollResponse is the HTTP response for an enrollment.
type EnrollResponse struct {
	Enrollment      EnrollmentResponse `json:"enrollment"`
	Trip            TripResponse       `json:"trip"`
	AlreadyEnrolled bool               `json:"already_enrolled"`
}

// CheckInRequest is the HTTP request body for a check-in.
type CheckInRequest struct {
	Token string   `json:"token"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
}

// CheckOutRequest is the HTTP request body for a check-out.
type CheckOutRequest struct {
	Token string `json:"token"`
}

// CheckResponse is the HTTP response for check-in and check-out.
type CheckResponse struct {
	TripID     string             `json:"trip_id"`
	Enrollment EnrollmentResponse `json:"enrollment"`
	Trip       TripResponse       `json:"trip"`
}

// Enroll handles POST /v1/enrollments
func (h *CheckInHandler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	if date.IsZero() {
		date = h.tripService.Today()
	}

	result, err := h.checkInService.Enroll(c.Request.Context(), service.EnrollRequest{
		PassengerID: middleware.UserID(c),
		RouteID:     req.RouteID,
		Date:        date,
		PointID:     req.PointID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	code := http.StatusCreated
	if result.AlreadyEnrolled {
		code = http.StatusOK
	}

	respondJSON(c, code, EnrollResponse{
		Enrollment:      newEnrollmentResponse(result.Enrollment),
		Trip:            newTripResponse(result.Trip),
		AlreadyEnrolled: result.AlreadyEnrolled,
	})
}

// CheckIn handles POST /v1/checkin
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		respondError(c, service.ErrInvalidLocation)
		return
	}

	var location *service.GeoPoint
	if req.Lat != nil {
		location = &service.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}
	}

	result, err := h.checkInService.CheckIn(c.Request.Context(), service.CheckInRequest{
		PassengerID: middleware.UserID(c),
		Token:       req.Token,
		Location:    location,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newCheckResponse(result))
}

// CheckOut handles POST /v1/checkout
func (h *CheckInHandler) CheckOut(c *gin.Context) {
	var req CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.checkInService.CheckOut(c.Request.Context(), service.CheckOutRequest{
		PassengerID: middleware.UserID(c),
		Token:       req.Token,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newCheckResponse(result))
}

func newCheckResponse(result *service.CheckResult) CheckResponse {
	return CheckResponse{
		TripID:     result.TripID,
		Enrollment: newEnrollmentResponse(result.Enrollment),
		Trip:       newTripResponse(result.Trip),
	}
}
