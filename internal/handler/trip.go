package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"shuttle/internal/middleware"
	"shuttle/internal/service"
)

const qrCodeSize = 256

// TripHandler handles HTTP requests for daily trips.
type TripHandler struct {
	tripService         *service.TripService
	checkInService      *service.CheckInService
	notificationService *service.NotificationService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService, checkInService *service.CheckInService, notificationService *service.NotificationService) *TripHandler {
	return &TripHandler{
		tripService:         tripService,
		checkInService:      checkInService,
		notificationService: notificationService,
	}
}

// CreateTripRequest is the HTTP request body for creating a daily trip.
type CreateTripRequest struct {
	Date string `json:"date"`
}

// TokenTripResponse carries a trip together with the plaintext token when one was issued.
type TokenTripResponse struct {
	TripResponse
	Token string `json:"token,omitempty"`
}

// AssignPassengersRequest is the HTTP request body for a bulk assignment.
type AssignPassengersRequest struct {
	Date        string `json:"date"`
	Assignments []struct {
		PassengerID string `json:"passenger_id"`
		PointID     string `json:"point_id"`
	} `json:"assignments"`
}

// AssignPassengersResponse is the HTTP response for a bulk assignment.
type AssignPassengersResponse struct {
	Trip            TripResponse `json:"trip"`
	Enrolled        int          `json:"enrolled"`
	AlreadyEnrolled int          `json:"already_enrolled"`
}

// EndTripResponse is the HTTP response for ending a trip.
type EndTripResponse struct {
	TripResponse
	AbsentCount int `json:"absent_count"`
}

// SendMessageRequest is the HTTP request body for messaging a trip's passengers.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// GetTodayTrip handles GET /v1/routes/:id/trips/today
func (h *TripHandler) GetTodayTrip(c *gin.Context) {
	trip, err := h.tripService.GetDailyTrip(c.Request.Context(), c.Param("id"), h.tripService.Today())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// CreateTrip handles POST /v1/routes/:id/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	if date.IsZero() {
		date = h.tripService.Today()
	}

	result, err := h.tripService.GetOrCreateDailyTrip(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		respondError(c, err)
		return
	}

	code := http.StatusOK
	if result.Created {
		code = http.StatusCreated
		middleware.SkipResponseCache(c)
		c.Header("Cache-Control", "no-store")
	}

	respondJSON(c, code, TokenTripResponse{
		TripResponse: newTripResponse(result.Trip),
		Token:        result.Token,
	})
}

// AssignPassengers handles POST /v1/routes/:id/assignments
func (h *TripHandler) AssignPassengers(c *gin.Context) {
	var req AssignPassengersRequest
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

	assignments := make([]service.Assignment, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		assignments = append(assignments, service.Assignment{PassengerID: a.PassengerID, PointID: a.PointID})
	}

	result, err := h.checkInService.AssignPassengers(c.Request.Context(), c.Param("id"), date, assignments)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AssignPassengersResponse{
		Trip:            newTripResponse(result.Trip),
		Enrolled:        result.Enrolled,
		AlreadyEnrolled: result.AlreadyEnrolled,
	})
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// DeleteTrip handles DELETE /v1/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	if err := h.tripService.DeletePlannedTrip(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// StartTrip handles POST /v1/driver/trip/start
// With ?format=png the new token is returned as a QR code image.
func (h *TripHandler) StartTrip(c *gin.Context) {
	result, err := h.tripService.StartTrip(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SkipResponseCache(c)
	c.Header("Cache-Control", "no-store")

	if c.Query("format") == "png" {
		png, err := qrcode.Encode(result.Token, qrcode.Medium, qrCodeSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("X-Trip-ID", result.Trip.ID)
		c.Data(http.StatusOK, "image/png", png)
		return
	}

	respondJSON(c, http.StatusOK, TokenTripResponse{
		TripResponse: newTripResponse(result.Trip),
		Token:        result.Token,
	})
}

// EndTrip handles POST /v1/driver/trip/end
func (h *TripHandler) EndTrip(c *gin.Context) {
	result, err := h.tripService.EndTrip(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EndTripResponse{
		TripResponse: newTripResponse(result.Trip),
		AbsentCount:  result.AbsentCount,
	})
}

// SendMessage handles POST /v1/trips/:id/messages
func (h *TripHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	sent, err := h.notificationService.SendTripMessage(c.Request.Context(), service.SendMessageRequest{
		TripID:     c.Param("id"),
		SenderID:   middleware.UserID(c),
		SenderRole: middleware.UserRole(c),
		Text:       req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"recipients": sent})
}
