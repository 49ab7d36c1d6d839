package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
	"shuttle/internal/service"
)

// ReportHandler serves the read-only admin dashboards.
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// SummaryResponse is one trip line of the daily report.
type SummaryResponse struct {
	TripID           string `json:"trip_id"`
	RouteID          string `json:"route_id"`
	RouteName        string `json:"route_name"`
	Date             string `json:"date"`
	Status           string `json:"status"`
	PlannedCount     int    `json:"planned_count"`
	BoardedCount     int    `json:"boarded_count"`
	DisembarkedCount int    `json:"disembarked_count"`
	AbsentCount      int    `json:"absent_count"`
}

// RosterResponse is one passenger line of a trip roster.
type RosterResponse struct {
	EnrollmentID string  `json:"enrollment_id"`
	PassengerID  string  `json:"passenger_id"`
	PointID      *string `json:"point_id"`
	PointName    *string `json:"point_name"`
	Status       string  `json:"status"`
	CheckInAt    string  `json:"check_in_at,omitempty"`
	CheckOutAt   string  `json:"check_out_at,omitempty"`
}

// HistoryResponse is one trip of a passenger's history.
type HistoryResponse struct {
	TripID     string `json:"trip_id"`
	RouteName  string `json:"route_name"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	CheckInAt  string `json:"check_in_at,omitempty"`
	CheckOutAt string `json:"check_out_at,omitempty"`
}

// DailySummary handles GET /v1/reports/daily
func (h *ReportHandler) DailySummary(c *gin.Context) {
	date, err := parseDateParam(c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.reportService.DailySummary(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]SummaryResponse, 0, len(summary))
	for _, s := range summary {
		response = append(response, SummaryResponse{
			TripID:           s.TripID,
			RouteID:          s.RouteID,
			RouteName:        s.RouteName,
			Date:             s.Date.Format(domain.DateLayout),
			Status:           string(s.Status),
			PlannedCount:     s.PlannedCount,
			BoardedCount:     s.BoardedCount,
			DisembarkedCount: s.DisembarkedCount,
			AbsentCount:      s.AbsentCount,
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// TripRoster handles GET /v1/reports/trips/:id/roster
func (h *ReportHandler) TripRoster(c *gin.Context) {
	roster, err := h.reportService.TripRoster(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RosterResponse, 0, len(roster))
	for _, r := range roster {
		response = append(response, RosterResponse{
			EnrollmentID: r.EnrollmentID,
			PassengerID:  r.PassengerID,
			PointID:      r.PointID,
			PointName:    r.PointName,
			Status:       string(r.Status),
			CheckInAt:    formatTimePtr(r.CheckInAt),
			CheckOutAt:   formatTimePtr(r.CheckOutAt),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// PassengerHistory handles GET /v1/reports/passengers/:id/history
func (h *ReportHandler) PassengerHistory(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		respondBadRequest(c, "invalid limit")
		return
	}

	history, err := h.reportService.PassengerHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]HistoryResponse, 0, len(history))
	for _, e := range history {
		response = append(response, HistoryResponse{
			TripID:     e.TripID,
			RouteName:  e.RouteName,
			Date:       e.Date.Format(domain.DateLayout),
			Status:     string(e.Status),
			CheckInAt:  formatTimePtr(e.CheckInAt),
			CheckOutAt: formatTimePtr(e.CheckOutAt),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
