package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/ev-charging-backend/internal/station"
	"github.com/sharath018/ev-charging-backend/internal/vehicle"
	"github.com/sharath018/ev-charging-backend/middleware"
)

type Handler struct {
	service    Service
	stationSvc station.Service
	exporter   Exporter
}

func NewHandler(service Service, stationSvc station.Service, exporter Exporter) *Handler {
	return &Handler{service: service, stationSvc: stationSvc, exporter: exporter}
}

type createBookingRequest struct {
	StationID     uint      `json:"station_id" binding:"required"`
	VehicleID     uint      `json:"vehicle_id" binding:"required"`
	ChargerType   string    `json:"charger_type" binding:"required"`
	StartTime     time.Time `json:"start_time" binding:"required"`
	EndTime       time.Time `json:"end_time" binding:"required"`
	CurrentCharge int       `json:"current_charge"`
	TargetCharge  int       `json:"target_charge"`
}

type editBookingRequest struct {
	ChargerType string    `json:"charger_type"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	if ve, ok := AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason, "field": ve.Field})
		return
	}

	switch {
	case errors.Is(err, ErrExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrCancellationCutoff):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrVerificationFailed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBookingExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, station.ErrStationNotFound), errors.Is(err, vehicle.ErrVehicleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotOwner), errors.Is(err, vehicle.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// GetAvailability handles GET /stations/:id/availability
// Optional start/end query params (RFC3339) check a future window; without
// them the response reflects right now.
func (h *Handler) GetAvailability(c *gin.Context) {
	stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}

	var window TimeWindow
	if startStr := c.Query("start"); startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return
		}
		end, err := time.Parse(time.RFC3339, c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return
		}
		window = TimeWindow{Start: start.UTC(), End: end.UTC()}
	}

	snapshots, err := h.service.QueryAvailability(c.Request.Context(), uint(stationID), window)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"station_id":   stationID,
		"availability": snapshots,
	})
}

// RankChargerTypes handles GET /stations/:id/compatible-chargers?vehicle_id=N
func (h *Handler) RankChargerTypes(c *gin.Context) {
	stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}
	vehicleID, err := strconv.ParseUint(c.Query("vehicle_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vehicle_id is required"})
		return
	}

	var window TimeWindow
	if startStr := c.Query("start"); startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return
		}
		end, err := time.Parse(time.RFC3339, c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return
		}
		window = TimeWindow{Start: start.UTC(), End: end.UTC()}
	}

	ranked, err := h.service.RankChargerTypes(c.Request.Context(), uint(stationID), uint(vehicleID), window)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"compatible_charger_types": ranked})
}

// CreateBooking handles POST /bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !station.IsValidChargerType(station.ChargerType(req.ChargerType)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown charger type", "field": "charger_type"})
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), c.GetUint("user_id"), CreateBookingInput{
		StationID:     req.StationID,
		VehicleID:     req.VehicleID,
		ChargerType:   station.ChargerType(req.ChargerType),
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		CurrentCharge: req.CurrentCharge,
		TargetCharge:  req.TargetCharge,
	}, middleware.GetIPFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// EditBooking handles PUT /bookings/:id
func (h *Handler) EditBooking(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req editBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ChargerType != "" && !station.IsValidChargerType(station.ChargerType(req.ChargerType)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown charger type", "field": "charger_type"})
		return
	}

	updated, err := h.service.EditBooking(c.Request.Context(), c.GetUint("user_id"), uint(id), EditBookingInput{
		ChargerType: station.ChargerType(req.ChargerType),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}, middleware.GetIPFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": updated})
}

// CancelBooking handles POST /bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req cancelBookingRequest
	_ = c.ShouldBindJSON(&req) // reason is optional

	cancelled, err := h.service.CancelBooking(c.Request.Context(), c.GetUint("user_id"), uint(id), req.Reason, middleware.GetIPFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": cancelled})
}

// VerifyPayment handles POST /bookings/verify-payment
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	confirmed, err := h.service.VerifyPayment(c.Request.Context(), req, middleware.GetIPFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "payment verified, booking confirmed",
		"booking": confirmed,
	})
}

// GetBooking handles GET /bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), c.GetUint("user_id"), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// ListMyBookings handles GET /bookings
func (h *Handler) ListMyBookings(c *gin.Context) {
	filter := filterFromQuery(c)

	bookings, total, err := h.service.ListMyBookings(c.Request.Context(), c.GetUint("user_id"), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"total":    total,
	})
}

// ListStationBookings handles GET /stations/:id/bookings (station staff only,
// route-guarded by RBAC).
func (h *Handler) ListStationBookings(c *gin.Context) {
	stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}

	filter := filterFromQuery(c)
	bookings, total, err := h.service.ListStationBookings(c.Request.Context(), uint(stationID), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"total":    total,
	})
}

// GetStationDashboard handles GET /stations/:id/bookings/summary
func (h *Handler) GetStationDashboard(c *gin.Context) {
	stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}

	counts, err := h.service.GetStationStatusCounts(c.Request.Context(), uint(stationID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

// ExportStationBookings handles GET /stations/:id/bookings/export?format=csv|excel|pdf
func (h *Handler) ExportStationBookings(c *gin.Context) {
	stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}

	st, err := h.stationSvc.GetStation(c.Request.Context(), uint(stationID))
	if err != nil {
		respondError(c, err)
		return
	}

	filter := filterFromQuery(c)
	filter.Limit = 0 // export everything matching the filter
	rows, _, err := h.service.ListStationBookings(c.Request.Context(), uint(stationID), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	format := c.DefaultQuery("format", FormatCSV)
	data, filename, contentType, err := h.exporter.Export(format, st.Name, rows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

// DownloadReceipt handles GET /bookings/:id/receipt
func (h *Handler) DownloadReceipt(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), c.GetUint("user_id"), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	st, err := h.stationSvc.GetStation(c.Request.Context(), b.StationID)
	if err != nil {
		respondError(c, err)
		return
	}

	data, filename, err := BuildReceipt(b, st.Name, c.GetString("user_name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", data)
}

func filterFromQuery(c *gin.Context) Filter {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return Filter{
		Status:    c.Query("status"),
		FromDate:  c.Query("from_date"),
		ToDate:    c.Query("to_date"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Limit:     limit,
		Offset:    offset,
	}
}
