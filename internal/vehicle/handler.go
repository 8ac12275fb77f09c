package vehicle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type vehicleRequest struct {
	Make           string         `json:"make" binding:"required"`
	Model          string         `json:"model" binding:"required"`
	RegistrationNo string         `json:"registration_no" binding:"required"`
	BatteryKWh     float64        `json:"battery_kwh"`
	ChargingAC     *ConnectorRail `json:"chargingAC"`
	ChargingDC     *ConnectorRail `json:"chargingDC"`
}

func railJSON(rail *ConnectorRail) datatypes.JSON {
	if rail == nil {
		return nil
	}
	data, err := json.Marshal(rail)
	if err != nil {
		return nil
	}
	return data
}

// AddVehicle handles POST /vehicles
func (h *Handler) AddVehicle(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v := &Vehicle{
		UserID:         c.GetUint("user_id"),
		Make:           req.Make,
		Model:          req.Model,
		RegistrationNo: req.RegistrationNo,
		BatteryKWh:     req.BatteryKWh,
		ChargingAC:     railJSON(req.ChargingAC),
		ChargingDC:     railJSON(req.ChargingDC),
		IsActive:       true,
	}

	if err := h.service.AddVehicle(c.Request.Context(), v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add vehicle"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"vehicle": v})
}

// UpdateVehicle handles PUT /vehicles/:id
func (h *Handler) UpdateVehicle(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v := &Vehicle{
		ID:             uint(id),
		Make:           req.Make,
		Model:          req.Model,
		RegistrationNo: req.RegistrationNo,
		BatteryKWh:     req.BatteryKWh,
		ChargingAC:     railJSON(req.ChargingAC),
		ChargingDC:     railJSON(req.ChargingDC),
		IsActive:       true,
	}

	if err := h.service.UpdateVehicle(c.Request.Context(), c.GetUint("user_id"), v); err != nil {
		switch {
		case errors.Is(err, ErrVehicleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "vehicle does not belong to you"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update vehicle"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"vehicle": v})
}

// DeleteVehicle handles DELETE /vehicles/:id
func (h *Handler) DeleteVehicle(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	if err := h.service.RemoveVehicle(c.Request.Context(), c.GetUint("user_id"), uint(id)); err != nil {
		switch {
		case errors.Is(err, ErrVehicleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "vehicle does not belong to you"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete vehicle"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "vehicle removed"})
}

// GetMyVehicles handles GET /vehicles
func (h *Handler) GetMyVehicles(c *gin.Context) {
	vehicles, err := h.service.ListMyVehicles(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch vehicles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}
