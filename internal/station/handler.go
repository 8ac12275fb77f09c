package station

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetStations handles GET /stations?city=&limit=&page=
func (h *Handler) GetStations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	stations, total, err := h.service.ListStations(c.Request.Context(), c.Query("city"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stations": stations,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetStationByID handles GET /stations/:id
func (h *Handler) GetStationByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}

	st, err := h.service.GetStation(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, ErrStationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "station not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch station"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"station":        st,
		"offered_types":  st.OfferedTypes(),
		"total_chargers": st.TotalChargers(),
	})
}

// GetMyStations handles GET /stations/mine for franchise owners
func (h *Handler) GetMyStations(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	stations, err := h.service.ListOwnerStations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stations": stations})
}
