package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/ev-charging-backend/internal/auth"
)

// Role constants to avoid string typos
const (
	RoleSuperAdmin     = "superadmin"
	RoleFranchiseOwner = "franchiseowner"
	RoleStationManager = "stationmanager"
	RoleCustomer       = "customer"
)

// RBACMiddleware checks if the user has one of the allowed roles.
func RBACMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get("user")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		user, ok := userVal.(auth.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user object"})
			return
		}

		for _, role := range allowedRoles {
			if user.Role.RoleName == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
	}
}

// RequireStationAccess guards station-scoped dashboard routes (paths with a
// :id station parameter). Superadmins see every station, franchise owners
// their own stations, station managers only their assigned one.
func RequireStationAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get("user")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		user, ok := userVal.(auth.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user object"})
			return
		}

		stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
			return
		}

		switch user.Role.RoleName {
		case RoleSuperAdmin:
			c.Next()

		case RoleFranchiseOwner:
			// Ownership is checked against the station record downstream;
			// the handler filters by owner ID from context.
			c.Set("owner_id", user.ID)
			c.Next()

		case RoleStationManager:
			if user.StationID == nil || *user.StationID != uint(stationID) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not assigned to this station"})
				return
			}
			c.Next()

		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
		}
	}
}
