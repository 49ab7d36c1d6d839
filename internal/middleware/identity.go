package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/domain"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"

	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// Identity reads the caller identity forwarded by the gateway. Requests
// without a user ID or with an unknown role are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		role := domain.Role(c.GetHeader(userRoleHeader))

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + userIDHeader + " header"})
			return
		}

		switch role {
		case domain.RoleAdmin, domain.RoleDriver, domain.RolePassenger:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or unknown " + userRoleHeader + " header"})
			return
		}

		c.Set(userIDKey, userID)
		c.Set(userRoleKey, role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := UserRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not allowed"})
	}
}

// UserID returns the caller's user ID set by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// UserRole returns the caller's role set by Identity.
func UserRole(c *gin.Context) domain.Role {
	role, _ := c.Get(userRoleKey)
	r, _ := role.(domain.Role)
	return r
}
