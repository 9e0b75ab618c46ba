package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// JWTMiddleware validates the bearer token and the backing session before
// letting the request through
func JWTMiddleware(manager *JWTManager, sessions *SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "JWT authentication is not available",
			})
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing bearer token",
			})
			return
		}

		claims, err := manager.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}
		if !sessions.ValidSession(claims.SessionID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Session no longer valid",
			})
			return
		}

		c.Set("username", claims.Username)
		c.Set("session_id", claims.SessionID)
		c.Next()
	}
}
