package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edwardtay/webwatcher-sub002/internal/auth"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents refresh token request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// login handles user authentication and returns JWT tokens.
// Username must be "webwatcher" and password must be the API key.
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if s.jwtManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "JWT authentication is not available"})
		return
	}

	if req.Username != "webwatcher" || req.Password != s.config.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	sessionID, err := auth.GenerateSessionID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate session"})
		return
	}

	// Session lives in memory only, a restart invalidates all tokens
	s.sessionStore.CreateSession(sessionID, req.Username)

	tokenPair, err := s.jwtManager.GenerateTokenPair(req.Username, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, tokenPair)
}

// refreshToken handles token refresh
func (s *Server) refreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if s.jwtManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "JWT authentication is not available"})
		return
	}

	tokenPair, err := s.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}

	c.JSON(http.StatusOK, tokenPair)
}

// logout handles user logout (client should discard tokens)
func (s *Server) logout(c *gin.Context) {
	sessionID, exists := c.Get("session_id")
	if exists {
		s.sessionStore.InvalidateSession(sessionID.(string))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
