package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/edwardtay/webwatcher-sub002/internal/auth"
	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/scan"
	"github.com/edwardtay/webwatcher-sub002/internal/version"
)

// Server exposes the scan pipeline over HTTP
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	config       *Config
	pipeline     *scan.Pipeline
	wsHub        *WebSocketHub
	jwtManager   *auth.JWTManager
	sessionStore *auth.SessionStore
}

// Config holds server configuration
type Config struct {
	Port           int
	Host           string
	APIKey         string // Required for scan operations
	AllowedOrigins []string
	Debug          bool
	ScanConfig     *config.Config
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:           8788,
		Host:           "127.0.0.1", // Localhost only by default
		AllowedOrigins: []string{"http://localhost:8788", "http://127.0.0.1:8788"},
		Debug:          false,
		ScanConfig:     config.DefaultConfig(),
	}
}

// New creates a new server instance around an assembled pipeline
func New(cfg *Config, pipeline *scan.Pipeline) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	home, _ := os.UserHomeDir()
	keyPath := filepath.Join(home, ".webwatcher")
	jwtManager, err := auth.NewJWTManager(keyPath)
	if err != nil {
		fmt.Printf("Warning: Failed to initialize JWT manager: %v\n", err)
		fmt.Println("JWT authentication will be disabled. Using API key only.")
	}

	wsHub := NewWebSocketHub()

	s := &Server{
		router:       router,
		config:       cfg,
		pipeline:     pipeline,
		wsHub:        wsHub,
		jwtManager:   jwtManager,
		sessionStore: auth.NewSessionStore(),
	}

	// Live scan events flow from the pipeline to connected clients
	pipeline.Notify = func(e scan.Event) {
		wsHub.BroadcastToURL(e.URL, WebSocketMessage{Type: e.Type, Data: e})
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures security and logging middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(s.securityHeaders())

	corsConfig := cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	s.router.Use(cors.New(corsConfig))

	s.router.Use(s.rateLimiter())
}

// securityHeaders adds security headers to all responses
func (s *Server) securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// requestLogger logs requests in a structured format
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/health" || path == "/ws" || path == "/favicon.ico" {
			return
		}

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		statusColor := "\033[32m"
		if statusCode >= 400 {
			statusColor = "\033[31m"
		} else if statusCode >= 300 {
			statusColor = "\033[33m"
		}

		if strings.HasPrefix(path, "/security/") || strings.HasPrefix(path, "/api/") {
			fmt.Printf("%s[%d]\033[0m %-6s %-45s %15s %10s\n",
				statusColor, statusCode, c.Request.Method, path, c.ClientIP(), latency.Round(time.Millisecond))
		}
	}
}

// rateLimiter implements simple in-memory rate limiting
func (s *Server) rateLimiter() gin.HandlerFunc {
	type client struct {
		tokens    int
		lastReset time.Time
	}
	var mu sync.Mutex
	clients := make(map[string]*client)
	maxTokens := 100
	window := time.Minute
	refillRate := 10

	return func(c *gin.Context) {
		ip := c.ClientIP()

		// Requests for the same IP arrive concurrently, the limiter
		// state is shared across all of them
		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			cl = &client{tokens: maxTokens, lastReset: time.Now()}
			clients[ip] = cl
		}

		elapsed := time.Since(cl.lastReset)
		if elapsed >= window {
			cl.tokens = maxTokens
			cl.lastReset = time.Now()
		} else {
			refill := int(elapsed.Seconds()) * refillRate
			cl.tokens = min(cl.tokens+refill, maxTokens)
		}

		if cl.tokens <= 0 {
			mu.Unlock()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		cl.tokens--
		mu.Unlock()
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/version", s.getVersion)

	// Authentication endpoints
	authGroup := s.router.Group("/auth")
	{
		authGroup.POST("/login", s.login)
		authGroup.POST("/refresh", s.refreshToken)
		authGroup.POST("/logout", auth.JWTMiddleware(s.jwtManager, s.sessionStore), s.logout)
	}

	// Security scan surface (JWT or API key)
	sec := s.router.Group("/security")
	sec.Use(s.flexibleAuth())
	{
		// Layer A: URL and page structure
		sec.POST("/analyze-redirects", s.analyzeRedirects)
		sec.POST("/scan-page-content", s.scanPageContent)
		sec.POST("/inspect-forms", s.inspectForms)
		sec.POST("/audit-tls", s.auditTLS)

		// Layer B: threat intelligence
		sec.POST("/lookup-reputation", s.lookupReputation)
		sec.POST("/check-whois", s.checkWhois)
		sec.POST("/ip-risk-profile", s.ipRiskProfile)
		sec.POST("/breach-check", s.breachCheck)

		// Layer C: classification and scoring
		sec.POST("/classify-category", s.classifyCategory)
		sec.POST("/check-policy", s.checkPolicy)
		sec.POST("/calculate-risk-score", s.calculateRiskScore)

		// Layer D: incidents and feedback
		sec.POST("/generate-incident-report", s.generateIncidentReport)
		sec.POST("/submit-feedback", s.submitFeedback)
		sec.GET("/feedback-stats", s.feedbackStats)
		sec.GET("/recent-incidents", s.recentIncidents)

		// Full pipeline
		sec.POST("/comprehensive-scan", s.comprehensiveScan)
	}

	// WebSocket for live scan events
	s.router.GET("/ws", s.handleWebSocket)
}

// flexibleAuth accepts either a JWT token or the API key
func (s *Server) flexibleAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.jwtManager != nil {
			header := c.GetHeader("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				claims, err := s.jwtManager.ValidateToken(strings.TrimPrefix(header, "Bearer "))
				if err == nil && s.sessionStore.ValidSession(claims.SessionID) {
					c.Set("username", claims.Username)
					c.Set("session_id", claims.SessionID)
					c.Next()
					return
				}
			}
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		if s.config.APIKey == "" || apiKey != s.config.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or missing authentication. Provide a JWT in the Authorization header or an API key in X-API-Key.",
			})
			return
		}

		c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Comprehensive scans can take a while
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	fmt.Printf("\n\033[36m[*] WebWatcher API\033[0m\n")
	fmt.Printf("    Version: %s\n", version.Version)
	fmt.Printf("    Address: http://%s\n", addr)
	if s.config.APIKey != "" {
		fmt.Printf("    API Key: %s (required for scan operations)\n", maskAPIKey(s.config.APIKey))
	}
	fmt.Printf("\n")

	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)

	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		fmt.Println("\n[*] Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("[*] Server stopped")
	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// GenerateAPIKey generates a secure random API key
func GenerateAPIKey() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
