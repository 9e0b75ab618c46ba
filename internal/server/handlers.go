package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edwardtay/webwatcher-sub002/internal/collect"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
	"github.com/edwardtay/webwatcher-sub002/internal/incident"
	"github.com/edwardtay/webwatcher-sub002/internal/risk"
	"github.com/edwardtay/webwatcher-sub002/internal/scan"
	"github.com/edwardtay/webwatcher-sub002/internal/version"
)

// URLRequest is the body shared by the URL-based signal endpoints
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// EmailRequest is the body for the breach-check endpoint
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// ScanRequest is the body for comprehensive scans and incident generation
type ScanRequest struct {
	URL      string            `json:"url" binding:"required"`
	Email    string            `json:"email,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FeedbackRequest links a human judgment to an incident
type FeedbackRequest struct {
	IncidentID string `json:"incident_id" binding:"required"`
	Judgment   string `json:"judgment" binding:"required"`
}

// SecurityScanData is the comprehensive-scan response shape
type SecurityScanData struct {
	URL       string                 `json:"url"`
	RiskScore *risk.Assessment       `json:"riskScore"`
	Details   map[string]interface{} `json:"details"`
	Category  risk.Category          `json:"category"`
	Timestamp time.Time              `json:"timestamp"`
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// getVersion returns version information
func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   version.Version,
		"commit":    version.Commit,
		"buildDate": version.BuildDate,
	})
}

// runCollectorEndpoint handles the shared bind/extract/respond flow of the
// per-signal endpoints
func (s *Server) runCollectorEndpoint(c *gin.Context, source string) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := s.pipeline.RunCollector(c.Request.Context(), source, req.URL)
	if err != nil {
		if errors.Is(err, features.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) analyzeRedirects(c *gin.Context) {
	s.runCollectorEndpoint(c, collect.SourceRedirects)
}

func (s *Server) scanPageContent(c *gin.Context) {
	s.runCollectorEndpoint(c, collect.SourcePage)
}

// inspectForms runs the page scanner and responds with the form findings
// only - the page is fetched and parsed once
func (s *Server) inspectForms(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := s.pipeline.RunCollector(c.Request.Context(), collect.SourcePage, req.URL)
	if err != nil {
		if errors.Is(err, features.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !result.IsAvailable() {
		c.JSON(http.StatusOK, result)
		return
	}
	info, ok := result.Data.(*collect.PageInfo)
	if !ok {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":    "form_inspection",
		"status":    result.Status,
		"forms":     info.Forms,
		"red_flags": result.RedFlags,
	})
}

func (s *Server) auditTLS(c *gin.Context) {
	s.runCollectorEndpoint(c, collect.SourceTLS)
}

func (s *Server) lookupReputation(c *gin.Context) {
	s.runCollectorEndpoint(c, collect.SourceReputation)
}

func (s *Server) checkWhois(c *gin.Context) {
	s.runCollectorEndpoint(c, collect.SourceWhois)
}

func (s *Server) ipRiskProfile(c *gin.Context) {
	s.runCollectorEndpoint(c, collect.SourceIPRisk)
}

func (s *Server) breachCheck(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := s.pipeline.Breach().CollectEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, collect.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) classifyCategory(c *gin.Context) {
	out, ok := s.runScan(c, scan.Options{})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":      out.URL,
		"category": out.Category,
		"verdict":  out.Assessment.Verdict,
	})
}

func (s *Server) checkPolicy(c *gin.Context) {
	out, ok := s.runScan(c, scan.Options{})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":              out.URL,
		"category":         out.Category,
		"overall_score":    out.Assessment.OverallScore,
		"policy_compliant": out.PolicyCompliant,
	})
}

func (s *Server) calculateRiskScore(c *gin.Context) {
	out, ok := s.runScan(c, scan.Options{})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, out.Assessment)
}

func (s *Server) generateIncidentReport(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	out, err := s.pipeline.Scan(c.Request.Context(), req.URL, scan.Options{
		Email:    req.Email,
		Persist:  true,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeScanError(c, err)
		return
	}

	c.JSON(http.StatusOK, out.Report)
}

func (s *Server) submitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	rec, err := s.pipeline.Store().RecordFeedback(req.IncidentID, incident.Judgment(req.Judgment))
	if err != nil {
		switch {
		case errors.Is(err, incident.ErrUnknownIncident):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, incident.ErrInvalidJudgment):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) feedbackStats(c *gin.Context) {
	stats, err := s.pipeline.Store().ComputeStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"total":           stats.Total,
		"correct":         stats.Correct,
		"false_positives": stats.FalsePositives,
		"false_negatives": stats.FalseNegatives,
	}
	if stats.HasData {
		resp["accuracy"] = stats.Accuracy
	} else {
		resp["accuracy"] = "no data"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) recentIncidents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	reports, err := s.pipeline.Store().ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": reports, "count": len(reports)})
}

func (s *Server) comprehensiveScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	out, err := s.pipeline.Scan(c.Request.Context(), req.URL, scan.Options{
		Email:    req.Email,
		Persist:  true,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeScanError(c, err)
		return
	}

	// Surface the richer Layer-B payloads alongside the score
	details := make(map[string]interface{})
	for _, r := range out.Results {
		if !r.IsAvailable() || r.Data == nil {
			continue
		}
		switch r.Source {
		case collect.SourceReputation:
			details["reputation"] = r.Data
		case collect.SourceWhois:
			details["whoisData"] = r.Data
		case collect.SourceTLS:
			details["tlsAudit"] = r.Data
		}
	}

	c.JSON(http.StatusOK, SecurityScanData{
		URL:       out.URL,
		RiskScore: out.Assessment,
		Details:   details,
		Category:  out.Category,
		Timestamp: out.Timestamp,
	})
}

// runScan binds a URL request and runs a non-persisting pipeline scan
func (s *Server) runScan(c *gin.Context, opts scan.Options) (*scan.Outcome, bool) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return nil, false
	}
	opts.Email = req.Email

	out, err := s.pipeline.Scan(c.Request.Context(), req.URL, opts)
	if err != nil {
		s.writeScanError(c, err)
		return nil, false
	}
	return out, true
}

func (s *Server) writeScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, features.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, collect.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, incident.ErrDuplicateIncident):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
