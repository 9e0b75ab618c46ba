package incident

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edwardtay/webwatcher-sub002/internal/risk"
)

// Report is the persisted record of one completed scan. Never mutated
// after generation.
type Report struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"` // Always UTC
	URL             string            `json:"url"`
	Assessment      *risk.Assessment  `json:"risk_assessment"`
	Category        risk.Category     `json:"category"`
	PolicyCompliant bool              `json:"policy_compliant"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	SIEMReady       bool              `json:"siem_ready"`
}

// Judgment is a human correction of a scan outcome
type Judgment string

const (
	JudgmentCorrect       Judgment = "correct"
	JudgmentFalsePositive Judgment = "false_positive"
	JudgmentFalseNegative Judgment = "false_negative"
)

// Valid reports whether the judgment is one of the known values
func (j Judgment) Valid() bool {
	switch j {
	case JudgmentCorrect, JudgmentFalsePositive, JudgmentFalseNegative:
		return true
	}
	return false
}

// FeedbackRecord links a human judgment to a stored incident. Append-only.
type FeedbackRecord struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Judgment   Judgment  `json:"judgment"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeedbackStats aggregates all stored feedback. HasData distinguishes an
// empty feedback set from a genuinely zero accuracy.
type FeedbackStats struct {
	Total          int     `json:"total"`
	Correct        int     `json:"correct"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Accuracy       float64 `json:"accuracy"`
	HasData        bool    `json:"has_data"`
}

// Generate builds an incident report for a completed scan. IDs are
// time-ordered (nanosecond prefix) with a random suffix for collision
// resistance; timestamps are UTC. The report is SIEM-ready only when at
// least one threat-intelligence source contributed to the assessment.
func Generate(url string, a *risk.Assessment, cat risk.Category, compliant bool, meta map[string]string) *Report {
	now := time.Now().UTC()
	return &Report{
		ID:              fmt.Sprintf("inc-%d-%s", now.UnixNano(), uuid.NewString()[:8]),
		Timestamp:       now,
		URL:             url,
		Assessment:      a,
		Category:        cat,
		PolicyCompliant: compliant,
		Metadata:        meta,
		SIEMReady:       a.LayerBCovered(),
	}
}
