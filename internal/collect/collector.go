package collect

import (
	"context"
	"net/http"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

// Signal source names. The aggregator keys its weight table on these.
const (
	SourceStructure  = "url_structure"
	SourceRedirects  = "redirects"
	SourcePage       = "page_content"
	SourceTLS        = "tls"
	SourceReputation = "reputation"
	SourceWhois      = "whois"
	SourceIPRisk     = "ip_risk"
	SourceBreach     = "breach"
)

// Status discriminates the two SignalResult variants
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Result is what every collector returns: either an available signal with a
// sub-score and red flags, or an unavailable marker carrying the reason. A
// collector never returns an error past its boundary - failures degrade to
// StatusUnavailable so one broken source cannot sink a scan.
type Result struct {
	Source     string        `json:"source"`
	Status     Status        `json:"status"`
	Score      int           `json:"score"`                // 0-100 sub-score, source-specific rule
	Confidence float64       `json:"confidence,omitempty"` // 0-1
	RedFlags   []string      `json:"red_flags,omitempty"`
	Reason     string        `json:"reason,omitempty"` // Set when unavailable
	Data       interface{}   `json:"data,omitempty"`   // Collector-specific payload
	Duration   time.Duration `json:"duration"`
}

// Available builds a successful signal result
func Available(source string, score int, confidence float64, data interface{}, flags ...string) Result {
	return Result{
		Source:     source,
		Status:     StatusAvailable,
		Score:      score,
		Confidence: confidence,
		Data:       data,
		RedFlags:   flags,
	}
}

// Unavailable builds a soft-failure result carrying the reason
func Unavailable(source, reason string) Result {
	return Result{Source: source, Status: StatusUnavailable, Reason: reason}
}

// IsAvailable reports whether the collector produced a usable signal
func (r Result) IsAvailable() bool {
	return r.Status == StatusAvailable
}

// Collector produces one Result for the extracted URL features within
// a bounded time budget. Implementations hold no shared mutable state and
// are safe to invoke concurrently.
type Collector interface {
	Source() string
	Collect(ctx context.Context, f *features.URLFeatures) Result
}

// newHTTPClient returns an HTTP client with an explicit overall timeout.
// Redirect-following is left at the default; collectors that need chain
// control override CheckRedirect themselves.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
