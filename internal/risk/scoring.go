package risk

import "github.com/edwardtay/webwatcher-sub002/internal/collect"

// Verdict is the coarse risk classification derived from the overall score
type Verdict string

const (
	VerdictNoStrongSignals Verdict = "no_strong_signals"
	VerdictSuspicious      Verdict = "suspicious"
	VerdictLikelyPhishing  Verdict = "likely_phishing"
)

// ScoreBands holds the verdict thresholds for the multi-layer
// comprehensive-scan path. Exact boundary values tie-break toward the more
// severe label.
type ScoreBands struct {
	SuspiciousAt int `yaml:"suspicious_at" json:"suspicious_at"`
	PhishingAt   int `yaml:"phishing_at" json:"phishing_at"`
}

// FlagBands holds the verdict thresholds for the URL-only structural path,
// expressed in matched-flag counts. Kept deliberately separate from
// ScoreBands: the two paths use different policies.
type FlagBands struct {
	SuspiciousFlags int `yaml:"suspicious_flags" json:"suspicious_flags"`
	PhishingFlags   int `yaml:"phishing_flags" json:"phishing_flags"`
}

// ScoringConfig is the fixed weighting and banding table driving
// aggregation. Weights are keyed by signal-source name; a source missing
// from the table contributes nothing.
type ScoringConfig struct {
	Weights map[string]int `yaml:"weights" json:"weights"`
	Bands   ScoreBands     `yaml:"bands" json:"bands"`
	URLOnly FlagBands      `yaml:"url_only" json:"url_only"`
}

// DefaultScoringConfig returns the standard weight table. Weights sum to
// 100 so fully-covered scans need no renormalization.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		Weights: map[string]int{
			collect.SourceStructure:  25,
			collect.SourceReputation: 20,
			collect.SourceWhois:      15,
			collect.SourceTLS:        10,
			collect.SourceRedirects:  10,
			collect.SourcePage:       10,
			collect.SourceIPRisk:     5,
			collect.SourceBreach:     5,
		},
		Bands:   ScoreBands{SuspiciousAt: 30, PhishingAt: 60},
		URLOnly: FlagBands{SuspiciousFlags: 1, PhishingFlags: 2},
	}
}

// VerdictForScore maps an overall score to a verdict under the
// comprehensive-scan bands
func (c *ScoringConfig) VerdictForScore(score int) Verdict {
	switch {
	case score >= c.Bands.PhishingAt:
		return VerdictLikelyPhishing
	case score >= c.Bands.SuspiciousAt:
		return VerdictSuspicious
	default:
		return VerdictNoStrongSignals
	}
}

// VerdictForFlagCount maps a structural red-flag count to a verdict under
// the URL-only bands
func (c *ScoringConfig) VerdictForFlagCount(n int) Verdict {
	switch {
	case n >= c.URLOnly.PhishingFlags:
		return VerdictLikelyPhishing
	case n >= c.URLOnly.SuspiciousFlags:
		return VerdictSuspicious
	default:
		return VerdictNoStrongSignals
	}
}
