package risk

import (
	"strings"

	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

// Category buckets a scanned URL by threat type
type Category string

const (
	CategoryPhishing Category = "phishing"
	CategoryMalware  Category = "malware"
	CategoryBenign   Category = "benign"
	CategoryUnknown  Category = "unknown"
)

// Band coarsens the overall score for policy lookup
type Band string

const (
	BandLow    Band = "low"    // score < 30
	BandMedium Band = "medium" // 30 <= score < 60
	BandHigh   Band = "high"   // score >= 60
)

// PolicyTable maps (category, score band) to a policy-compliance outcome.
// Missing entries default to non-compliant.
type PolicyTable map[Category]map[Band]bool

// DefaultPolicyTable permits benign traffic at any band, unknown traffic
// only at low risk, and known-bad categories never.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		CategoryBenign:   {BandLow: true, BandMedium: true, BandHigh: false},
		CategoryUnknown:  {BandLow: true, BandMedium: false, BandHigh: false},
		CategoryPhishing: {BandLow: false, BandMedium: false, BandHigh: false},
		CategoryMalware:  {BandLow: false, BandMedium: false, BandHigh: false},
	}
}

// BandForScore maps a score to its policy band
func BandForScore(score int) Band {
	switch {
	case score >= 60:
		return BandHigh
	case score >= 30:
		return BandMedium
	default:
		return BandLow
	}
}

// Classify buckets the URL into a category from its features and
// assessment. Pure function: same inputs always produce the same outputs.
func Classify(f *features.URLFeatures, a *Assessment) Category {
	malwareListed := false
	phishingSignals := false
	for _, flag := range a.RedFlags {
		lowered := strings.ToLower(flag)
		if strings.Contains(lowered, "malware") {
			malwareListed = true
		}
		if strings.Contains(lowered, "password form") ||
			strings.Contains(lowered, "credential form") ||
			strings.Contains(lowered, "phishing") {
			phishingSignals = true
		}
	}

	switch {
	case malwareListed:
		return CategoryMalware
	case a.Verdict == VerdictLikelyPhishing:
		return CategoryPhishing
	case phishingSignals && f.BrandImpersonation != "":
		return CategoryPhishing
	case a.Verdict == VerdictNoStrongSignals && len(a.RedFlags) == 0:
		return CategoryBenign
	default:
		return CategoryUnknown
	}
}

// Evaluate resolves policy compliance for a category and score
func (t PolicyTable) Evaluate(cat Category, score int) bool {
	bands, ok := t[cat]
	if !ok {
		return false
	}
	return bands[BandForScore(score)]
}
