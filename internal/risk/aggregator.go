package risk

import (
	"math"

	"github.com/edwardtay/webwatcher-sub002/internal/collect"
)

// InsufficientDataKey marks the breakdown entry recorded when every
// collector came back unavailable
const InsufficientDataKey = "insufficient_data"

// Layer-B sources: external threat-intelligence lookups. Incident reports
// are SIEM-ready only when at least one of these answered.
var layerBSources = []string{
	collect.SourceReputation,
	collect.SourceWhois,
	collect.SourceIPRisk,
	collect.SourceBreach,
}

// SourceScore is one signal source's contribution in the breakdown.
// Unavailable sources appear with zero weight and the failure reason, so
// reduced confidence is always visible to the caller.
type SourceScore struct {
	Status   collect.Status `json:"status"`
	Weight   int            `json:"weight"`
	SubScore int            `json:"sub_score"`
	Reason   string         `json:"reason,omitempty"`
}

// Assessment is the aggregate risk output of one scan. Immutable once built.
type Assessment struct {
	OverallScore int                    `json:"overall_score"`
	Verdict      Verdict                `json:"verdict"`
	Breakdown    map[string]SourceScore `json:"breakdown"`
	RedFlags     []string               `json:"red_flags"`
}

// LayerBCovered reports whether at least one threat-intelligence source
// contributed to the assessment
func (a *Assessment) LayerBCovered() bool {
	for _, src := range layerBSources {
		if entry, ok := a.Breakdown[src]; ok && entry.Status == collect.StatusAvailable {
			return true
		}
	}
	return false
}

// Aggregate combines collector results into one scored assessment.
//
// Each available source contributes weight * subscore; the denominator is
// the sum of weights of sources that actually answered, so an outage
// renormalizes the score instead of being silently counted as clean.
// Red flags concatenate in collector-invocation order with first-occurrence
// dedup.
func Aggregate(results []collect.Result, cfg *ScoringConfig) *Assessment {
	a := &Assessment{
		Breakdown: make(map[string]SourceScore),
		RedFlags:  []string{},
	}

	weightedSum := 0
	weightTotal := 0
	seen := make(map[string]bool)

	for _, r := range results {
		weight := cfg.Weights[r.Source]

		if !r.IsAvailable() {
			a.Breakdown[r.Source] = SourceScore{
				Status: collect.StatusUnavailable,
				Reason: r.Reason,
			}
			continue
		}

		a.Breakdown[r.Source] = SourceScore{
			Status:   collect.StatusAvailable,
			Weight:   weight,
			SubScore: r.Score,
		}
		weightedSum += weight * r.Score
		weightTotal += weight

		for _, flag := range r.RedFlags {
			if !seen[flag] {
				seen[flag] = true
				a.RedFlags = append(a.RedFlags, flag)
			}
		}
	}

	if weightTotal == 0 {
		// Every source failed: degrade honestly instead of fabricating a
		// score from nothing
		a.Verdict = VerdictNoStrongSignals
		a.Breakdown[InsufficientDataKey] = SourceScore{
			Status: collect.StatusUnavailable,
			Reason: "all signal sources unavailable",
		}
		return a
	}

	a.OverallScore = int(math.Round(float64(weightedSum) / float64(weightTotal)))
	a.Verdict = cfg.VerdictForScore(a.OverallScore)
	return a
}
