package incident

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardtay/webwatcher-sub002/internal/collect"
	"github.com/edwardtay/webwatcher-sub002/internal/risk"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAssessment() *risk.Assessment {
	return &risk.Assessment{
		OverallScore: 72,
		Verdict:      risk.VerdictLikelyPhishing,
		Breakdown: map[string]risk.SourceScore{
			collect.SourceStructure:  {Status: collect.StatusAvailable, Weight: 25, SubScore: 90},
			collect.SourceReputation: {Status: collect.StatusAvailable, Weight: 20, SubScore: 95},
			collect.SourceWhois:      {Status: collect.StatusUnavailable, Reason: "timeout"},
		},
		RedFlags: []string{"suspicious TLD .tk", "URL is listed as malicious"},
	}
}

func TestGenerate(t *testing.T) {
	a := sampleAssessment()
	r := Generate("https://paypal-login.tk/verify", a, risk.CategoryPhishing, false,
		map[string]string{"analyst": "t1"})

	assert.Regexp(t, `^inc-\d+-[0-9a-f]{8}$`, r.ID)
	assert.Equal(t, time.UTC, r.Timestamp.Location())
	assert.True(t, r.SIEMReady, "reputation answered, report should be SIEM-ready")
	assert.False(t, r.PolicyCompliant)

	// A second report gets a distinct id
	r2 := Generate("https://paypal-login.tk/verify", a, risk.CategoryPhishing, false, nil)
	assert.NotEqual(t, r.ID, r2.ID)
}

func TestGenerate_NotSIEMReadyWithoutIntel(t *testing.T) {
	a := &risk.Assessment{
		Verdict: risk.VerdictSuspicious,
		Breakdown: map[string]risk.SourceScore{
			collect.SourceStructure: {Status: collect.StatusAvailable, Weight: 25, SubScore: 70},
			collect.SourceWhois:     {Status: collect.StatusUnavailable, Reason: "down"},
		},
	}
	r := Generate("https://example.xyz", a, risk.CategoryUnknown, false, nil)
	assert.False(t, r.SIEMReady)
}

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	s := testStore(t)

	r := Generate("https://paypal-login.tk/verify", sampleAssessment(), risk.CategoryPhishing, false,
		map[string]string{"source": "api"})
	require.NoError(t, s.SaveReport(r))

	got, err := s.GetReport(r.ID)
	require.NoError(t, err)

	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.URL, got.URL)
	assert.Equal(t, r.Category, got.Category)
	assert.Equal(t, r.PolicyCompliant, got.PolicyCompliant)
	assert.Equal(t, r.SIEMReady, got.SIEMReady)
	assert.Equal(t, r.Metadata, got.Metadata)
	assert.True(t, r.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, r.Assessment.OverallScore, got.Assessment.OverallScore)
	assert.Equal(t, r.Assessment.Breakdown, got.Assessment.Breakdown)
	assert.Equal(t, r.Assessment.RedFlags, got.Assessment.RedFlags)
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	s := testStore(t)

	r := Generate("https://example.com", sampleAssessment(), risk.CategoryBenign, true, nil)
	require.NoError(t, s.SaveReport(r))

	err := s.SaveReport(r)
	assert.ErrorIs(t, err, ErrDuplicateIncident)

	// The stored report is untouched
	got, err := s.GetReport(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.URL, got.URL)
}

func TestStore_GetUnknown(t *testing.T) {
	s := testStore(t)
	_, err := s.GetReport("inc-nope")
	assert.ErrorIs(t, err, ErrUnknownIncident)
}

func TestStore_ListRecentOrder(t *testing.T) {
	s := testStore(t)

	var ids []string
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		r := Generate("https://example.com", sampleAssessment(), risk.CategoryUnknown, false, nil)
		r.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveReport(r))
		ids = append(ids, r.ID)
	}

	reports, err := s.ListRecent(3)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	// Newest first
	assert.Equal(t, ids[4], reports[0].ID)
	assert.Equal(t, ids[3], reports[1].ID)
	assert.Equal(t, ids[2], reports[2].ID)

	// Non-positive limit falls back to the default of 20
	all, err := s.ListRecent(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStore_Feedback(t *testing.T) {
	s := testStore(t)

	r := Generate("https://example.com", sampleAssessment(), risk.CategoryPhishing, false, nil)
	require.NoError(t, s.SaveReport(r))

	rec, err := s.RecordFeedback(r.ID, JudgmentCorrect)
	require.NoError(t, err)
	assert.Equal(t, r.ID, rec.IncidentID)
	assert.Equal(t, JudgmentCorrect, rec.Judgment)

	_, err = s.RecordFeedback(r.ID, JudgmentFalsePositive)
	require.NoError(t, err)

	stats, err := s.ComputeStats()
	require.NoError(t, err)
	assert.True(t, stats.HasData)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Correct)
	assert.Equal(t, 1, stats.FalsePositives)
	assert.InDelta(t, 0.5, stats.Accuracy, 1e-9)
}

func TestStore_FeedbackUnknownIncident(t *testing.T) {
	s := testStore(t)
	_, err := s.RecordFeedback("inc-missing", JudgmentCorrect)
	assert.ErrorIs(t, err, ErrUnknownIncident)
}

func TestStore_FeedbackInvalidJudgment(t *testing.T) {
	s := testStore(t)
	_, err := s.RecordFeedback("whatever", Judgment("maybe"))
	assert.ErrorIs(t, err, ErrInvalidJudgment)
}

func TestStore_StatsWithoutFeedback(t *testing.T) {
	s := testStore(t)

	stats, err := s.ComputeStats()
	require.NoError(t, err)
	assert.False(t, stats.HasData)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.Accuracy)
}
