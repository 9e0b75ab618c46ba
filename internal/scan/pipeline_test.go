package scan

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardtay/webwatcher-sub002/internal/collect"
	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
	"github.com/edwardtay/webwatcher-sub002/internal/incident"
	"github.com/edwardtay/webwatcher-sub002/internal/risk"
)

// stubCollector returns a canned result, optionally after a delay
type stubCollector struct {
	source string
	result collect.Result
	delay  time.Duration
}

func (s *stubCollector) Source() string { return s.source }

func (s *stubCollector) Collect(ctx context.Context, _ *features.URLFeatures) collect.Result {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return collect.Unavailable(s.source, "timeout")
		}
	}
	return s.result
}

func testPipeline(t *testing.T, collectors ...collect.Collector) *Pipeline {
	t.Helper()
	store, err := incident.NewStore(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewWithCollectors(config.DefaultConfig(), store, collectors...)
}

func TestScan_AggregatesAllCollectors(t *testing.T) {
	p := testPipeline(t,
		&stubCollector{source: collect.SourceStructure,
			result: collect.Available(collect.SourceStructure, 90, 1.0, nil, "suspicious TLD .tk")},
		&stubCollector{source: collect.SourceReputation,
			result: collect.Available(collect.SourceReputation, 95, 0.9, nil, "URL is listed as malicious")},
	)

	out, err := p.Scan(context.Background(), "https://paypal-login.tk/verify", Options{})
	require.NoError(t, err)

	assert.Len(t, out.Results, 2)
	// (25*90 + 20*95) / 45 = 4150/45 = 92.2 -> 92
	assert.Equal(t, 92, out.Assessment.OverallScore)
	assert.Equal(t, risk.VerdictLikelyPhishing, out.Assessment.Verdict)
	assert.Equal(t, risk.CategoryPhishing, out.Category)
	assert.False(t, out.PolicyCompliant)
	assert.Nil(t, out.Report, "no persistence requested")
}

func TestScan_DegradesWhenCollectorTimesOut(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CollectorTimeout = 50 * time.Millisecond

	store, err := incident.NewStore(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p := NewWithCollectors(cfg, store,
		&stubCollector{source: collect.SourceReputation,
			result: collect.Available(collect.SourceReputation, 95, 0.9, nil, "URL is listed as malicious")},
		&stubCollector{source: collect.SourceWhois, delay: time.Second,
			result: collect.Available(collect.SourceWhois, 5, 0.9, nil)},
	)

	out, err := p.Scan(context.Background(), "https://example.com", Options{})
	require.NoError(t, err)

	// WHOIS timed out, reputation still dominates the renormalized score
	whois := out.Assessment.Breakdown[collect.SourceWhois]
	assert.Equal(t, collect.StatusUnavailable, whois.Status)
	assert.Equal(t, 95, out.Assessment.OverallScore)
	assert.Equal(t, risk.VerdictLikelyPhishing, out.Assessment.Verdict)
}

func TestScan_AllCollectorsDown(t *testing.T) {
	p := testPipeline(t,
		&stubCollector{source: collect.SourceReputation,
			result: collect.Unavailable(collect.SourceReputation, "down")},
		&stubCollector{source: collect.SourceWhois,
			result: collect.Unavailable(collect.SourceWhois, "down")},
	)

	out, err := p.Scan(context.Background(), "https://example.com", Options{})
	require.NoError(t, err)

	assert.Equal(t, risk.VerdictNoStrongSignals, out.Assessment.Verdict)
	_, ok := out.Assessment.Breakdown[risk.InsufficientDataKey]
	assert.True(t, ok)
}

func TestScan_InvalidURL(t *testing.T) {
	p := testPipeline(t)
	_, err := p.Scan(context.Background(), "ftp://example.com", Options{})
	assert.ErrorIs(t, err, features.ErrInvalidURL)
}

func TestScan_PersistsIncident(t *testing.T) {
	p := testPipeline(t,
		&stubCollector{source: collect.SourceReputation,
			result: collect.Available(collect.SourceReputation, 95, 0.9, nil, "URL is listed as malicious")},
	)

	out, err := p.Scan(context.Background(), "https://bad.example", Options{
		Persist:  true,
		Metadata: map[string]string{"origin": "test"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Report)
	assert.True(t, out.Report.SIEMReady)

	stored, err := p.Store().GetReport(out.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, out.URL, stored.URL)
	assert.Equal(t, "test", stored.Metadata["origin"])
}

func TestScan_EmitsEvents(t *testing.T) {
	p := testPipeline(t,
		&stubCollector{source: collect.SourceStructure,
			result: collect.Available(collect.SourceStructure, 0, 1.0, nil)},
	)

	var mu sync.Mutex
	var events []Event
	p.Notify = func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	_, err := p.Scan(context.Background(), "https://example.com", Options{})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "collector_done", events[0].Type)
	assert.Equal(t, collect.SourceStructure, events[0].Source)
	assert.Equal(t, "scan_done", events[1].Type)
	assert.Equal(t, "https://example.com", events[1].URL)
}

func TestScan_BreachJoinsOnlyWithEmail(t *testing.T) {
	p := testPipeline(t,
		&stubCollector{source: collect.SourceStructure,
			result: collect.Available(collect.SourceStructure, 0, 1.0, nil)},
	)

	out, err := p.Scan(context.Background(), "https://example.com", Options{})
	require.NoError(t, err)
	assert.Len(t, out.Results, 1)

	// No breach key configured: the source reports unavailable, not absent
	out, err = p.Scan(context.Background(), "https://example.com", Options{Email: "user@example.com"})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, collect.SourceBreach, out.Results[1].Source)
	assert.False(t, out.Results[1].IsAvailable())
}

func TestScan_CancelledContext(t *testing.T) {
	p := testPipeline(t,
		&stubCollector{source: collect.SourceWhois, delay: 10 * time.Second,
			result: collect.Available(collect.SourceWhois, 5, 0.9, nil)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		close(done)
	}()

	start := time.Now()
	out, err := p.Scan(ctx, "https://example.com", Options{})
	<-done
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must interrupt collectors")
	assert.False(t, out.Results[0].IsAvailable())
}

func TestQuickScan_FlagCountPolicy(t *testing.T) {
	p := testPipeline(t)

	out, err := p.QuickScan("http://192.168.1.1@paypal-login.tk/verify")
	require.NoError(t, err)

	// >=2 structural flags band straight to likely_phishing regardless of
	// the weighted score
	assert.Equal(t, risk.VerdictLikelyPhishing, out.Assessment.Verdict)
	assert.GreaterOrEqual(t, len(out.Results[0].RedFlags), 3)

	out, err = p.QuickScan("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, risk.VerdictNoStrongSignals, out.Assessment.Verdict)
	assert.Equal(t, risk.CategoryBenign, out.Category)
}

func TestRunCollector_UnknownSource(t *testing.T) {
	p := testPipeline(t,
		&stubCollector{source: collect.SourceStructure,
			result: collect.Available(collect.SourceStructure, 0, 1.0, nil)},
	)

	res, err := p.RunCollector(context.Background(), collect.SourceStructure, "https://example.com")
	require.NoError(t, err)
	assert.True(t, res.IsAvailable())

	_, err = p.RunCollector(context.Background(), "nonexistent", "https://example.com")
	assert.Error(t, err)

	_, err = p.RunCollector(context.Background(), collect.SourceStructure, "://bad")
	assert.ErrorIs(t, err, features.ErrInvalidURL)
}
