package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/collect"
	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
	"github.com/edwardtay/webwatcher-sub002/internal/incident"
	"github.com/edwardtay/webwatcher-sub002/internal/risk"
)

// Event is a progress notification emitted while a scan runs. Consumers
// (WebSocket hub, CLI progress) receive these best-effort.
type Event struct {
	Type   string `json:"type"` // collector_done | scan_done
	URL    string `json:"url,omitempty"`
	Source string `json:"source,omitempty"`
	Status string `json:"status,omitempty"`
}

// Options tunes a single scan invocation
type Options struct {
	Email    string            // When set, the breach collector joins the fan-out
	Persist  bool              // Generate and store an incident report
	Metadata map[string]string // Free-form metadata attached to the report
}

// Outcome is everything one comprehensive scan produced
type Outcome struct {
	URL             string                `json:"url"`
	Features        *features.URLFeatures `json:"features"`
	Results         []collect.Result      `json:"results"`
	Assessment      *risk.Assessment      `json:"risk_assessment"`
	Category        risk.Category         `json:"category"`
	PolicyCompliant bool                  `json:"policy_compliant"`
	Report          *incident.Report      `json:"report,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
	Duration        time.Duration         `json:"duration"`
}

// Pipeline wires the feature extractor, the collector fan-out, the
// aggregator, the classifier and the incident store into one scan flow.
type Pipeline struct {
	cfg        *config.Config
	scoring    *risk.ScoringConfig
	policy     risk.PolicyTable
	collectors []collect.Collector
	breach     *collect.BreachCheck
	store      *incident.Store
	sink       *Sink

	// Notify receives progress events; nil disables notification.
	// Must not block: events are dropped, never queued.
	Notify func(Event)
}

// New builds a pipeline with the default collector set
func New(cfg *config.Config, store *incident.Store) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		scoring: risk.DefaultScoringConfig(),
		policy:  risk.DefaultPolicyTable(),
		collectors: []collect.Collector{
			collect.NewStructureAnalyzer(),
			collect.NewRedirectAnalyzer(cfg),
			collect.NewPageScanner(cfg),
			collect.NewTLSAuditor(cfg),
			collect.NewReputationLookup(cfg),
			collect.NewWhoisCheck(cfg),
			collect.NewIPRiskProfile(cfg),
		},
		breach: collect.NewBreachCheck(cfg),
		store:  store,
	}
}

// NewWithCollectors builds a pipeline over an explicit collector set.
// Used by tests and by callers that need a reduced fan-out.
func NewWithCollectors(cfg *config.Config, store *incident.Store, collectors ...collect.Collector) *Pipeline {
	p := New(cfg, store)
	p.collectors = collectors
	return p
}

// SetSink attaches a best-effort outcome sink (see sink.go)
func (p *Pipeline) SetSink(s *Sink) { p.sink = s }

// Scoring exposes the active scoring configuration
func (p *Pipeline) Scoring() *risk.ScoringConfig { return p.scoring }

// Policy exposes the active policy table
func (p *Pipeline) Policy() risk.PolicyTable { return p.policy }

// Store exposes the incident store shared with the HTTP layer
func (p *Pipeline) Store() *incident.Store { return p.store }

// Breach exposes the email breach collector for the standalone endpoint
func (p *Pipeline) Breach() *collect.BreachCheck { return p.breach }

// Scan runs the full assessment pipeline for one URL.
//
// All collectors fan out concurrently, each under its own timeout inside
// the scan-wide deadline; aggregation starts only after every collector
// has settled. Cancelling ctx cancels all in-flight collector calls.
func (p *Pipeline) Scan(ctx context.Context, rawURL string, opts Options) (*Outcome, error) {
	start := time.Now()

	f, err := features.Extract(rawURL)
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, p.cfg.ScanTimeout)
	defer cancel()

	results := p.runCollectors(scanCtx, f, opts.Email)

	assessment := risk.Aggregate(results, p.scoring)
	category := risk.Classify(f, assessment)
	compliant := p.policy.Evaluate(category, assessment.OverallScore)

	out := &Outcome{
		URL:             f.FullURL,
		Features:        f,
		Results:         results,
		Assessment:      assessment,
		Category:        category,
		PolicyCompliant: compliant,
		Timestamp:       time.Now().UTC(),
	}

	if opts.Persist {
		report := incident.Generate(f.FullURL, assessment, category, compliant, opts.Metadata)
		if err := p.store.SaveReport(report); err != nil {
			return nil, fmt.Errorf("failed to persist incident: %w", err)
		}
		out.Report = report
	}

	// Best-effort learning sink, firmly off the response path
	if p.sink != nil {
		p.sink.Record(out)
	}
	p.notify(Event{Type: "scan_done", URL: f.FullURL, Status: string(assessment.Verdict)})

	out.Duration = time.Since(start)
	return out, nil
}

// QuickScan runs the URL-only structural path: feature extraction plus
// structural analysis, banded by matched-flag count rather than score.
// This is a deliberately distinct policy from the comprehensive scan.
func (p *Pipeline) QuickScan(rawURL string) (*Outcome, error) {
	f, err := features.Extract(rawURL)
	if err != nil {
		return nil, err
	}

	result := collect.NewStructureAnalyzer().Collect(context.Background(), f)
	assessment := risk.Aggregate([]collect.Result{result}, p.scoring)
	assessment.Verdict = p.scoring.VerdictForFlagCount(len(result.RedFlags))
	category := risk.Classify(f, assessment)

	return &Outcome{
		URL:             f.FullURL,
		Features:        f,
		Results:         []collect.Result{result},
		Assessment:      assessment,
		Category:        category,
		PolicyCompliant: p.policy.Evaluate(category, assessment.OverallScore),
		Timestamp:       time.Now().UTC(),
	}, nil
}

// RunCollector runs a single named collector for one URL - the per-signal
// HTTP endpoints go through here
func (p *Pipeline) RunCollector(ctx context.Context, source, rawURL string) (collect.Result, error) {
	f, err := features.Extract(rawURL)
	if err != nil {
		return collect.Result{}, err
	}
	for _, c := range p.collectors {
		if c.Source() == source {
			cctx, cancel := context.WithTimeout(ctx, p.cfg.CollectorTimeout)
			defer cancel()
			return c.Collect(cctx, f), nil
		}
	}
	return collect.Result{}, fmt.Errorf("unknown collector %q", source)
}

// runCollectors fans out every applicable collector and joins when all
// have settled. Each goroutine writes only its own slot, so results need
// no locking.
func (p *Pipeline) runCollectors(ctx context.Context, f *features.URLFeatures, email string) []collect.Result {
	n := len(p.collectors)
	withBreach := email != ""
	if withBreach {
		n++
	}
	results := make([]collect.Result, n)

	var wg sync.WaitGroup
	for i, c := range p.collectors {
		wg.Add(1)
		go func(i int, c collect.Collector) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, p.cfg.CollectorTimeout)
			defer cancel()
			results[i] = c.Collect(cctx, f)
			p.notify(Event{Type: "collector_done", URL: f.FullURL, Source: c.Source(), Status: string(results[i].Status)})
		}(i, c)
	}

	if withBreach {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, p.cfg.CollectorTimeout)
			defer cancel()
			res, err := p.breach.CollectEmail(cctx, email)
			if err != nil {
				res = collect.Unavailable(collect.SourceBreach, err.Error())
			}
			results[n-1] = res
			p.notify(Event{Type: "collector_done", URL: f.FullURL, Source: collect.SourceBreach, Status: string(res.Status)})
		}()
	}

	wg.Wait()
	return results
}

func (p *Pipeline) notify(e Event) {
	if p.Notify != nil {
		p.Notify(e)
	}
}
