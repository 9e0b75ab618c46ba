package collect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

// Normalized per-source verdicts
const (
	VerdictClean      = "clean"
	VerdictSuspicious = "suspicious"
	VerdictMalicious  = "malicious"
	VerdictUnknown    = "unknown"
)

const (
	defaultPhishTankEndpoint  = "https://checkurl.phishtank.com/checkurl/"
	defaultVirusTotalEndpoint = "https://www.virustotal.com/api/v3/urls"
)

// ReputationData is the payload for the reputation signal
type ReputationData struct {
	Combined string            `json:"combined"` // clean | suspicious | malicious | unknown
	Sources  map[string]string `json:"sources"`  // Per-source normalized verdict
	Threat   string            `json:"threat,omitempty"`
}

// ReputationLookup queries the configured third-party reputation sources
// concurrently and combines their verdicts: any malicious vote dominates,
// else any suspicious vote raises the floor.
type ReputationLookup struct {
	cfg    *config.Config
	client *http.Client

	// Endpoints are fields so tests can point them at a local server
	URLHausEndpoint    string
	PhishTankEndpoint  string
	VirusTotalEndpoint string
}

// NewReputationLookup creates a reputation collector
func NewReputationLookup(cfg *config.Config) *ReputationLookup {
	return &ReputationLookup{
		cfg:                cfg,
		client:             newHTTPClient(cfg.CollectorTimeout),
		URLHausEndpoint:    cfg.URLHausEndpoint,
		PhishTankEndpoint:  defaultPhishTankEndpoint,
		VirusTotalEndpoint: defaultVirusTotalEndpoint,
	}
}

func (l *ReputationLookup) Source() string { return SourceReputation }

func (l *ReputationLookup) Collect(ctx context.Context, f *features.URLFeatures) Result {
	start := time.Now()

	type sourceFn struct {
		name string
		fn   func(context.Context, string) (string, string)
	}
	var sources []sourceFn
	if l.URLHausEndpoint != "" {
		sources = append(sources, sourceFn{"urlhaus", l.urlhaus})
	}
	if l.cfg.PhishTankKey != "" {
		sources = append(sources, sourceFn{"phishtank", l.phishtank})
	}
	if l.cfg.VirusTotalKey != "" {
		sources = append(sources, sourceFn{"virustotal", l.virustotal})
	}
	if len(sources) == 0 {
		return Unavailable(SourceReputation, "no reputation sources configured")
	}

	data := &ReputationData{Sources: make(map[string]string)}
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, src := range sources {
		wg.Add(1)
		go func(name string, fn func(context.Context, string) (string, string)) {
			defer wg.Done()
			verdict, threat := fn(ctx, f.FullURL)
			mu.Lock()
			data.Sources[name] = verdict
			if threat != "" && data.Threat == "" {
				data.Threat = threat
			}
			mu.Unlock()
		}(src.name, src.fn)
	}
	wg.Wait()

	// Any malicious vote dominates; any suspicious vote raises the floor
	data.Combined = VerdictUnknown
	answered := 0
	for _, v := range data.Sources {
		if v != VerdictUnknown {
			answered++
		}
		switch {
		case v == VerdictMalicious:
			data.Combined = VerdictMalicious
		case v == VerdictSuspicious && data.Combined != VerdictMalicious:
			data.Combined = VerdictSuspicious
		case v == VerdictClean && data.Combined == VerdictUnknown:
			data.Combined = VerdictClean
		}
	}
	if answered == 0 {
		return Unavailable(SourceReputation, "all reputation sources failed to answer")
	}

	var flags []string
	score := 0
	confidence := 0.9
	switch data.Combined {
	case VerdictMalicious:
		score = 95
		flag := "URL is listed as malicious by reputation sources"
		if data.Threat != "" {
			flag = fmt.Sprintf("URL is listed as malicious (%s)", data.Threat)
		}
		flags = append(flags, flag)
	case VerdictSuspicious:
		score = 60
		flags = append(flags, "URL is flagged as suspicious by reputation sources")
	case VerdictClean:
		score = 5
	default:
		score = 10
		confidence = 0.4
	}

	r := Available(SourceReputation, score, confidence, data, flags...)
	r.Duration = time.Since(start)
	return r
}

// urlhaus queries the abuse.ch URLHaus API. A hit means active malware
// distribution; no_results means URLHaus has never seen the URL.
func (l *ReputationLookup) urlhaus(ctx context.Context, target string) (string, string) {
	form := url.Values{"url": {target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.URLHausEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return VerdictUnknown, ""
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.client.Do(req)
	if err != nil {
		return VerdictUnknown, ""
	}
	defer resp.Body.Close()

	var body struct {
		QueryStatus string `json:"query_status"`
		URLStatus   string `json:"url_status"`
		Threat      string `json:"threat"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return VerdictUnknown, ""
	}

	switch body.QueryStatus {
	case "ok":
		if body.URLStatus == "offline" {
			return VerdictSuspicious, body.Threat
		}
		return VerdictMalicious, body.Threat
	case "no_results":
		return VerdictClean, ""
	}
	return VerdictUnknown, ""
}

func (l *ReputationLookup) phishtank(ctx context.Context, target string) (string, string) {
	form := url.Values{
		"url":     {target},
		"format":  {"json"},
		"app_key": {l.cfg.PhishTankKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.PhishTankEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return VerdictUnknown, ""
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.client.Do(req)
	if err != nil {
		return VerdictUnknown, ""
	}
	defer resp.Body.Close()

	var body struct {
		Results struct {
			InDatabase bool `json:"in_database"`
			Valid      bool `json:"valid"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return VerdictUnknown, ""
	}

	if body.Results.InDatabase && body.Results.Valid {
		return VerdictMalicious, "phishing"
	}
	if body.Results.InDatabase {
		return VerdictSuspicious, ""
	}
	return VerdictClean, ""
}

func (l *ReputationLookup) virustotal(ctx context.Context, target string) (string, string) {
	// VT v3 identifies a URL by its unpadded base64 form
	id := base64.RawURLEncoding.EncodeToString([]byte(target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		l.VirusTotalEndpoint+"/"+id, nil)
	if err != nil {
		return VerdictUnknown, ""
	}
	req.Header.Set("x-apikey", l.cfg.VirusTotalKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return VerdictUnknown, ""
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return VerdictClean, ""
	}
	if resp.StatusCode != http.StatusOK {
		return VerdictUnknown, ""
	}

	var body struct {
		Data struct {
			Attributes struct {
				Stats struct {
					Malicious  int `json:"malicious"`
					Suspicious int `json:"suspicious"`
					Harmless   int `json:"harmless"`
				} `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return VerdictUnknown, ""
	}

	stats := body.Data.Attributes.Stats
	switch {
	case stats.Malicious >= 2:
		return VerdictMalicious, ""
	case stats.Malicious == 1 || stats.Suspicious > 0:
		return VerdictSuspicious, ""
	case stats.Harmless > 0:
		return VerdictClean, ""
	}
	return VerdictUnknown, ""
}
