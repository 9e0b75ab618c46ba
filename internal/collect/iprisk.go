package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

const defaultAbuseIPDBEndpoint = "https://api.abuseipdb.com/api/v2/check"

// IPRiskData is the payload for the IP risk signal
type IPRiskData struct {
	IPs            []string `json:"ips"`
	CheckedIP      string   `json:"checked_ip,omitempty"`
	AbuseScore     int      `json:"abuse_score"` // 0-100 from the IP reputation source
	TotalReports   int      `json:"total_reports"`
	ISP            string   `json:"isp,omitempty"`
	CountryCode    string   `json:"country_code,omitempty"`
	SourceSkipped  bool     `json:"source_skipped"` // No reputation key configured
}

// IPRiskProfile resolves the IPs behind the domain and checks the first one
// against an IP reputation source
type IPRiskProfile struct {
	cfg    *config.Config
	client *http.Client

	AbuseIPDBEndpoint string // Overridable for tests
}

// NewIPRiskProfile creates an IP risk collector
func NewIPRiskProfile(cfg *config.Config) *IPRiskProfile {
	return &IPRiskProfile{
		cfg:               cfg,
		client:            newHTTPClient(cfg.CollectorTimeout),
		AbuseIPDBEndpoint: defaultAbuseIPDBEndpoint,
	}
}

func (p *IPRiskProfile) Source() string { return SourceIPRisk }

func (p *IPRiskProfile) Collect(ctx context.Context, f *features.URLFeatures) Result {
	start := time.Now()

	data := &IPRiskData{}
	if f.IsIP {
		data.IPs = []string{f.Domain}
	} else {
		addrs, err := net.DefaultResolver.LookupIP(ctx, "ip4", f.Domain)
		if err != nil {
			if ctx.Err() != nil {
				return Unavailable(SourceIPRisk, "timeout resolving domain")
			}
			return Unavailable(SourceIPRisk, fmt.Sprintf("DNS resolution failed: %v", err))
		}
		for _, a := range addrs {
			data.IPs = append(data.IPs, a.String())
		}
	}
	if len(data.IPs) == 0 {
		return Unavailable(SourceIPRisk, "domain resolves to no IPv4 address")
	}

	var flags []string
	for _, ip := range data.IPs {
		parsed := net.ParseIP(ip)
		if parsed != nil && (parsed.IsPrivate() || parsed.IsLoopback()) {
			flags = append(flags, fmt.Sprintf("domain resolves to a non-routable address (%s)", ip))
		}
	}

	score := 0
	confidence := 0.4
	if p.cfg.AbuseIPDBKey != "" {
		data.CheckedIP = data.IPs[0]
		if err := p.checkAbuse(ctx, data); err != nil {
			return Unavailable(SourceIPRisk, fmt.Sprintf("IP reputation lookup failed: %v", err))
		}
		confidence = 0.8
		switch {
		case data.AbuseScore >= 75:
			score = 85
			flags = append(flags, fmt.Sprintf("hosting IP %s has abuse confidence %d%%", data.CheckedIP, data.AbuseScore))
		case data.AbuseScore >= 25:
			score = 45
			flags = append(flags, fmt.Sprintf("hosting IP %s has prior abuse reports", data.CheckedIP))
		}
	} else {
		data.SourceSkipped = true
		if len(flags) > 0 {
			score = 40
		}
	}

	r := Available(SourceIPRisk, score, confidence, data, flags...)
	r.Duration = time.Since(start)
	return r
}

func (p *IPRiskProfile) checkAbuse(ctx context.Context, data *IPRiskData) error {
	q := url.Values{
		"ipAddress":    {data.CheckedIP},
		"maxAgeInDays": {"90"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.AbuseIPDBEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Key", p.cfg.AbuseIPDBKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from IP reputation source", resp.StatusCode)
	}

	var body struct {
		Data struct {
			AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
			TotalReports         int    `json:"totalReports"`
			ISP                  string `json:"isp"`
			CountryCode          string `json:"countryCode"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}

	data.AbuseScore = body.Data.AbuseConfidenceScore
	data.TotalReports = body.Data.TotalReports
	data.ISP = body.Data.ISP
	data.CountryCode = body.Data.CountryCode
	return nil
}
