package features

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when the input cannot be parsed as a URL
// even after default-scheme normalization
var ErrInvalidURL = errors.New("invalid URL")

// URLFeatures holds structural indicators derived once per scan.
// Extraction is pure: the same input always yields identical features
// and no network access happens here.
type URLFeatures struct {
	FullURL   string `json:"full_url"`
	Domain    string `json:"domain"`
	Path      string `json:"path"`
	Scheme    string `json:"scheme"`
	UserInfo  string `json:"user_info,omitempty"` // Credentials embedded in the authority, if any
	IsIP      bool   `json:"is_ip"`               // Connection host is a dotted-quad literal
	HasAt     bool   `json:"has_at"`              // Authority carries a userinfo section
	NumDots   int    `json:"num_dots"`
	URLLength int    `json:"url_length"`

	KeywordHits        []string `json:"keyword_hits,omitempty"` // Dictionary order preserved
	TLD                string   `json:"tld"`
	TLDSuspicious      bool     `json:"tld_suspicious"`
	BrandImpersonation string   `json:"brand_impersonation,omitempty"`

	DictionaryVersion string `json:"dictionary_version"`
}

// Extract parses and normalizes a raw URL into structural features.
// The scheme defaults to https when absent. Deterministic and synchronous.
func Extract(rawURL string) (*URLFeatures, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	// Default scheme so bare domains like "example.com/login" parse with a host
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	f := &URLFeatures{
		FullURL:           u.String(),
		Domain:            host,
		Path:              u.Path,
		Scheme:            u.Scheme,
		NumDots:           strings.Count(host, "."),
		URLLength:         len(u.String()),
		DictionaryVersion: DictionaryVersion,
	}

	// The IP-literal check runs on the actual connection host, not the
	// pre-@ authority string: http://192.168.1.1@evil.tk/ connects to
	// evil.tk, so IsIP stays false and the userinfo is recorded instead.
	if u.User != nil {
		f.HasAt = true
		f.UserInfo = u.User.String()
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		f.IsIP = true
	}

	// Keyword scan over the full lowercased URL, dictionary order preserved
	lowered := strings.ToLower(u.String())
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lowered, kw) {
			f.KeywordHits = append(f.KeywordHits, kw)
		}
	}

	// TLD is the last dot-segment of the host (IP literals have none)
	if !f.IsIP {
		if idx := strings.LastIndex(host, "."); idx >= 0 && idx < len(host)-1 {
			f.TLD = host[idx+1:]
			f.TLDSuspicious = suspiciousTLDs[f.TLD]
		}
	}

	// At most one brand match: domain contains the brand string but is not
	// the brand's own <brand>.com zone
	for _, brand := range impersonatedBrands {
		if strings.Contains(host, brand) &&
			host != brand+".com" && !strings.HasSuffix(host, "."+brand+".com") {
			f.BrandImpersonation = brand
			break
		}
	}

	return f, nil
}
