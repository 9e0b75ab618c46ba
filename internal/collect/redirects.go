package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

// Hop is a single step in a redirect chain
type Hop struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	Final  bool   `json:"final"`
}

// RedirectChain is the payload for the redirects signal
type RedirectChain struct {
	Hops        []Hop  `json:"hops"`
	FinalURL    string `json:"final_url"`
	FinalDomain string `json:"final_domain"`
	Truncated   bool   `json:"truncated"` // Hop limit reached before a final response
}

// RedirectAnalyzer follows the redirect chain of a URL up to a bounded hop
// count and flags excessive hops and cross-domain destinations
type RedirectAnalyzer struct {
	cfg    *config.Config
	client *http.Client
}

// NewRedirectAnalyzer creates a redirect chain analyzer
func NewRedirectAnalyzer(cfg *config.Config) *RedirectAnalyzer {
	client := newHTTPClient(cfg.CollectorTimeout)
	// The chain is walked manually so every hop is observed
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &RedirectAnalyzer{cfg: cfg, client: client}
}

func (a *RedirectAnalyzer) Source() string { return SourceRedirects }

func (a *RedirectAnalyzer) Collect(ctx context.Context, f *features.URLFeatures) Result {
	start := time.Now()

	chain := &RedirectChain{}
	current := f.FullURL

	for hop := 0; hop < a.cfg.MaxRedirectHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return Unavailable(SourceRedirects, fmt.Sprintf("bad request for hop %d: %v", hop, err))
		}

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Unavailable(SourceRedirects, "timeout following redirect chain")
			}
			return Unavailable(SourceRedirects, fmt.Sprintf("network error at hop %d: %v", hop, err))
		}
		resp.Body.Close()

		h := Hop{Index: hop, URL: current, Status: resp.StatusCode}

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			h.Final = true
			chain.Hops = append(chain.Hops, h)
			break
		}

		loc := resp.Header.Get("Location")
		if loc == "" {
			h.Final = true
			chain.Hops = append(chain.Hops, h)
			break
		}
		next, err := resp.Request.URL.Parse(loc)
		if err != nil {
			return Unavailable(SourceRedirects, fmt.Sprintf("unparseable Location at hop %d: %v", hop, err))
		}
		chain.Hops = append(chain.Hops, h)
		current = next.String()
	}

	if n := len(chain.Hops); n > 0 && !chain.Hops[n-1].Final {
		chain.Truncated = true
	}
	if len(chain.Hops) > 0 {
		last := chain.Hops[len(chain.Hops)-1]
		chain.FinalURL = last.URL
		if u, err := url.Parse(last.URL); err == nil {
			chain.FinalDomain = strings.ToLower(u.Hostname())
		}
	}

	var flags []string
	redirects := len(chain.Hops) - 1
	if chain.Truncated {
		flags = append(flags, fmt.Sprintf("redirect chain exceeds %d hops", a.cfg.MaxRedirectHops))
	} else if redirects >= 3 {
		flags = append(flags, fmt.Sprintf("long redirect chain (%d hops)", redirects))
	}
	if features.IsShortener(f.Domain) {
		flags = append(flags, "URL uses a link-shortener domain")
	}
	if chain.FinalDomain != "" && chain.FinalDomain != f.Domain {
		flag := fmt.Sprintf("redirects to a different domain (%s)", chain.FinalDomain)
		if f.BrandImpersonation != "" {
			flag = fmt.Sprintf("brand-impersonating URL redirects to %s", chain.FinalDomain)
		}
		flags = append(flags, flag)
	}

	score := 30 * len(flags)
	if score > 90 {
		score = 90
	}

	r := Available(SourceRedirects, score, 0.8, chain, flags...)
	r.Duration = time.Since(start)
	return r
}
