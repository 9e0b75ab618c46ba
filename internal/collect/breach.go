package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
)

// ErrInvalidEmail is returned when the breach check input is not an email
var ErrInvalidEmail = errors.New("invalid email")

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// BreachEntry is one breach the account appears in
type BreachEntry struct {
	Name        string   `json:"name"`
	Domain      string   `json:"domain,omitempty"`
	BreachDate  string   `json:"breach_date,omitempty"`
	PwnCount    int64    `json:"pwn_count"`
	DataClasses []string `json:"data_classes,omitempty"`
}

// BreachSummary is the payload for the breach signal
type BreachSummary struct {
	Email            string        `json:"email"`
	BreachCount      int           `json:"breach_count"`
	TotalExposed     int64         `json:"total_exposed"`
	PasswordsExposed bool          `json:"passwords_exposed"`
	FinancialExposed bool          `json:"financial_exposed"`
	Breaches         []BreachEntry `json:"breaches,omitempty"`
}

// BreachCheck queries a breach database for an email address. Unlike the
// other collectors it operates on an email, not URL features, so it is
// invoked separately and only when the caller supplies one.
type BreachCheck struct {
	cfg    *config.Config
	client *http.Client
}

// NewBreachCheck creates a credential-breach collector
func NewBreachCheck(cfg *config.Config) *BreachCheck {
	return &BreachCheck{cfg: cfg, client: newHTTPClient(cfg.CollectorTimeout)}
}

func (b *BreachCheck) Source() string { return SourceBreach }

// CollectEmail checks the breach history of an email address.
// Returns ErrInvalidEmail before any network call on malformed input.
func (b *BreachCheck) CollectEmail(ctx context.Context, email string) (Result, error) {
	start := time.Now()

	if !emailPattern.MatchString(email) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if b.cfg.BreachAPIKey == "" {
		return Unavailable(SourceBreach, "no breach database key configured"), nil
	}

	endpoint := fmt.Sprintf("%s/breachedaccount/%s?truncateResponse=false",
		b.cfg.BreachAPIBase, url.PathEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Unavailable(SourceBreach, fmt.Sprintf("bad request: %v", err)), nil
	}
	req.Header.Set("hibp-api-key", b.cfg.BreachAPIKey)
	req.Header.Set("User-Agent", "webwatcher")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Unavailable(SourceBreach, "timeout querying breach database"), nil
		}
		return Unavailable(SourceBreach, fmt.Sprintf("breach lookup failed: %v", err)), nil
	}
	defer resp.Body.Close()

	summary := &BreachSummary{Email: email}

	switch resp.StatusCode {
	case http.StatusNotFound:
		// Clean account
		r := Available(SourceBreach, 0, 0.9, summary)
		r.Duration = time.Since(start)
		return r, nil
	case http.StatusOK:
		// Fall through to parse
	default:
		return Unavailable(SourceBreach,
			fmt.Sprintf("breach database returned HTTP %d", resp.StatusCode)), nil
	}

	var raw []struct {
		Name        string   `json:"Name"`
		Domain      string   `json:"Domain"`
		BreachDate  string   `json:"BreachDate"`
		PwnCount    int64    `json:"PwnCount"`
		DataClasses []string `json:"DataClasses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Unavailable(SourceBreach, fmt.Sprintf("breach response unparseable: %v", err)), nil
	}

	for _, entry := range raw {
		summary.BreachCount++
		summary.TotalExposed += entry.PwnCount
		for _, dc := range entry.DataClasses {
			switch dc {
			case "Passwords":
				summary.PasswordsExposed = true
			case "Credit cards", "Bank account numbers", "Financial data":
				summary.FinancialExposed = true
			}
		}
		summary.Breaches = append(summary.Breaches, BreachEntry{
			Name:        entry.Name,
			Domain:      entry.Domain,
			BreachDate:  entry.BreachDate,
			PwnCount:    entry.PwnCount,
			DataClasses: entry.DataClasses,
		})
	}

	var flags []string
	score := 0
	switch {
	case summary.BreachCount > 5:
		score = 75
		flags = append(flags, fmt.Sprintf("email appears in %d breaches", summary.BreachCount))
	case summary.BreachCount >= 3:
		score = 55
		flags = append(flags, fmt.Sprintf("email appears in %d breaches", summary.BreachCount))
	case summary.BreachCount >= 1:
		score = 30
		flags = append(flags, fmt.Sprintf("email appears in %d breach(es)", summary.BreachCount))
	}
	if summary.PasswordsExposed {
		score += 15
		flags = append(flags, "breached data includes passwords")
	}
	if summary.FinancialExposed {
		score += 10
		flags = append(flags, "breached data includes financial records")
	}
	if score > 95 {
		score = 95
	}

	r := Available(SourceBreach, score, 0.9, summary, flags...)
	r.Duration = time.Since(start)
	return r, nil
}
