package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

// WhoisData is the payload for the WHOIS signal
type WhoisData struct {
	Registrar   string     `json:"registrar,omitempty"`
	CreatedDate *time.Time `json:"created_date,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	AgeInDays   int        `json:"age_in_days"`
	NameServers []string   `json:"name_servers,omitempty"`
}

// WhoisCheck resolves domain registration data and flags recently
// registered domains. Phishing infrastructure is overwhelmingly young.
type WhoisCheck struct {
	cfg    *config.Config
	client *whois.Client
}

// NewWhoisCheck creates a WHOIS age collector
func NewWhoisCheck(cfg *config.Config) *WhoisCheck {
	client := whois.NewClient()
	client.SetTimeout(cfg.CollectorTimeout)
	return &WhoisCheck{cfg: cfg, client: client}
}

func (w *WhoisCheck) Source() string { return SourceWhois }

func (w *WhoisCheck) Collect(ctx context.Context, f *features.URLFeatures) Result {
	start := time.Now()

	if f.IsIP {
		return Unavailable(SourceWhois, "WHOIS age check not applicable to IP-literal hosts")
	}

	// The whois client has its own dial timeout but no context support,
	// so the query runs in a goroutine raced against ctx
	type reply struct {
		raw string
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		raw, err := w.client.Whois(f.Domain)
		ch <- reply{raw, err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return Unavailable(SourceWhois, "timeout querying WHOIS")
	case rep := <-ch:
		if rep.err != nil {
			return Unavailable(SourceWhois, fmt.Sprintf("WHOIS query failed: %v", rep.err))
		}
		raw = rep.raw
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return Unavailable(SourceWhois, fmt.Sprintf("WHOIS response unparseable: %v", err))
	}

	data := &WhoisData{
		CreatedDate: parsed.Domain.CreatedDateInTime,
		ExpiryDate:  parsed.Domain.ExpirationDateInTime,
		NameServers: parsed.Domain.NameServers,
	}
	if parsed.Registrar != nil {
		data.Registrar = parsed.Registrar.Name
	}
	if data.CreatedDate == nil {
		return Unavailable(SourceWhois, "WHOIS record carries no creation date")
	}
	data.AgeInDays = int(time.Since(*data.CreatedDate).Hours() / 24)

	var flags []string
	if data.AgeInDays < w.cfg.YoungDomainDays {
		flags = append(flags, fmt.Sprintf("domain registered only %d days ago", data.AgeInDays))
	}
	if data.ExpiryDate != nil && time.Until(*data.ExpiryDate) < 30*24*time.Hour {
		flags = append(flags, "domain registration expires within 30 days")
	}

	score := 5
	switch {
	case data.AgeInDays < 7:
		score = 90
	case data.AgeInDays < w.cfg.YoungDomainDays:
		score = 70
	case data.AgeInDays < 180:
		score = 30
	}

	r := Available(SourceWhois, score, 0.85, data, flags...)
	r.Duration = time.Since(start)
	return r
}
