package collect

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

// TLSInfo is the payload for the TLS audit signal
type TLSInfo struct {
	HTTPS       bool      `json:"https"`
	Issuer      string    `json:"issuer,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	NotBefore   time.Time `json:"not_before,omitempty"`
	NotAfter    time.Time `json:"not_after,omitempty"`
	DaysLeft    int       `json:"days_left"`
	SelfSigned  bool      `json:"self_signed"`
	HostMatches bool      `json:"host_matches"`
	Version     string    `json:"version,omitempty"`
}

// TLSAuditor checks HTTPS usage and certificate posture. Absence of HTTPS
// is itself a red flag with full confidence, not a collection failure.
type TLSAuditor struct {
	cfg *config.Config
}

// NewTLSAuditor creates a TLS auditor
func NewTLSAuditor(cfg *config.Config) *TLSAuditor {
	return &TLSAuditor{cfg: cfg}
}

func (a *TLSAuditor) Source() string { return SourceTLS }

func (a *TLSAuditor) Collect(ctx context.Context, f *features.URLFeatures) Result {
	start := time.Now()

	if f.Scheme != "https" {
		r := Available(SourceTLS, 60, 1.0, &TLSInfo{HTTPS: false},
			"connection is not HTTPS")
		r.Duration = time.Since(start)
		return r
	}

	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName:         f.Domain,
			InsecureSkipVerify: true, // Chain problems are findings, not dial failures
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(f.Domain, "443"))
	if err != nil {
		if ctx.Err() != nil {
			return Unavailable(SourceTLS, "timeout establishing TLS connection")
		}
		return Unavailable(SourceTLS, fmt.Sprintf("TLS handshake failed: %v", err))
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return Unavailable(SourceTLS, "server presented no certificate")
	}

	cert := state.PeerCertificates[0]
	now := time.Now()
	info := &TLSInfo{
		HTTPS:       true,
		Issuer:      cert.Issuer.CommonName,
		Subject:     cert.Subject.CommonName,
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		DaysLeft:    int(time.Until(cert.NotAfter).Hours() / 24),
		SelfSigned:  len(state.PeerCertificates) == 1 && cert.Issuer.String() == cert.Subject.String(),
		HostMatches: cert.VerifyHostname(f.Domain) == nil,
		Version:     tls.VersionName(state.Version),
	}

	var flags []string
	if now.After(cert.NotAfter) {
		flags = append(flags, "TLS certificate has expired")
	} else if info.DaysLeft <= 14 {
		flags = append(flags, fmt.Sprintf("TLS certificate expires in %d days", info.DaysLeft))
	}
	if now.Before(cert.NotBefore) {
		flags = append(flags, "TLS certificate is not yet valid")
	}
	if info.SelfSigned {
		flags = append(flags, "TLS certificate is self-signed")
	}
	if !info.HostMatches {
		flags = append(flags, "TLS certificate does not match the hostname")
	}

	score := 0
	switch {
	case now.After(cert.NotAfter) || !info.HostMatches:
		score = 70
	case info.SelfSigned:
		score = 55
	case len(flags) > 0:
		score = 30
	}

	r := Available(SourceTLS, score, 0.9, info, flags...)
	r.Duration = time.Since(start)
	return r
}
