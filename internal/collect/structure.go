package collect

import (
	"context"
	"fmt"
	"net"

	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

// StructureAnalyzer scores the URL on structural indicators alone. It is the
// only collector with no I/O: everything it needs is in the extracted
// features, so it never returns Unavailable.
type StructureAnalyzer struct{}

// NewStructureAnalyzer creates a structural URL analyzer
func NewStructureAnalyzer() *StructureAnalyzer {
	return &StructureAnalyzer{}
}

func (a *StructureAnalyzer) Source() string { return SourceStructure }

// Collect counts matched red-flag rules and maps the count to a sub-score
// via a fixed step function (0->0, 1->40, 2->70, >=3->90)
func (a *StructureAnalyzer) Collect(_ context.Context, f *features.URLFeatures) Result {
	var flags []string

	if f.IsIP {
		flags = append(flags, "domain is a raw IP address")
	}
	if f.HasAt {
		flag := "credentials embedded in URL authority"
		if ip := net.ParseIP(f.UserInfo); ip != nil {
			flag = "IP literal embedded as URL credentials (host spoofing attempt)"
		}
		flags = append(flags, flag)
	}
	if f.TLDSuspicious {
		flags = append(flags, fmt.Sprintf("suspicious TLD .%s", f.TLD))
	}
	if f.BrandImpersonation != "" {
		flags = append(flags, fmt.Sprintf("domain impersonates brand %q", f.BrandImpersonation))
	}
	for _, kw := range f.KeywordHits {
		flags = append(flags, fmt.Sprintf("sensitive keyword %q in URL", kw))
	}
	if f.URLLength > 100 {
		flags = append(flags, "unusually long URL")
	}
	if f.NumDots >= 4 {
		flags = append(flags, "excessive subdomain nesting")
	}

	return Available(SourceStructure, flagCountScore(len(flags)), 1.0, f, flags...)
}

// flagCountScore maps a matched-rule count to a 0-100 sub-score
func flagCountScore(n int) int {
	switch {
	case n == 0:
		return 0
	case n == 1:
		return 40
	case n == 2:
		return 70
	default:
		return 90
	}
}
