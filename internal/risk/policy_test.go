package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

func feats(t *testing.T, raw string) *features.URLFeatures {
	t.Helper()
	f, err := features.Extract(raw)
	require.NoError(t, err)
	return f
}

func TestClassify_MalwareListingWins(t *testing.T) {
	f := feats(t, "https://paypal-secure.tk/login")
	a := &Assessment{
		Verdict:  VerdictLikelyPhishing,
		RedFlags: []string{"URL is listed as malicious (malware_download)"},
	}

	// Malware listing outranks the phishing verdict
	assert.Equal(t, CategoryMalware, Classify(f, a))
}

func TestClassify_PhishingVerdict(t *testing.T) {
	f := feats(t, "https://example.com")
	a := &Assessment{Verdict: VerdictLikelyPhishing, RedFlags: []string{"something"}}

	assert.Equal(t, CategoryPhishing, Classify(f, a))
}

func TestClassify_CredentialFormPlusImpersonation(t *testing.T) {
	f := feats(t, "https://paypal-login.example.io")
	require.NotEmpty(t, f.BrandImpersonation)

	a := &Assessment{
		Verdict:  VerdictSuspicious,
		RedFlags: []string{"credential form on brand-impersonating domain"},
	}

	assert.Equal(t, CategoryPhishing, Classify(f, a))
}

func TestClassify_Benign(t *testing.T) {
	f := feats(t, "https://example.com")
	a := &Assessment{Verdict: VerdictNoStrongSignals, RedFlags: []string{}}

	assert.Equal(t, CategoryBenign, Classify(f, a))
}

func TestClassify_UnknownWhenAmbiguous(t *testing.T) {
	f := feats(t, "https://example.com")

	// Flags present but no strong verdict
	a := &Assessment{Verdict: VerdictNoStrongSignals, RedFlags: []string{"connection is not HTTPS"}}
	assert.Equal(t, CategoryUnknown, Classify(f, a))

	// Suspicious verdict without phishing markers
	a = &Assessment{Verdict: VerdictSuspicious, RedFlags: []string{"domain registered only 3 days ago"}}
	assert.Equal(t, CategoryUnknown, Classify(f, a))
}

func TestBandForScore(t *testing.T) {
	assert.Equal(t, BandLow, BandForScore(0))
	assert.Equal(t, BandLow, BandForScore(29))
	assert.Equal(t, BandMedium, BandForScore(30))
	assert.Equal(t, BandMedium, BandForScore(59))
	assert.Equal(t, BandHigh, BandForScore(60))
	assert.Equal(t, BandHigh, BandForScore(100))
}

func TestPolicyTable_Evaluate(t *testing.T) {
	table := DefaultPolicyTable()

	assert.True(t, table.Evaluate(CategoryBenign, 10))
	assert.True(t, table.Evaluate(CategoryBenign, 45))
	assert.False(t, table.Evaluate(CategoryBenign, 80))

	assert.True(t, table.Evaluate(CategoryUnknown, 10))
	assert.False(t, table.Evaluate(CategoryUnknown, 45))

	assert.False(t, table.Evaluate(CategoryPhishing, 0))
	assert.False(t, table.Evaluate(CategoryMalware, 0))

	// Unlisted categories default to non-compliant
	assert.False(t, table.Evaluate(Category("adware"), 0))
}
