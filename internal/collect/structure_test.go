package collect

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardtay/webwatcher-sub002/internal/features"
)

func mustExtract(t *testing.T, raw string) *features.URLFeatures {
	t.Helper()
	f, err := features.Extract(raw)
	require.NoError(t, err)
	return f
}

func TestStructureAnalyzer_CleanURL(t *testing.T) {
	a := NewStructureAnalyzer()
	r := a.Collect(context.Background(), mustExtract(t, "https://example.com"))

	assert.True(t, r.IsAvailable())
	assert.Equal(t, 0, r.Score)
	assert.Empty(t, r.RedFlags)
	assert.Equal(t, 1.0, r.Confidence)
}

func TestStructureAnalyzer_StepFunction(t *testing.T) {
	a := NewStructureAnalyzer()

	// one flag: suspicious TLD only
	r := a.Collect(context.Background(), mustExtract(t, "https://example.xyz"))
	assert.Len(t, r.RedFlags, 1)
	assert.Equal(t, 40, r.Score)

	// two flags: IP host + sensitive keyword
	r = a.Collect(context.Background(), mustExtract(t, "http://203.0.113.7/login"))
	assert.Len(t, r.RedFlags, 2)
	assert.Equal(t, 70, r.Score)

	// three or more flags cap at 90
	r = a.Collect(context.Background(), mustExtract(t, "http://192.168.1.1@paypal-login.tk/verify"))
	assert.GreaterOrEqual(t, len(r.RedFlags), 3)
	assert.Equal(t, 90, r.Score)
}

func TestStructureAnalyzer_UserinfoIPSpoofing(t *testing.T) {
	a := NewStructureAnalyzer()
	r := a.Collect(context.Background(), mustExtract(t, "http://192.168.1.1@evil.example/home"))

	assert.Contains(t, r.RedFlags, "IP literal embedded as URL credentials (host spoofing attempt)")
}

func TestStructureAnalyzer_LongURLAndNesting(t *testing.T) {
	a := NewStructureAnalyzer()

	long := "https://a.b.c.d.example.com/" + strings.Repeat("x", 100)
	r := a.Collect(context.Background(), mustExtract(t, long))

	assert.Contains(t, r.RedFlags, "unusually long URL")
	assert.Contains(t, r.RedFlags, "excessive subdomain nesting")
}

func TestFlagCountScore(t *testing.T) {
	assert.Equal(t, 0, flagCountScore(0))
	assert.Equal(t, 40, flagCountScore(1))
	assert.Equal(t, 70, flagCountScore(2))
	assert.Equal(t, 90, flagCountScore(3))
	assert.Equal(t, 90, flagCountScore(10))
}
