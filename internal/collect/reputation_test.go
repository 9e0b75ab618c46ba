package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
)

func TestReputationLookup_NoSourcesConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.URLHausEndpoint = ""

	l := NewReputationLookup(cfg)
	res := l.Collect(context.Background(), mustExtract(t, "https://example.com"))

	assert.False(t, res.IsAvailable())
	assert.Equal(t, "no reputation sources configured", res.Reason)
}

func TestReputationLookup_MaliciousHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.Form.Get("url"))
		w.Write([]byte(`{"query_status":"ok","url_status":"online","threat":"malware_download"}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	l := NewReputationLookup(cfg)
	l.URLHausEndpoint = srv.URL

	res := l.Collect(context.Background(), mustExtract(t, "https://example.com/payload"))

	require.True(t, res.IsAvailable())
	assert.Equal(t, 95, res.Score)
	require.Len(t, res.RedFlags, 1)
	assert.Contains(t, res.RedFlags[0], "malware_download")

	data := res.Data.(*ReputationData)
	assert.Equal(t, VerdictMalicious, data.Combined)
	assert.Equal(t, VerdictMalicious, data.Sources["urlhaus"])
}

func TestReputationLookup_CleanResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query_status":"no_results"}`))
	}))
	defer srv.Close()

	l := NewReputationLookup(config.DefaultConfig())
	l.URLHausEndpoint = srv.URL

	res := l.Collect(context.Background(), mustExtract(t, "https://example.com"))

	require.True(t, res.IsAvailable())
	assert.Equal(t, 5, res.Score)
	assert.Empty(t, res.RedFlags)
}

func TestReputationLookup_MaliciousDominatesClean(t *testing.T) {
	urlhaus := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query_status":"no_results"}`))
	}))
	defer urlhaus.Close()

	phishtank := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"in_database":true,"valid":true}}`))
	}))
	defer phishtank.Close()

	cfg := config.DefaultConfig()
	cfg.PhishTankKey = "test-key"

	l := NewReputationLookup(cfg)
	l.URLHausEndpoint = urlhaus.URL
	l.PhishTankEndpoint = phishtank.URL

	res := l.Collect(context.Background(), mustExtract(t, "https://example.com"))

	require.True(t, res.IsAvailable())
	data := res.Data.(*ReputationData)
	assert.Equal(t, VerdictMalicious, data.Combined)
	assert.Equal(t, VerdictClean, data.Sources["urlhaus"])
	assert.Equal(t, VerdictMalicious, data.Sources["phishtank"])
	assert.Equal(t, 95, res.Score)
}

func TestReputationLookup_AllSourcesFailing(t *testing.T) {
	cfg := config.DefaultConfig()
	l := NewReputationLookup(cfg)
	// Nothing listens here, the source answers unknown
	l.URLHausEndpoint = "http://127.0.0.1:1/"

	res := l.Collect(context.Background(), mustExtract(t, "https://example.com"))

	assert.False(t, res.IsAvailable())
	assert.Equal(t, "all reputation sources failed to answer", res.Reason)
}
