package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
)

func TestRedirectAnalyzer_NoRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewRedirectAnalyzer(config.DefaultConfig())
	res := a.Collect(context.Background(), mustExtract(t, srv.URL))

	require.True(t, res.IsAvailable())
	assert.Equal(t, 0, res.Score)

	chain := res.Data.(*RedirectChain)
	require.Len(t, chain.Hops, 1)
	assert.True(t, chain.Hops[0].Final)
	assert.False(t, chain.Truncated)
}

func TestRedirectAnalyzer_LongChain(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// /0 -> /1 -> /2 -> /3 -> /done
	for i := 0; i < 4; i++ {
		next := fmt.Sprintf("/%d", i+1)
		if i == 3 {
			next = "/done"
		}
		mux.HandleFunc(fmt.Sprintf("/%d", i), func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, next, http.StatusFound)
		})
	}
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	a := NewRedirectAnalyzer(config.DefaultConfig())
	res := a.Collect(context.Background(), mustExtract(t, srv.URL+"/0"))

	require.True(t, res.IsAvailable())
	chain := res.Data.(*RedirectChain)
	assert.Len(t, chain.Hops, 5)
	assert.False(t, chain.Truncated)
	assert.Contains(t, res.RedFlags, "long redirect chain (4 hops)")
}

func TestRedirectAnalyzer_TruncatedLoop(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusMovedPermanently)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.MaxRedirectHops = 5

	a := NewRedirectAnalyzer(cfg)
	res := a.Collect(context.Background(), mustExtract(t, srv.URL))

	require.True(t, res.IsAvailable())
	chain := res.Data.(*RedirectChain)
	assert.True(t, chain.Truncated)
	assert.Len(t, chain.Hops, 5)
	assert.Contains(t, res.RedFlags, "redirect chain exceeds 5 hops")
}

func TestRedirectAnalyzer_CrossDomainFinal(t *testing.T) {
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer dest.Close()

	// httptest binds 127.0.0.1; advertise the destination under a
	// different literal so the final domain differs
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dest.URL, http.StatusFound)
	}))
	defer src.Close()

	f := mustExtract(t, src.URL)
	// Force a differing start domain record
	f.Domain = "start.example"

	a := NewRedirectAnalyzer(config.DefaultConfig())
	res := a.Collect(context.Background(), f)

	require.True(t, res.IsAvailable())
	found := false
	for _, fl := range res.RedFlags {
		if fl == fmt.Sprintf("redirects to a different domain (%s)", res.Data.(*RedirectChain).FinalDomain) {
			found = true
		}
	}
	assert.True(t, found, "expected cross-domain flag, got %v", res.RedFlags)
}

func TestRedirectAnalyzer_NetworkFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CollectorTimeout = 2 * time.Second

	a := NewRedirectAnalyzer(cfg)
	// Nothing listens on port 1, connection is refused immediately
	res := a.Collect(context.Background(), mustExtract(t, "http://127.0.0.1:1/unreachable"))

	assert.False(t, res.IsAvailable())
	assert.NotEmpty(t, res.Reason)
}
