package sitemap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/sitemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSitemapServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchURLsFlatSitemap(t *testing.T) {
	t.Parallel()

	srv := newSitemapServer(t, map[string]string{
		"/sitemap.xml": validSitemapXML,
	})

	client := sitemap.NewClient(5*time.Second, logger.NewNop())
	urls, err := client.FetchURLs(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, urls, 3)
	assert.Equal(t, "https://example.com/page1", urls[0].Loc)
}

func TestFetchURLsExpandsIndex(t *testing.T) {
	t.Parallel()

	const child1 = `<?xml version="1.0"?>
<urlset><url><loc>https://example.com/a</loc><lastmod>2024-01-01</lastmod></url></urlset>`
	const child2 = `<?xml version="1.0"?>
<urlset><url><loc>https://example.com/b</loc></url></urlset>`

	var srv *httptest.Server
	index := func() string {
		return `<?xml version="1.0"?>
<sitemapindex>
  <sitemap><loc>` + srv.URL + `/child1.xml</loc></sitemap>
  <sitemap><loc>` + srv.URL + `/child2.xml</loc></sitemap>
  <sitemap><loc>` + srv.URL + `/missing.xml</loc></sitemap>
</sitemapindex>`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(index()))
	})
	mux.HandleFunc("/child1.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(child1))
	})
	mux.HandleFunc("/child2.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(child2))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := sitemap.NewClient(5*time.Second, logger.NewNop())
	urls, err := client.FetchURLs(context.Background(), srv.URL+"/index.xml")
	require.NoError(t, err, "one unreadable child sitemap must not abort the scan")
	require.Len(t, urls, 2)
	assert.Equal(t, "https://example.com/a", urls[0].Loc)
	assert.Equal(t, "https://example.com/b", urls[1].Loc)
}

func TestFetchURLsTopLevelFailureIsFetchError(t *testing.T) {
	t.Parallel()

	srv := newSitemapServer(t, map[string]string{})

	client := sitemap.NewClient(5*time.Second, logger.NewNop())
	_, err := client.FetchURLs(context.Background(), srv.URL+"/sitemap.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetchURLsTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(validSitemapXML))
	}))
	t.Cleanup(srv.Close)

	client := sitemap.NewClient(20*time.Millisecond, logger.NewNop())
	_, err := client.FetchURLs(context.Background(), srv.URL+"/sitemap.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
}
