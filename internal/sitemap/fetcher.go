package sitemap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/logger"
)

// maxIndexDepth bounds sitemap index recursion. Guards against index files
// that reference each other in a cycle.
const maxIndexDepth = 5

// maxBodyBytes caps a single sitemap document read (50 MB, the format's own
// uncompressed limit).
const maxBodyBytes = 50 << 20

// Fetcher retrieves a tenant's full URL list from its sitemap.
type Fetcher interface {
	// FetchURLs expands sitemapURL (recursively, for index files) into a
	// flat list of URL entries.
	FetchURLs(ctx context.Context, sitemapURL string) ([]domain.URLRecord, error)
}

// Client is the HTTP-backed Fetcher implementation.
type Client struct {
	http   *http.Client
	logger logger.Logger
}

// NewClient creates a sitemap client. timeout bounds each individual sitemap
// document fetch.
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: log,
	}
}

// FetchURLs fetches and expands the sitemap at sitemapURL. A failure to fetch
// or parse the top-level document is a FetchError; failures on child sitemaps
// of an index yield an empty subtree so one broken child cannot abort the
// whole scan.
func (c *Client) FetchURLs(ctx context.Context, sitemapURL string) ([]domain.URLRecord, error) {
	return c.fetch(ctx, sitemapURL, 0)
}

func (c *Client) fetch(ctx context.Context, sitemapURL string, depth int) ([]domain.URLRecord, error) {
	if depth > maxIndexDepth {
		return nil, domain.FetchError(
			fmt.Errorf("sitemap index nesting exceeds %d levels", maxIndexDepth), sitemapURL)
	}

	body, err := c.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	if IsSitemapIndex(body) {
		return c.expandIndex(ctx, sitemapURL, body, depth)
	}

	urls, err := ParseSitemap(body)
	if err != nil {
		return nil, domain.FetchError(err, sitemapURL)
	}
	return urls, nil
}

// expandIndex expands every child of a sitemap index, treating per-child
// failures as empty subtrees.
func (c *Client) expandIndex(ctx context.Context, indexURL string, body []byte, depth int) ([]domain.URLRecord, error) {
	children, err := ParseSitemapIndex(body)
	if err != nil {
		return nil, domain.FetchError(err, indexURL)
	}

	var urls []domain.URLRecord
	for _, child := range children {
		childURLs, childErr := c.fetch(ctx, child, depth+1)
		if childErr != nil {
			c.logger.Warn("Skipping unreadable child sitemap",
				logger.String("sitemap", child),
				logger.String("index", indexURL),
				logger.Error(childErr))
			continue
		}
		urls = append(urls, childURLs...)
	}

	return urls, nil
}

// get fetches one sitemap document, treating non-2xx and timeouts as fetch
// errors.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, domain.FetchError(err, url)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.FetchError(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, domain.FetchError(
			fmt.Errorf("unexpected status %d", resp.StatusCode), url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.FetchError(err, url)
	}
	return body, nil
}
