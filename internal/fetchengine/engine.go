// Package fetchengine provides the client for the external browser-based
// content-fetch engine. The engine runs an opaque crawl job over a set of
// start URLs and returns one markdown record per fetched page.
package fetchengine

import (
	"context"
)

// JobRequest describes one fetch job.
type JobRequest struct {
	// StartURLs are the crawl roots.
	StartURLs []string `json:"startUrls"`
	// MaxDepth bounds link-following from the start URLs. Zero fetches
	// only the start URLs themselves.
	MaxDepth int `json:"maxCrawlDepth"`
	// IncludeGlobs restricts followed links to matching URLs.
	IncludeGlobs []string `json:"includeUrlGlobs,omitempty"`
	// ExcludeGlobs drops followed links matching any pattern.
	ExcludeGlobs []string `json:"excludeUrlGlobs,omitempty"`
	// MaxPages caps the number of fetched pages.
	MaxPages int `json:"maxCrawlPages"`
}

// PageMetadata carries extracted page metadata.
type PageMetadata struct {
	Title string `json:"title"`
}

// PageResult is one fetched page.
type PageResult struct {
	URL      string       `json:"url"`
	Markdown string       `json:"markdown"`
	Metadata PageMetadata `json:"metadata"`
}

// Engine runs fetch jobs. A job failure, including a completed job with no
// retrievable result set, is reported as an error; the caller retries the
// whole batch.
type Engine interface {
	Run(ctx context.Context, req JobRequest) ([]PageResult, error)
}
