// Package domain provides the data model shared by all pipeline stages.
package domain

import (
	"time"
)

// ChangeReason classifies why a URL was queued by the sitemap scan.
type ChangeReason string

const (
	// ReasonNew marks a URL absent from the previous snapshot.
	ReasonNew ChangeReason = "new"
	// ReasonUpdated marks a URL whose lastmod changed since the previous snapshot.
	ReasonUpdated ChangeReason = "updated"
	// ReasonRemoved marks a URL no longer present in the current sitemap.
	ReasonRemoved ChangeReason = "removed"
)

// IndexAction is the operation the applier performs against the search index.
type IndexAction string

const (
	// ActionMergeOrUpload upserts a document into the index.
	ActionMergeOrUpload IndexAction = "mergeOrUpload"
	// ActionDelete removes a document from the index.
	ActionDelete IndexAction = "delete"
)

// ExtraEntryPoint is an ad-hoc crawl root configured per tenant, crawled on
// every orchestrator run independently of the sitemap.
type ExtraEntryPoint struct {
	URL          string   `json:"url"`
	CrawlDepth   int      `json:"crawlDepth"`
	IncludeGlobs []string `json:"includeUrlGlobs,omitempty"`
	ExcludeGlobs []string `json:"excludeUrlGlobs,omitempty"`
	MaxPages     int      `json:"maxCrawlPages,omitempty"`
}

// TenantConfig is the immutable per-tenant configuration record. It is loaded
// from the tenants KV store once per run and never mutated by the pipeline.
type TenantConfig struct {
	TenantID         string            `json:"tenantId"`
	SitemapURL       string            `json:"sitemapUrl"`
	SiteURL          string            `json:"siteUrl"`
	Whitelist        []string          `json:"whitelist,omitempty"`
	Blacklist        []string          `json:"blacklist,omitempty"`
	ResultStoreName  string            `json:"resultStoreName"`
	IndexName        string            `json:"indexName"`
	ExtraEntryPoints []ExtraEntryPoint `json:"extraEntryPoints,omitempty"`
}

// URLRecord is a single sitemap entry. LastMod may be empty when the sitemap
// does not publish a modification date.
type URLRecord struct {
	Loc     string `json:"loc"`
	LastMod string `json:"lastmod"`
}

// SitemapSnapshot is the last-known filtered sitemap state for one tenant.
// It is written as a whole-object replace once per successful scan and is the
// sole source of truth for change detection on the next run.
type SitemapSnapshot struct {
	TenantID      string      `json:"tenantId"`
	SitemapURL    string      `json:"sitemapUrl"`
	URLs          []URLRecord `json:"urls"`
	LastCheckedAt time.Time   `json:"lastCheckedAt"`
}

// ChangeRecord is one detected addition, update, or removal of a tracked URL.
// Produced by the scanner, consumed by the orchestrator with at-least-once
// delivery.
type ChangeRecord struct {
	TenantID string       `json:"tenantId"`
	Loc      string       `json:"loc"`
	LastMod  string       `json:"lastmod"`
	Reason   ChangeReason `json:"reason"`
}

// ParsedPage is the fetched content of one page, persisted to the tenant's
// result store under its deterministic page key.
type ParsedPage struct {
	URL       string `json:"url"`
	TenantID  string `json:"tenantId"`
	Markdown  string `json:"markdown"`
	Title     string `json:"title"`
	IndexedAt string `json:"indexedAt"`
}

// IndexActionRecord instructs the applier to upsert or delete one document.
// ResultKey resolves to a ParsedPage for mergeOrUpload and is ignored for
// delete.
type IndexActionRecord struct {
	TenantID  string      `json:"tenantId"`
	URL       string      `json:"url"`
	Action    IndexAction `json:"action"`
	ResultKey string      `json:"parsedResultKey,omitempty"`
}

// MainConfig names the queues and stores a pipeline run operates on. It is
// read from a well-known key in the main-config KV store at stage startup.
type MainConfig struct {
	TenantsStoreName  string `json:"tenantsKvStoreName"`
	SnapshotStoreName string `json:"sitemapSnapshotKvStoreName"`
	ChangeQueueName   string `json:"changeQueueName"`
	ActionQueueName   string `json:"actionQueueName"`
}
