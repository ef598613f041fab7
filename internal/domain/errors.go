package domain

import (
	"errors"
	"fmt"
)

// The pipeline error taxonomy. Every failure surfaced by a stage wraps one of
// these so callers can decide between ack, reclaim, and skip.
var (
	// ErrConfig marks invalid or missing tenant/main configuration.
	// Unretryable: the unit is skipped and logged.
	ErrConfig = errors.New("configuration error")
	// ErrFetch marks an unreachable sitemap or a failed content-fetch job.
	// Retryable at the next scheduled run.
	ErrFetch = errors.New("fetch error")
	// ErrStore marks a snapshot or result-store read/write failure.
	// Retryable per item via queue reclaim.
	ErrStore = errors.New("store error")
	// ErrIndexMissing marks a target index absent from the provider's
	// listing. Unretryable without operator intervention.
	ErrIndexMissing = errors.New("index not found")
	// ErrIndex marks any other search-index failure. Retryable via reclaim.
	ErrIndex = errors.New("index error")
)

// ConfigError wraps err so that errors.Is(err, ErrConfig) holds.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// FetchError wraps cause as a retryable fetch failure.
func FetchError(cause error, context string) error {
	return fmt.Errorf("%w: %s: %w", ErrFetch, context, cause)
}

// StoreError wraps cause as a retryable store failure.
func StoreError(cause error, context string) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, context, cause)
}

// IndexError wraps cause as a retryable index failure.
func IndexError(cause error, context string) error {
	return fmt.Errorf("%w: %s: %w", ErrIndex, context, cause)
}

// IsRetryable reports whether the unit of work that produced err should be
// returned to its queue. Configuration errors and missing indexes cannot
// succeed on redelivery; everything else is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConfig) || errors.Is(err, ErrIndexMissing) {
		return false
	}
	return true
}

// Validate checks that every required tenant field is present.
func (c *TenantConfig) Validate() error {
	if c.TenantID == "" {
		return ConfigError("tenant config has empty tenantId")
	}
	if c.IndexName == "" {
		return ConfigError("tenant %q has empty indexName", c.TenantID)
	}
	if c.ResultStoreName == "" {
		return ConfigError("tenant %q has empty resultStoreName", c.TenantID)
	}
	if c.SiteURL == "" {
		return ConfigError("tenant %q has empty siteUrl", c.TenantID)
	}
	if c.SitemapURL == "" {
		return ConfigError("tenant %q has empty sitemapUrl", c.TenantID)
	}
	return nil
}

// Validate checks that every queue and store name is present.
func (c *MainConfig) Validate() error {
	if c.TenantsStoreName == "" {
		return ConfigError("main config has empty tenantsKvStoreName")
	}
	if c.SnapshotStoreName == "" {
		return ConfigError("main config has empty sitemapSnapshotKvStoreName")
	}
	if c.ChangeQueueName == "" {
		return ConfigError("main config has empty changeQueueName")
	}
	if c.ActionQueueName == "" {
		return ConfigError("main config has empty actionQueueName")
	}
	return nil
}
