// Package tenant manages the configuration of the websites tracked by the
// pipeline. Tenant configs live as JSON records in a KV store, one record per
// tenant keyed by tenant id.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/gobwas/glob"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/kvstore"
	"github.com/northvine/sitesync/internal/logger"
)

// Loader reads tenant configurations from the tenants KV store.
type Loader struct {
	store  kvstore.Store
	logger logger.Logger
}

// NewLoader creates a Loader over the given tenants store.
func NewLoader(store kvstore.Store, log logger.Logger) *Loader {
	return &Loader{store: store, logger: log}
}

// LoadAll returns every decodable tenant config in the store. Records that
// fail to decode are logged and skipped; they never abort the run.
func (l *Loader) LoadAll(ctx context.Context) ([]domain.TenantConfig, error) {
	keys, err := l.store.Keys(ctx)
	if err != nil {
		return nil, domain.StoreError(err, "list tenant configs")
	}

	configs := make([]domain.TenantConfig, 0, len(keys))
	for _, key := range keys {
		cfg, loadErr := l.Load(ctx, key)
		if loadErr != nil {
			l.logger.Warn("Skipping unreadable tenant config",
				logger.String("tenant", key),
				logger.Error(loadErr))
			continue
		}
		configs = append(configs, *cfg)
	}

	return configs, nil
}

// Load returns the tenant config stored under tenantID.
func (l *Loader) Load(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	raw, ok, err := l.store.Get(ctx, tenantID)
	if err != nil {
		return nil, domain.StoreError(err, fmt.Sprintf("get tenant %q", tenantID))
	}
	if !ok {
		return nil, domain.ConfigError("tenant config %q not found", tenantID)
	}

	var cfg domain.TenantConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, domain.ConfigError("tenant config %q: %v", tenantID, err)
	}

	return &cfg, nil
}

// Validate checks required fields plus the compilability of every filter
// pattern the pipeline would later use: whitelist/blacklist regexes and
// extra-entry-point URL globs.
func Validate(cfg *domain.TenantConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, pattern := range cfg.Whitelist {
		if _, err := regexp.Compile(pattern); err != nil {
			return domain.ConfigError("tenant %q: invalid whitelist pattern %q: %v",
				cfg.TenantID, pattern, err)
		}
	}
	for _, pattern := range cfg.Blacklist {
		if _, err := regexp.Compile(pattern); err != nil {
			return domain.ConfigError("tenant %q: invalid blacklist pattern %q: %v",
				cfg.TenantID, pattern, err)
		}
	}

	for i := range cfg.ExtraEntryPoints {
		ep := &cfg.ExtraEntryPoints[i]
		if ep.URL == "" {
			return domain.ConfigError("tenant %q: extra entry point with empty url", cfg.TenantID)
		}
		if ep.CrawlDepth < 0 {
			return domain.ConfigError("tenant %q: extra entry point %q has negative crawlDepth",
				cfg.TenantID, ep.URL)
		}
		for _, g := range ep.IncludeGlobs {
			if _, err := glob.Compile(g); err != nil {
				return domain.ConfigError("tenant %q: invalid include glob %q: %v",
					cfg.TenantID, g, err)
			}
		}
		for _, g := range ep.ExcludeGlobs {
			if _, err := glob.Compile(g); err != nil {
				return domain.ConfigError("tenant %q: invalid exclude glob %q: %v",
					cfg.TenantID, g, err)
			}
		}
	}

	return nil
}
