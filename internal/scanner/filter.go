package scanner

import (
	"regexp"

	"github.com/northvine/sitesync/internal/domain"
)

// urlFilter applies a tenant's whitelist/blacklist rules to sitemap URLs.
// A configured whitelist wins over the blacklist; with neither configured
// every URL passes.
type urlFilter struct {
	whitelist []*regexp.Regexp
	blacklist []*regexp.Regexp
}

// newURLFilter compiles the tenant's filter patterns.
func newURLFilter(cfg *domain.TenantConfig) (*urlFilter, error) {
	f := &urlFilter{}

	for _, pattern := range cfg.Whitelist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, domain.ConfigError("tenant %q: invalid whitelist pattern %q: %v",
				cfg.TenantID, pattern, err)
		}
		f.whitelist = append(f.whitelist, re)
	}
	for _, pattern := range cfg.Blacklist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, domain.ConfigError("tenant %q: invalid blacklist pattern %q: %v",
				cfg.TenantID, pattern, err)
		}
		f.blacklist = append(f.blacklist, re)
	}

	return f, nil
}

// apply returns the URLs that survive filtering.
func (f *urlFilter) apply(urls []domain.URLRecord) []domain.URLRecord {
	if len(f.whitelist) == 0 && len(f.blacklist) == 0 {
		return urls
	}

	kept := make([]domain.URLRecord, 0, len(urls))
	for _, u := range urls {
		if f.keep(u.Loc) {
			kept = append(kept, u)
		}
	}
	return kept
}

// keep reports whether loc survives the configured rules.
func (f *urlFilter) keep(loc string) bool {
	if len(f.whitelist) > 0 {
		for _, re := range f.whitelist {
			if re.MatchString(loc) {
				return true
			}
		}
		return false
	}

	for _, re := range f.blacklist {
		if re.MatchString(loc) {
			return false
		}
	}
	return true
}
