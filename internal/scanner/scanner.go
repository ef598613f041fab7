// Package scanner implements the sitemap-diffing change detector. For each
// tenant it fetches the current sitemap, filters it, diffs it against the
// persisted snapshot, enqueues one change record per difference, and replaces
// the snapshot.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/kvstore"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/queue"
	"github.com/northvine/sitesync/internal/sitemap"
	"github.com/northvine/sitesync/internal/tenant"
)

// Scanner is the snapshot differ stage.
type Scanner struct {
	fetcher   sitemap.Fetcher
	snapshots kvstore.Store
	changes   queue.Queue
	logger    logger.Logger
	now       func() time.Time
}

// New creates a Scanner writing snapshots to snapshots and change records to
// changes.
func New(fetcher sitemap.Fetcher, snapshots kvstore.Store, changes queue.Queue, log logger.Logger) *Scanner {
	return &Scanner{
		fetcher:   fetcher,
		snapshots: snapshots,
		changes:   changes,
		logger:    log,
		now:       time.Now,
	}
}

// Run scans every tenant. A failing tenant is logged and skipped; it never
// affects the others. An error is returned only when every tenant failed.
func (s *Scanner) Run(ctx context.Context, tenants []domain.TenantConfig) error {
	if len(tenants) == 0 {
		s.logger.Info("No tenants configured, nothing to scan")
		return nil
	}

	failed := 0
	for i := range tenants {
		t := &tenants[i]
		if err := s.scanTenant(ctx, t); err != nil {
			failed++
			s.logger.Error("Tenant scan failed",
				logger.String("tenant", t.TenantID),
				logger.Error(err))
		}
	}

	s.logger.Info("Sitemap scanning finished",
		logger.Int("tenants", len(tenants)),
		logger.Int("failed", failed))

	if failed == len(tenants) {
		return fmt.Errorf("all %d tenant scans failed", failed)
	}
	return nil
}

// scanTenant computes the tenant's diff, enqueues its change records, and
// commits the new snapshot. The snapshot write comes last: if any enqueue
// fails the previous snapshot stays authoritative and the next run re-detects
// the same changes (consumers are idempotent, so double enqueues are safe).
func (s *Scanner) scanTenant(ctx context.Context, t *domain.TenantConfig) error {
	changes, snapshot, err := s.Scan(ctx, t)
	if err != nil {
		return err
	}

	for _, rec := range changes {
		payload, marshalErr := json.Marshal(rec)
		if marshalErr != nil {
			return fmt.Errorf("marshal change record for %q: %w", rec.Loc, marshalErr)
		}
		dedupeKey := domain.DeliveryKey(t.TenantID, rec.Loc, s.now())
		if _, enqErr := s.changes.Enqueue(ctx, payload, dedupeKey); enqErr != nil {
			return fmt.Errorf("enqueue change for %q: %w", rec.Loc, enqErr)
		}
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.snapshots.Put(ctx, t.TenantID, raw); err != nil {
		return domain.StoreError(err, "persist snapshot")
	}

	s.logger.Info("Tenant scan complete",
		logger.String("tenant", t.TenantID),
		logger.Int("tracked_urls", len(snapshot.URLs)),
		logger.Int("queued_changes", len(changes)))
	return nil
}

// Scan fetches and filters the tenant's sitemap and diffs it against the
// prior snapshot. It performs no writes.
func (s *Scanner) Scan(ctx context.Context, t *domain.TenantConfig) ([]domain.ChangeRecord, domain.SitemapSnapshot, error) {
	var snapshot domain.SitemapSnapshot

	if err := tenant.Validate(t); err != nil {
		return nil, snapshot, err
	}

	filter, err := newURLFilter(t)
	if err != nil {
		return nil, snapshot, err
	}

	allURLs, err := s.fetcher.FetchURLs(ctx, t.SitemapURL)
	if err != nil {
		return nil, snapshot, err
	}

	filtered := filter.apply(allURLs)
	s.logger.Info("Fetched sitemap",
		logger.String("tenant", t.TenantID),
		logger.Int("total_urls", len(allURLs)),
		logger.Int("filtered_out", len(allURLs)-len(filtered)))

	prior, err := s.loadSnapshot(ctx, t.TenantID)
	if err != nil {
		return nil, snapshot, err
	}

	changes, newURLs, err := Diff(t.TenantID, filtered, prior)
	if err != nil {
		return nil, snapshot, err
	}

	snapshot = domain.SitemapSnapshot{
		TenantID:      t.TenantID,
		SitemapURL:    t.SitemapURL,
		URLs:          newURLs,
		LastCheckedAt: s.now().UTC(),
	}
	return changes, snapshot, nil
}

// loadSnapshot returns the tenant's prior snapshot, or an empty one when none
// has been written yet.
func (s *Scanner) loadSnapshot(ctx context.Context, tenantID string) (*domain.SitemapSnapshot, error) {
	raw, ok, err := s.snapshots.Get(ctx, tenantID)
	if err != nil {
		return nil, domain.StoreError(err, "load snapshot")
	}
	if !ok {
		return &domain.SitemapSnapshot{TenantID: tenantID}, nil
	}

	var snapshot domain.SitemapSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, domain.ConfigError("tenant %q: corrupt snapshot: %v", tenantID, err)
	}
	return &snapshot, nil
}
