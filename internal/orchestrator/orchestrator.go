// Package orchestrator implements the crawl orchestration stage. It drains
// the change queue, groups pending changes by tenant, delegates content
// fetching to the external crawl engine one job per tenant, persists fetched
// pages, and emits index actions downstream.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/fetchengine"
	"github.com/northvine/sitesync/internal/kvstore"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/queue"
	"github.com/northvine/sitesync/internal/tenant"
)

const (
	// defaultMaxFetchPages caps a sitemap-driven fetch job.
	defaultMaxFetchPages = 10000
	// defaultEntryPointMaxPages caps an extra-entry-point job when the
	// tenant config does not set one.
	defaultEntryPointMaxPages = 1000
)

// pendingChange pairs a delivered queue message with its decoded record.
type pendingChange struct {
	msg *queue.Message
	rec domain.ChangeRecord
}

// Orchestrator is the crawl orchestration stage.
type Orchestrator struct {
	changes queue.Queue
	actions queue.Queue
	engine  fetchengine.Engine
	stores  kvstore.Opener
	logger  logger.Logger
	now     func() time.Time
}

// New creates an Orchestrator consuming changes and producing actions.
// Result stores are opened by name through stores as tenants require them.
func New(changes, actions queue.Queue, engine fetchengine.Engine, stores kvstore.Opener, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		changes: changes,
		actions: actions,
		engine:  engine,
		stores:  stores,
		logger:  log,
		now:     time.Now,
	}
}

// Run processes one orchestration pass: it drains every change record
// currently in the queue, groups them by tenant, and handles each tenant
// independently. Extra entry points are crawled for every tenant regardless
// of queue contents. A failure inside one tenant never affects another.
func (o *Orchestrator) Run(ctx context.Context, tenants []domain.TenantConfig) error {
	groups, err := o.drainChangeQueue(ctx)
	if err != nil {
		return fmt.Errorf("drain change queue: %w", err)
	}

	for i := range tenants {
		cfg := &tenants[i]

		if err := tenant.Validate(cfg); err != nil {
			o.logger.Error("Skipping tenant with invalid config",
				logger.String("tenant", cfg.TenantID),
				logger.Error(err))
			o.reclaimAll(ctx, groups[cfg.TenantID])
			delete(groups, cfg.TenantID)
			continue
		}

		// Entry points run every pass, even with an empty queue.
		o.processExtraEntryPoints(ctx, cfg)

		batch := groups[cfg.TenantID]
		delete(groups, cfg.TenantID)
		if len(batch) == 0 {
			continue
		}

		o.logger.Info("Processing tenant batch",
			logger.String("tenant", cfg.TenantID),
			logger.Int("pending", len(batch)))
		o.processBatch(ctx, cfg, batch)
	}

	// Records whose tenant has no configuration: give them back to the
	// queue, an operator may still upload the config.
	for tenantID, batch := range groups {
		o.logger.Error("No config for tenant with pending changes",
			logger.String("tenant", tenantID),
			logger.Int("pending", len(batch)))
		o.reclaimAll(ctx, batch)
	}

	return nil
}

// drainChangeQueue exhausts the change queue, grouping decodable records by
// tenant. The mapping is scoped to this run and discarded afterwards.
// Records with no tenant id, or that fail to decode, are reclaimed only after
// the drain completes, otherwise this loop would re-read them.
func (o *Orchestrator) drainChangeQueue(ctx context.Context) (map[string][]*pendingChange, error) {
	groups := make(map[string][]*pendingChange)
	var undecodable []*queue.Message

	for {
		msg, err := o.changes.FetchNext(ctx)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			break
		}

		var rec domain.ChangeRecord
		if err := json.Unmarshal(msg.Payload, &rec); err != nil || rec.TenantID == "" {
			o.logger.Error("Undecodable change record",
				logger.String("message_id", msg.ID),
				logger.Error(err))
			undecodable = append(undecodable, msg)
			continue
		}

		groups[rec.TenantID] = append(groups[rec.TenantID], &pendingChange{msg: msg, rec: rec})
	}

	for _, msg := range undecodable {
		o.reclaim(ctx, msg)
	}
	return groups, nil
}

// processBatch handles one tenant's pending changes: removals become delete
// actions directly, the rest go through a single fetch job.
func (o *Orchestrator) processBatch(ctx context.Context, cfg *domain.TenantConfig, batch []*pendingChange) {
	var toDelete, toFetch []*pendingChange
	for _, p := range batch {
		if p.rec.Reason == domain.ReasonRemoved {
			toDelete = append(toDelete, p)
		} else {
			toFetch = append(toFetch, p)
		}
	}

	for _, p := range toDelete {
		o.processRemoval(ctx, cfg, p)
	}

	if len(toFetch) == 0 {
		o.logger.Info("Nothing to fetch for tenant",
			logger.String("tenant", cfg.TenantID))
		return
	}

	o.processFetches(ctx, cfg, toFetch)
}

// processRemoval emits a delete action for one removed URL. A failure marks
// only this record for retry.
func (o *Orchestrator) processRemoval(ctx context.Context, cfg *domain.TenantConfig, p *pendingChange) {
	err := o.emitAction(ctx, domain.IndexActionRecord{
		TenantID:  cfg.TenantID,
		URL:       p.rec.Loc,
		Action:    domain.ActionDelete,
		ResultKey: domain.PageKey(cfg.TenantID, p.rec.Loc),
	})
	if err != nil {
		o.logger.Error("Failed to emit delete action",
			logger.String("tenant", cfg.TenantID),
			logger.String("url", p.rec.Loc),
			logger.Error(err))
		o.reclaim(ctx, p.msg)
		return
	}

	o.logger.Info("Removed page sent for index deletion",
		logger.String("tenant", cfg.TenantID),
		logger.String("url", p.rec.Loc))
	o.ack(ctx, p.msg)
}

// processFetches runs one fetch job covering every new/updated URL of the
// tenant. A job failure retries the whole set: the external job is opaque, so
// partial success inside it cannot be separated from outside.
func (o *Orchestrator) processFetches(ctx context.Context, cfg *domain.TenantConfig, toFetch []*pendingChange) {
	byLoc := make(map[string][]*pendingChange, len(toFetch))
	startURLs := make([]string, 0, len(toFetch))
	for _, p := range toFetch {
		if _, seen := byLoc[p.rec.Loc]; !seen {
			startURLs = append(startURLs, p.rec.Loc)
		}
		byLoc[p.rec.Loc] = append(byLoc[p.rec.Loc], p)
	}

	o.logger.Info("Dispatching fetch job",
		logger.String("tenant", cfg.TenantID),
		logger.Int("urls", len(startURLs)))

	pages, err := o.engine.Run(ctx, fetchengine.JobRequest{
		StartURLs: startURLs,
		MaxPages:  defaultMaxFetchPages,
	})
	if err != nil {
		o.logger.Error("Fetch job failed, retrying whole batch",
			logger.String("tenant", cfg.TenantID),
			logger.Int("urls", len(startURLs)),
			logger.Error(err))
		o.reclaimAll(ctx, toFetch)
		return
	}

	failedLocs := make(map[string]struct{})
	for i := range pages {
		page := &pages[i]
		if err := o.storePage(ctx, cfg, page); err != nil {
			o.logger.Error("Failed to persist fetched page",
				logger.String("tenant", cfg.TenantID),
				logger.String("url", page.URL),
				logger.Error(err))
			failedLocs[page.URL] = struct{}{}
		}
	}

	for _, p := range toFetch {
		if _, failed := failedLocs[p.rec.Loc]; failed {
			o.reclaim(ctx, p.msg)
			continue
		}
		o.ack(ctx, p.msg)
	}
}

// storePage persists one fetched page to the tenant's result store and emits
// its upsert action.
func (o *Orchestrator) storePage(ctx context.Context, cfg *domain.TenantConfig, page *fetchengine.PageResult) error {
	parsed := domain.ParsedPage{
		URL:       page.URL,
		TenantID:  cfg.TenantID,
		Markdown:  page.Markdown,
		Title:     page.Metadata.Title,
		IndexedAt: o.now().UTC().Format(time.RFC3339),
	}

	raw, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("marshal parsed page: %w", err)
	}

	key := domain.PageKey(cfg.TenantID, page.URL)
	if err := o.stores.Open(cfg.ResultStoreName).Put(ctx, key, raw); err != nil {
		return domain.StoreError(err, "persist parsed page")
	}

	return o.emitAction(ctx, domain.IndexActionRecord{
		TenantID:  cfg.TenantID,
		URL:       page.URL,
		Action:    domain.ActionMergeOrUpload,
		ResultKey: key,
	})
}

// processExtraEntryPoints crawls each configured entry point with its own
// fetch job. Entry points always emit upserts; they are not sitemap-tracked,
// so there is no delete path. Failures are isolated per entry point.
func (o *Orchestrator) processExtraEntryPoints(ctx context.Context, cfg *domain.TenantConfig) {
	if len(cfg.ExtraEntryPoints) == 0 {
		return
	}

	for i := range cfg.ExtraEntryPoints {
		ep := &cfg.ExtraEntryPoints[i]

		maxPages := ep.MaxPages
		if maxPages <= 0 {
			maxPages = defaultEntryPointMaxPages
		}

		o.logger.Info("Crawling extra entry point",
			logger.String("tenant", cfg.TenantID),
			logger.String("url", ep.URL))

		pages, err := o.engine.Run(ctx, fetchengine.JobRequest{
			StartURLs:    []string{ep.URL},
			MaxDepth:     ep.CrawlDepth,
			IncludeGlobs: ep.IncludeGlobs,
			ExcludeGlobs: ep.ExcludeGlobs,
			MaxPages:     maxPages,
		})
		if err != nil {
			o.logger.Error("Extra entry point crawl failed",
				logger.String("tenant", cfg.TenantID),
				logger.String("url", ep.URL),
				logger.Error(err))
			continue
		}

		for j := range pages {
			if err := o.storePage(ctx, cfg, &pages[j]); err != nil {
				o.logger.Error("Failed to process entry point page",
					logger.String("tenant", cfg.TenantID),
					logger.String("url", pages[j].URL),
					logger.Error(err))
			}
		}
	}
}

// emitAction enqueues one index action record.
func (o *Orchestrator) emitAction(ctx context.Context, action domain.IndexActionRecord) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal index action: %w", err)
	}

	dedupeKey := domain.DeliveryKey(action.TenantID, action.URL, o.now())
	if _, err := o.actions.Enqueue(ctx, payload, dedupeKey); err != nil {
		return fmt.Errorf("enqueue index action for %q: %w", action.URL, err)
	}
	return nil
}

// ack acknowledges a message, logging any failure. An unacked message is
// redelivered later, which is safe because consumers are idempotent.
func (o *Orchestrator) ack(ctx context.Context, msg *queue.Message) {
	if err := o.changes.Ack(ctx, msg); err != nil {
		o.logger.Error("Failed to ack change record",
			logger.String("message_id", msg.ID),
			logger.Error(err))
	}
}

// reclaim returns a message to the queue for redelivery.
func (o *Orchestrator) reclaim(ctx context.Context, msg *queue.Message) {
	if err := o.changes.Reclaim(ctx, msg); err != nil {
		o.logger.Error("Failed to reclaim change record",
			logger.String("message_id", msg.ID),
			logger.Error(err))
	}
}

// reclaimAll reclaims every message in the batch.
func (o *Orchestrator) reclaimAll(ctx context.Context, batch []*pendingChange) {
	for _, p := range batch {
		o.reclaim(ctx, p.msg)
	}
}
