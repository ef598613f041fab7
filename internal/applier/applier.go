// Package applier implements the index application stage. It drains the
// action queue and applies each upsert or delete to the tenant's search
// index. Every operation is idempotent, so redelivered actions are safe.
package applier

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/kvstore"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/queue"
	"github.com/northvine/sitesync/internal/searchindex"
	"github.com/northvine/sitesync/internal/tenant"
)

// Applier is the index application stage.
type Applier struct {
	actions queue.Queue
	tenants *tenant.Loader
	stores  kvstore.Opener
	index   searchindex.Provider
	logger  logger.Logger
}

// New creates an Applier consuming actions and writing through index.
func New(actions queue.Queue, tenants *tenant.Loader, stores kvstore.Opener, index searchindex.Provider, log logger.Logger) *Applier {
	return &Applier{
		actions: actions,
		tenants: tenants,
		stores:  stores,
		index:   index,
		logger:  log,
	}
}

// runCache holds lookups valid for a single pass: tenant configs and the
// provider's index listing. Both may change between passes, never within one.
type runCache struct {
	tenants map[string]*domain.TenantConfig
	indexes []string
	listed  bool
}

// Run drains the action queue, applying each action independently. Retryable
// failures reclaim the action for a later pass; unretryable ones are dropped
// with an error log so they cannot wedge the queue.
func (a *Applier) Run(ctx context.Context) error {
	cache := &runCache{tenants: make(map[string]*domain.TenantConfig)}
	var applied, retried, dropped int

	// Drain before applying. Reclaims during application re-append to the
	// queue; interleaving them with fetching would re-read them in the same
	// pass.
	var msgs []*queue.Message
	for {
		msg, err := a.actions.FetchNext(ctx)
		if err != nil {
			return fmt.Errorf("fetch next action: %w", err)
		}
		if msg == nil {
			break
		}
		msgs = append(msgs, msg)
	}

	for _, msg := range msgs {
		var rec domain.IndexActionRecord
		if err := json.Unmarshal(msg.Payload, &rec); err != nil || rec.TenantID == "" || rec.URL == "" {
			a.logger.Error("Dropping undecodable index action",
				logger.String("message_id", msg.ID),
				logger.Error(err))
			a.ack(ctx, msg)
			dropped++
			continue
		}

		if err := a.apply(ctx, cache, &rec); err != nil {
			if domain.IsRetryable(err) {
				a.logger.Error("Index action failed, will retry",
					logger.String("tenant", rec.TenantID),
					logger.String("url", rec.URL),
					logger.String("action", string(rec.Action)),
					logger.Error(err))
				a.reclaim(ctx, msg)
				retried++
				continue
			}
			a.logger.Error("Dropping unretryable index action",
				logger.String("tenant", rec.TenantID),
				logger.String("url", rec.URL),
				logger.String("action", string(rec.Action)),
				logger.Error(err))
			a.ack(ctx, msg)
			dropped++
			continue
		}

		a.ack(ctx, msg)
		applied++
	}

	a.logger.Info("Apply pass complete",
		logger.Int("applied", applied),
		logger.Int("retried", retried),
		logger.Int("dropped", dropped))
	return nil
}

// apply executes one action against the tenant's index.
func (a *Applier) apply(ctx context.Context, cache *runCache, rec *domain.IndexActionRecord) error {
	cfg, err := a.tenantConfig(ctx, cache, rec.TenantID)
	if err != nil {
		return err
	}

	indexes, err := a.listIndexes(ctx, cache)
	if err != nil {
		return err
	}
	if !slices.Contains(indexes, cfg.IndexName) {
		return fmt.Errorf("%w: %q for tenant %q", domain.ErrIndexMissing, cfg.IndexName, cfg.TenantID)
	}

	docID := domain.DocumentID(rec.URL)

	switch rec.Action {
	case domain.ActionDelete:
		if err := a.index.Delete(ctx, cfg.IndexName, docID); err != nil {
			return domain.IndexError(err, fmt.Sprintf("delete %q from %q", rec.URL, cfg.IndexName))
		}
		a.logger.Info("Deleted document",
			logger.String("tenant", cfg.TenantID),
			logger.String("url", rec.URL))
		return nil

	case domain.ActionMergeOrUpload:
		return a.upsert(ctx, cfg, rec, docID)

	default:
		return domain.ConfigError("unknown index action %q", rec.Action)
	}
}

// upsert loads the fetched page from the tenant's result store and merges it
// into the index.
func (a *Applier) upsert(ctx context.Context, cfg *domain.TenantConfig, rec *domain.IndexActionRecord, docID string) error {
	key := rec.ResultKey
	if key == "" {
		key = domain.PageKey(cfg.TenantID, rec.URL)
	}

	raw, ok, err := a.stores.Open(cfg.ResultStoreName).Get(ctx, key)
	if err != nil {
		return domain.StoreError(err, fmt.Sprintf("get parsed page %q", key))
	}
	if !ok {
		// A later orchestration pass may still write it.
		return domain.StoreError(fmt.Errorf("parsed page %q not found", key), "result store")
	}

	var page domain.ParsedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return domain.ConfigError("parsed page %q: %v", key, err)
	}

	doc := searchindex.Document{
		ID:      docID,
		URL:     rec.URL,
		Title:   page.Title,
		Content: page.Markdown,
	}
	if err := a.index.Upsert(ctx, cfg.IndexName, doc); err != nil {
		return domain.IndexError(err, fmt.Sprintf("upsert %q into %q", rec.URL, cfg.IndexName))
	}

	a.logger.Info("Upserted document",
		logger.String("tenant", cfg.TenantID),
		logger.String("url", rec.URL),
		logger.String("index", cfg.IndexName))
	return nil
}

// tenantConfig resolves and caches the tenant's config for this pass.
func (a *Applier) tenantConfig(ctx context.Context, cache *runCache, tenantID string) (*domain.TenantConfig, error) {
	if cfg, ok := cache.tenants[tenantID]; ok {
		return cfg, nil
	}

	cfg, err := a.tenants.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache.tenants[tenantID] = cfg
	return cfg, nil
}

// listIndexes fetches the provider's index listing once per pass.
func (a *Applier) listIndexes(ctx context.Context, cache *runCache) ([]string, error) {
	if cache.listed {
		return cache.indexes, nil
	}

	indexes, err := a.index.ListIndexes(ctx)
	if err != nil {
		return nil, domain.IndexError(err, "list indexes")
	}

	cache.indexes = indexes
	cache.listed = true
	return indexes, nil
}

func (a *Applier) ack(ctx context.Context, msg *queue.Message) {
	if err := a.actions.Ack(ctx, msg); err != nil {
		a.logger.Error("Failed to ack index action",
			logger.String("message_id", msg.ID),
			logger.Error(err))
	}
}

func (a *Applier) reclaim(ctx context.Context, msg *queue.Message) {
	if err := a.actions.Reclaim(ctx, msg); err != nil {
		a.logger.Error("Failed to reclaim index action",
			logger.String("message_id", msg.ID),
			logger.Error(err))
	}
}
