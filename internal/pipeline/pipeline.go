// Package pipeline wires the three stages to their shared infrastructure.
// Stage commands construct a Pipeline from application config, and the
// run-scoped queue and store names come from the main-config record.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/northvine/sitesync/internal/applier"
	"github.com/northvine/sitesync/internal/config"
	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/fetchengine"
	"github.com/northvine/sitesync/internal/kvstore"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/orchestrator"
	"github.com/northvine/sitesync/internal/queue"
	"github.com/northvine/sitesync/internal/redis"
	"github.com/northvine/sitesync/internal/scanner"
	"github.com/northvine/sitesync/internal/searchindex"
	"github.com/northvine/sitesync/internal/sitemap"
	"github.com/northvine/sitesync/internal/tenant"
)

// MainConfigKey is the well-known record key of the main config inside its
// KV store.
const MainConfigKey = "main-config"

// Consumer group names, one per consuming stage.
const (
	orchestratorGroup = "orchestrator"
	applierGroup      = "applier"
)

// LoadMainConfig reads and validates the main-config record from the named
// KV store. A missing or malformed record is a fatal startup error for the
// stage run.
func LoadMainConfig(ctx context.Context, opener kvstore.Opener, storeName string) (*domain.MainConfig, error) {
	raw, ok, err := opener.Open(storeName).Get(ctx, MainConfigKey)
	if err != nil {
		return nil, domain.StoreError(err, fmt.Sprintf("get main config from %q", storeName))
	}
	if !ok {
		return nil, domain.ConfigError("main config record %q not found in store %q", MainConfigKey, storeName)
	}

	var mc domain.MainConfig
	if err := json.Unmarshal(raw, &mc); err != nil {
		return nil, domain.ConfigError("main config record: %v", err)
	}
	if err := mc.Validate(); err != nil {
		return nil, err
	}

	return &mc, nil
}

// Pipeline holds the fully wired stages of one deployment.
type Pipeline struct {
	Scanner      *scanner.Scanner
	Orchestrator *orchestrator.Orchestrator
	Applier      *applier.Applier

	tenants *tenant.Loader
	client  *goredis.Client
}

// New connects to the backing services, resolves the main config, and wires
// all three stages. Close must be called when done.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	client, err := redis.NewClient(redis.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	p, err := build(ctx, cfg, client, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func build(ctx context.Context, cfg *config.Config, client *goredis.Client, log logger.Logger) (*Pipeline, error) {
	stores := kvstore.NewRedisOpener(client)

	mc, err := LoadMainConfig(ctx, stores, cfg.Pipeline.MainConfigStore)
	if err != nil {
		return nil, fmt.Errorf("load main config: %w", err)
	}

	changes, err := queue.NewRedisQueue(ctx, client, queue.RedisQueueConfig{
		Name:  mc.ChangeQueueName,
		Group: orchestratorGroup,
	})
	if err != nil {
		return nil, fmt.Errorf("open change queue: %w", err)
	}

	actions, err := queue.NewRedisQueue(ctx, client, queue.RedisQueueConfig{
		Name:  mc.ActionQueueName,
		Group: applierGroup,
	})
	if err != nil {
		return nil, fmt.Errorf("open action queue: %w", err)
	}

	index, err := searchindex.NewElasticsearch(searchindex.Config{
		URL:        cfg.Elasticsearch.URL,
		Username:   cfg.Elasticsearch.Username,
		Password:   cfg.Elasticsearch.Password,
		APIKey:     cfg.Elasticsearch.APIKey,
		MaxRetries: cfg.Elasticsearch.MaxRetries,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect elasticsearch: %w", err)
	}

	engine := fetchengine.NewClient(cfg.FetchEngine.BaseURL, cfg.FetchEngine.APIKey, log,
		fetchengine.WithTimeout(cfg.FetchEngine.JobTimeout),
		fetchengine.WithPollInterval(cfg.FetchEngine.PollInterval))

	fetcher := sitemap.NewClient(cfg.Pipeline.SitemapTimeout, log)
	tenants := tenant.NewLoader(stores.Open(mc.TenantsStoreName), log)

	return &Pipeline{
		Scanner:      scanner.New(fetcher, stores.Open(mc.SnapshotStoreName), changes, log),
		Orchestrator: orchestrator.New(changes, actions, engine, stores, log),
		Applier:      applier.New(actions, tenants, stores, index, log),
		tenants:      tenants,
		client:       client,
	}, nil
}

// Close releases the shared Redis connection.
func (p *Pipeline) Close() error {
	return p.client.Close()
}

// Scan runs one sitemap scan pass over every configured tenant.
func (p *Pipeline) Scan(ctx context.Context) error {
	tenants, err := p.tenants.LoadAll(ctx)
	if err != nil {
		return err
	}
	return p.Scanner.Run(ctx, tenants)
}

// Orchestrate runs one crawl orchestration pass.
func (p *Pipeline) Orchestrate(ctx context.Context) error {
	tenants, err := p.tenants.LoadAll(ctx)
	if err != nil {
		return err
	}
	return p.Orchestrator.Run(ctx, tenants)
}

// Apply runs one index application pass.
func (p *Pipeline) Apply(ctx context.Context) error {
	return p.Applier.Run(ctx)
}
