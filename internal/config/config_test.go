package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/northvine/sitesync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
logger:
  level: debug
redis:
  address: redis.internal:6380
  db: 2
elasticsearch:
  url: http://es.internal:9200
fetch_engine:
  base_url: https://crawl.internal/api
  poll_interval: 5s
pipeline:
  main_config_store: main-config
  sitemap_timeout: 30s
scheduler:
  scan_cron: "0 * * * *"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "http://es.internal:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, "https://crawl.internal/api", cfg.FetchEngine.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.FetchEngine.PollInterval)
	assert.Equal(t, "main-config", cfg.Pipeline.MainConfigStore)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.SitemapTimeout)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.ScanCron)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "logger:\n  level: info\n"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "http://localhost:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.SitemapTimeout)
	assert.Equal(t, 2*time.Hour, cfg.FetchEngine.JobTimeout)
	assert.NotEmpty(t, cfg.Pipeline.MainConfigStore)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
