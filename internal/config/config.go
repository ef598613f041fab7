// Package config handles loading, validation, and access to configuration
// values from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/northvine/sitesync/internal/logger"
)

// Defaults applied when the config file leaves values unset.
const (
	defaultRedisAddress    = "localhost:6379"
	defaultElasticURL      = "http://localhost:9200"
	defaultSitemapTimeout  = 15 * time.Second
	defaultFetchJobTimeout = 2 * time.Hour
	defaultPollInterval    = 10 * time.Second
	defaultMaxRetries      = 3
	defaultMainConfigStore = "sitesync-main-config"
)

// Config represents the full application configuration.
type Config struct {
	// Logger holds structured logging configuration.
	Logger logger.Config `mapstructure:"logger"`
	// Redis holds connection settings for the queue and KV stores.
	Redis RedisConfig `mapstructure:"redis"`
	// Elasticsearch holds search index provider settings.
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	// FetchEngine holds the external content-fetch engine settings.
	FetchEngine FetchEngineConfig `mapstructure:"fetch_engine"`
	// Pipeline holds run-level settings shared by the stages.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Scheduler holds cron expressions for scheduled stage runs.
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db"`
}

// ElasticsearchConfig holds Elasticsearch client configuration.
type ElasticsearchConfig struct {
	URL        string `mapstructure:"url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password" json:"-"`
	APIKey     string `mapstructure:"api_key"  json:"-"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// FetchEngineConfig holds the external crawl engine client configuration.
type FetchEngineConfig struct {
	// BaseURL is the crawl engine API endpoint.
	BaseURL string `mapstructure:"base_url"`
	// APIKey authenticates job submissions.
	APIKey string `mapstructure:"api_key" json:"-"`
	// JobTimeout bounds one fetch job from submission to completion.
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	// PollInterval is the delay between job status polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// PipelineConfig holds run-level settings shared by all stages.
type PipelineConfig struct {
	// MainConfigStore is the KV store holding the main-config record that
	// names the queues and stores for a run.
	MainConfigStore string `mapstructure:"main_config_store"`
	// SitemapTimeout bounds a single sitemap fetch.
	SitemapTimeout time.Duration `mapstructure:"sitemap_timeout"`
}

// SchedulerConfig holds cron expressions for the scheduler command.
type SchedulerConfig struct {
	ScanCron        string `mapstructure:"scan_cron"`
	OrchestrateCron string `mapstructure:"orchestrate_cron"`
	ApplyCron       string `mapstructure:"apply_cron"`
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	c.Logger.SetDefaults()
	if c.Redis.Address == "" {
		c.Redis.Address = defaultRedisAddress
	}
	if c.Elasticsearch.URL == "" {
		c.Elasticsearch.URL = defaultElasticURL
	}
	if c.Elasticsearch.MaxRetries == 0 {
		c.Elasticsearch.MaxRetries = defaultMaxRetries
	}
	if c.FetchEngine.JobTimeout == 0 {
		c.FetchEngine.JobTimeout = defaultFetchJobTimeout
	}
	if c.FetchEngine.PollInterval == 0 {
		c.FetchEngine.PollInterval = defaultPollInterval
	}
	if c.Pipeline.MainConfigStore == "" {
		c.Pipeline.MainConfigStore = defaultMainConfigStore
	}
	if c.Pipeline.SitemapTimeout == 0 {
		c.Pipeline.SitemapTimeout = defaultSitemapTimeout
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Redis.Address == "" {
		return fmt.Errorf("redis: address is required")
	}
	if c.Elasticsearch.URL == "" {
		return fmt.Errorf("elasticsearch: url is required")
	}
	if c.Pipeline.MainConfigStore == "" {
		return fmt.Errorf("pipeline: main_config_store is required")
	}
	return nil
}

// Load reads configuration from the given file path (or the default search
// paths when empty) and applies environment variable overrides with the
// SITESYNC_ prefix.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SITESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; env and defaults still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
