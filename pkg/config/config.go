// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"podcast-search/pkg/aggregation"
	"podcast-search/pkg/binning"
	"podcast-search/pkg/db"
	"podcast-search/pkg/logging"
	"podcast-search/pkg/search"
	"podcast-search/pkg/ticker"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "PODCAST_SEARCH_CONFIG"

const defaultPath = "config/config.yaml"

// DefaultPath returns the config path from the environment, or the default.
func DefaultPath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return defaultPath
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Supabase    SupabaseConfig    `yaml:"supabase"`
	Stats       StatsConfig       `yaml:"stats"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Feed        FeedConfig        `yaml:"feed"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Cache       CacheConfig       `yaml:"cache"`
	LogLevel    string            `yaml:"log_level"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	AllowOrigins string `yaml:"allow_origins"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type PostgresConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifeMinutes int    `yaml:"conn_max_life_minutes"`
}

type SupabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
	URL              string `yaml:"url"`
	Key              string `yaml:"key"`
	Password         string `yaml:"password"`
}

func (s SupabaseConfig) enabled() bool {
	return s.ConnectionString != "" || s.URL != ""
}

type StatsConfig struct {
	Path string `yaml:"path"`
}

type EmbedderConfig struct {
	URL string `yaml:"url"`
}

type FeedConfig struct {
	URLs []string `yaml:"urls"`
}

type AggregationConfig struct {
	Bins          int     `yaml:"bins"`
	Workers       int     `yaml:"workers"`
	AbortOnError  bool    `yaml:"abort_on_error"`
	EnvelopeWidth float64 `yaml:"envelope_width"`
	FPS           int     `yaml:"fps"`
}

type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", AllowOrigins: "*"},
		Mongo:  MongoConfig{Database: "podcast_search", Collection: "episodes"},
		Stats:  StatsConfig{Path: "data/stats.db"},
		Aggregation: AggregationConfig{
			Bins:          binning.DefaultBins,
			Workers:       4,
			EnvelopeWidth: aggregation.DefaultEnvelopeWidth,
			FPS:           ticker.DefaultFPS,
		},
		Cache:    CacheConfig{Capacity: search.DefaultCacheCapacity},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Mongo.URI == "" && len(c.Feed.URLs) == 0 {
		errs = append(errs, errors.New("episode metadata needs mongo.uri or feed.urls"))
	}
	if c.Postgres.DSN == "" && !c.Supabase.enabled() {
		errs = append(errs, errors.New("search needs postgres.dsn or a supabase section"))
	}
	if c.Mongo.URI != "" && (c.Mongo.Database == "" || c.Mongo.Collection == "") {
		errs = append(errs, errors.New("mongo.database and mongo.collection are required with mongo.uri"))
	}
	if c.Stats.Path == "" {
		errs = append(errs, errors.New("stats.path is required"))
	}
	if c.Aggregation.Bins <= 0 {
		errs = append(errs, fmt.Errorf("aggregation.bins must be positive, got %d", c.Aggregation.Bins))
	}
	if c.Aggregation.Workers <= 0 {
		errs = append(errs, fmt.Errorf("aggregation.workers must be positive, got %d", c.Aggregation.Workers))
	}
	if c.Aggregation.EnvelopeWidth <= 0 {
		errs = append(errs, fmt.Errorf("aggregation.envelope_width must be positive, got %g", c.Aggregation.EnvelopeWidth))
	}
	if c.Aggregation.FPS <= 0 {
		errs = append(errs, fmt.Errorf("aggregation.fps must be positive, got %d", c.Aggregation.FPS))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UsesSupabase reports whether the search store should run on Supabase
// rather than a plain Postgres DSN.
func (c *Config) UsesSupabase() bool {
	return c.Postgres.DSN == "" && c.Supabase.enabled()
}

func (c *Config) pool() db.PoolConfig {
	return db.PoolConfig{
		MaxOpenConns: c.Postgres.MaxOpenConns,
		MaxIdleConns: c.Postgres.MaxIdleConns,
		ConnMaxLife:  time.Duration(c.Postgres.ConnMaxLifeMinutes) * time.Minute,
	}
}

// PostgresClientConfig converts the postgres section for db.NewPostgresClient.
func (c *Config) PostgresClientConfig() db.PostgresConfig {
	return db.PostgresConfig{DSN: c.Postgres.DSN, Pool: c.pool()}
}

// SupabaseClientConfig converts the supabase section for db.NewSupabaseClient.
func (c *Config) SupabaseClientConfig() db.SupabaseConfig {
	return db.SupabaseConfig{
		ConnectionString: c.Supabase.ConnectionString,
		SupabaseURL:      c.Supabase.URL,
		SupabaseKey:      c.Supabase.Key,
		Password:         c.Supabase.Password,
		Pool:             c.pool(),
	}
}
