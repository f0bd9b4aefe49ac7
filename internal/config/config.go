// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// Provider names accepted by the selectable components.
const (
	ProviderPostgres  = "postgres"
	ProviderSQLite    = "sqlite"
	ProviderTypesense = "typesense"
	ProviderBleve     = "bleve"
	ProviderNone      = "none"
	ProviderLocal     = "local"
	ProviderGCS       = "gcs"
	ProviderMemory    = "memory"
	ProviderPubSub    = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Index     IndexConfig     `mapstructure:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Server    ServerConfig    `mapstructure:"server"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig selects and addresses the relational store.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the SQLite file; empty means an in-memory database.
	Path     string `mapstructure:"path"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// IndexConfig selects and addresses the search index.
type IndexConfig struct {
	Provider          string        `mapstructure:"provider"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Protocol          string        `mapstructure:"protocol"`
	APIKey            string        `mapstructure:"api_key"`
	Collection        string        `mapstructure:"collection"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	// Path is the bleve index directory; empty means memory only.
	Path string `mapstructure:"path"`
}

// EmbeddingConfig configures the index-side embedding model.
type EmbeddingConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

// CrawlerConfig governs the glossary site crawler.
type CrawlerConfig struct {
	UserAgent   string        `mapstructure:"user_agent"`
	Delay       time.Duration `mapstructure:"delay"`
	Parallelism int           `mapstructure:"parallelism"`
	Sites       []string      `mapstructure:"sites"`
}

// ArchiveConfig selects where fetched pages are archived.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
	Bucket   string `mapstructure:"bucket"`
}

// PublisherConfig selects where reindex notices go.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	// RateLimitRPS is records per second per producer; 0 disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// QueueConfig sizes the in-process record queue.
type QueueConfig struct {
	Depth int `mapstructure:"depth"`
}

// PipelineConfig tunes record reconciliation.
type PipelineConfig struct {
	LookupScope string `mapstructure:"lookup_scope"`
}

// LoggingConfig selects the zap preset and optional overrides. An empty
// Level or Encoding keeps the preset's value.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GLOSSARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can populate keys that
// appear in no config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.provider", ProviderSQLite)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.path", "glossary.db")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("index.provider", ProviderBleve)
	v.SetDefault("index.host", "")
	v.SetDefault("index.port", 8108)
	v.SetDefault("index.protocol", "http")
	v.SetDefault("index.api_key", "")
	v.SetDefault("index.collection", "glossary")
	v.SetDefault("index.connection_timeout", 2*time.Second)
	v.SetDefault("index.path", "glossary.bleve")
	v.SetDefault("embedding.model", "openai/text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("crawler.user_agent", "glossary-harvester/1.0")
	v.SetDefault("crawler.delay", time.Second)
	v.SetDefault("crawler.parallelism", 2)
	v.SetDefault("crawler.sites", []string{})
	v.SetDefault("archive.provider", ProviderNone)
	v.SetDefault("archive.dir", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("publisher.provider", ProviderMemory)
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic", "glossary-reindex")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 50)
	v.SetDefault("queue.depth", 64)
	v.SetDefault("pipeline.lookup_scope", "term")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.encoding", "")
}

// Validate enforces required values for the selected providers. Every
// failure wraps glossary.ErrConfiguration.
func (c Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	switch c.Archive.Provider {
	case ProviderNone, ProviderMemory, "":
	case ProviderLocal:
		if c.Archive.Dir == "" {
			return invalid("archive.dir is required for the local archive")
		}
	case ProviderGCS:
		if c.Archive.Bucket == "" {
			return invalid("archive.bucket is required for the gcs archive")
		}
	default:
		return invalid("unknown archive.provider %q", c.Archive.Provider)
	}
	switch c.Publisher.Provider {
	case ProviderNone, ProviderMemory, "":
	case ProviderPubSub:
		if c.Publisher.ProjectID == "" {
			return invalid("publisher.project_id is required for pubsub")
		}
	default:
		return invalid("unknown publisher.provider %q", c.Publisher.Provider)
	}
	if c.Server.Port <= 0 {
		return invalid("server.port must be > 0")
	}
	if c.Server.RateLimitRPS < 0 {
		return invalid("server.rate_limit_rps must be >= 0")
	}
	if c.Queue.Depth <= 0 {
		return invalid("queue.depth must be > 0")
	}
	if c.Crawler.Parallelism <= 0 {
		return invalid("crawler.parallelism must be > 0")
	}
	switch c.Pipeline.LookupScope {
	case "term", "variants":
	default:
		return invalid("pipeline.lookup_scope must be term or variants, got %q", c.Pipeline.LookupScope)
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return invalid("logging.level: %v", err)
		}
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return invalid("logging.encoding must be json or console, got %q", c.Logging.Encoding)
	}
	return nil
}

func (c Config) validateDatabase() error {
	db := c.Database
	switch db.Provider {
	case ProviderSQLite:
		return nil
	case ProviderPostgres:
		missing := missingKeys(map[string]bool{
			"database.host":     db.Host == "",
			"database.port":     db.Port <= 0,
			"database.user":     db.User == "",
			"database.password": db.Password == "",
			"database.name":     db.Name == "",
		})
		if len(missing) > 0 {
			return invalid("postgres requires %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return invalid("unknown database.provider %q", db.Provider)
	}
}

func (c Config) validateIndex() error {
	idx := c.Index
	switch idx.Provider {
	case ProviderBleve:
		return nil
	case ProviderTypesense:
		missing := missingKeys(map[string]bool{
			"index.host":        idx.Host == "",
			"index.port":        idx.Port <= 0,
			"index.protocol":    idx.Protocol == "",
			"index.api_key":     idx.APIKey == "",
			"embedding.model":   c.Embedding.Model == "",
			"embedding.api_key": c.Embedding.APIKey == "",
		})
		if len(missing) > 0 {
			return invalid("typesense requires %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return invalid("unknown index.provider %q", idx.Provider)
	}
}

// missingKeys returns the sorted keys whose value is true.
func missingKeys(checks map[string]bool) []string {
	var out []string
	for key, missing := range checks {
		if missing {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", glossary.ErrConfiguration, fmt.Sprintf(format, args...))
}
