// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the index
// definition (fields, pipeline, scoring) and for every collaborator the
// binaries talk to (Kafka, Redis, PostgreSQL, snapshot storage, metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Index    IndexConfig    `yaml:"index"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Query    QueryConfig    `yaml:"query"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexConfig declares the document shape and the text-processing pipeline.
// It is consumed once, when the index is built.
type IndexConfig struct {
	Ref          string        `yaml:"ref"`
	Fields       []FieldConfig `yaml:"fields"`
	Separators   string        `yaml:"separators"`
	Pipeline     []string      `yaml:"pipeline"`
	Stages       []StageConfig `yaml:"stages"`
	StrictFields bool          `yaml:"strictFields"`
}

// FieldConfig declares one indexed field. A nil Boost means the default of 1;
// an explicit non-positive boost is rejected when the index is built.
type FieldConfig struct {
	Name  string   `yaml:"name"`
	Boost *float64 `yaml:"boost"`
}

// StageConfig inserts a registry stage relative to an anchor stage.
// Position is "before" or "after"; an empty Anchor appends.
type StageConfig struct {
	Name     string `yaml:"name"`
	Anchor   string `yaml:"anchor"`
	Position string `yaml:"position"`
}

// ScoringConfig holds the BM25 saturation and length-normalisation knobs.
type ScoringConfig struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// QueryConfig controls query expansion and result limits.
type QueryConfig struct {
	Expand       bool `yaml:"expand"`
	DefaultLimit int  `yaml:"defaultLimit"`
	MaxResults   int  `yaml:"maxResults"`
}

// SnapshotConfig selects where exported index snapshots are persisted.
type SnapshotConfig struct {
	Driver   string        `yaml:"driver"`
	Path     string        `yaml:"path"`
	Name     string        `yaml:"name"`
	Interval time.Duration `yaml:"interval"`
	Compress bool          `yaml:"compress"`
}

// ServerConfig controls the HTTP search API of the indexer daemon.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the document
// source.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentEvents string `yaml:"documentEvents"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics and health server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that can be judged without building the
// index. Field and pipeline problems are reported by the index builder.
func (c *Config) Validate() error {
	switch c.Snapshot.Driver {
	case "", "file", "sqlite":
	default:
		return apperrors.Configf("unknown snapshot driver %q", c.Snapshot.Driver)
	}
	for _, st := range c.Index.Stages {
		if st.Name == "" {
			return apperrors.Configf("pipeline stage without a name")
		}
		switch st.Position {
		case "", "before", "after":
		default:
			return apperrors.Configf("stage %q: position must be before or after, got %q", st.Name, st.Position)
		}
		if st.Position != "" && st.Anchor == "" {
			return apperrors.Configf("stage %q: position %q needs an anchor", st.Name, st.Position)
		}
	}
	if c.Scoring.K1 < 0 || c.Scoring.B < 0 || c.Scoring.B > 1 {
		return apperrors.Configf("scoring parameters out of range: k1=%v b=%v", c.Scoring.K1, c.Scoring.B)
	}
	return nil
}

// defaultConfig indexes a title boosted 10x and a body under ref "id"
// with the default pipeline.
func defaultConfig() *Config {
	titleBoost := 10.0
	return &Config{
		Index: IndexConfig{
			Ref: "id",
			Fields: []FieldConfig{
				{Name: "title", Boost: &titleBoost},
				{Name: "body"},
			},
			Separators: "-",
			Pipeline:   []string{"lowercase", "trimmer", "stopWordFilter", "stemmer"},
		},
		Scoring: ScoringConfig{
			K1: 1.2,
			B:  0.75,
		},
		Query: QueryConfig{
			DefaultLimit: 10,
			MaxResults:   100,
		},
		Snapshot: SnapshotConfig{
			Driver:   "file",
			Path:     "./data/index.tidx",
			Name:     "default",
			Interval: 30 * time.Second,
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "textindex",
			User:            "textindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "textindex-group",
			Topics: KafkaTopics{
				DocumentEvents: "document-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TI_INDEX_SEPARATORS"); v != "" {
		cfg.Index.Separators = v
	}
	if v := os.Getenv("TI_INDEX_PIPELINE"); v != "" {
		cfg.Index.Pipeline = splitList(v)
	}
	if v := os.Getenv("TI_QUERY_EXPAND"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Query.Expand = b
		}
	}
	if v := os.Getenv("TI_SNAPSHOT_DRIVER"); v != "" {
		cfg.Snapshot.Driver = v
	}
	if v := os.Getenv("TI_SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("TI_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.Interval = d
		}
	}
	if v := os.Getenv("TI_SNAPSHOT_COMPRESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Snapshot.Compress = b
		}
	}
	if v := os.Getenv("TI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("TI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TI_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("TI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("TI_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topics.DocumentEvents = v
	}
	if v := os.Getenv("TI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("TI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
