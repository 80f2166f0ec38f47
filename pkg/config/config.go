// Package config loads and validates migrator configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (vocabularies, migration, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Migration  MigrationConfig  `yaml:"migration"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// VocabularyConfig locates the static vocabulary catalog and selects the
// cache and index backends used by the validator.
type VocabularyConfig struct {
	DataDir         string        `yaml:"dataDir"`
	DefinitionsPath string        `yaml:"definitionsPath"`
	Cache           string        `yaml:"cache"`
	CacheKeyPrefix  string        `yaml:"cacheKeyPrefix"`
	Index           string        `yaml:"index"`
	IndexDir        string        `yaml:"indexDir"`
	FlushInterval   time.Duration `yaml:"flushInterval"`
	SegmentMaxSize  int64         `yaml:"segmentMaxSize"`
}

// MigrationConfig controls how record dumps are processed.
type MigrationConfig struct {
	AllowUpdates    bool          `yaml:"allowUpdates"`
	RaiseExceptions bool          `yaml:"raiseExceptions"`
	OutputPath      string        `yaml:"outputPath"`
	Records         string        `yaml:"records"`
	PublishOutcomes bool          `yaml:"publishOutcomes"`
	BatchSize       int           `yaml:"batchSize"`
	FlushInterval   time.Duration `yaml:"flushInterval"`
	MaxParallel     int           `yaml:"maxParallel"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	VocabularyUpdates string `yaml:"vocabularyUpdates"`
	MigrationOutcomes string `yaml:"migrationOutcomes"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
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

// Validate rejects backend names the migrator does not know about.
func (c *Config) Validate() error {
	switch c.Vocabulary.Cache {
	case "memory", "redis":
	default:
		return fmt.Errorf("vocabulary.cache must be memory or redis, got %q", c.Vocabulary.Cache)
	}
	switch c.Vocabulary.Index {
	case "local", "postgres":
	default:
		return fmt.Errorf("vocabulary.index must be local or postgres, got %q", c.Vocabulary.Index)
	}
	switch c.Migration.Records {
	case "memory", "postgres":
	default:
		return fmt.Errorf("migration.records must be memory or postgres, got %q", c.Migration.Records)
	}
	if c.Migration.BatchSize < 0 {
		return fmt.Errorf("migration.batchSize must not be negative")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Vocabulary: VocabularyConfig{
			DataDir:         "vocabularies/data",
			DefinitionsPath: "vocabularies/definitions.yaml",
			Cache:           "memory",
			CacheKeyPrefix:  "vocab:",
			Index:           "local",
			IndexDir:        "data/vocabindex",
			FlushInterval:   30 * time.Second,
			SegmentMaxSize:  4 << 20,
		},
		Migration: MigrationConfig{
			OutputPath:    "migrated.jsonl",
			Records:       "memory",
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
			MaxParallel:   4,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "ils",
			User:            "ils",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "ils-migrator",
			Topics: KafkaTopics{
				VocabularyUpdates: "vocabulary-updates",
				MigrationOutcomes: "migration-outcomes",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads MIG_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIG_VOCABULARY_DATA_DIR"); v != "" {
		cfg.Vocabulary.DataDir = v
	}
	if v := os.Getenv("MIG_VOCABULARY_DEFINITIONS"); v != "" {
		cfg.Vocabulary.DefinitionsPath = v
	}
	if v := os.Getenv("MIG_VOCABULARY_CACHE"); v != "" {
		cfg.Vocabulary.Cache = v
	}
	if v := os.Getenv("MIG_VOCABULARY_INDEX"); v != "" {
		cfg.Vocabulary.Index = v
	}
	if v := os.Getenv("MIG_VOCABULARY_INDEX_DIR"); v != "" {
		cfg.Vocabulary.IndexDir = v
	}
	if v := os.Getenv("MIG_MIGRATION_ALLOW_UPDATES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Migration.AllowUpdates = b
		}
	}
	if v := os.Getenv("MIG_MIGRATION_RAISE_EXCEPTIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Migration.RaiseExceptions = b
		}
	}
	if v := os.Getenv("MIG_MIGRATION_OUTPUT"); v != "" {
		cfg.Migration.OutputPath = v
	}
	if v := os.Getenv("MIG_MIGRATION_RECORDS"); v != "" {
		cfg.Migration.Records = v
	}
	if v := os.Getenv("MIG_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MIG_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MIG_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MIG_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MIG_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MIG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MIG_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MIG_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MIG_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIG_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MIG_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
