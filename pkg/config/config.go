// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem: the HTTP server, the index and its schema, the storage backend,
// Kafka, Redis, Postgres, MinIO and search limits.
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
	Server   ServerConfig   `yaml:"server"`
	Index    IndexConfig    `yaml:"index"`
	Schema   SchemaConfig   `yaml:"schema"`
	Storage  StorageConfig  `yaml:"storage"`
	Postgres PostgresConfig `yaml:"postgres"`
	Minio    MinioConfig    `yaml:"minio"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	// RateLimit is the sustained requests per second allowed per client
	// address; zero disables limiting. RateBurst is the bucket size.
	RateLimit       float64       `yaml:"rateLimit"`
	RateBurst       int           `yaml:"rateBurst"`
}

// IndexConfig controls the writer's buffering, commit cadence, merge policy
// and segment encoding.
type IndexConfig struct {
	MaxBufferedDocs        int           `yaml:"maxBufferedDocs"`
	CommitInterval         time.Duration `yaml:"commitInterval"`
	MaxSegmentsBeforeMerge int           `yaml:"maxSegmentsBeforeMerge"`
	Compression            string        `yaml:"compression"`
	DefaultAnalyzer        string        `yaml:"defaultAnalyzer"`
	RefreshInterval        time.Duration `yaml:"refreshInterval"`
}

// SchemaConfig lists the index fields.
type SchemaConfig struct {
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig describes one schema field.
type FieldConfig struct {
	Name             string `yaml:"name"`
	Stored           bool   `yaml:"stored"`
	Indexed          bool   `yaml:"indexed"`
	Tokenized        bool   `yaml:"tokenized"`
	StoreTermVectors bool   `yaml:"storeTermVectors"`
	Analyzer         string `yaml:"analyzer"`
}

// StorageConfig selects the segment storage backend.
type StorageConfig struct {
	// Backend is one of memory, local, redis, postgres, minio.
	Backend string `yaml:"backend"`
	DataDir string `yaml:"dataDir"`
	// Prefix namespaces keys in shared backends.
	Prefix      string        `yaml:"prefix"`
	LockTTL     time.Duration `yaml:"lockTTL"`
	RetryMax    int           `yaml:"retryMax"`
	RetryBase   time.Duration `yaml:"retryBase"`
	RetryMaxDur time.Duration `yaml:"retryMaxDelay"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	Table           string        `yaml:"table"`
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

// MinioConfig holds S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	MaxResults      int           `yaml:"maxResults"`
	DefaultLimit    int           `yaml:"defaultLimit"`
	Timeout         time.Duration `yaml:"timeout"`
	DefaultField    string        `yaml:"defaultField"`
	DefaultOperator string        `yaml:"defaultOperator"`
	CacheEnabled    bool          `yaml:"cacheEnabled"`
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
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
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

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "local", "redis", "postgres", "minio":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "local" && c.Storage.DataDir == "" {
		return fmt.Errorf("config: storage.dataDir is required for the local backend")
	}
	switch c.Index.Compression {
	case "", "none", "zstd", "lz4":
	default:
		return fmt.Errorf("config: unknown compression %q", c.Index.Compression)
	}
	switch strings.ToUpper(c.Search.DefaultOperator) {
	case "", "OR", "AND":
	default:
		return fmt.Errorf("config: search.defaultOperator must be AND or OR")
	}
	if c.Index.MaxBufferedDocs < 0 {
		return fmt.Errorf("config: index.maxBufferedDocs must not be negative")
	}
	seen := make(map[string]bool, len(c.Schema.Fields))
	for _, f := range c.Schema.Fields {
		if seen[f.Name] {
			return fmt.Errorf("config: duplicate schema field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Index: IndexConfig{
			MaxBufferedDocs:        1000,
			CommitInterval:         5 * time.Second,
			MaxSegmentsBeforeMerge: 10,
			Compression:            "zstd",
			DefaultAnalyzer:        "standard",
			RefreshInterval:        30 * time.Second,
		},
		Schema: SchemaConfig{
			Fields: []FieldConfig{
				{Name: "id", Stored: true, Indexed: true},
				{Name: "title", Stored: true, Indexed: true, Tokenized: true},
				{Name: "body", Stored: true, Indexed: true, Tokenized: true, StoreTermVectors: true},
			},
		},
		Storage: StorageConfig{
			Backend:     "local",
			DataDir:     "./data/index",
			Prefix:      "minisearch",
			LockTTL:     30 * time.Second,
			RetryMax:    3,
			RetryBase:   100 * time.Millisecond,
			RetryMaxDur: 2 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "minisearch",
			User:            "minisearch",
			Password:        "localdev",
			SSLMode:         "disable",
			Table:           "segments",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Minio: MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "minisearch",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "minisearch-indexer",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexComplete:  "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			MaxResults:      100,
			DefaultLimit:    10,
			Timeout:         5 * time.Second,
			DefaultField:    "body",
			DefaultOperator: "OR",
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

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SP_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SP_INDEX_MAX_BUFFERED_DOCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.MaxBufferedDocs = n
		}
	}
	if v := os.Getenv("SP_INDEX_COMPRESSION"); v != "" {
		cfg.Index.Compression = v
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = v
	}
	if v := os.Getenv("SP_MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("SP_MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("SP_MINIO_BUCKET"); v != "" {
		cfg.Minio.Bucket = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_SEARCH_DEFAULT_FIELD"); v != "" {
		cfg.Search.DefaultField = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
