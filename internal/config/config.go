// Package config loads the service configuration from a YAML file with
// GOMEM_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/storage"
	"github.com/gomem/gomem/internal/worker"
	"github.com/gomem/gomem/pkg/cache"
	"github.com/gomem/gomem/pkg/observability"
)

// APIConfig tunes the REST surface.
type APIConfig struct {
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EnableCORS    bool          `mapstructure:"enable_cors"`
	LogRequests   bool          `mapstructure:"log_requests"`
	EnableSwagger bool          `mapstructure:"enable_swagger"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig tunes the per-client REST rate limiter.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   float64       `mapstructure:"limit"`
	Burst   int           `mapstructure:"burst"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RPCConfig tunes the binary RPC surface. Leaving the TLS paths empty runs
// the listener in plaintext, for development only.
type RPCConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	TLSCertFile   string `mapstructure:"tls_cert_file"`
	TLSKeyFile    string `mapstructure:"tls_key_file"`
}

// QueueConfig selects the embedding job transport.
type QueueConfig struct {
	// Backend is "channel" (in-process, default) or "sqs".
	Backend    string `mapstructure:"backend"`
	BufferSize int    `mapstructure:"buffer_size"`
	SQSURL     string `mapstructure:"sqs_url"`
}

// SecurityConfig holds the credential-sealing master key.
type SecurityConfig struct {
	MasterKey string `mapstructure:"master_key"`
}

// SpaceConfig holds space-service policy knobs.
type SpaceConfig struct {
	// DefaultEmbedderID, when set, backs space creation requests that name
	// no embedder.
	DefaultEmbedderID string `mapstructure:"default_embedder_id"`
}

// Config is the complete service configuration.
type Config struct {
	API      APIConfig                   `mapstructure:"api"`
	RPC      RPCConfig                   `mapstructure:"rpc"`
	Database database.Config             `mapstructure:"database"`
	Cache    cache.Config                `mapstructure:"cache"`
	Storage  storage.Config              `mapstructure:"storage"`
	Queue    QueueConfig                 `mapstructure:"queue"`
	Worker   worker.Config               `mapstructure:"worker"`
	Security SecurityConfig              `mapstructure:"security"`
	Space    SpaceConfig                 `mapstructure:"space"`
	Logging  observability.LoggingConfig `mapstructure:"logging"`
	Tracing  observability.TracingConfig `mapstructure:"tracing"`
}

// Load reads configs/config.yaml (or $GOMEM_CONFIG_FILE) and applies
// GOMEM_-prefixed environment overrides. A missing config file is fine when
// the environment carries the required settings.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("GOMEM_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("GOMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// bindEnv wires the short operational variable names alongside the
// GOMEM_-prefixed forms.
func bindEnv(v *viper.Viper) {
	for key, envs := range map[string][]string{
		"database.url":        {"GOMEM_DB_URL", "DB_URL"},
		"database.username":   {"GOMEM_DB_USER", "DB_USER"},
		"database.password":   {"GOMEM_DB_PASSWORD", "DB_PASSWORD"},
		"storage.endpoint":    {"GOMEM_MINIO_ENDPOINT", "MINIO_ENDPOINT"},
		"storage.access_key":  {"GOMEM_MINIO_ACCESS_KEY", "MINIO_ACCESS_KEY"},
		"storage.secret_key":  {"GOMEM_MINIO_SECRET_KEY", "MINIO_SECRET_KEY"},
		"storage.bucket":      {"GOMEM_MINIO_BUCKET", "MINIO_BUCKET"},
		"security.master_key": {"GOMEM_MASTER_KEY", "MASTER_KEY"},
	} {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

func setDefaults(v *viper.Viper) {
	// REST surface
	v.SetDefault("api.listen_address", ":8080")
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.idle_timeout", 90*time.Second)
	v.SetDefault("api.enable_cors", true)
	v.SetDefault("api.log_requests", true)
	v.SetDefault("api.enable_swagger", true)
	v.SetDefault("api.rate_limit.enabled", true)
	v.SetDefault("api.rate_limit.limit", 100)
	v.SetDefault("api.rate_limit.burst", 150)
	v.SetDefault("api.rate_limit.ttl", 1*time.Hour)

	// RPC surface
	v.SetDefault("rpc.listen_address", ":9090")

	// Database
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Cache
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_size", 1024)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.max_retries", 3)
	v.SetDefault("cache.redis.dial_timeout", 5*time.Second)
	v.SetDefault("cache.redis.read_timeout", 3*time.Second)
	v.SetDefault("cache.redis.write_timeout", 3*time.Second)
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.redis.min_idle_conns", 2)

	// Object store
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "gomem")
	v.SetDefault("storage.force_path_style", true)
	v.SetDefault("storage.request_timeout", 30*time.Second)

	// Queue and worker
	v.SetDefault("queue.backend", "channel")
	v.SetDefault("queue.buffer_size", 256)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.job_timeout", 2*time.Minute)
	v.SetDefault("worker.resilience.max_retries", 3)
	v.SetDefault("worker.resilience.initial_interval", 500*time.Millisecond)
	v.SetDefault("worker.resilience.max_interval", 5*time.Second)
	v.SetDefault("worker.resilience.breaker_timeout", 30*time.Second)

	// Observability
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "gomem")
	v.SetDefault("tracing.environment", "development")
}
