package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Image store drivers
const (
	ImageStoreMemory = "memory"
	ImageStoreLocal  = "local"
	ImageStoreHTTP   = "http"
	ImageStoreAzure  = "azure"
	ImageStoreMinio  = "minio"
)

// Result store drivers
const (
	ResultStoreMemory   = "memory"
	ResultStoreSQLite   = "sqlite"
	ResultStoreRedis    = "redis"
	ResultStorePostgres = "postgres"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	MaxConcurrentJobs  int
	JobQueueSize       int
	AnalyzeRateLimit   float64
	AnalyzeRateBurst   int
	CORSAllowedOrigins []string
	AnalysisConfigPath string
	LogLevel           string

	ImageStore  ImageStoreConfig
	ResultStore ResultStoreConfig
	Resilience  ResilienceConfig
}

type ImageStoreConfig struct {
	Driver  string
	Path    string
	BaseURL string

	AzureAccount   string
	AzureKey       string
	AzureContainer string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

type ResultStoreConfig struct {
	Driver        string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	PostgresDSN   string
}

type ResilienceConfig struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerEnabled      bool
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 2*time.Minute),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 1024*1024), // 1MB of JSON

		MaxConcurrentJobs:  int(parseIntOrDefault("MAX_CONCURRENT_JOBS", int64(runtime.NumCPU()))),
		JobQueueSize:       int(parseIntOrDefault("JOB_QUEUE_SIZE", 64)),
		AnalyzeRateLimit:   parseFloatOrDefault("ANALYZE_RATE_LIMIT", 5),
		AnalyzeRateBurst:   int(parseIntOrDefault("ANALYZE_RATE_BURST", 10)),
		CORSAllowedOrigins: parseListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AnalysisConfigPath: getEnvOrDefault("ANALYSIS_CONFIG_PATH", ""),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),

		ImageStore: ImageStoreConfig{
			Driver:         strings.ToLower(getEnvOrDefault("IMAGE_STORE_DRIVER", ImageStoreLocal)),
			Path:           getEnvOrDefault("IMAGE_STORE_PATH", "./data/images"),
			BaseURL:        getEnvOrDefault("IMAGE_STORE_BASE_URL", ""),
			AzureAccount:   getEnvOrDefault("AZURE_STORAGE_ACCOUNT", ""),
			AzureKey:       getEnvOrDefault("AZURE_STORAGE_KEY", ""),
			AzureContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "images"),
			MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", ""),
			MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "images"),
			MinioUseSSL:    parseBoolOrDefault("MINIO_USE_SSL", false),
		},
		ResultStore: ResultStoreConfig{
			Driver:        strings.ToLower(getEnvOrDefault("RESULT_STORE_DRIVER", ResultStoreSQLite)),
			SQLitePath:    getEnvOrDefault("RESULT_STORE_SQLITE_PATH", "./data/results.db"),
			RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
			RedisDB:       int(parseIntOrDefault("REDIS_DB", 0)),
			RedisPrefix:   getEnvOrDefault("REDIS_PREFIX", "damage:"),
			PostgresDSN:   getEnvOrDefault("POSTGRES_DSN", ""),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:    int(parseIntOrDefault("RETRY_MAX_ATTEMPTS", 3)),
			RetryInitialBackoff: parseDurationOrDefault("RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
			RetryMaxBackoff:     parseDurationOrDefault("RETRY_MAX_BACKOFF", 400*time.Millisecond),
			BreakerEnabled:      parseBoolOrDefault("BREAKER_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be >= 1 (got %d)", c.MaxConcurrentJobs)
	}
	if c.JobQueueSize < 1 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be >= 1 (got %d)", c.JobQueueSize)
	}
	if c.AnalyzeRateLimit < 0 || c.AnalyzeRateBurst < 0 {
		return fmt.Errorf("rate limit settings must be >= 0 (got %v/%d)", c.AnalyzeRateLimit, c.AnalyzeRateBurst)
	}

	switch c.ImageStore.Driver {
	case ImageStoreMemory:
	case ImageStoreLocal:
		if strings.TrimSpace(c.ImageStore.Path) == "" {
			return fmt.Errorf("IMAGE_STORE_PATH is required for the local image store")
		}
	case ImageStoreHTTP:
		if strings.TrimSpace(c.ImageStore.BaseURL) == "" {
			return fmt.Errorf("IMAGE_STORE_BASE_URL is required for the http image store")
		}
	case ImageStoreAzure:
		if c.ImageStore.AzureAccount == "" || c.ImageStore.AzureKey == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required for the azure image store")
		}
	case ImageStoreMinio:
		if c.ImageStore.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required for the minio image store")
		}
	default:
		return fmt.Errorf("unsupported IMAGE_STORE_DRIVER: %q", c.ImageStore.Driver)
	}

	switch c.ResultStore.Driver {
	case ResultStoreMemory, ResultStoreRedis:
	case ResultStoreSQLite:
		if strings.TrimSpace(c.ResultStore.SQLitePath) == "" {
			return fmt.Errorf("RESULT_STORE_SQLITE_PATH is required for the sqlite result store")
		}
	case ResultStorePostgres:
		if c.ResultStore.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres result store")
		}
	default:
		return fmt.Errorf("unsupported RESULT_STORE_DRIVER: %q", c.ResultStore.Driver)
	}

	if c.Resilience.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1 (got %d)", c.Resilience.RetryMaxAttempts)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
