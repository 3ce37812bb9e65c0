package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string

	Server     ServerConfig
	AWS        AWSConfig
	Auth       AuthConfig
	Retry      RetryConfig
	Classifier ClassifierConfig
	Pipeline   PipelineConfig
	Features   FeatureFlags
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// AWSConfig names the AWS resources the service talks to. An empty
// TableName selects the in-memory catalog seeded from CatalogSeedPath.
type AWSConfig struct {
	Region            string
	TableName         string
	EventBusName      string
	WebSocketEndpoint string
	MetricsNamespace  string
	CatalogSeedPath   string
}

// AuthConfig configures bearer-token validation and write limits.
type AuthConfig struct {
	JWTAlgorithm      string
	JWTSecret         string
	JWTPublicKey      string
	JWTIssuer         string
	JWTAudience       []string
	WriteRateLimitRPM int
}

// RetryConfig tunes the optimistic rating transaction.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// ClassifierConfig tunes catalog lookups during a scan.
type ClassifierConfig struct {
	ScanWorkers      int
	CacheTTL         time.Duration
	BreakerTimeout   time.Duration
	BreakerInterval  time.Duration
	BreakerThreshold float64
}

// PipelineConfig locates the local inventory inputs used by the CLI.
type PipelineConfig struct {
	IgnoreListPath string
	InventoryPath  string
}

// FeatureFlags toggles optional integrations.
type FeatureFlags struct {
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:         getEnv("SERVER_ADDRESS", ":8080"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		AWS: AWSConfig{
			Region:            getEnv("AWS_REGION", "us-west-2"),
			TableName:         getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "")),
			EventBusName:      getEnv("EVENT_BUS_NAME", ""),
			WebSocketEndpoint: getEnv("WEBSOCKET_ENDPOINT", ""),
			MetricsNamespace:  getEnv("METRICS_NAMESPACE", "LibreFind"),
			CatalogSeedPath:   getEnv("CATALOG_SEED", ""),
		},
		Auth: AuthConfig{
			JWTAlgorithm:      getEnv("JWT_ALGORITHM", "HS256"),
			JWTSecret:         getEnv("JWT_SECRET", ""),
			JWTPublicKey:      getEnv("JWT_PUBLIC_KEY", ""),
			JWTIssuer:         getEnv("JWT_ISSUER", "librefind"),
			JWTAudience:       getEnvList("JWT_AUDIENCE", nil),
			WriteRateLimitRPM: getEnvInt("WRITE_RATE_LIMIT_RPM", 30),
		},
		Retry: RetryConfig{
			MaxAttempts:   getEnvInt("RATING_MAX_ATTEMPTS", 5),
			BaseDelay:     getEnvDuration("RATING_RETRY_BASE_DELAY", 20*time.Millisecond),
			MaxDelay:      getEnvDuration("RATING_RETRY_MAX_DELAY", time.Second),
			BackoffFactor: getEnvFloat("RATING_RETRY_BACKOFF", 2.0),
			JitterFactor:  getEnvFloat("RATING_RETRY_JITTER", 0.5),
		},
		Classifier: ClassifierConfig{
			ScanWorkers:      getEnvInt("SCAN_WORKERS", 8),
			CacheTTL:         getEnvDuration("TARGET_CACHE_TTL", 10*time.Minute),
			BreakerTimeout:   getEnvDuration("CATALOG_BREAKER_TIMEOUT", 30*time.Second),
			BreakerInterval:  getEnvDuration("CATALOG_BREAKER_INTERVAL", 60*time.Second),
			BreakerThreshold: getEnvFloat("CATALOG_BREAKER_THRESHOLD", 0.8),
		},
		Pipeline: PipelineConfig{
			IgnoreListPath: getEnv("IGNORE_LIST_PATH", "ignored.yaml"),
			InventoryPath:  getEnv("INVENTORY_PATH", "inventory.yaml"),
		},
		Features: FeatureFlags{
			EnableMetrics: getEnvBool("ENABLE_METRICS", false),
			EnableTracing: getEnvBool("ENABLE_TRACING", false),
			EnableCORS:    getEnvBool("ENABLE_CORS", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Auth.JWTAlgorithm) {
	case "HS256":
		if c.IsProduction() && c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	case "RS256":
		if c.Auth.JWTPublicKey == "" {
			return fmt.Errorf("JWT_PUBLIC_KEY is required for RS256")
		}
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.Auth.JWTAlgorithm)
	}

	if c.IsProduction() {
		if c.AWS.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required in production")
		}
		if c.AWS.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required in production")
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RATING_MAX_ATTEMPTS must be at least 1")
	}
	if c.Classifier.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be at least 1")
	}
	if c.Auth.WriteRateLimitRPM < 1 {
		return fmt.Errorf("WRITE_RATE_LIMIT_RPM must be at least 1")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesDynamoDB reports whether the catalog lives in DynamoDB.
func (c *Config) UsesDynamoDB() bool {
	return c.AWS.TableName != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration syntax ("250ms", "1m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
