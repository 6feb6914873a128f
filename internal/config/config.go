// Package config provides environment configuration for the corpus generator.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Run settings
	ScenarioFile   string
	OutputDir      string
	TargetCount    int
	Workers        int
	MaxIdlePasses  int
	ChatFormat     string
	ScenarioFilter string
	RandomSeed     int64

	// LLM settings
	Provider        string
	Model           string
	MaxAttempts     int
	AnthropicAPIKey string
	OpenAIAPIKey    string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	AzureModel      string

	// Status server settings
	StatusPort        string
	ServerReadTimeout time.Duration
	CORSOrigins       string

	// NATS settings
	NATSEnabled  bool
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. Values from a .env
// file in the working directory (or the paths given) fill in anything the
// environment does not already set.
func Load(envFiles ...string) *Config {
	// Missing .env files are not an error.
	_ = godotenv.Load(envFiles...)

	return &Config{
		// Run
		ScenarioFile:   getEnv("SCENARIO_FILE", "scenarios.yaml"),
		OutputDir:      getEnv("OUTPUT_DIR", "output"),
		TargetCount:    getIntEnv("TARGET_COUNT", 100),
		Workers:        getIntEnv("WORKERS", 10),
		MaxIdlePasses:  getIntEnv("MAX_IDLE_PASSES", 3),
		ChatFormat:     getEnv("CHAT_FORMAT", "all"),
		ScenarioFilter: getEnv("SCENARIO_FILTER", "all"),
		RandomSeed:     getInt64Env("RANDOM_SEED", 0),

		// LLM
		Provider:        getEnv("LLM_PROVIDER", "anthropic"),
		Model:           getEnv("LLM_MODEL", ""),
		MaxAttempts:     getIntEnv("MAX_ATTEMPTS", 5),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AzureEndpoint:   getEnv("AZURE_ENDPOINT", ""),
		AzureAPIKey:     getEnv("AZURE_API_KEY", ""),
		AzureAPIVersion: getEnv("AZURE_API_VERSION", "2024-02-01"),
		AzureModel:      getEnv("AZURE_OPENAI_MODEL", "gpt-4o"),

		// Status server
		StatusPort:        getEnv("STATUS_PORT", ""),
		ServerReadTimeout: getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		CORSOrigins:       getEnv("CORS_ORIGINS", "*"),

		// NATS
		NATSEnabled:  getBoolEnv("NATS_ENABLED", false),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
