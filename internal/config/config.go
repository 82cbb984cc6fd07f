package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Session guardrails
	SilenceTimeout       time.Duration
	SilenceGraceWindow   time.Duration
	MaxSessionDuration   time.Duration
	MaxSessionCostUSD    float64
	GuardianTickInterval time.Duration

	// Tool provider endpoints
	KnowledgeServiceURL string
	SchedulerServiceURL string

	// Tool dispatch resilience
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
	ToolTimeout             time.Duration
	ToolMaxRetries          int
	ToolRetryBaseDelay      time.Duration
	ToolRetryMaxDelay       time.Duration

	// Live call state
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Analytics export
	DatabaseURL         string
	AnalyticsQueueURL   string
	AnalyticsS3Bucket   string
	UseMemoryQueue      bool
	ExportTimeout       time.Duration
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		SilenceTimeout:       getEnvAsDuration("SILENCE_TIMEOUT", 30*time.Second),
		SilenceGraceWindow:   getEnvAsDuration("SILENCE_GRACE_WINDOW", 10*time.Second),
		MaxSessionDuration:   getEnvAsDuration("MAX_SESSION_DURATION", 30*time.Minute),
		MaxSessionCostUSD:    getEnvAsFloat("MAX_SESSION_COST_USD", 5.0),
		GuardianTickInterval: getEnvAsDuration("GUARDIAN_TICK_INTERVAL", 30*time.Second),

		KnowledgeServiceURL: getEnv("KNOWLEDGE_SERVICE_URL", ""),
		SchedulerServiceURL: getEnv("SCHEDULER_SERVICE_URL", ""),

		BreakerFailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 3),
		BreakerCooldown:         getEnvAsDuration("BREAKER_COOLDOWN", 60*time.Second),
		ToolTimeout:             getEnvAsDuration("TOOL_TIMEOUT", 10*time.Second),
		ToolMaxRetries:          getEnvAsInt("TOOL_MAX_RETRIES", 3),
		ToolRetryBaseDelay:      getEnvAsDuration("TOOL_RETRY_BASE_DELAY", time.Second),
		ToolRetryMaxDelay:       getEnvAsDuration("TOOL_RETRY_MAX_DELAY", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		AnalyticsQueueURL:   getEnv("ANALYTICS_QUEUE_URL", ""),
		AnalyticsS3Bucket:   getEnv("ANALYTICS_S3_BUCKET", ""),
		UseMemoryQueue:      getEnvAsBool("USE_MEMORY_QUEUE", false),
		ExportTimeout:       getEnvAsDuration("EXPORT_TIMEOUT", 15*time.Second),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
