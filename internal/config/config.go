package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string
	Timezone string

	// Auth: bcrypt hash of the API key required on /v1 routes. Empty disables auth.
	APIKeyHash string

	// Database (optional generation history)
	DatabaseURL string

	// Kafka (optional lifecycle events; empty brokers disables the producer)
	KafkaBrokers     []string
	KafkaTopicEvents string

	// S3/Storage (optional artifact archive)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string

	// Gemini API (translation, mood inference, trivia)
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL
	GeminiModelText   string // text model for translation/mood, e.g. gemini-2.5-flash-lite
	GeminiModelTrivia string // trivia question model

	// Remote async provider (Suno-style)
	RemoteEndpoint    string
	RemoteAPIKey      string
	RemotePromptLimit int           // provider's prompt field cap in chars
	RemoteWaitWindow  time.Duration // max wall-clock wait for a callback artifact
	RemotePollEvery   time.Duration // staging poll interval
	CallbackURL       string        // public URL the provider posts completions to
	CallbackToken     string        // shared secret checked against X-Callback-Token

	// Bridge provider
	BridgeURL string

	// Generation
	MaxDurationSec int // system-wide duration ceiling
	ChunkSec       int // local generator window size
	MaxPromptLen   int // enriched prompt length cap
	OutputDir      string
	StagingDir     string

	// HTTP client timeout for provider and download calls
	ProviderTimeout time.Duration

	// Dataset
	DatasetPath string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TZ", "UTC"),

		APIKeyHash: getEnv("API_KEY_HASH", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:     splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicEvents: getEnv("KAFKA_TOPIC_EVENTS", "geotone.events.v1"),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelText:   getEnv("GEMINI_MODEL_TEXT", "gemini-2.5-flash-lite"),
		GeminiModelTrivia: getEnv("GEMINI_MODEL_TRIVIA", "gemini-2.5-flash-lite"),

		RemoteEndpoint:    getEnv("REMOTE_ENDPOINT", ""),
		RemoteAPIKey:      getEnv("REMOTE_API_KEY", ""),
		RemotePromptLimit: getEnvInt("REMOTE_PROMPT_LIMIT", 2500),
		RemoteWaitWindow:  getEnvDuration("REMOTE_WAIT_WINDOW", 120*time.Second),
		RemotePollEvery:   getEnvDuration("REMOTE_POLL_EVERY", time.Second),
		CallbackURL:       getEnv("CALLBACK_URL", ""),
		CallbackToken:     getEnv("CALLBACK_TOKEN", ""),

		BridgeURL: getEnv("BRIDGE_URL", ""),

		MaxDurationSec: getEnvInt("MAX_DURATION_SEC", 15),
		ChunkSec:       clampMin(getEnvInt("CHUNK_SEC", 5), 1),
		MaxPromptLen:   getEnvInt("MAX_PROMPT_LEN", 1000),
		OutputDir:      getEnv("OUTPUT_DIR", "outputs"),
		StagingDir:     getEnv("STAGING_DIR", "outputs/callbacks"),

		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		DatasetPath: getEnv("DATASET_PATH", "datasets/dataset.xml"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// splitNonEmpty splits a comma-separated list, dropping empty entries.
func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
