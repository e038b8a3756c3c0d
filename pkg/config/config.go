package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Platform integrations
	GoogleClientID     string
	GoogleClientSecret string
	GoogleProjectID    string
	GooglePubSubTopic  string
	GoogleCredentials  string // path to service-account JSON for pub/sub

	FirebaseCredentials string

	// AI annotation
	AIProvider    string // "gemini", "ollama" or "auto"
	GeminiAPIKey  string
	OllamaBaseURL string
	OllamaModel   string

	ChromaAPIKey   string
	ChromaTenant   string
	ChromaDatabase string

	// Secrets at rest
	EncryptionKey string

	// Sync scheduling
	StaleThreshold       time.Duration // cached data older than this: sync recommended
	FreshThreshold       time.Duration // cached data younger than this: always serve cache
	MinForceSyncInterval time.Duration // forced syncs cannot run more often than this
	MaxSyncRunDuration   time.Duration // a live is_syncing flag older than this is reset-eligible
	FetchTimeout         time.Duration // bound on a single external fetch call

	AnnotationWorkers int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=unibox password=unibox dbname=unibox port=5432 sslmode=disable"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:  getEnv("GOOGLE_PUBSUB_TOPIC", "gmail-updates"),
		GoogleCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		ChromaAPIKey:   getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:   getEnv("CHROMA_TENANT", ""),
		ChromaDatabase: getEnv("CHROMA_DATABASE", ""),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		StaleThreshold:       getDurationEnv("SYNC_STALE_THRESHOLD", 24*time.Hour),
		FreshThreshold:       getDurationEnv("SYNC_FRESH_THRESHOLD", 4*time.Hour),
		MinForceSyncInterval: getDurationEnv("SYNC_MIN_FORCE_INTERVAL", 5*time.Minute),
		MaxSyncRunDuration:   getDurationEnv("SYNC_MAX_RUN_DURATION", 30*time.Minute),
		FetchTimeout:         getDurationEnv("SYNC_FETCH_TIMEOUT", 2*time.Minute),

		AnnotationWorkers: getIntEnv("ANNOTATION_WORKERS", 3),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
