package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 string
	JWTSecret            string
	JWTAccessExpiration  time.Duration
	JWTRefreshExpiration time.Duration

	MongoDBURI      string
	MongoDBDatabase string

	// Gmail inbox the pipeline watches. The refresh token belongs to the
	// school's shared inbox account, obtained out of band.
	GoogleClientID     string
	GoogleClientSecret string
	GmailRefreshToken  string
	GmailAddress       string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float32
	OpenAIMaxTokens   int
	OpenAIMaxBodySize int

	PollInterval    time.Duration
	PollWindow      time.Duration
	MaxBatchSize    int64
	BatchWorkers    int
	ProviderTimeout time.Duration

	SchoolName  string
	FrontendURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	accessExp, _ := time.ParseDuration(getEnv("JWT_ACCESS_EXPIRATION", "15m"))
	refreshExp, _ := time.ParseDuration(getEnv("JWT_REFRESH_EXPIRATION", "168h"))
	pollInterval, _ := time.ParseDuration(getEnv("PIPELINE_POLL_INTERVAL", "3m"))
	pollWindow, _ := time.ParseDuration(getEnv("PIPELINE_POLL_WINDOW", "24h"))
	providerTimeout, _ := time.ParseDuration(getEnv("PIPELINE_PROVIDER_TIMEOUT", "30s"))

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		JWTSecret:            getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiration:  accessExp,
		JWTRefreshExpiration: refreshExp,

		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", "schoolbox"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GmailRefreshToken:  getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailAddress:       getEnv("GMAIL_ADDRESS", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITemperature: float32(getEnvFloat("OPENAI_TEMPERATURE", 0.1)),
		OpenAIMaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 1000),
		OpenAIMaxBodySize: getEnvInt("OPENAI_MAX_BODY_SIZE", 4096),

		PollInterval:    pollInterval,
		PollWindow:      pollWindow,
		MaxBatchSize:    int64(getEnvInt("PIPELINE_MAX_BATCH", 25)),
		BatchWorkers:    getEnvInt("PIPELINE_WORKERS", 3),
		ProviderTimeout: providerTimeout,

		SchoolName:  getEnv("SCHOOL_NAME", "Little Explorers Preschool"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
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
