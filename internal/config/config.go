// Package config provides configuration management for the application.
package config

import (
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion string
	S3Bucket  string

	// Database
	DBHost         string
	DBPort         int
	DBName         string
	DBUser         string
	DBPassword     string
	DatabaseURLEnv string

	// SES
	SESSenderEmail       string
	ReportRecipientEmail string

	// Recommender
	ReloadWebhookURL string
	VocabularySize   int
	ScoreWorkers     int

	// Application
	Port     string
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:  getEnv("S3_BUCKET", "game-catalog-csv-dev"),

		// Database
		DBHost:         getEnv("DB_HOST", getEnv("GAMES_DB_HOST", "localhost")),
		DBPort:         getEnvInt("DB_PORT", getEnvInt("GAMES_DB_PORT", 5432)),
		DBName:         getEnv("DB_NAME", getEnv("GAMES_DB_NAME", "game_recommendation")),
		DBUser:         getEnv("DB_USER", getEnv("GAMES_DB_USER", "postgres")),
		DBPassword:     getEnv("DB_PASSWORD", getEnv("GAMES_DB_PASSWORD", "")),
		DatabaseURLEnv: getEnv("DATABASE_URL", ""),

		// SES
		SESSenderEmail:       getEnv("SES_SENDER_EMAIL", ""),
		ReportRecipientEmail: getEnv("REPORT_RECIPIENT_EMAIL", ""),

		// Recommender
		ReloadWebhookURL: getEnv("RELOAD_WEBHOOK_URL", ""),
		VocabularySize:   getEnvInt("VOCABULARY_SIZE", 1000),
		ScoreWorkers:     getEnvInt("SCORE_WORKERS", 0),

		// Application
		Port:     getEnv("PORT", "8080"),
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string. DATABASE_URL wins
// over the individual DB_* settings.
func (c *Config) DatabaseURL() string {
	if c.DatabaseURLEnv != "" {
		return c.DatabaseURLEnv
	}

	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
