package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Worker   WorkerConfig
	Analysis AnalysisConfig
	Client   ClientConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// AuthConfig maps bearer tokens to the user name recorded on confirmations.
type AuthConfig struct {
	Tokens map[string]string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type GeminiConfig struct {
	APIKey string
}

type StorageConfig struct {
	UploadPath        string
	MaxFileSize       int64
	AllowedExtensions []string
}

type WorkerConfig struct {
	Concurrency       int
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	SweepInterval     time.Duration
	AnalysisTimeout   time.Duration
}

type AnalysisConfig struct {
	EnableAIExtraction   bool
	EnableSemanticSearch bool
	AIRequestsPerMinute  int
	SemanticMinScore     float64
}

// ClientConfig configures manifestctl and other consumers of internal/client.
type ClientConfig struct {
	BaseURL      string
	Token        string
	PollInterval time.Duration
	Timeout      time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads an optional .env file and then the process environment.
// It reports whether a .env file was found so callers can log it once a logger exists.
func Load() (*Config, bool) {
	envLoaded := godotenv.Load() == nil

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Path:     getEnv("DB_PATH", "./safeshipper.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "safeshipper_manifests"),
		},
		Auth: AuthConfig{
			Tokens: parseTokens(getEnv("API_TOKENS", "")),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "dg_catalog"),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
		},
		Storage: StorageConfig{
			UploadPath:        getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize:       getEnvAsInt64("MAX_FILE_SIZE", 52428800),
			AllowedExtensions: getEnvAsList("ALLOWED_EXTENSIONS", ".pdf,.txt"),
		},
		Worker: WorkerConfig{
			Concurrency:       getEnvAsInt("WORKER_CONCURRENCY", 3),
			RetryMaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			RetryInitialDelay: getEnvAsDuration("RETRY_INITIAL_DELAY", "2s"),
			SweepInterval:     getEnvAsDuration("WORKER_SWEEP_INTERVAL", "10s"),
			AnalysisTimeout:   getEnvAsDuration("ANALYSIS_TIMEOUT", "10m"),
		},
		Analysis: AnalysisConfig{
			EnableAIExtraction:   getEnvAsBool("ENABLE_AI_EXTRACTION", false),
			EnableSemanticSearch: getEnvAsBool("ENABLE_SEMANTIC_SEARCH", false),
			AIRequestsPerMinute:  getEnvAsInt("AI_REQUESTS_PER_MINUTE", 30),
			SemanticMinScore:     getEnvAsFloat("SEMANTIC_MIN_SCORE", 0.85),
		},
		Client: ClientConfig{
			BaseURL:      getEnv("SAFESHIPPER_API_URL", "http://localhost:3000"),
			Token:        getEnv("SAFESHIPPER_API_TOKEN", ""),
			PollInterval: getEnvAsDuration("POLL_INTERVAL", "3s"),
			Timeout:      getEnvAsDuration("CLIENT_TIMEOUT", "30s"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, envLoaded
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// parseTokens reads "token:user,token2:user2". A token without a user maps to "api".
func parseTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, found := strings.Cut(pair, ":")
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		user = strings.TrimSpace(user)
		if !found || user == "" {
			user = "api"
		}
		tokens[token] = user
	}
	return tokens
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	var values []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
