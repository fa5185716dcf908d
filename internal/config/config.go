// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers supported by the object store
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
	StorageDriverGCS   = "gcs"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Session  SessionConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port               int
	MaxUploadSize      int64
	RateLimitPerMinute int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// GeminiConfig holds generative language API settings
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// StorageConfig holds object store settings for original lesson files
type StorageConfig struct {
	Driver   string
	BasePath string
	Timeout  time.Duration
	S3       S3Config
	GCS      GCSConfig
}

// S3Config holds S3-compatible object store settings
type S3Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// GCSConfig holds Google Cloud Storage settings
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
}

// SessionConfig holds viewer session settings
type SessionConfig struct {
	TTL          time.Duration
	MaxKeys      int
	SecureCookie bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080" // default port
	}
	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = serverPort

	maxUpload, err := getInt64("MAX_UPLOAD_SIZE", 20*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.Server.MaxUploadSize = maxUpload

	rateLimit, err := getInt64("RATE_LIMIT_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	cfg.Server.RateLimitPerMinute = int(rateLimit)

	// Logging configuration
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // default level
	}
	cfg.Logging.Level = logLevel

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// Generative language API configuration
	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	cfg.Gemini.Model = getString("GEMINI_MODEL", "gemini-2.0-flash-exp")
	cfg.Gemini.BaseURL = strings.TrimRight(getString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/")
	cfg.Gemini.Timeout, err = getDuration("GEMINI_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	// Object store configuration
	if err := loadStorage(cfg); err != nil {
		return nil, err
	}

	// Viewer session configuration
	cfg.Session.TTL, err = getDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	maxSessions, err := getInt64("SESSION_MAX_KEYS", 10000)
	if err != nil {
		return nil, err
	}
	cfg.Session.MaxKeys = int(maxSessions)
	if raw := os.Getenv("SESSION_COOKIE_SECURE"); raw != "" {
		secure, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_COOKIE_SECURE: %w", err)
		}
		cfg.Session.SecureCookie = secure
	}

	return cfg, nil
}

// loadStorage fills and validates the object store section
func loadStorage(cfg *Config) error {
	var err error

	cfg.Storage.Driver = strings.ToLower(getString("STORAGE_DRIVER", StorageDriverLocal))
	cfg.Storage.Timeout, err = getDuration("STORAGE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return err
	}

	switch cfg.Storage.Driver {
	case StorageDriverLocal:
		cfg.Storage.BasePath = getString("MEDIA_BASE_PATH", "./data")
	case StorageDriverS3:
		cfg.Storage.S3 = S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getString("S3_REGION", "auto"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		}
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for STORAGE_DRIVER=s3")
		}
	case StorageDriverGCS:
		cfg.Storage.GCS = GCSConfig{
			Bucket:          os.Getenv("GCS_BUCKET"),
			CredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		}
		if cfg.Storage.GCS.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for STORAGE_DRIVER=gcs")
		}
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %s, must be 'local', 's3' or 'gcs'", cfg.Storage.Driver)
	}

	return nil
}

// parseOrigins parses comma-separated CORS origins
func parseOrigins(corsOrigins string) []string {
	if corsOrigins == "" {
		// Default to allow all origins if not specified (for development)
		return []string{"*"}
	}

	origins := strings.Split(corsOrigins, ",")
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed = append(allowed, origin)
		}
	}
	// If no valid origins found, default to allow all
	if len(allowed) == 0 {
		return []string{"*"}
	}
	return allowed
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}
