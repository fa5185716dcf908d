package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadTestConfig reads the TEST_DB_* database settings used by integration tests.
// Missing settings leave the database section incomplete so callers can skip; see HasDatabase.
func LoadTestConfig() (*Config, error) {
	// .env is optional; tests run from the package directory or the module root
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     os.Getenv("TEST_DB_HOST"),
			User:     os.Getenv("TEST_DB_USER"),
			Password: os.Getenv("TEST_DB_PASSWORD"),
			DBName:   os.Getenv("TEST_DB_NAME"),
		},
		Storage: StorageConfig{
			Driver:   StorageDriverLocal,
			BasePath: os.Getenv("TEST_MEDIA_BASE_PATH"),
		},
	}

	if raw := os.Getenv("TEST_DB_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TEST_DB_PORT: %w", err)
		}
		cfg.Database.Port = port
	}

	return cfg, nil
}

// HasDatabase reports whether the configuration carries a complete database section
func (c *Config) HasDatabase() bool {
	return c.Database.Host != "" && c.Database.Port != 0 && c.Database.User != "" &&
		c.Database.Password != "" && c.Database.DBName != ""
}
