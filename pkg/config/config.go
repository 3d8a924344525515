package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Places   PlacesConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PlacesConfig holds places-search upstream configuration
type PlacesConfig struct {
	APIKey  string
	BaseURL string
}

// PipelineConfig holds the collection run budget and coverage knobs
type PipelineConfig struct {
	Env                string
	RequestsPerSecond  float64
	InterPageDelayMS   int
	MaxRetries         int
	MaxRequests        int
	MaxClinicsPerState int
	MaxClinicsTotal    int
	MaxPagesPerQuery   int
	SearchRadiusMeters float64
	GridStepDegrees    float64
	States             []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "dermatlas"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Places: PlacesConfig{
			APIKey:  getEnv("PLACES_API_KEY", ""),
			BaseURL: getEnv("PLACES_BASE_URL", "https://places.googleapis.com/v1"),
		},
		Pipeline: PipelineConfig{
			Env:                getEnv("APP_ENV", "development"),
			RequestsPerSecond:  getEnvAsFloat("PIPELINE_REQUESTS_PER_SECOND", 3),
			InterPageDelayMS:   getEnvAsInt("PIPELINE_INTER_PAGE_DELAY_MS", 2000),
			MaxRetries:         getEnvAsInt("PIPELINE_MAX_RETRIES", 4),
			MaxRequests:        getEnvAsInt("PIPELINE_MAX_REQUESTS", 10000),
			MaxClinicsPerState: getEnvAsInt("PIPELINE_MAX_CLINICS_PER_STATE", 0),
			MaxClinicsTotal:    getEnvAsInt("PIPELINE_MAX_CLINICS_TOTAL", 0),
			MaxPagesPerQuery:   getEnvAsInt("PIPELINE_MAX_PAGES_PER_QUERY", 3),
			SearchRadiusMeters: getEnvAsFloat("PIPELINE_SEARCH_RADIUS_METERS", 25000),
			GridStepDegrees:    getEnvAsFloat("PIPELINE_GRID_STEP_DEGREES", 0.3),
			States:             getEnvAsList("PIPELINE_STATES", nil),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
