package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 所有環境變數只在這裡讀取
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage (embedded result store)
	SQLite SQLiteConfig

	// Redis (fetched-table cache)
	Redis RedisConfig

	// External APIs
	FinMind FinMindConfig
	TWSE    TWSEConfig

	// Screening defaults
	Screening ScreeningConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// SQLiteConfig holds the embedded result-store configuration
type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FinMindConfig holds FinMind (台灣開放資料) API configuration
type FinMindConfig struct {
	Token   string
	BaseURL string
	// Requests per hour allowed by the API tier
	RateLimit int
}

// TWSEConfig holds TWSE open API configuration
type TWSEConfig struct {
	BaseURL string
}

// ScreeningConfig holds market-wide screening floors applied before
// any strategy runs
// 市值下限5億、流動性保留前70%
type ScreeningConfig struct {
	MinMarketCap           float64
	MinLiquidityPercentile float64
}

// Load reads configuration from environment variables
// ⭐ SSOT: 只有這個函式呼叫 os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		// Storage
		SQLite: SQLiteConfig{
			Path:        getEnv("SQLITE_PATH", "data/screener.db"),
			BusyTimeout: getEnvAsDuration("SQLITE_BUSY_TIMEOUT", "5s"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		FinMind: FinMindConfig{
			Token:     getEnv("FINMIND_TOKEN", ""),
			BaseURL:   getEnv("FINMIND_BASE_URL", "https://api.finmindtrade.com/api/v4"),
			RateLimit: getEnvAsInt("FINMIND_RATE_LIMIT", 600),
		},

		TWSE: TWSEConfig{
			BaseURL: getEnv("TWSE_BASE_URL", "https://openapi.twse.com.tw/v1"),
		},

		// Screening defaults
		Screening: ScreeningConfig{
			MinMarketCap:           getEnvAsFloat("MIN_MARKET_CAP", 500_000_000),
			MinLiquidityPercentile: getEnvAsFloat("MIN_LIQUIDITY_PERCENTILE", 0.3),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.SQLite.Path == "" {
		return fmt.Errorf("SQLITE_PATH is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Screening.MinLiquidityPercentile < 0 || c.Screening.MinLiquidityPercentile > 1 {
		return fmt.Errorf("MIN_LIQUIDITY_PERCENTILE must be within [0, 1]")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
