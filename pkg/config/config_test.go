package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8087" {
		t.Errorf("Expected Port to be 8087, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.SQLite.Path != "data/screener.db" {
		t.Errorf("Expected default SQLite path, got %s", cfg.SQLite.Path)
	}

	if cfg.Screening.MinMarketCap != 500_000_000 {
		t.Errorf("Expected MinMarketCap to be 5e8, got %f", cfg.Screening.MinMarketCap)
	}

	if cfg.Screening.MinLiquidityPercentile != 0.3 {
		t.Errorf("Expected MinLiquidityPercentile to be 0.3, got %f", cfg.Screening.MinLiquidityPercentile)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("ENV", "production")
	os.Setenv("FINMIND_RATE_LIMIT", "1200")
	os.Setenv("MIN_MARKET_CAP", "1000000000")
	os.Setenv("LOG_LEVEL", "warn")

	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("FINMIND_RATE_LIMIT")
		os.Unsetenv("MIN_MARKET_CAP")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.FinMind.RateLimit != 1200 {
		t.Errorf("Expected FinMind rate limit to be 1200, got %d", cfg.FinMind.RateLimit)
	}

	if cfg.Screening.MinMarketCap != 1_000_000_000 {
		t.Errorf("Expected MinMarketCap to be 1e9, got %f", cfg.Screening.MinMarketCap)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("Expected LogLevel to be warn, got %s", cfg.LogLevel)
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	os.Setenv("ENV", "invalid")
	defer os.Unsetenv("ENV")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateLiquidityPercentileRange(t *testing.T) {
	os.Setenv("MIN_LIQUIDITY_PERCENTILE", "1.5")
	defer os.Unsetenv("MIN_LIQUIDITY_PERCENTILE")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when MIN_LIQUIDITY_PERCENTILE is out of range, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "2h")
	defer os.Unsetenv("TEST_DURATION")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	expected := 2 * time.Hour

	if duration != expected {
		t.Errorf("Expected duration to be %v, got %v", expected, duration)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	os.Setenv("TEST_INT", "100")
	defer os.Unsetenv("TEST_INT")

	value := getEnvAsInt("TEST_INT", 50)
	if value != 100 {
		t.Errorf("Expected value to be 100, got %d", value)
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	os.Setenv("TEST_FLOAT", "0.45")
	defer os.Unsetenv("TEST_FLOAT")

	value := getEnvAsFloat("TEST_FLOAT", 0.3)
	if value != 0.45 {
		t.Errorf("Expected value to be 0.45, got %f", value)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	os.Setenv("TEST_BOOL", "true")
	defer os.Unsetenv("TEST_BOOL")

	value := getEnvAsBool("TEST_BOOL", false)
	if value != true {
		t.Errorf("Expected value to be true, got %v", value)
	}
}
