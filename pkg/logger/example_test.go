package logger_test

import (
	"errors"

	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	// Basic logging
	log.Debug("This won't appear (level is info)")
	log.Info("Screener started")
	log.Warn("Revenue table is stale")
	log.Error("Failed to reach FinMind")

	// Formatted logging
	log.Infof("Strategy %s selected %d stocks", "breakout", 14)
	log.Warnf("Retry attempt %d of %d", 3, 5)
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Add single field
	strategyLog := log.WithField("strategy", "revenue_momentum")
	strategyLog.Info("Screen completed")

	// Add multiple fields
	selectionLog := log.WithFields(map[string]interface{}{
		"stock_id": "2330",
		"score":    91.2,
		"rank":     1,
	})
	selectionLog.Info("Stock selected")
}

// Example_withError demonstrates error logging
func Example_withError() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Log with error
	err := errors.New("finmind request timeout")
	log.WithError(err).Error("Failed to fetch price table")

	// Combine error with fields
	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
		}).
		Error("Fetch failed after retries")
}
