package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/httputil"
	"github.com/twquant/screener/pkg/logger"
)

// Example_basic demonstrates basic HTTP client usage
func Example_basic() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	// Create HTTP client (SSOT)
	client := httputil.New(cfg, log)

	// Make GET request
	ctx := context.Background()
	resp, err := client.Get(ctx, "https://openapi.twse.com.tw/v1/exchangeReport/FMTQIK")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
}

// Example_withRetry demonstrates retry configuration
func Example_withRetry() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	// Create client with custom retry settings
	client := httputil.New(cfg, log).
		WithRetry(5, 2*time.Second) // 5 retries, 2s initial delay

	ctx := context.Background()
	resp, err := client.Get(ctx, "https://api.finmindtrade.com/api/v4/data")
	if err != nil {
		fmt.Printf("Request failed after retries: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request succeeded")
}

// Example_rateLimited demonstrates the in-process rate limiter
func Example_rateLimited() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		FinMind: config.FinMindConfig{
			RateLimit: 600,
		},
	}
	log := logger.New(cfg)

	// 600 requests/hour spread over time
	client := httputil.New(cfg, log).
		WithLocalRateLimit(cfg.FinMind.RateLimit)

	ctx := context.Background()
	resp, err := client.Get(ctx, "https://api.finmindtrade.com/api/v4/data")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request completed under rate limit")
}

// Example_timeout demonstrates custom timeout
func Example_timeout() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	// Create client with 5 second timeout
	client := httputil.NewWithTimeout(cfg, log, 5*time.Second)

	ctx := context.Background()
	resp, err := client.Get(ctx, "https://openapi.twse.com.tw/v1/exchangeReport/MI_INDEX")
	if err != nil {
		fmt.Printf("Request timeout: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request completed within timeout")
}
