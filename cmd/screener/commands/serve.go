package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twquant/screener/internal/api"
	"github.com/twquant/screener/internal/dashboard"
	"github.com/twquant/screener/internal/data/calendar"
	"github.com/twquant/screener/internal/data/twse"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "啟動 API 伺服器",
	Long: `啟動 REST API 伺服器。

Endpoints:
  GET  /health                        - Health check
  GET  /api/strategies                - 策略清單
  POST /api/screen                    - 跑全部策略
  POST /api/screen/{key}              - 跑單一策略
  GET  /api/selections/{key}          - 查詢選股結果
  GET  /api/selections/{key}/export   - CSV 匯出
  GET  /api/appearances               - 跨策略重複出現
  GET  /api/dashboard                 - 大盤儀表板
  GET  /api/watchlist                 - 觀察名單
  GET  /ws/progress                   - 批次進度 websocket

Example:
  go run ./cmd/screener serve
  go run ./cmd/screener serve --port 8087`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 伺服器埠號 (預設取 PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	if servePort != "" {
		d.cfg.Port = servePort
	}

	// Dashboard sources
	twseClient := twse.New(d.cfg, d.log)
	calendarScraper := calendar.New(d.cfg, d.log, d.cache)
	dashboardService := dashboard.NewService(twseClient, calendarScraper, d.cache, d.log)

	hub := api.NewHub(d.log)
	handler := api.NewHandler(d.manager, d.provider, d.store, dashboardService, hub, d.log)
	router := api.NewRouter(handler, d.log)
	server := api.New(d.cfg, d.log, router)

	go func() {
		if err := server.Start(); err != nil {
			d.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	d.log.Info("Server stopped")
	return nil
}
