// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/screening"
	"github.com/twquant/screener/internal/store"
	"github.com/twquant/screener/pkg/logger"
)

// ScreeningJob runs the full strategy batch every trading day after the
// market data settles, and persists the selections.
// ⭐ SSOT: 每日選股排程只在這個 Job
type ScreeningJob struct {
	manager  *screening.Manager
	provider data.Provider
	store    *store.Store
	logger   *logger.Logger
}

// NewScreeningJob creates the daily screening job.
func NewScreeningJob(manager *screening.Manager, provider data.Provider, st *store.Store, log *logger.Logger) *ScreeningJob {
	return &ScreeningJob{
		manager:  manager,
		provider: provider,
		store:    st,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScreeningJob) Name() string {
	return "daily_screening"
}

// Schedule returns the cron schedule (weekdays 18:30, 月營收與法人資料晚間才齊)
func (j *ScreeningJob) Schedule() string {
	return "0 30 18 * * 1-5"
}

// Run builds the data bundle, runs every strategy, and persists results.
func (j *ScreeningJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled screening batch")

	bundle, err := j.provider.Bundle(ctx, j.manager.RequiredDataKeys())
	if err != nil {
		return fmt.Errorf("build data bundle: %w", err)
	}

	results := j.manager.RunAll(ctx, bundle)
	summary := j.manager.Summarize(results)

	if err := j.store.SaveAll(ctx, results); err != nil {
		return fmt.Errorf("persist selections: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"strategies":   summary.Executed,
		"with_results": summary.WithResults,
		"total_stocks": summary.TotalStocks,
	}).Info("Scheduled screening batch finished")

	return nil
}
