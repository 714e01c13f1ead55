package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twquant/screener/internal/scheduler"
	"github.com/twquant/screener/internal/scheduler/jobs"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "啟動每日選股排程",
	Long: `啟動排程器，平日收盤後自動跑全部策略並存檔。

Example:
  go run ./cmd/screener schedule
  go run ./cmd/screener schedule --now`,
	RunE: runSchedule,
}

var scheduleNow bool

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "啟動後立刻跑一次")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	sched := scheduler.New(d.log)
	job := jobs.NewScreeningJob(d.manager, d.provider, d.store, d.log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("register screening job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	if scheduleNow {
		if err := sched.RunJob(job.Name()); err != nil {
			return err
		}
	}

	PrintSuccess(fmt.Sprintf("排程器已啟動 (%s @ %s)", job.Name(), job.Schedule()))
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}
