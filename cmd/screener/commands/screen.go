package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/twquant/screener/internal/screening"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen [strategy|all]",
	Short: "執行選股策略",
	Long: `執行一套策略或全部策略，結果存入資料庫並列出。

Example:
  go run ./cmd/screener screen all
  go run ./cmd/screener screen breakout --top 10
  go run ./cmd/screener screen revenue_momentum --no-save`,
	Args: cobra.ExactArgs(1),
	RunE: runScreen,
}

var (
	screenTop    int
	screenNoSave bool
)

func init() {
	rootCmd.AddCommand(screenCmd)
	screenCmd.Flags().IntVar(&screenTop, "top", 20, "每套策略最多列出幾檔")
	screenCmd.Flags().BoolVar(&screenNoSave, "no-save", false, "不寫入資料庫")
}

func runScreen(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	// 抓全歷史表格可能要幾分鐘
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if args[0] == "all" {
		return screenAll(ctx, d)
	}
	return screenOne(ctx, d, args[0])
}

func screenOne(ctx context.Context, d *deps, key string) error {
	strategy, ok := d.manager.Get(key)
	if !ok {
		return fmt.Errorf("unknown strategy %q (use `screener strategies` to list)", key)
	}

	bundle, err := d.provider.Bundle(ctx, strategy.RequiredDataKeys())
	if err != nil {
		return fmt.Errorf("build data bundle: %w", err)
	}

	result, err := d.manager.Run(ctx, key, bundle)
	if err != nil {
		return fmt.Errorf("run strategy: %w", err)
	}

	if !screenNoSave {
		if err := d.store.SaveSelections(ctx, result); err != nil {
			PrintWarning(fmt.Sprintf("結果未存檔: %v", err))
		}
	}

	printResult(result)
	return nil
}

func screenAll(ctx context.Context, d *deps) error {
	bundle, err := d.provider.Bundle(ctx, d.manager.RequiredDataKeys())
	if err != nil {
		return fmt.Errorf("build data bundle: %w", err)
	}

	total := len(d.manager.List())
	completed := 0
	results := d.manager.RunAllWithProgress(ctx, bundle, func(key string, result *screening.Result) {
		completed++
		fmt.Printf("[screen] %s: %d 檔 [%d/%d]\n", key, len(result.Rows), completed, total)
	})

	if !screenNoSave {
		if err := d.store.SaveAll(ctx, results); err != nil {
			PrintWarning(fmt.Sprintf("部分結果未存檔: %v", err))
		}
	}

	summary := d.manager.Summarize(results)
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Println("  批次選股結果")
	PrintSeparator()
	PrintKeyValue("策略數", fmt.Sprintf("%d", summary.Executed), 10)
	PrintKeyValue("有結果", fmt.Sprintf("%d", summary.WithResults), 10)
	PrintKeyValue("個股數", fmt.Sprintf("%d", summary.TotalStocks), 10)
	PrintSeparator()

	for _, detail := range summary.Details {
		fmt.Printf("   %-24s %-28s %3d 檔\n", detail.Key, detail.Name, detail.StockCount)
	}

	// 跨策略重複出現的個股最值得看
	appearances := d.manager.StockAppearances(results, 2)
	if len(appearances) > 0 {
		fmt.Println()
		fmt.Println("  多策略共同選出:")
		for _, a := range appearances {
			fmt.Printf("   %-8s %d 套策略  平均分 %.1f\n", a.StockID, a.Appearances, a.AvgScore)
		}
	}

	PrintDoubleSeparator()
	return nil
}

func printResult(result *screening.Result) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s (%s)\n", result.StrategyName, result.StrategyKey)
	if result.SelectionDate != "" {
		fmt.Printf("  日期: %s\n", result.SelectionDate)
	}
	PrintSeparator()

	if result.IsEmpty() {
		PrintWarning("沒有個股通過條件")
		return
	}

	widths := []int{6, 10, 8, 10}
	PrintTableHeader([]string{"Rank", "Stock", "Score", "Price"}, widths)
	for i, row := range result.Rows {
		if screenTop > 0 && i >= screenTop {
			fmt.Printf("   ... 共 %d 檔\n", len(result.Rows))
			break
		}
		price := "-"
		if v, ok := row.Extra["price"]; ok {
			price = fmt.Sprintf("%.2f", v)
		}
		PrintTableRow([]string{
			fmt.Sprintf("%d", row.Rank),
			row.StockID,
			fmt.Sprintf("%.1f", row.Score),
			price,
		}, widths)
	}
	PrintDoubleSeparator()
}
