package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twquant/screener/internal/screening"
)

// appearancesCmd represents the appearances command
var appearancesCmd = &cobra.Command{
	Use:   "appearances",
	Short: "跨策略重複出現的個股",
	Long: `聚合各策略最近一次存檔的選股結果，列出被多套策略同時選中的個股。

Example:
  go run ./cmd/screener appearances
  go run ./cmd/screener appearances --min 3`,
	RunE: runAppearances,
}

var appearancesMin int

func init() {
	rootCmd.AddCommand(appearancesCmd)
	appearancesCmd.Flags().IntVar(&appearancesMin, "min", 2, "最少出現策略數")
}

func runAppearances(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := make(map[string]*screening.Result)
	for _, info := range d.manager.List() {
		recs, err := d.store.Selections(ctx, info.Key, "", 0)
		if err != nil {
			return fmt.Errorf("query selections for %s: %w", info.Key, err)
		}
		if len(recs) == 0 {
			continue
		}
		result := &screening.Result{
			StrategyKey:   info.Key,
			StrategyName:  recs[0].StrategyName,
			SelectionDate: recs[0].SelectionDate,
		}
		for _, rec := range recs {
			result.Rows = append(result.Rows, screening.Row{
				StockID: rec.StockID,
				Score:   rec.Score,
				Rank:    rec.Rank,
			})
		}
		results[info.Key] = result
	}

	appearances := d.manager.StockAppearances(results, appearancesMin)

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  出現 >= %d 套策略的個股 (%d)\n", appearancesMin, len(appearances))
	PrintSeparator()
	if len(appearances) == 0 {
		PrintWarning("沒有符合的個股，先跑 `screener screen all`")
		return nil
	}
	for _, a := range appearances {
		fmt.Printf("   %-8s %d 套  平均分 %5.1f  [%s]\n",
			a.StockID, a.Appearances, a.AvgScore, strings.Join(a.Strategies, ", "))
	}
	PrintDoubleSeparator()
	return nil
}
