package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/twquant/screener/internal/store"
)

// watchlistCmd represents the watchlist command group
var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "觀察名單管理",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出觀察名單",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entries, err := d.store.Watchlist(ctx)
		if err != nil {
			return err
		}

		fmt.Println()
		PrintDoubleSeparator()
		fmt.Printf("  觀察名單 (%d)\n", len(entries))
		PrintSeparator()
		for _, e := range entries {
			line := fmt.Sprintf("   %-8s %-12s 加入 %s", e.StockID, e.StockName, e.AddedDate)
			if e.BuyPrice > 0 {
				line += fmt.Sprintf("  買價 %.2f x %d", e.BuyPrice, e.Shares)
			}
			fmt.Println(line)
			if e.Notes != "" {
				fmt.Printf("   %-8s %s\n", "", e.Notes)
			}
		}
		PrintDoubleSeparator()
		return nil
	},
}

var (
	watchName  string
	watchPrice float64
	watchQty   int
	watchNotes string
)

var watchlistAddCmd = &cobra.Command{
	Use:   "add [stock_id]",
	Short: "加入觀察名單",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entry := store.WatchlistEntry{
			StockID:   args[0],
			StockName: watchName,
			BuyPrice:  watchPrice,
			Shares:    watchQty,
			Notes:     watchNotes,
		}
		if err := d.store.AddToWatchlist(ctx, entry); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("%s 已加入觀察名單", args[0]))
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove [stock_id]",
	Short: "移出觀察名單",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := d.store.RemoveFromWatchlist(ctx, args[0]); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("%s 已移出觀察名單", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)

	watchlistAddCmd.Flags().StringVar(&watchName, "name", "", "股票名稱")
	watchlistAddCmd.Flags().Float64Var(&watchPrice, "price", 0, "買進價")
	watchlistAddCmd.Flags().IntVar(&watchQty, "shares", 0, "股數")
	watchlistAddCmd.Flags().StringVar(&watchNotes, "notes", "", "備註")
}
