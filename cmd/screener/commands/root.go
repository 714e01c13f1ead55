package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "台股選股系統",
	Long: `台股零售選股後端

以 FinMind 開放資料建立對齊表格，跑六套規則策略（各含調校版與
原始版），評分排名後存入內嵌資料庫，並提供大盤儀表板。

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener serve
  go run ./cmd/screener screen all
  go run ./cmd/screener screen breakout --top 10
  go run ./cmd/screener appearances --min 2
  go run ./cmd/screener dashboard`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
