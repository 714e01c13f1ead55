package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// strategiesCmd represents the strategies command
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "列出已註冊的策略",
	RunE:  runStrategies,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func runStrategies(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	infos := d.manager.List()

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  已註冊策略 (%d)\n", len(infos))
	PrintSeparator()
	for _, info := range infos {
		fmt.Printf("   %-24s %s\n", info.Key, info.Name)
		if info.Description != "" {
			fmt.Printf("   %-24s %s\n", "", info.Description)
		}
	}
	PrintDoubleSeparator()
	return nil
}
