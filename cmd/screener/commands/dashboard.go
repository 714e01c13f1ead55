package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/twquant/screener/internal/dashboard"
	"github.com/twquant/screener/internal/data/calendar"
	"github.com/twquant/screener/internal/data/twse"
)

// dashboardCmd represents the dashboard command
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "大盤儀表板",
	Long:  `列出大盤成交統計、三大法人買賣超、加權指數技術指標與近期財經事件。`,
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	twseClient := twse.New(d.cfg, d.log)
	calendarScraper := calendar.New(d.cfg, d.log, d.cache)
	o := dashboard.NewService(twseClient, calendarScraper, d.cache, d.log).Overview(ctx)

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  大盤儀表板  %s\n", o.Date)
	PrintSeparator()

	if o.Market == nil {
		PrintWarning("大盤統計暫時取不到")
	} else {
		PrintKeyValue("加權指數", fmt.Sprintf("%.2f (%+.2f)", o.Market.TaiexIndex, o.Market.Change), 10)
		PrintKeyValue("成交金額", fmt.Sprintf("%.1f 億", o.Market.TradeValue/1e8), 10)
		PrintKeyValue("成交筆數", fmt.Sprintf("%.0f", o.Market.Transactions), 10)
	}

	if o.Flows != nil {
		PrintSeparator()
		fmt.Println("  三大法人買賣超 (億):")
		PrintKeyValue("外資", fmt.Sprintf("%+.1f", o.Flows.Foreign.NetBillion), 10)
		PrintKeyValue("投信", fmt.Sprintf("%+.1f", o.Flows.InvestmentTrust.NetBillion), 10)
		PrintKeyValue("自營商", fmt.Sprintf("%+.1f", o.Flows.Dealer.NetBillion), 10)
	}

	if o.Taiex != nil {
		PrintSeparator()
		fmt.Println("  指數技術指標:")
		if o.Taiex.MA5 != nil {
			PrintKeyValue("MA5", fmt.Sprintf("%.2f", *o.Taiex.MA5), 10)
		}
		if o.Taiex.MA20 != nil {
			PrintKeyValue("MA20", fmt.Sprintf("%.2f", *o.Taiex.MA20), 10)
		}
		if o.Taiex.RSI != nil {
			PrintKeyValue("RSI", fmt.Sprintf("%.1f", *o.Taiex.RSI), 10)
		}
		if o.Taiex.Trend != "" {
			PrintKeyValue("MACD", o.Taiex.Trend, 10)
		}
	}

	if len(o.Events) > 0 {
		PrintSeparator()
		fmt.Println("  近期財經事件:")
		for _, e := range o.Events {
			fmt.Printf("   %s  [%s] %s\n", e.Time.Format("01-02 15:04"), e.Country, e.Name)
		}
	}

	PrintDoubleSeparator()
	return nil
}
