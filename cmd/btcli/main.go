// Command btcli runs backtests and screens over local CSV candle files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rulebacktest/services/analysis"
	"rulebacktest/services/backtest"
	"rulebacktest/services/engine"
	"rulebacktest/services/feed"
	"rulebacktest/services/screener"
)

func main() {
	root := &cobra.Command{
		Use:           "btcli",
		Short:         "Rule-driven backtesting and screening over CSV candles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newScreenCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		csvPath   string
		buyRule   string
		sellRule  string
		cfg       = engine.DefaultConfig()
		entry     string
		exit      string
		rf        float64
		days      int
		benchPath string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest paired buy/sell rules against a CSV candle file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.EntryTiming = engine.EntryTiming(entry)
			cfg.ExitTiming = engine.ExitTiming(exit)
			frame, err := feed.LoadCSV(csvPath)
			if err != nil {
				return err
			}
			outcome, err := backtest.Run(frame, backtest.Request{
				BuyRule:            buyRule,
				SellRule:           sellRule,
				Config:             cfg,
				RiskFreeRate:       rf,
				TradingDaysPerYear: days,
			})
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), cfg, outcome)

			if benchPath != "" {
				bench, err := feed.LoadCSV(benchPath)
				if err != nil {
					return err
				}
				tradingDays := days
				if tradingDays == 0 {
					tradingDays = analysis.DefaultTradingDaysPerYear
				}
				cmp, err := analysis.CompareBenchmark(outcome.EquityCurve, bench.Dates(), bench.Close(), benchPath, tradingDays)
				if err != nil {
					return err
				}
				printBenchmark(cmd.OutOrStdout(), cmp)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to CSV candle file")
	cmd.Flags().StringVar(&buyRule, "buy", "", "Buy rule expression")
	cmd.Flags().StringVar(&sellRule, "sell", "", "Sell rule expression")
	cmd.Flags().Float64Var(&cfg.InitialCapital, "capital", cfg.InitialCapital, "Initial capital")
	cmd.Flags().Float64Var(&cfg.Commission, "commission", cfg.Commission, "Commission fraction per side")
	cmd.Flags().Float64Var(&cfg.Slippage, "slippage", cfg.Slippage, "Slippage fraction per side")
	cmd.Flags().Float64Var(&cfg.PositionSize, "position-size", cfg.PositionSize, "Fraction of capital per trade")
	cmd.Flags().Float64Var(&cfg.StopLoss, "stop-loss", 0, "Stop loss fraction (0 disables)")
	cmd.Flags().Float64Var(&cfg.TakeProfit, "take-profit", 0, "Take profit fraction (0 disables)")
	cmd.Flags().IntVar(&cfg.MaxHoldingDays, "max-holding", 0, "Max holding period in days (0 disables)")
	cmd.Flags().StringVar(&entry, "entry-time", string(cfg.EntryTiming), "Entry price: open, close or next_open")
	cmd.Flags().StringVar(&exit, "exit-time", string(cfg.ExitTiming), "Exit price: open or close")
	cmd.Flags().Float64Var(&rf, "risk-free", 0, "Risk-free rate in percent (default 6)")
	cmd.Flags().IntVar(&days, "trading-days", 0, "Trading days per year (default 252)")
	cmd.Flags().StringVar(&benchPath, "benchmark", "", "CSV candle file to compare the run against")
	cmd.MarkFlagRequired("csv")
	cmd.MarkFlagRequired("buy")
	cmd.MarkFlagRequired("sell")
	return cmd
}

func newScreenCmd() *cobra.Command {
	var (
		csvPath string
		rule    string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "List the bars of a CSV candle file matching a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := feed.LoadCSV(csvPath)
			if err != nil {
				return err
			}
			res, err := screener.Screen(frame, rule)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d bars match %q\n", len(res.Matches), res.Total, res.Rule)
			for i, m := range res.Matches {
				if limit > 0 && i >= limit {
					fmt.Fprintf(out, "... %d more\n", len(res.Matches)-limit)
					break
				}
				fmt.Fprintf(out, "%s  close=%.2f\n", m.Date.Format("2006-01-02"), m.Close)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to CSV candle file")
	cmd.Flags().StringVar(&rule, "rule", "", "Rule expression")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max matches to print (0 = all)")
	cmd.MarkFlagRequired("csv")
	cmd.MarkFlagRequired("rule")
	return cmd
}
