package main

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"rulebacktest/services/analysis"
	"rulebacktest/services/backtest"
	"rulebacktest/services/engine"
)

// printReport writes the run summary. Money amounts go through decimal
// rounding so the table shows clean two-place figures regardless of float
// accumulation in the simulator.
func printReport(w io.Writer, cfg engine.Config, outcome *backtest.Outcome) {
	st := outcome.Statistics
	money := func(v float64) string {
		return decimal.NewFromFloat(v).Round(2).StringFixed(2)
	}

	fmt.Fprintln(w, "=== Backtest summary ===")
	fmt.Fprintf(w, "initial capital     %s\n", money(st.InitialCapital))
	fmt.Fprintf(w, "final equity        %s\n", money(st.FinalEquity))
	fmt.Fprintf(w, "total return        %.2f%%\n", st.TotalReturn)
	fmt.Fprintf(w, "CAGR                %.2f%%\n", st.CAGR)
	fmt.Fprintf(w, "sharpe / sortino    %.2f / %.2f\n", st.SharpeRatio, st.SortinoRatio)
	fmt.Fprintf(w, "calmar              %.2f\n", st.CalmarRatio)
	fmt.Fprintf(w, "max drawdown        %.2f%% (%d bars)\n", st.MaxDrawdown, st.MaxDrawdownDuration)
	fmt.Fprintf(w, "trades              %d (%d W / %d L, win rate %.1f%%)\n",
		st.TotalTrades, st.WinningTrades, st.LosingTrades, st.WinRate)
	fmt.Fprintf(w, "profit factor       %.2f\n", st.ProfitFactor)
	fmt.Fprintf(w, "avg win / avg loss  %s / %s\n", money(st.AvgWin), money(st.AvgLoss))
	fmt.Fprintf(w, "avg holding         %.1f days\n", st.AvgHoldingDays)

	if len(outcome.Trades) == 0 {
		return
	}
	fmt.Fprintln(w, "\n=== Trades ===")
	for _, t := range outcome.Trades {
		fmt.Fprintf(w, "%s -> %s  %5d sh  %s -> %s  pnl %s (%.2f%%)  %s\n",
			t.EntryDate.Format("2006-01-02"), t.ExitDate.Format("2006-01-02"),
			t.Shares, money(t.EntryPrice), money(t.ExitPrice),
			money(t.PnL), t.PnLPct, t.Reason)
	}
}

func printBenchmark(w io.Writer, cmp analysis.BenchmarkComparison) {
	fmt.Fprintf(w, "\n=== Benchmark (%s) ===\n", cmp.BenchmarkName)
	fmt.Fprintf(w, "strategy / benchmark  %.2f%% / %.2f%%\n", cmp.StrategyReturn, cmp.BenchmarkReturn)
	fmt.Fprintf(w, "alpha                 %.2f%%\n", cmp.Alpha)
	fmt.Fprintf(w, "beta / correlation    %.2f / %.2f\n", cmp.Beta, cmp.Correlation)
	fmt.Fprintf(w, "information ratio     %.2f\n", cmp.InformationRatio)
}
