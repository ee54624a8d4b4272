// Package analysis computes summary statistics over an equity curve and
// trade ledger. Formulas are fixed contracts; changing any of them breaks
// reproducibility of recorded runs.
package analysis

import (
	"math"

	"rulebacktest/services/engine"
)

// Annualization defaults.
const (
	DefaultRiskFreeRate       = 6.0 // percent
	DefaultTradingDaysPerYear = 252
)

// Statistics is the full risk-adjusted summary of one run.
type Statistics struct {
	InitialCapital      float64 `json:"initial_capital"`
	FinalEquity         float64 `json:"final_equity"`
	TotalReturn         float64 `json:"total_return"`
	CAGR                float64 `json:"cagr"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	SortinoRatio        float64 `json:"sortino_ratio"`
	CalmarRatio         float64 `json:"calmar_ratio"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"`
	TotalTrades         int     `json:"total_trades"`
	WinningTrades       int     `json:"winning_trades"`
	LosingTrades        int     `json:"losing_trades"`
	WinRate             float64 `json:"win_rate"`
	AvgWin              float64 `json:"avg_win"`
	AvgLoss             float64 `json:"avg_loss"`
	ProfitFactor        float64 `json:"profit_factor"`
	AvgHoldingDays      float64 `json:"avg_holding_period"`
	LargestWin          float64 `json:"largest_win"`
	LargestLoss         float64 `json:"largest_loss"`
	PeriodDays          int     `json:"period_days"`
	PeriodYears         float64 `json:"period_years"`
}

// Analyze computes statistics for an equity curve and ledger. riskFreeRate
// is in percent; tradingDays is the annualization factor N.
func Analyze(curve []engine.EquityPoint, trades []engine.TradeRecord, initialCapital, riskFreeRate float64, tradingDays int) Statistics {
	stats := Statistics{InitialCapital: initialCapital}
	if len(curve) == 0 {
		return stats
	}

	final := curve[len(curve)-1].Equity
	stats.FinalEquity = final
	stats.TotalReturn = (final/initialCapital - 1) * 100

	days := int(curve[len(curve)-1].Date.Sub(curve[0].Date).Hours() / 24)
	years := float64(days) / 365.25
	stats.PeriodDays = days
	stats.PeriodYears = years
	if years > 0 && final > 0 {
		stats.CAGR = (math.Pow(final/initialCapital, 1/years) - 1) * 100
	}

	returns := dailyReturns(curve)
	n := float64(tradingDays)
	if mean, std := meanStd(returns); len(returns) >= 2 && std > 0 {
		stats.SharpeRatio = (mean*n - riskFreeRate/100) / (std * math.Sqrt(n))

		var downside []float64
		for _, r := range returns {
			if r < 0 {
				downside = append(downside, r)
			}
		}
		if _, dstd := meanStd(downside); len(downside) >= 2 && dstd > 0 {
			stats.SortinoRatio = (mean*n - riskFreeRate/100) / (dstd * math.Sqrt(n))
		}
	}

	stats.MaxDrawdown, stats.MaxDrawdownDuration = drawdown(curve)
	if stats.MaxDrawdown != 0 {
		stats.CalmarRatio = math.Abs(stats.CAGR / stats.MaxDrawdown)
	}

	fillTradeStats(&stats, trades)
	return stats
}

// dailyReturns is the pct-change of consecutive equity points; the first
// point has no return.
func dailyReturns(curve []engine.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev > 0 {
			out = append(out, curve[i].Equity/prev-1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// meanStd returns the mean and sample standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs) - 1)
	return mean, math.Sqrt(variance)
}

// drawdown returns the max drawdown in percent (non-positive) and the
// longest consecutive run of bars spent below the running equity peak.
func drawdown(curve []engine.EquityPoint) (maxDD float64, maxDuration int) {
	peak := curve[0].Equity
	duration := 0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Equity - peak) / peak * 100
		}
		if dd < maxDD {
			maxDD = dd
		}
		if dd < 0 {
			duration++
			if duration > maxDuration {
				maxDuration = duration
			}
		} else {
			duration = 0
		}
	}
	return maxDD, maxDuration
}

func fillTradeStats(stats *Statistics, trades []engine.TradeRecord) {
	stats.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}
	var winSum, lossSum, holdSum float64
	largestWin := math.Inf(-1)
	largestLoss := math.Inf(1)
	for _, t := range trades {
		holdSum += float64(t.HoldingDays)
		if t.PnL > 0 {
			stats.WinningTrades++
			winSum += t.PnL
		} else {
			stats.LosingTrades++
			lossSum += t.PnL
		}
		if t.PnL > largestWin {
			largestWin = t.PnL
		}
		if t.PnL < largestLoss {
			largestLoss = t.PnL
		}
	}
	stats.WinRate = float64(stats.WinningTrades) / float64(len(trades)) * 100
	stats.AvgHoldingDays = holdSum / float64(len(trades))
	stats.LargestWin = largestWin
	stats.LargestLoss = largestLoss
	if stats.WinningTrades > 0 {
		stats.AvgWin = winSum / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = lossSum / float64(stats.LosingTrades)
	}
	if lossSum != 0 {
		stats.ProfitFactor = math.Abs(winSum / lossSum)
	}
}
