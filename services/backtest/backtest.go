// Package backtest wires the rule evaluator, signal generator, simulator
// and analyzer into the single blocking call callers wrap.
package backtest

import (
	"rulebacktest/services/analysis"
	"rulebacktest/services/engine"
	"rulebacktest/services/rules"
	"rulebacktest/services/series"
)

// Request describes one run: paired buy/sell rules plus execution and
// annualization parameters.
type Request struct {
	BuyRule            string        `json:"buy_rule" yaml:"buy_rule"`
	SellRule           string        `json:"sell_rule" yaml:"sell_rule"`
	Config             engine.Config `json:"config" yaml:"config"`
	RiskFreeRate       float64       `json:"risk_free_rate" yaml:"risk_free_rate"`
	TradingDaysPerYear int           `json:"trading_days_per_year" yaml:"trading_days_per_year"`
}

// Outcome bundles the simulation output with its statistics.
type Outcome struct {
	EquityCurve []engine.EquityPoint `json:"equity_curve"`
	Trades      []engine.TradeRecord `json:"trades"`
	Statistics  analysis.Statistics  `json:"statistics"`
	Events      []engine.Event       `json:"-"`
}

// Run compiles both rules, replays the frame and analyzes the result. Rule
// compilation errors surface before any simulation work happens.
func Run(f *series.Frame, req Request) (*Outcome, error) {
	if req.RiskFreeRate == 0 {
		req.RiskFreeRate = analysis.DefaultRiskFreeRate
	}
	if req.TradingDaysPerYear == 0 {
		req.TradingDaysPerYear = analysis.DefaultTradingDaysPerYear
	}

	buyRule, err := rules.Compile(req.BuyRule)
	if err != nil {
		return nil, err
	}
	sellRule, err := rules.Compile(req.SellRule)
	if err != nil {
		return nil, err
	}

	var log engine.EventLog
	sim, err := engine.NewSimulator(req.Config, &log)
	if err != nil {
		return nil, err
	}

	buy, err := buyRule.Eval(f)
	if err != nil {
		return nil, err
	}
	sell, err := sellRule.Eval(f)
	if err != nil {
		return nil, err
	}
	signals, err := engine.GenerateSignals(buy, sell)
	if err != nil {
		return nil, err
	}

	res, err := sim.Run(f, signals)
	if err != nil {
		return nil, err
	}

	stats := analysis.Analyze(res.EquityCurve, res.Trades, req.Config.InitialCapital, req.RiskFreeRate, req.TradingDaysPerYear)
	return &Outcome{
		EquityCurve: res.EquityCurve,
		Trades:      res.Trades,
		Statistics:  stats,
		Events:      log.Events,
	}, nil
}
