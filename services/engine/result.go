package engine

import "time"

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitSignal      ExitReason = "signal"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitMaxHolding  ExitReason = "max_holding"
	ExitEndOfSeries ExitReason = "end_of_series"
)

// TradeRecord is one closed round trip. Records are append-only; entry and
// exit prices are effective prices after slippage.
type TradeRecord struct {
	EntryDate   time.Time  `json:"entry_date"`
	ExitDate    time.Time  `json:"exit_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	Shares      int        `json:"shares"`
	PnL         float64    `json:"pnl"`
	PnLPct      float64    `json:"pnl_pct"`
	HoldingDays int        `json:"holding_period_days"`
	Reason      ExitReason `json:"exit_reason"`
}

// EquityPoint is the account snapshot taken at every bar close.
type EquityPoint struct {
	Date          time.Time `json:"date"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
	Equity        float64   `json:"total_equity"`
}

// Result is the raw simulation output, one equity point per input bar.
type Result struct {
	EquityCurve []EquityPoint `json:"equity_curve"`
	Trades      []TradeRecord `json:"trades"`
	FinalEquity float64       `json:"final_equity"`
}
