package engine

import (
	"fmt"
	"math"
	"time"

	"rulebacktest/services/series"
)

// Simulator replays a bar sequence once, left to right, updating the account
// and position and appending equity points and trade records. It is fully
// deterministic: no look-ahead, no re-ordering, no shared state between runs.
type Simulator struct {
	cfg Config
	log *EventLog
}

// NewSimulator validates the configuration eagerly and returns a simulator.
// The event log may be nil when no execution trace is wanted.
func NewSimulator(cfg Config, log *EventLog) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, log: log}, nil
}

// Run consumes one signal per bar and produces the equity curve and trade
// ledger. A position still open at the last bar is force-liquidated at that
// bar's close.
func (s *Simulator) Run(f *series.Frame, signals []Signal) (*Result, error) {
	n := f.Len()
	if len(signals) != n {
		return nil, fmt.Errorf("engine: %d signals for %d bars", len(signals), n)
	}

	open, high, low, cls := f.Open(), f.High(), f.Low(), f.Close()
	cash := s.cfg.InitialCapital
	var pos Position

	res := &Result{
		EquityCurve: make([]EquityPoint, 0, n),
		Trades:      []TradeRecord{},
	}

	for i := 0; i < n; i++ {
		date := f.Date(i)

		entryPx := cls[i]
		switch s.cfg.EntryTiming {
		case EntryOpen:
			entryPx = open[i]
		case EntryNextOpen:
			// previous bar's open; the first bar has none and falls back to
			// its close
			if i > 0 {
				entryPx = open[i-1]
			}
		}
		exitPx := cls[i]
		if s.cfg.ExitTiming == ExitOpen {
			exitPx = open[i]
		}

		// Forced exits, checked in fixed order: stop first, then target,
		// then max holding. When stop and target are both breached intraday
		// the stop wins.
		reason := ExitReason("")
		if pos.Open {
			switch {
			case pos.StopPrice > 0 && low[i] <= pos.StopPrice:
				reason = ExitStopLoss
				exitPx = pos.StopPrice
			case pos.TargetPrice > 0 && high[i] >= pos.TargetPrice:
				reason = ExitTakeProfit
				exitPx = pos.TargetPrice
			case s.cfg.MaxHoldingDays > 0 && pos.daysHeld(date) >= s.cfg.MaxHoldingDays:
				reason = ExitMaxHolding
			}
		}

		if pos.Open && (reason != "" || signals[i] == SignalExit) {
			if reason == "" {
				reason = ExitSignal
			}
			cash += s.closePosition(res, &pos, date, exitPx, reason)
		} else if !pos.Open && signals[i] == SignalEnter && entryPx > 0 {
			shares := int(math.Floor(cash * s.cfg.PositionSize / entryPx))
			if shares > 0 {
				effective := entryPx * (1 + s.cfg.Slippage)
				cost := float64(shares) * effective * (1 + s.cfg.Commission)
				if cost <= cash {
					cash -= cost
					pos = Position{
						Open:       true,
						Shares:     shares,
						EntryPrice: effective,
						EntryDate:  date,
					}
					if s.cfg.StopLoss > 0 {
						pos.StopPrice = effective * (1 - s.cfg.StopLoss)
					}
					if s.cfg.TakeProfit > 0 {
						pos.TargetPrice = effective * (1 + s.cfg.TakeProfit)
					}
					s.logEvent(Event{Date: date, Type: EventEntry, Price: effective, Shares: shares})
				}
			}
		}

		posValue := pos.value(cls[i])
		res.EquityCurve = append(res.EquityCurve, EquityPoint{
			Date:          date,
			Cash:          cash,
			PositionValue: posValue,
			Equity:        cash + posValue,
		})
	}

	// Terminal liquidation at the final close. The equity curve is already
	// complete; only the ledger and cash change here.
	if pos.Open {
		cash += s.closePosition(res, &pos, f.Date(n-1), cls[n-1], ExitEndOfSeries)
	}

	res.FinalEquity = res.EquityCurve[len(res.EquityCurve)-1].Equity
	return res, nil
}

// closePosition books the exit and returns the proceeds to add to cash.
func (s *Simulator) closePosition(res *Result, pos *Position, date time.Time, exitPx float64, reason ExitReason) float64 {
	effective := exitPx * (1 - s.cfg.Slippage)
	proceeds := float64(pos.Shares) * effective * (1 - s.cfg.Commission)
	costBasis := float64(pos.Shares) * pos.EntryPrice * (1 + s.cfg.Commission)
	pnl := proceeds - costBasis
	pnlPct := 0.0
	if costBasis != 0 {
		pnlPct = pnl / costBasis * 100
	}

	res.Trades = append(res.Trades, TradeRecord{
		EntryDate:   pos.EntryDate,
		ExitDate:    date,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   effective,
		Shares:      pos.Shares,
		PnL:         pnl,
		PnLPct:      pnlPct,
		HoldingDays: pos.daysHeld(date),
		Reason:      reason,
	})
	s.logEvent(Event{Date: date, Type: exitEventType(reason), Price: effective, Shares: pos.Shares})
	pos.reset()
	return proceeds
}

func exitEventType(reason ExitReason) EventType {
	switch reason {
	case ExitStopLoss:
		return EventStopHit
	case ExitTakeProfit:
		return EventTakeProfitHit
	case ExitMaxHolding:
		return EventMaxHoldingExit
	case ExitEndOfSeries:
		return EventFinalLiquidation
	default:
		return EventSignalExit
	}
}

func (s *Simulator) logEvent(e Event) {
	if s.log != nil {
		s.log.Append(e)
	}
}
