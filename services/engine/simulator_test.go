package engine

import (
	"math"
	"testing"
	"time"

	"rulebacktest/services/series"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// barFrame builds a frame from parallel OHLC slices; volume is constant.
func barFrame(t *testing.T, open, high, low, cls []float64) *series.Frame {
	t.Helper()
	bars := make([]series.Bar, len(open))
	for i := range open {
		bars[i] = series.Bar{
			Date: day(i), Open: open[i], High: high[i], Low: low[i],
			Close: cls[i], Volume: 1000,
		}
	}
	f, err := series.FromBars(bars)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// frictionless returns a config with no commission or slippage so trade
// arithmetic can be checked exactly.
func frictionless() Config {
	cfg := DefaultConfig()
	cfg.Commission = 0
	cfg.Slippage = 0
	return cfg
}

func run(t *testing.T, cfg Config, f *series.Frame, signals []Signal) *Result {
	t.Helper()
	sim, err := NewSimulator(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := sim.Run(f, signals)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.EquityCurve) != f.Len() {
		t.Fatalf("equity curve has %d points for %d bars", len(res.EquityCurve), f.Len())
	}
	return res
}

func TestNoSignalsFlatEquity(t *testing.T) {
	px := []float64{100, 101, 102, 103}
	f := barFrame(t, px, px, px, px)
	res := run(t, frictionless(), f, make([]Signal, 4))
	if len(res.Trades) != 0 {
		t.Fatalf("got %d trades, want 0", len(res.Trades))
	}
	for i, p := range res.EquityCurve {
		if p.Equity != DefaultInitialCapital || p.Cash != DefaultInitialCapital {
			t.Fatalf("point %d = %+v, want flat equity", i, p)
		}
	}
	if res.FinalEquity != DefaultInitialCapital {
		t.Fatalf("final equity = %g", res.FinalEquity)
	}
}

func TestFrictionlessRoundTrip(t *testing.T) {
	open := []float64{95, 100, 104, 108}
	cls := []float64{96, 102, 105, 110}
	f := barFrame(t, open, cls, open, cls)
	signals := []Signal{SignalNone, SignalEnter, SignalNone, SignalExit}

	res := run(t, frictionless(), f, signals)
	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	// enter at bar 1 open: 1000 shares at 100; exit at bar 3 close 110
	if tr.Shares != 1000 || tr.EntryPrice != 100 || tr.ExitPrice != 110 {
		t.Fatalf("trade = %+v", tr)
	}
	if !approxEq(tr.PnL, 10000) || !approxEq(tr.PnLPct, 10) {
		t.Fatalf("pnl = %g (%g%%)", tr.PnL, tr.PnLPct)
	}
	if tr.Reason != ExitSignal {
		t.Fatalf("reason = %s", tr.Reason)
	}
	// holding the position, bar 2 marks at its close
	if !approxEq(res.EquityCurve[2].Equity, 1000*105) {
		t.Fatalf("bar 2 equity = %g", res.EquityCurve[2].Equity)
	}
	if !approxEq(res.FinalEquity, 110000) {
		t.Fatalf("final equity = %g", res.FinalEquity)
	}
}

func TestCommissionAndSlippageApplied(t *testing.T) {
	cfg := frictionless()
	cfg.Commission = 0.001
	cfg.Slippage = 0.0005
	cfg.PositionSize = 0.5

	open := []float64{100, 100, 100}
	cls := []float64{100, 100, 120}
	f := barFrame(t, open, cls, open, cls)
	res := run(t, cfg, f, []Signal{SignalEnter, SignalNone, SignalExit})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	shares := 500 // floor(100000 * 0.5 / 100)
	entry := 100 * 1.0005
	exit := 120 * 0.9995
	pnl := float64(shares)*exit*0.999 - float64(shares)*entry*1.001
	if tr.Shares != shares || !approxEq(tr.EntryPrice, entry) || !approxEq(tr.ExitPrice, exit) {
		t.Fatalf("trade = %+v", tr)
	}
	if !approxEq(tr.PnL, pnl) {
		t.Fatalf("pnl = %g, want %g", tr.PnL, pnl)
	}
}

func TestCashNeverGoesNegative(t *testing.T) {
	// full sizing plus frictions would overdraw the account; the entry must
	// be skipped rather than borrowed for
	cfg := DefaultConfig()
	open := []float64{100, 100}
	f := barFrame(t, open, open, open, open)
	res := run(t, cfg, f, []Signal{SignalEnter, SignalNone})
	if len(res.Trades) != 0 {
		t.Fatalf("entry should have been skipped, got %d trades", len(res.Trades))
	}
	for i, p := range res.EquityCurve {
		if p.Cash < 0 {
			t.Fatalf("cash went negative at bar %d: %g", i, p.Cash)
		}
	}
}

func TestStopLossExitsAtStopPrice(t *testing.T) {
	cfg := frictionless()
	cfg.StopLoss = 0.05

	open := []float64{100, 100, 98, 97}
	high := []float64{101, 101, 99, 98}
	low := []float64{99, 99, 90, 96}
	cls := []float64{100, 100, 92, 97}
	f := barFrame(t, open, high, low, cls)
	res := run(t, cfg, f, []Signal{SignalNone, SignalEnter, SignalNone, SignalNone})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != ExitStopLoss {
		t.Fatalf("reason = %s, want stop_loss", tr.Reason)
	}
	if !approxEq(tr.ExitPrice, 95) {
		t.Fatalf("exit price = %g, want the 95 stop", tr.ExitPrice)
	}
	if !tr.ExitDate.Equal(day(2)) {
		t.Fatalf("exit date = %v", tr.ExitDate)
	}
}

func TestTakeProfitExitsAtTargetPrice(t *testing.T) {
	cfg := frictionless()
	cfg.TakeProfit = 0.10

	open := []float64{100, 100, 108}
	high := []float64{101, 101, 115}
	low := []float64{99, 99, 107}
	cls := []float64{100, 100, 112}
	f := barFrame(t, open, high, low, cls)
	res := run(t, cfg, f, []Signal{SignalNone, SignalEnter, SignalNone})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != ExitTakeProfit || !approxEq(tr.ExitPrice, 110) {
		t.Fatalf("trade = %+v, want take_profit at 110", tr)
	}
}

func TestStopWinsWhenBothBreachedIntraday(t *testing.T) {
	cfg := frictionless()
	cfg.StopLoss = 0.05
	cfg.TakeProfit = 0.05

	open := []float64{100, 100, 100}
	high := []float64{101, 101, 120}
	low := []float64{99, 99, 80}
	cls := []float64{100, 100, 100}
	f := barFrame(t, open, high, low, cls)
	res := run(t, cfg, f, []Signal{SignalNone, SignalEnter, SignalNone})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	if res.Trades[0].Reason != ExitStopLoss {
		t.Fatalf("reason = %s, want stop_loss to win the tie", res.Trades[0].Reason)
	}
}

func TestMaxHoldingForcesExit(t *testing.T) {
	cfg := frictionless()
	cfg.MaxHoldingDays = 2

	px := []float64{100, 100, 100, 100, 100}
	f := barFrame(t, px, px, px, px)
	res := run(t, cfg, f, []Signal{SignalNone, SignalEnter, SignalNone, SignalNone, SignalNone})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != ExitMaxHolding {
		t.Fatalf("reason = %s, want max_holding", tr.Reason)
	}
	if !tr.ExitDate.Equal(day(3)) || tr.HoldingDays != 2 {
		t.Fatalf("trade = %+v, want exit at day 3 after 2 days", tr)
	}
}

func TestNextOpenUsesPreviousBarOpen(t *testing.T) {
	cfg := frictionless()
	cfg.EntryTiming = EntryNextOpen

	open := []float64{90, 95, 100}
	cls := []float64{91, 96, 101}
	f := barFrame(t, open, cls, open, cls)
	res := run(t, cfg, f, []Signal{SignalNone, SignalNone, SignalEnter})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	if !approxEq(res.Trades[0].EntryPrice, 95) {
		t.Fatalf("entry price = %g, want the lagged open 95", res.Trades[0].EntryPrice)
	}
}

func TestNextOpenFirstBarFallsBackToClose(t *testing.T) {
	cfg := frictionless()
	cfg.EntryTiming = EntryNextOpen

	open := []float64{90, 95}
	cls := []float64{92, 96}
	f := barFrame(t, open, cls, open, cls)
	res := run(t, cfg, f, []Signal{SignalEnter, SignalNone})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	if !approxEq(res.Trades[0].EntryPrice, 92) {
		t.Fatalf("entry price = %g, want the first bar's close 92", res.Trades[0].EntryPrice)
	}
}

func TestTerminalLiquidation(t *testing.T) {
	open := []float64{100, 100, 100}
	cls := []float64{100, 100, 110}
	f := barFrame(t, open, cls, open, cls)
	res := run(t, frictionless(), f, []Signal{SignalEnter, SignalNone, SignalNone})

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != ExitEndOfSeries || !approxEq(tr.ExitPrice, 110) {
		t.Fatalf("trade = %+v, want end_of_series at the last close", tr)
	}
	// the curve already marked the open position at the last close
	if !approxEq(res.FinalEquity, res.EquityCurve[2].Equity) {
		t.Fatalf("final equity %g != last curve point %g", res.FinalEquity, res.EquityCurve[2].Equity)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PositionSize = 0.9
	cfg.StopLoss = 0.03

	open := []float64{100, 98, 103, 101, 106, 104, 109}
	high := []float64{102, 100, 105, 103, 108, 106, 111}
	low := []float64{98, 96, 101, 99, 104, 102, 107}
	cls := []float64{99, 99, 104, 100, 107, 105, 110}
	f := barFrame(t, open, high, low, cls)
	signals := []Signal{SignalNone, SignalEnter, SignalNone, SignalExit, SignalEnter, SignalNone, SignalNone}

	a := run(t, cfg, f, signals)
	b := run(t, cfg, f, signals)
	if len(a.Trades) != len(b.Trades) || a.FinalEquity != b.FinalEquity {
		t.Fatalf("runs diverged: %d/%d trades, %g vs %g", len(a.Trades), len(b.Trades), a.FinalEquity, b.FinalEquity)
	}
	for i := range a.EquityCurve {
		if a.EquityCurve[i] != b.EquityCurve[i] {
			t.Fatalf("equity point %d differs between runs", i)
		}
	}
}

func TestEventLogRecordsRoundTrip(t *testing.T) {
	log := &EventLog{}
	sim, err := NewSimulator(frictionless(), log)
	if err != nil {
		t.Fatal(err)
	}
	px := []float64{100, 100, 100}
	f := barFrame(t, px, px, px, px)
	if _, err := sim.Run(f, []Signal{SignalEnter, SignalNone, SignalExit}); err != nil {
		t.Fatal(err)
	}
	events := log.Events
	if len(events) != 2 {
		t.Fatalf("got %d events, want entry and exit", len(events))
	}
	if events[0].Type != EventEntry || events[1].Type != EventSignalExit {
		t.Fatalf("events = %+v", events)
	}
}

func TestSignalCountMismatch(t *testing.T) {
	px := []float64{100, 100}
	f := barFrame(t, px, px, px, px)
	sim, err := NewSimulator(frictionless(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sim.Run(f, []Signal{SignalNone}); err == nil {
		t.Fatal("expected error for signal count mismatch")
	}
}

func approxEq(a, b float64) bool { return math.Abs(a-b) < 1e-6 }
