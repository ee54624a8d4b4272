package engine

import "time"

// Position is the single open position. Exactly one position may be open at
// a time; no pyramiding, no shorts.
type Position struct {
	Open        bool
	Shares      int
	EntryPrice  float64 // effective price after slippage
	EntryDate   time.Time
	StopPrice   float64 // 0 when no stop is armed
	TargetPrice float64 // 0 when no target is armed
}

func (p *Position) reset() { *p = Position{} }

// value returns the mark-to-market value at the given price.
func (p *Position) value(price float64) float64 {
	if !p.Open {
		return 0
	}
	return float64(p.Shares) * price
}

// daysHeld returns whole days between entry and the given date.
func (p *Position) daysHeld(date time.Time) int {
	return int(date.Sub(p.EntryDate).Hours() / 24)
}
