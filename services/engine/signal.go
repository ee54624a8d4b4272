package engine

import "fmt"

// Signal is the per-bar decision derived from the buy and sell rules.
type Signal int8

const (
	SignalNone Signal = iota
	SignalEnter
	SignalExit
)

func (s Signal) String() string {
	switch s {
	case SignalEnter:
		return "enter"
	case SignalExit:
		return "exit"
	default:
		return "none"
	}
}

// GenerateSignals folds buy and sell boolean series into one signal per bar.
// Sell takes precedence when both fire; the simulator gates enters and exits
// against its position state, this stage is position-agnostic.
func GenerateSignals(buy, sell []bool) ([]Signal, error) {
	if len(buy) != len(sell) {
		return nil, fmt.Errorf("engine: buy series has %d bars, sell has %d", len(buy), len(sell))
	}
	out := make([]Signal, len(buy))
	for i := range buy {
		switch {
		case sell[i]:
			out[i] = SignalExit
		case buy[i]:
			out[i] = SignalEnter
		}
	}
	return out, nil
}
