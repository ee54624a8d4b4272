package rules

import (
	"fmt"
	"math"

	"rulebacktest/services/indicators"
	"rulebacktest/services/series"
)

// function describes one recognized accessor term: its arity, default
// arguments, the pre-computed column it resolves to when present, and the
// fallback formula used when the column is absent.
type function struct {
	name     string
	minArgs  int
	maxArgs  int
	defaults []float64
	// column returns the canonical column name to look up first, or "".
	column func(args []float64) string
	// derive computes the series when no column matches.
	derive func(f *series.Frame, args []float64) []float64
}

var functions = map[string]*function{
	"sma": {
		name: "sma", minArgs: 1, maxArgs: 1,
		column: func(a []float64) string { return fmt.Sprintf("sma_%d", int(a[0])) },
		derive: func(f *series.Frame, a []float64) []float64 { return indicators.SMA(f.Close(), int(a[0])) },
	},
	"ema": {
		name: "ema", minArgs: 1, maxArgs: 1,
		column: func(a []float64) string { return fmt.Sprintf("ema_%d", int(a[0])) },
		derive: func(f *series.Frame, a []float64) []float64 { return indicators.EMA(f.Close(), int(a[0])) },
	},
	"rsi": {
		name: "rsi", minArgs: 0, maxArgs: 1, defaults: []float64{14},
		column: func([]float64) string { return "rsi" },
		derive: func(f *series.Frame, a []float64) []float64 { return indicators.RSI(f.Close(), int(a[0])) },
	},
	"macd": {
		name: "macd", minArgs: 0, maxArgs: 0,
		column: func([]float64) string { return "macd" },
		derive: func(f *series.Frame, _ []float64) []float64 { return indicators.MACD(f.Close()) },
	},
	"bb_upper": {
		name: "bb_upper", minArgs: 1, maxArgs: 2, defaults: []float64{2},
		column: func([]float64) string { return "bb_upper" },
		derive: func(f *series.Frame, a []float64) []float64 {
			return indicators.BollingerUpper(f.Close(), int(a[0]), a[1])
		},
	},
	"bb_lower": {
		name: "bb_lower", minArgs: 1, maxArgs: 2, defaults: []float64{2},
		column: func([]float64) string { return "bb_lower" },
		derive: func(f *series.Frame, a []float64) []float64 {
			return indicators.BollingerLower(f.Close(), int(a[0]), a[1])
		},
	},
	"volume_sma": {
		name: "volume_sma", minArgs: 1, maxArgs: 1,
		column: func(a []float64) string { return fmt.Sprintf("volume_sma_%d", int(a[0])) },
		derive: func(f *series.Frame, a []float64) []float64 { return indicators.SMA(f.Volume(), int(a[0])) },
	},
	"volatility": {
		name: "volatility", minArgs: 0, maxArgs: 1, defaults: []float64{20},
		column: func([]float64) string { return "volatility" },
		derive: func(f *series.Frame, a []float64) []float64 { return indicators.Volatility(f.Close(), int(a[0])) },
	},
	"price":  columnAccessor("price", series.ColClose),
	"close":  columnAccessor("close", series.ColClose),
	"open":   columnAccessor("open", series.ColOpen),
	"high":   columnAccessor("high", series.ColHigh),
	"low":    columnAccessor("low", series.ColLow),
	"volume": columnAccessor("volume", series.ColVolume),
}

func columnAccessor(name, col string) *function {
	return &function{
		name: name, minArgs: 0, maxArgs: 0,
		column: func([]float64) string { return col },
	}
}

// checkArgs validates the argument list against the function signature and
// fills in defaults. Period arguments must be positive integers.
func (fn *function) checkArgs(args []float64, rule string, pos int) ([]float64, error) {
	if len(args) < fn.minArgs || len(args) > fn.maxArgs {
		return nil, SyntaxError{Rule: rule, Pos: pos,
			Msg: fmt.Sprintf("%s expects %d to %d arguments, got %d", fn.name, fn.minArgs, fn.maxArgs, len(args))}
	}
	full := append([]float64(nil), args...)
	for i := len(args); i < fn.maxArgs; i++ {
		full = append(full, fn.defaults[i-fn.minArgs])
	}
	// first argument is a period for every parameterized accessor
	if len(full) > 0 {
		p := full[0]
		if p <= 0 || p != math.Trunc(p) {
			return nil, SyntaxError{Rule: rule, Pos: pos,
				Msg: fmt.Sprintf("%s period must be a positive integer", fn.name)}
		}
	}
	if (fn.name == "bb_upper" || fn.name == "bb_lower") && len(full) > 1 && full[1] <= 0 {
		return nil, SyntaxError{Rule: rule, Pos: pos, Msg: fn.name + " width must be positive"}
	}
	return full, nil
}
