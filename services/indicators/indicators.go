// Package indicators computes the fallback indicator series the rule
// evaluator derives when a pre-computed column is absent. Positions with
// insufficient history are NaN; comparisons against NaN never match.
package indicators

import "math"

// SMA returns the n-period simple moving average.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with alpha = 2/(period+1),
// seeded at the first value so it is defined from bar 0.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = values[i]*alpha + ema*(1-alpha)
		out[i] = ema
	}
	return out
}

// RSI returns the Wilder relative strength index. The first value appears
// at index period (seeded with a simple average of the first period moves).
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the 12/26 EMA difference.
func MACD(values []float64) []float64 {
	fast := EMA(values, 12)
	slow := EMA(values, 26)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = fast[i] - slow[i]
	}
	return out
}

// StdDev returns the rolling population standard deviation over period bars.
func StdDev(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += values[j]
		}
		mean /= float64(period)
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period))
	}
	return out
}

// BollingerUpper returns the n-period mean plus k standard deviations.
func BollingerUpper(values []float64, period int, k float64) []float64 {
	return bollinger(values, period, k)
}

// BollingerLower returns the n-period mean minus k standard deviations.
func BollingerLower(values []float64, period int, k float64) []float64 {
	return bollinger(values, period, -k)
}

func bollinger(values []float64, period int, k float64) []float64 {
	mean := SMA(values, period)
	std := StdDev(values, period)
	out := nanSlice(len(values))
	for i := range values {
		out[i] = mean[i] + k*std[i]
	}
	return out
}

// Volatility returns the annualized rolling standard deviation of daily
// returns (sqrt(252) scaling).
func Volatility(values []float64, period int) []float64 {
	returns := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i] = values[i]/values[i-1] - 1
		}
	}
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	// rolling sample std over the returns, skipping the NaN at index 0
	for i := period; i < len(values); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += returns[j]
		}
		mean /= float64(period)
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := returns[j] - mean
			variance += d * d
		}
		if period > 1 {
			variance /= float64(period - 1)
		}
		out[i] = math.Sqrt(variance) * math.Sqrt(252)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
