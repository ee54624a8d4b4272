package analysis

import (
	"errors"
	"math"
	"time"

	"rulebacktest/services/engine"
)

// ErrInsufficientOverlap is returned when strategy and benchmark share fewer
// than two dates. Callers may proceed without benchmark metrics.
var ErrInsufficientOverlap = errors.New("analysis: fewer than 2 overlapping dates with benchmark")

// BenchmarkComparison holds benchmark-relative metrics. Both series are
// normalized to a common start value of 100 before returns are computed.
type BenchmarkComparison struct {
	BenchmarkName    string  `json:"benchmark_name"`
	StrategyReturn   float64 `json:"strategy_return"`
	BenchmarkReturn  float64 `json:"benchmark_return"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	Correlation      float64 `json:"correlation"`
	InformationRatio float64 `json:"information_ratio"`
}

// CompareBenchmark aligns the equity curve with a benchmark close series by
// date intersection and computes alpha, beta, correlation and information
// ratio over the overlapping range.
func CompareBenchmark(curve []engine.EquityPoint, benchDates []time.Time, benchClose []float64, name string, tradingDays int) (BenchmarkComparison, error) {
	cmp := BenchmarkComparison{BenchmarkName: name}
	if len(benchDates) != len(benchClose) {
		return cmp, errors.New("analysis: benchmark dates and closes differ in length")
	}

	benchByDate := make(map[time.Time]float64, len(benchDates))
	for i, d := range benchDates {
		benchByDate[dateKey(d)] = benchClose[i]
	}

	var strat, bench []float64
	var dates []time.Time
	for _, p := range curve {
		if v, ok := benchByDate[dateKey(p.Date)]; ok {
			strat = append(strat, p.Equity)
			bench = append(bench, v)
			dates = append(dates, p.Date)
		}
	}
	if len(dates) < 2 {
		return cmp, ErrInsufficientOverlap
	}

	// normalize both series to a start value of 100; the curve is already in
	// date order so the intersection preserves it
	sBase, bBase := strat[0], bench[0]
	for i := range strat {
		strat[i] = strat[i] / sBase * 100
		bench[i] = bench[i] / bBase * 100
	}

	cmp.StrategyReturn = (strat[len(strat)-1]/strat[0] - 1) * 100
	cmp.BenchmarkReturn = (bench[len(bench)-1]/bench[0] - 1) * 100
	cmp.Alpha = cmp.StrategyReturn - cmp.BenchmarkReturn

	sr := pctChange(strat)
	br := pctChange(bench)
	cov := covariance(sr, br)
	_, sStd := meanStd(sr)
	_, bStd := meanStd(br)
	if bStd > 0 {
		cmp.Beta = cov / (bStd * bStd)
	}
	if sStd > 0 && bStd > 0 {
		cmp.Correlation = cov / (sStd * bStd)
	}

	excess := make([]float64, len(sr))
	for i := range sr {
		excess[i] = sr[i] - br[i]
	}
	if mean, std := meanStd(excess); std > 0 {
		cmp.InformationRatio = mean / std * math.Sqrt(float64(tradingDays))
	}
	return cmp, nil
}

func dateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pctChange(xs []float64) []float64 {
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		if xs[i-1] != 0 {
			out = append(out, xs[i]/xs[i-1]-1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// covariance uses the sample (n-1) denominator.
func covariance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ma, _ := meanStd(a)
	mb, _ := meanStd(b)
	var sum float64
	for i := range a {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	return sum / float64(len(a)-1)
}
