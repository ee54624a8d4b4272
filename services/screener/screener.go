// Package screener filters historical rows by rule. Screening many symbols
// is embarrassingly parallel: every run owns its state, so the batch path
// just fans frames out over a bounded worker pool.
package screener

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"rulebacktest/services/rules"
	"rulebacktest/services/series"
)

// Match is one bar where the rule held.
type Match struct {
	Date  time.Time `json:"date"`
	Index int       `json:"index"`
	Close float64   `json:"close"`
}

// Result lists the matching bars of one frame, in date order.
type Result struct {
	Rule    string  `json:"rule"`
	Total   int     `json:"total_bars"`
	Matches []Match `json:"matches"`
}

// Screen evaluates a rule over a frame and returns the matching rows.
func Screen(f *series.Frame, rule string) (*Result, error) {
	compiled, err := rules.Compile(rule)
	if err != nil {
		return nil, err
	}
	return screenCompiled(f, compiled)
}

func screenCompiled(f *series.Frame, compiled *rules.Rule) (*Result, error) {
	mask, err := compiled.Eval(f)
	if err != nil {
		return nil, err
	}
	res := &Result{Rule: compiled.Source(), Total: f.Len()}
	closes := f.Close()
	for i, ok := range mask {
		if ok {
			res.Matches = append(res.Matches, Match{Date: f.Date(i), Index: i, Close: closes[i]})
		}
	}
	return res, nil
}

// ScreenMany screens several symbols concurrently with at most workers
// goroutines. The rule is compiled once; compiled rules are immutable and
// safe for concurrent evaluation. Per-symbol evaluation failures are logged
// and skipped so one bad table does not sink the batch.
func ScreenMany(frames map[string]*series.Frame, rule string, workers int, logger *zap.Logger) (map[string]*Result, error) {
	compiled, err := rules.Compile(rule)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	symbols := make([]string, 0, len(frames))
	for sym := range frames {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var mu sync.Mutex
	out := make(map[string]*Result, len(frames))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string, f *series.Frame) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res, err := screenCompiled(f, compiled)
			if err != nil {
				logger.Warn("screen failed", zap.String("symbol", sym), zap.Error(err))
				return
			}
			mu.Lock()
			out[sym] = res
			mu.Unlock()
		}(sym, frames[sym])
	}
	wg.Wait()
	return out, nil
}
