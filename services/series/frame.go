// Package series holds the ordered OHLCV table the rule evaluator and
// simulator read from. Columns are plain float64 slices aligned to the
// date axis; derived indicator columns share the same alignment.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Required base columns every frame carries.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// DataError reports a malformed price table.
type DataError struct{ Msg string }

func (e DataError) Error() string { return "series: " + e.Msg }

// Bar is a single OHLCV row.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Frame is an ordered-by-date table of named numeric columns.
type Frame struct {
	dates []time.Time
	cols  map[string][]float64
}

// FromBars builds a validated frame from OHLCV bars. Bars are sorted by
// date; duplicate dates and NaN closes are rejected.
func FromBars(bars []Bar) (*Frame, error) {
	if len(bars) == 0 {
		return nil, DataError{Msg: "no bars"}
	}
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	n := len(sorted)
	dates := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	for i, b := range sorted {
		if i > 0 && !sorted[i-1].Date.Before(b.Date) {
			return nil, DataError{Msg: fmt.Sprintf("duplicate date %s", b.Date.Format("2006-01-02"))}
		}
		if math.IsNaN(b.Close) {
			return nil, DataError{Msg: fmt.Sprintf("NaN close at %s", b.Date.Format("2006-01-02"))}
		}
		dates[i] = b.Date
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		cls[i] = b.Close
		vol[i] = b.Volume
	}
	return &Frame{
		dates: dates,
		cols: map[string][]float64{
			ColOpen:   open,
			ColHigh:   high,
			ColLow:    low,
			ColClose:  cls,
			ColVolume: vol,
		},
	}, nil
}

// New builds a frame from a date axis and named columns. Used by loaders
// that already have columnar data; the same validation as FromBars applies.
func New(dates []time.Time, cols map[string][]float64) (*Frame, error) {
	if len(dates) == 0 {
		return nil, DataError{Msg: "empty date axis"}
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			return nil, DataError{Msg: fmt.Sprintf("dates not strictly increasing at index %d", i)}
		}
	}
	for _, name := range []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume} {
		if _, ok := cols[name]; !ok {
			return nil, DataError{Msg: "missing required column " + name}
		}
	}
	f := &Frame{dates: append([]time.Time(nil), dates...), cols: make(map[string][]float64, len(cols))}
	for name, vals := range cols {
		if len(vals) != len(dates) {
			return nil, DataError{Msg: fmt.Sprintf("column %s has %d values for %d dates", name, len(vals), len(dates))}
		}
		f.cols[name] = append([]float64(nil), vals...)
	}
	for i, v := range f.cols[ColClose] {
		if math.IsNaN(v) {
			return nil, DataError{Msg: fmt.Sprintf("NaN close at index %d", i)}
		}
	}
	return f, nil
}

// Len returns the number of bars.
func (f *Frame) Len() int { return len(f.dates) }

// Dates returns the date axis. Callers must not mutate it.
func (f *Frame) Dates() []time.Time { return f.dates }

// Date returns the date at index i.
func (f *Frame) Date(i int) time.Time { return f.dates[i] }

// Column returns a named column and whether it exists.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// SetColumn attaches (or replaces) a derived column aligned to the date axis.
func (f *Frame) SetColumn(name string, vals []float64) error {
	if len(vals) != len(f.dates) {
		return DataError{Msg: fmt.Sprintf("column %s has %d values for %d dates", name, len(vals), len(f.dates))}
	}
	f.cols[name] = vals
	return nil
}

// Columns lists the column names present.
func (f *Frame) Columns() []string {
	out := make([]string, 0, len(f.cols))
	for name := range f.cols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Open, High, Low, Close, Volume are shorthands for the base columns.
func (f *Frame) Open() []float64   { return f.cols[ColOpen] }
func (f *Frame) High() []float64   { return f.cols[ColHigh] }
func (f *Frame) Low() []float64    { return f.cols[ColLow] }
func (f *Frame) Close() []float64  { return f.cols[ColClose] }
func (f *Frame) Volume() []float64 { return f.cols[ColVolume] }
