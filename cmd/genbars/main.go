// genbars writes a synthetic daily candle CSV in the format the backtester
// loads. The walk has trending and sideways regimes so rules built on
// moving averages and RSI have something to trigger on. The seed is fixed,
// runs are reproducible.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

func main() {
	out := flag.String("out", "sample.csv", "output CSV path")
	bars := flag.Int("bars", 500, "number of daily bars")
	start := flag.Float64("start", 100, "starting price")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if err := generate(*out, *bars, *start, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "genbars:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d bars to %s\n", *bars, *out)
}

func generate(path string, bars int, start float64, seed int64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()
	if err := w.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	price := start
	base := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

	for i := 0; i < bars; i++ {
		// alternate trend regimes every 100 bars
		trend := 0.0
		switch (i / 100) % 4 {
		case 0:
			trend = 0.001
		case 2:
			trend = -0.001
		}
		change := (rng.Float64()-0.5)*0.02 + trend
		price *= 1 + change
		if price < start*0.2 {
			price = start * 0.2
		}

		open := price
		spread := open * (0.003 + rng.Float64()*0.01)
		high := open + spread*rng.Float64()
		low := open - spread*rng.Float64()
		cls := low + (high-low)*rng.Float64()
		if high < cls {
			high = cls
		}
		if low > cls {
			low = cls
		}
		volume := 10000 + rng.Float64()*50000 + math.Abs(change)*1e6

		rec := []string{
			base.AddDate(0, 0, i).Format("2006-01-02"),
			money(open), money(high), money(low), money(cls),
			decimal.NewFromFloat(volume).Round(0).String(),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}
