package screener

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"rulebacktest/services/rules"
	"rulebacktest/services/series"
)

func frameOf(t *testing.T, closes []float64) *series.Frame {
	t.Helper()
	bars := make([]series.Bar, len(closes))
	for i, c := range closes {
		bars[i] = series.Bar{
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	f, err := series.FromBars(bars)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestScreenFindsMatchingRows(t *testing.T) {
	f := frameOf(t, []float64{90, 110, 95, 120})
	res, err := Screen(f, "close > 100")
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 4 || len(res.Matches) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Matches[0].Index != 1 || res.Matches[0].Close != 110 {
		t.Fatalf("first match = %+v", res.Matches[0])
	}
	if res.Matches[1].Index != 3 || res.Matches[1].Close != 120 {
		t.Fatalf("second match = %+v", res.Matches[1])
	}
}

func TestScreenRejectsBadRule(t *testing.T) {
	f := frameOf(t, []float64{100})
	_, err := Screen(f, "close >")
	if _, ok := err.(rules.SyntaxError); !ok {
		t.Fatalf("err = %T, want rules.SyntaxError", err)
	}
}

func TestScreenMany(t *testing.T) {
	frames := map[string]*series.Frame{
		"AAA": frameOf(t, []float64{90, 110}),
		"BBB": frameOf(t, []float64{50, 60}),
		"CCC": frameOf(t, []float64{200, 210}),
	}
	out, err := ScreenMany(frames, "close > 100", 2, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d results, want 3", len(out))
	}
	if len(out["AAA"].Matches) != 1 || len(out["BBB"].Matches) != 0 || len(out["CCC"].Matches) != 2 {
		t.Fatalf("matches = %d/%d/%d", len(out["AAA"].Matches), len(out["BBB"].Matches), len(out["CCC"].Matches))
	}
}

func TestScreenManyCompileErrorFailsFast(t *testing.T) {
	frames := map[string]*series.Frame{"AAA": frameOf(t, []float64{100})}
	if _, err := ScreenMany(frames, "bogus(1) > 0", 2, nil); err == nil {
		t.Fatal("expected compile error")
	}
}
