package engine

import "testing"

func TestGenerateSignalsSellWins(t *testing.T) {
	buy := []bool{true, false, true, false}
	sell := []bool{true, true, false, false}
	out, err := GenerateSignals(buy, sell)
	if err != nil {
		t.Fatal(err)
	}
	want := []Signal{SignalExit, SignalExit, SignalEnter, SignalNone}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("signal[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestGenerateSignalsLengthMismatch(t *testing.T) {
	if _, err := GenerateSignals([]bool{true}, []bool{true, false}); err == nil {
		t.Fatal("expected error for mismatched series")
	}
}
