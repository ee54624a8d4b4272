package feed

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "Date,Open,High,Low,Close,Volume\n"+
		"2024-01-01,100,105,99,104,10000\n"+
		"2024-01-02,104,110,103,109,12000\n")
	f, err := LoadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 2 {
		t.Fatalf("len = %d, want 2", f.Len())
	}
	if f.Close()[1] != 109 || f.Volume()[0] != 10000 {
		t.Fatalf("close = %v, volume = %v", f.Close(), f.Volume())
	}
	if f.Date(0).Format("2006-01-02") != "2024-01-01" {
		t.Fatalf("date = %v", f.Date(0))
	}
}

func TestLoadCSVExtraColumnsBecomeIndicators(t *testing.T) {
	path := writeCSV(t, "date,open,high,low,close,volume,sma_50,rsi\n"+
		"2024-01-01,100,105,99,104,10000,101.5,55\n"+
		"2024-01-02,104,110,103,109,12000,,60\n")
	f, err := LoadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	sma, ok := f.Column("sma_50")
	if !ok {
		t.Fatal("sma_50 column missing")
	}
	if sma[0] != 101.5 || !math.IsNaN(sma[1]) {
		t.Fatalf("sma_50 = %v, want value then NaN for the blank cell", sma)
	}
	rsi, ok := f.Column("rsi")
	if !ok || rsi[1] != 60 {
		t.Fatalf("rsi = %v, %v", rsi, ok)
	}
}

func TestLoadCSVMissingRequiredColumn(t *testing.T) {
	path := writeCSV(t, "date,open,high,low,close\n2024-01-01,1,1,1,1\n")
	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected error for missing volume column")
	}
}

func TestLoadCSVRejectsUnsortedRows(t *testing.T) {
	path := writeCSV(t, "date,open,high,low,close,volume\n"+
		"2024-01-02,1,1,1,1,1\n"+
		"2024-01-01,1,1,1,1,1\n")
	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected error for rows out of date order")
	}
}

func TestLoadCSVRejectsNaNClose(t *testing.T) {
	path := writeCSV(t, "date,open,high,low,close,volume\n"+
		"2024-01-01,1,1,1,nan,1\n")
	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected error for NaN close")
	}
}

func TestLoadCSVRejectsBadNumber(t *testing.T) {
	path := writeCSV(t, "date,open,high,low,close,volume\n"+
		"2024-01-01,1,1,1,abc,1\n")
	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected error for non-numeric close")
	}
}

func TestLoadCSVDatetimeAndEpochDates(t *testing.T) {
	path := writeCSV(t, "date,open,high,low,close,volume\n"+
		"2024-01-01 09:15:00,1,1,1,1,1\n"+
		"2024-01-02 09:15:00,2,2,2,2,2\n")
	f, err := LoadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 2 {
		t.Fatalf("len = %d", f.Len())
	}

	path = writeCSV(t, "date,open,high,low,close,volume\n"+
		"1704067200000,1,1,1,1,1\n"+
		"1704153600000,2,2,2,2,2\n")
	f, err = LoadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Date(0).Year() != 2024 {
		t.Fatalf("epoch date = %v", f.Date(0))
	}
}

func TestLoadCSVUTF16(t *testing.T) {
	plain := "date,open,high,low,close,volume\n2024-01-01,100,105,99,104,10000\n"
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := enc.Bytes([]byte(plain))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "utf16.csv")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 1 || f.Close()[0] != 104 {
		t.Fatalf("frame = %d bars, close %v", f.Len(), f.Close())
	}
}
