// Package feed loads candle tables from CSV files. Exports from spreadsheet
// tools are sometimes UTF-16 with a BOM, so the reader sniffs and decodes
// before parsing.
package feed

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"rulebacktest/services/series"
)

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// LoadCSV reads a candle table. The header row must contain date, open,
// high, low, close and volume; any extra columns are attached as derived
// indicator columns under their header names.
func LoadCSV(path string) (*series.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open %s: %w", path, err)
	}
	defer file.Close()
	return parseCSV(decodedReader(file))
}

// decodedReader wraps the input with a UTF-16 decoder when a BOM is present.
func decodedReader(file *os.File) io.Reader {
	br := bufio.NewReader(file)
	head, _ := br.Peek(2)
	if len(head) >= 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		file.Seek(0, io.SeekStart)
		endian := unicode.LittleEndian
		if head[0] == 0xFE {
			endian = unicode.BigEndian
		}
		return transform.NewReader(file, unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder())
	}
	return br
}

func parseCSV(src io.Reader) (*series.Frame, error) {
	r := csv.NewReader(src)
	r.ReuseRecord = false
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("feed: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		cols[name] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("feed: missing column %q in header", required)
		}
	}

	var dates []time.Time
	data := make(map[string][]float64)
	numeric := numericColumns(cols)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("feed: read row: %w", err)
		}
		date, err := parseDate(rec[cols["date"]])
		if err != nil {
			return nil, err
		}
		// rows must already be in date order so every column stays aligned
		if len(dates) > 0 && !dates[len(dates)-1].Before(date) {
			return nil, fmt.Errorf("feed: rows out of date order at %s", date.Format("2006-01-02"))
		}
		dates = append(dates, date)
		for _, name := range numeric {
			idx := cols[name]
			if base[name] {
				v, err := parseField(rec, idx)
				if err != nil {
					return nil, err
				}
				data[name] = append(data[name], v)
				continue
			}
			// extra columns are best effort: blank or junk cells become NaN
			v := math.NaN()
			if idx < len(rec) {
				if parsed, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64); err == nil {
					v = parsed
				}
			}
			data[name] = append(data[name], v)
		}
	}

	return series.New(dates, data)
}

var base = map[string]bool{"open": true, "high": true, "low": true, "close": true, "volume": true}

func numericColumns(cols map[string]int) []string {
	var out []string
	for name := range cols {
		if name != "date" && name != "" {
			out = append(out, name)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("feed: unparseable date %q", s)
}

func parseField(rec []string, idx int) (float64, error) {
	if idx >= len(rec) {
		return 0, fmt.Errorf("feed: short row, missing field %d", idx)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("feed: bad numeric field %q: %w", rec[idx], err)
	}
	return v, nil
}
