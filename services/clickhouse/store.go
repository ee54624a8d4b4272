// Package clickhouse loads daily candles from a ClickHouse table into a
// frame. Prices are stored as decimals and converted to float64 only at the
// engine boundary.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rulebacktest/services/series"
)

// Config locates the candle table.
type Config struct {
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Store is a read-only candle source backed by ClickHouse.
type Store struct {
	conn driver.Conn
	cfg  Config
	log  *zap.Logger
}

// Open connects and pings the server.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: parse DSN: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse: ping: %w", err)
	}
	return &Store{conn: conn, cfg: cfg, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.conn.Close() }

// Candles loads the [from, to) candle range for a symbol, ordered by date.
func (s *Store) Candles(ctx context.Context, symbol string, from, to time.Time) (*series.Frame, error) {
	query := fmt.Sprintf(`
SELECT day, open, high, low, close, volume
FROM %s.%s
WHERE symbol = ? AND day >= ? AND day < ?
ORDER BY day`, s.cfg.Database, s.cfg.Table)

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query candles: %w", err)
	}
	defer rows.Close()

	var bars []series.Bar
	for rows.Next() {
		var (
			day                            time.Time
			open, high, low, close, volume decimal.Decimal
		)
		if err := rows.Scan(&day, &open, &high, &low, &close, &volume); err != nil {
			return nil, fmt.Errorf("clickhouse: scan candle: %w", err)
		}
		bars = append(bars, series.Bar{
			Date:   day,
			Open:   open.InexactFloat64(),
			High:   high.InexactFloat64(),
			Low:    low.InexactFloat64(),
			Close:  close.InexactFloat64(),
			Volume: volume.InexactFloat64(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: iterate candles: %w", err)
	}
	if len(bars) == 0 {
		return nil, series.DataError{Msg: fmt.Sprintf("no candles for %s in [%s, %s)",
			symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))}
	}

	s.log.Debug("loaded candles",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return series.FromBars(bars)
}

// Symbols lists the distinct symbols available in the table.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT symbol FROM %s.%s ORDER BY symbol", s.cfg.Database, s.cfg.Table)
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query symbols: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("clickhouse: scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}
