// Package arrowexport encodes run results as Arrow IPC streams so downstream
// tooling (notebooks, columnar stores) can consume them without re-parsing
// JSON.
package arrowexport

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"rulebacktest/services/engine"
)

var equitySchema = arrow.NewSchema([]arrow.Field{
	{Name: "date", Type: arrow.FixedWidthTypes.Timestamp_ms},
	{Name: "cash", Type: arrow.PrimitiveTypes.Float64},
	{Name: "position_value", Type: arrow.PrimitiveTypes.Float64},
	{Name: "total_equity", Type: arrow.PrimitiveTypes.Float64},
}, nil)

var tradeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "entry_date", Type: arrow.FixedWidthTypes.Timestamp_ms},
	{Name: "exit_date", Type: arrow.FixedWidthTypes.Timestamp_ms},
	{Name: "entry_price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "exit_price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "shares", Type: arrow.PrimitiveTypes.Int64},
	{Name: "pnl", Type: arrow.PrimitiveTypes.Float64},
	{Name: "pnl_pct", Type: arrow.PrimitiveTypes.Float64},
	{Name: "holding_days", Type: arrow.PrimitiveTypes.Int64},
	{Name: "exit_reason", Type: arrow.BinaryTypes.String},
}, nil)

// EncodeEquityCurve serializes an equity curve to a single-batch IPC stream.
func EncodeEquityCurve(curve []engine.EquityPoint) ([]byte, error) {
	if len(curve) == 0 {
		return nil, fmt.Errorf("arrowexport: empty equity curve")
	}
	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, equitySchema)
	defer b.Release()

	dates := b.Field(0).(*array.TimestampBuilder)
	cash := b.Field(1).(*array.Float64Builder)
	posValue := b.Field(2).(*array.Float64Builder)
	equity := b.Field(3).(*array.Float64Builder)
	for _, p := range curve {
		dates.Append(arrow.Timestamp(p.Date.UnixMilli()))
		cash.Append(p.Cash)
		posValue.Append(p.PositionValue)
		equity.Append(p.Equity)
	}
	return writeRecord(b, equitySchema)
}

// EncodeTrades serializes the trade ledger to a single-batch IPC stream.
func EncodeTrades(trades []engine.TradeRecord) ([]byte, error) {
	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, tradeSchema)
	defer b.Release()

	for _, t := range trades {
		b.Field(0).(*array.TimestampBuilder).Append(arrow.Timestamp(t.EntryDate.UnixMilli()))
		b.Field(1).(*array.TimestampBuilder).Append(arrow.Timestamp(t.ExitDate.UnixMilli()))
		b.Field(2).(*array.Float64Builder).Append(t.EntryPrice)
		b.Field(3).(*array.Float64Builder).Append(t.ExitPrice)
		b.Field(4).(*array.Int64Builder).Append(int64(t.Shares))
		b.Field(5).(*array.Float64Builder).Append(t.PnL)
		b.Field(6).(*array.Float64Builder).Append(t.PnLPct)
		b.Field(7).(*array.Int64Builder).Append(int64(t.HoldingDays))
		b.Field(8).(*array.StringBuilder).Append(string(t.Reason))
	}
	return writeRecord(b, tradeSchema)
}

func writeRecord(b *array.RecordBuilder, schema *arrow.Schema) ([]byte, error) {
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("arrowexport: write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("arrowexport: close writer: %w", err)
	}
	return buf.Bytes(), nil
}
