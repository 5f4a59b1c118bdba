package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/zer0data/ingestor/internal/model"
)

// store is the raw table-level surface the Writer batches on top of.
// Split out so the buffering and retry logic is testable without a server.
type store interface {
	ensureTable(ctx context.Context, table string) error
	insert(ctx context.Context, table string, recs []model.Kline) error
	countRange(ctx context.Context, table, symbol string, startMs, endMs int64) (uint64, error)
}

// chStore talks to ClickHouse over the native protocol.
type chStore struct {
	conn driver.Conn
}

const insertColumns = "symbol, open_time, close_time, open_price, high_price, low_price, close_price, " +
	"volume, quote_volume, trades_count, taker_buy_volume, taker_buy_quote_volume, interval"

func (s *chStore) ensureTable(ctx context.Context, table string) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol String,
			open_time Int64,
			close_time Int64,
			open_price Float64,
			high_price Float64,
			low_price Float64,
			close_price Float64,
			volume Float64,
			quote_volume Float64,
			trades_count Int64,
			taker_buy_volume Float64,
			taker_buy_quote_volume Float64,
			interval String
		) ENGINE = ReplacingMergeTree()
		ORDER BY (symbol, open_time)
		PARTITION BY toYYYYMM(toDateTime(open_time / 1000))
	`, table)

	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (s *chStore) insert(ctx context.Context, table string, recs []model.Kline) error {
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", table, insertColumns))
	if err != nil {
		return fmt.Errorf("prepare batch for %s: %w", table, err)
	}

	for i := range recs {
		r := &recs[i]
		if err := batch.Append(
			r.Symbol,
			r.OpenTime,
			r.CloseTime,
			r.Open,
			r.High,
			r.Low,
			r.Close,
			r.Volume,
			r.QuoteVolume,
			r.TradesCount,
			r.TakerBuyVolume,
			r.TakerBuyQuoteVolume,
			string(r.Interval),
		); err != nil {
			return fmt.Errorf("append to batch for %s: %w", table, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch to %s: %w", table, err)
	}
	return nil
}

func (s *chStore) countRange(ctx context.Context, table, symbol string, startMs, endMs int64) (uint64, error) {
	query := fmt.Sprintf(
		"SELECT count() FROM %s WHERE symbol = ? AND open_time >= ? AND open_time < ?", table)

	var count uint64
	if err := s.conn.QueryRow(ctx, query, symbol, startMs, endMs).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s range: %w", table, err)
	}
	return count, nil
}
