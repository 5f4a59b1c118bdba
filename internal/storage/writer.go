package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v4"

	"github.com/zer0data/ingestor/internal/config"
	"github.com/zer0data/ingestor/internal/model"
)

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	// BatchSize bounds each physical insert.
	BatchSize int
	// TablePrefix names the interval tables ({prefix}_{interval}).
	TablePrefix string
	// Retry bounds retries of transient store failures.
	Retry config.RetryConfig
}

// DefaultWriterConfig returns writer settings suitable for bulk ingestion.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:   config.DefaultBatchSize,
		TablePrefix: config.DefaultTablePrefix,
		Retry: config.RetryConfig{
			MaxAttempts: config.DefaultMaxAttempts,
			BaseDelay:   config.DefaultBaseDelay,
			MaxDelay:    config.DefaultMaxDelay,
		},
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts int64 // records durably sent
	Flushes int64 // physical insert calls
	Retries int64 // failed attempts that were retried
	Errors  int64 // flushes that exhausted retries
}

// Writer buffers cleaned records per interval partition and flushes them to
// ClickHouse in bounded batches. It is driven by a single goroutine per run.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger
	store  store

	buffers map[model.Interval][]model.Kline
	// ensured tracks which interval tables have had their DDL applied.
	ensured map[model.Interval]bool

	metrics WriterMetrics
}

// NewWriter creates a Writer over a live ClickHouse connection.
func NewWriter(conn driver.Conn, cfg WriterConfig, logger *slog.Logger) (*Writer, error) {
	return newWriter(&chStore{conn: conn}, cfg, logger)
}

func newWriter(st store, cfg WriterConfig, logger *slog.Logger) (*Writer, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", cfg.BatchSize)
	}
	if cfg.TablePrefix == "" {
		cfg.TablePrefix = config.DefaultTablePrefix
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = config.DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		buffers: make(map[model.Interval][]model.Kline),
		ensured: make(map[model.Interval]bool),
	}, nil
}

// InsertMany appends records to their interval buffers and flushes every
// buffer that has reached the batch size. Zero or more physical writes may
// happen per call.
func (w *Writer) InsertMany(ctx context.Context, recs []model.Kline) error {
	for i := range recs {
		iv := recs[i].Interval
		if !iv.Valid() {
			return fmt.Errorf("invalid interval %q: cannot determine target table", iv)
		}
		w.buffers[iv] = append(w.buffers[iv], recs[i])
	}

	for _, iv := range model.Intervals() {
		for len(w.buffers[iv]) >= w.cfg.BatchSize {
			if err := w.flushInterval(ctx, iv, w.cfg.BatchSize); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush drains every buffer regardless of size, including final partial
// batches. Called at engine shutdown; after a nil return every record handed
// to the writer has been sent exactly once.
func (w *Writer) Flush(ctx context.Context) error {
	for _, iv := range model.Intervals() {
		for len(w.buffers[iv]) > 0 {
			n := len(w.buffers[iv])
			if n > w.cfg.BatchSize {
				n = w.cfg.BatchSize
			}
			if err := w.flushInterval(ctx, iv, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Metrics returns a copy of the writer counters.
func (w *Writer) Metrics() WriterMetrics {
	return w.metrics
}

// HasDataForDate reports whether any record exists for the symbol on the
// given day (date in YYYY-MM-DD, UTC). Non-emptiness only.
func (w *Writer) HasDataForDate(ctx context.Context, symbol string, iv model.Interval, date string) (bool, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return false, fmt.Errorf("parse date %q: %w", date, err)
	}
	return w.hasData(ctx, symbol, iv, day.UnixMilli(), day.AddDate(0, 0, 1).UnixMilli())
}

// HasDataForMonth reports whether any record exists for the symbol in the
// given calendar month (UTC). Non-emptiness only.
func (w *Writer) HasDataForMonth(ctx context.Context, symbol string, iv model.Interval, year, month int) (bool, error) {
	if month < 1 || month > 12 {
		return false, fmt.Errorf("invalid month %d", month)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return w.hasData(ctx, symbol, iv, start.UnixMilli(), start.AddDate(0, 1, 0).UnixMilli())
}

func (w *Writer) hasData(ctx context.Context, symbol string, iv model.Interval, startMs, endMs int64) (bool, error) {
	if !iv.Valid() {
		return false, fmt.Errorf("invalid interval %q", iv)
	}
	if err := w.ensureTable(ctx, iv); err != nil {
		return false, err
	}

	var count uint64
	err := w.withRetry(ctx, func() error {
		var err error
		count, err = w.store.countRange(ctx, w.tableName(iv), symbol, startMs, endMs)
		return err
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// flushInterval sends the first n buffered records of an interval, ensuring
// the target table exists first. The buffer is consumed only on success so a
// failed marker can be retried from scratch without losing records.
func (w *Writer) flushInterval(ctx context.Context, iv model.Interval, n int) error {
	buf := w.buffers[iv]
	if len(buf) == 0 {
		return nil
	}
	if n > len(buf) {
		n = len(buf)
	}

	if err := w.ensureTable(ctx, iv); err != nil {
		w.metrics.Errors++
		return err
	}

	batch := buf[:n]
	start := time.Now()
	err := w.withRetry(ctx, func() error {
		return w.store.insert(ctx, w.tableName(iv), batch)
	})
	if err != nil {
		w.metrics.Errors++
		return fmt.Errorf("flush %s: %w", w.tableName(iv), err)
	}

	w.buffers[iv] = buf[n:]
	w.metrics.Inserts += int64(n)
	w.metrics.Flushes++

	w.logger.Debug("flushed klines",
		"table", w.tableName(iv),
		"count", n,
		"duration", time.Since(start),
	)
	return nil
}

func (w *Writer) ensureTable(ctx context.Context, iv model.Interval) error {
	if w.ensured[iv] {
		return nil
	}
	err := w.withRetry(ctx, func() error {
		return w.store.ensureTable(ctx, w.tableName(iv))
	})
	if err != nil {
		return err
	}
	w.ensured[iv] = true
	return nil
}

func (w *Writer) tableName(iv model.Interval) string {
	return w.cfg.TablePrefix + "_" + string(iv)
}

// withRetry runs op with bounded exponential backoff. Context cancellation
// stops retrying immediately.
func (w *Writer) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.Retry.BaseDelay
	bo.MaxInterval = w.cfg.Retry.MaxDelay

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && attempts < w.cfg.Retry.MaxAttempts {
			w.metrics.Retries++
			w.logger.Warn("store operation failed, retrying",
				"attempt", attempts,
				"max_attempts", w.cfg.Retry.MaxAttempts,
				"error", err,
			)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(w.cfg.Retry.MaxAttempts-1)), ctx))

	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return err
}
