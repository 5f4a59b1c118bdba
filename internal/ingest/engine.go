package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zer0data/ingestor/internal/cleaner"
	"github.com/zer0data/ingestor/internal/model"
)

// RecordWriter is the downstream the engine forwards cleaned records to.
// Implemented by storage.Writer.
type RecordWriter interface {
	// InsertMany buffers records and flushes full batches.
	InsertMany(ctx context.Context, recs []model.Kline) error
	// Flush drains all remaining buffers, including partial batches.
	Flush(ctx context.Context) error
}

// Engine applies the cleaner correctly across chunk boundaries. It owns all
// per-key state of one ingestion run and is driven by a single goroutine.
type Engine struct {
	batchSize int
	writer    RecordWriter
	logger    *slog.Logger

	buffers  map[model.Key][]model.Kline
	carry    map[model.Key]model.Kline
	cleaners map[model.Interval]*cleaner.Cleaner

	cleaning cleaner.Stats
	written  int
}

// NewEngine creates an Engine writing to w in chunks of batchSize records
// per key. A non-positive batch size is a programming error.
func NewEngine(w RecordWriter, batchSize int, logger *slog.Logger) (*Engine, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", batchSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		batchSize: batchSize,
		writer:    w,
		logger:    logger,
		buffers:   make(map[model.Key][]model.Kline),
		carry:     make(map[model.Key]model.Kline),
		cleaners:  make(map[model.Interval]*cleaner.Cleaner),
	}, nil
}

// Add accumulates one record and processes its key's chunk once the buffer
// reaches the batch size.
func (e *Engine) Add(ctx context.Context, rec model.Kline) error {
	if !rec.Interval.Valid() {
		return fmt.Errorf("invalid interval %q on record at %d", rec.Interval, rec.OpenTime)
	}
	key := rec.Key()
	e.buffers[key] = append(e.buffers[key], rec)
	if len(e.buffers[key]) >= e.batchSize {
		return e.processChunk(ctx, key, false)
	}
	return nil
}

// AddBatch accumulates a slice of records.
func (e *Engine) AddBatch(ctx context.Context, recs []model.Kline) error {
	for i := range recs {
		if err := e.Add(ctx, recs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Finish processes every key's final chunk, writing out all remaining
// records including retained carry-overs. A leftover carry-over with no
// successor is written as-is on this final flush.
func (e *Engine) Finish(ctx context.Context) error {
	for _, key := range e.activeKeys() {
		if err := e.processChunk(ctx, key, true); err != nil {
			return err
		}
	}
	return nil
}

// Written returns the number of records forwarded to the writer so far.
// Withheld carry-overs are not counted until the final flush.
func (e *Engine) Written() int { return e.written }

// CleaningStats returns the cleaning counters accumulated across all chunks.
func (e *Engine) CleaningStats() cleaner.Stats { return e.cleaning }

// processChunk cleans [carry-over?] + buffer for one key and forwards the
// result. On a non-final chunk the last cleaned record is held back: it must
// stay available to seed gap-filling for the next chunk, and writing it now
// would risk the next chunk recomputing it inconsistently. A cleaned chunk
// of at most one record is withheld entirely — a single record cannot be
// gap-validated against its unknown successor.
func (e *Engine) processChunk(ctx context.Context, key model.Key, final bool) error {
	chunk := e.buffers[key]
	if c, ok := e.carry[key]; ok {
		chunk = append([]model.Kline{c}, chunk...)
		delete(e.carry, key)
	}
	delete(e.buffers, key)

	if len(chunk) == 0 {
		return nil
	}

	cl, err := e.cleanerFor(key.Interval)
	if err != nil {
		return err
	}
	res, err := cl.Clean(chunk)
	if err != nil {
		return err
	}
	e.cleaning.Add(res.Stats)

	out := res.Records
	if !final {
		if len(out) <= 1 {
			if len(out) == 1 {
				e.carry[key] = out[0]
			}
			return nil
		}
		e.carry[key] = out[len(out)-1]
		out = out[:len(out)-1]
	}

	if len(out) == 0 {
		return nil
	}
	if err := e.writer.InsertMany(ctx, out); err != nil {
		return fmt.Errorf("write chunk for %s/%s: %w", key.Symbol, key.Interval, err)
	}
	e.written += len(out)
	return nil
}

func (e *Engine) cleanerFor(iv model.Interval) (*cleaner.Cleaner, error) {
	if cl, ok := e.cleaners[iv]; ok {
		return cl, nil
	}
	cl, err := cleaner.New(iv)
	if err != nil {
		return nil, err
	}
	e.cleaners[iv] = cl
	return cl, nil
}

// activeKeys returns every key with buffered or carried state, in a
// deterministic order.
func (e *Engine) activeKeys() []model.Key {
	seen := make(map[model.Key]bool)
	var keys []model.Key
	for k := range e.buffers {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range e.carry {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Interval < keys[j].Interval
	})
	return keys
}
