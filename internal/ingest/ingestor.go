package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zer0data/ingestor/internal/model"
	"github.com/zer0data/ingestor/internal/source"
)

// ExistenceChecker answers "does any record already exist for this
// partition/time-range" so already-ingested files can be skipped.
// Implemented by storage.Writer. Callers must not assume completeness, only
// non-emptiness.
type ExistenceChecker interface {
	HasDataForDate(ctx context.Context, symbol string, iv model.Interval, date string) (bool, error)
	HasDataForMonth(ctx context.Context, symbol string, iv model.Interval, year, month int) (bool, error)
}

// Options tunes one IngestDirectory call.
type Options struct {
	// Pattern selects input files by base name. Defaults to "*.zip".
	Pattern string
	// Symbols restricts ingestion to the listed symbols when non-empty.
	Symbols []string
	// Force bypasses the incremental skip checks and re-imports everything.
	Force bool
}

// Ingestor runs the full pipeline for one directory of staged files.
type Ingestor struct {
	writer    RecordWriter
	checker   ExistenceChecker
	batchSize int
	logger    *slog.Logger
}

// New creates an Ingestor. checker may be the same value as writer.
func New(writer RecordWriter, checker ExistenceChecker, batchSize int, logger *slog.Logger) (*Ingestor, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", batchSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		writer:    writer,
		checker:   checker,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// IngestDirectory ingests every staged file under dir matching the selector
// pattern. Unparseable files are skipped with a warning; a store failure
// aborts the run (recorded in Stats.Errors as well) so the caller can leave
// the covering marker pending and retry later.
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string, opts Options) (Stats, error) {
	stats := Stats{RunID: uuid.New()}
	logger := ing.logger.With("run_id", stats.RunID)

	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*.zip"
	}

	engine, err := NewEngine(ing.writer, ing.batchSize, logger)
	if err != nil {
		return stats, err
	}

	files, err := source.Walk(dir, pattern)
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return stats, err
	}

	var symbolFilter map[string]bool
	if len(opts.Symbols) > 0 {
		symbolFilter = make(map[string]bool, len(opts.Symbols))
		for _, s := range opts.Symbols {
			symbolFilter[s] = true
		}
	}

	symbolsSeen := make(map[string]bool)
	for _, file := range files {
		base := filepath.Base(file)

		symbol := source.ExtractSymbol(base)
		if symbolFilter != nil && !symbolFilter[symbol] {
			continue
		}

		iv, err := source.ExtractInterval(base)
		if err != nil {
			logger.Warn("skipping file with unrecognisable interval", "file", file)
			continue
		}

		if !opts.Force {
			skip, err := ing.alreadyIngested(ctx, symbol, iv, base)
			if err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				return stats, err
			}
			if skip {
				logger.Info("skipping file, data already exists",
					"symbol", symbol, "interval", iv, "file", base)
				stats.FilesSkipped++
				continue
			}
		}

		recs, err := source.ParseZip(file, symbol, iv)
		if err != nil {
			logger.Warn("skipping unparseable file", "file", file, "error", err)
			continue
		}
		if len(recs) == 0 {
			continue
		}

		stats.FilesProcessed++
		symbolsSeen[symbol] = true
		logger.Info("processing file",
			"n", stats.FilesProcessed,
			"symbol", symbol,
			"interval", iv,
			"rows", len(recs),
		)

		if err := engine.AddBatch(ctx, recs); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("ingest %s: %v", base, err))
			return ing.finalize(ctx, engine, stats, symbolsSeen), err
		}
	}

	if err := engine.Finish(ctx); err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return ing.finalize(ctx, engine, stats, symbolsSeen), err
	}
	if err := ing.writer.Flush(ctx); err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return ing.finalize(ctx, engine, stats, symbolsSeen), err
	}

	stats = ing.finalize(ctx, engine, stats, symbolsSeen)
	logger.Info("ingestion complete", "summary", stats.Summary())
	return stats, nil
}

// alreadyIngested consults the skip checker at the granularity encoded in
// the filename (daily or monthly). Files without a date are never skipped.
func (ing *Ingestor) alreadyIngested(ctx context.Context, symbol string, iv model.Interval, base string) (bool, error) {
	if ing.checker == nil {
		return false, nil
	}
	date, ok := source.ExtractDate(base)
	if !ok {
		return false, nil
	}
	if date.Monthly {
		return ing.checker.HasDataForMonth(ctx, symbol, iv, date.Year(), date.Month())
	}
	return ing.checker.HasDataForDate(ctx, symbol, iv, date.Date)
}

func (ing *Ingestor) finalize(_ context.Context, engine *Engine, stats Stats, symbolsSeen map[string]bool) Stats {
	stats.RecordsWritten = engine.Written()
	stats.Cleaning = engine.CleaningStats()
	stats.SymbolsProcessed = len(symbolsSeen)
	return stats
}
