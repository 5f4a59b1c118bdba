package ingest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zer0data/ingestor/internal/cleaner"
)

// Stats is the run-level aggregate of one ingestion invocation.
type Stats struct {
	RunID uuid.UUID

	FilesProcessed   int
	FilesSkipped     int
	SymbolsProcessed int

	// RecordsWritten counts only records actually forwarded to the writer.
	RecordsWritten int

	// Cleaning sums the cleaning counters across all chunks of the run.
	Cleaning cleaner.Stats

	// Errors collects non-fatal per-source failures.
	Errors []string
}

// Summary returns a one-line human-readable digest for logs and CLI output.
func (s Stats) Summary() string {
	return fmt.Sprintf(
		"%d files processed, %d skipped, %d records written, %d duplicates removed, %d gaps filled, %d invalid removed, %d errors",
		s.FilesProcessed, s.FilesSkipped, s.RecordsWritten,
		s.Cleaning.DuplicatesRemoved, s.Cleaning.GapsFilled, s.Cleaning.InvalidRemoved,
		len(s.Errors),
	)
}
