// Package ingest implements the chunked ingestion engine.
//
// The engine makes the cleaner's per-key guarantees hold over an unbounded
// stream without buffering a whole symbol's history: records accumulate per
// (symbol, interval) key, chunks of batch-size records run through the
// cleaner, and the last cleaned record of each chunk is carried over to seed
// dedup and gap-fill continuity at the next chunk boundary.
package ingest
