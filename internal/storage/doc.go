// Package storage implements the ClickHouse side of the pipeline: the
// connection, the per-interval batch writer, and the existence checks used
// for incremental skips.
//
// One table per interval (klines_{interval}), ReplacingMergeTree ordered by
// (symbol, open_time). Tables are created lazily before the first flush that
// needs them; the DDL is idempotent.
package storage
