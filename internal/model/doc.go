// Package model defines the shared data types of the ingestion pipeline.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch
//   - A kline's close_time is always open_time + interval − 1ms
//   - One storage partition per interval (tables are named klines_{interval})
package model
