// Package config loads and validates the ingestor configuration.
package config

import "time"

// Config is the root configuration for the ingestion pipeline.
type Config struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Local      LocalConfig      `yaml:"local"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retry      RetryConfig      `yaml:"retry"`
	Transfer   TransferConfig   `yaml:"transfer"`
}

// ClickHouseConfig holds the columnar store connection settings.
type ClickHouseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TablePrefix string `yaml:"table_prefix"`
}

// LocalConfig holds the directories the pipeline works against.
type LocalConfig struct {
	// DataDir is where staged input files and _SUCCESS__ markers land.
	DataDir string `yaml:"data_dir"`
	// StateDir holds ingested-marker files and the singleton lock.
	StateDir string `yaml:"state_dir"`
	LogDir   string `yaml:"log_dir"`
}

// IngestConfig holds chunking and worker settings.
type IngestConfig struct {
	// BatchSize bounds both the engine's per-key chunks and the writer's
	// flush batches.
	BatchSize int `yaml:"batch_size"`
	// Workers ingests that many independent markers concurrently.
	Workers int `yaml:"workers"`
}

// RetryConfig bounds retries of transient store I/O failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// TransferConfig selects and configures the staging backend.
type TransferConfig struct {
	// Type is "r2" or "rsync".
	Type  string      `yaml:"type"`
	R2    R2Config    `yaml:"r2"`
	Rsync RsyncConfig `yaml:"rsync"`
}

// R2Config holds rclone remote settings (credentials come from the
// RCLONE_CONFIG_R2_* environment variables).
type R2Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Transfers int    `yaml:"transfers"`
}

// RsyncConfig holds the rsync source settings.
type RsyncConfig struct {
	RemoteHost string `yaml:"remote_host"`
	RemotePath string `yaml:"remote_path"`
	// BandwidthKB limits transfer speed in KB/s; 0 means unlimited.
	BandwidthKB int `yaml:"bandwidth_kb"`
}
