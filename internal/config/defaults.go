package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultCHPort      = 9000
	DefaultCHDatabase  = "zer0data"
	DefaultCHUsername  = "default"
	DefaultTablePrefix = "klines"

	DefaultDataDir  = "data/download"
	DefaultStateDir = "data/state"
	DefaultLogDir   = "data/logs"

	DefaultBatchSize = 10000
	DefaultWorkers   = 1

	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second

	DefaultR2Transfers = 8
)

func (c *Config) applyDefaults() {
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = DefaultCHPort
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = DefaultCHDatabase
	}
	if c.ClickHouse.Username == "" {
		c.ClickHouse.Username = DefaultCHUsername
	}
	if c.ClickHouse.TablePrefix == "" {
		c.ClickHouse.TablePrefix = DefaultTablePrefix
	}

	if c.Local.DataDir == "" {
		c.Local.DataDir = DefaultDataDir
	}
	if c.Local.StateDir == "" {
		c.Local.StateDir = DefaultStateDir
	}
	if c.Local.LogDir == "" {
		c.Local.LogDir = DefaultLogDir
	}

	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = DefaultBatchSize
	}
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = DefaultWorkers
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultBaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = DefaultMaxDelay
	}

	if c.Transfer.Type == "" {
		c.Transfer.Type = "r2"
	}
	if c.Transfer.R2.Transfers == 0 {
		c.Transfer.R2.Transfers = DefaultR2Transfers
	}
}
