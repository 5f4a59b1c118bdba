package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.ClickHouse.Host == "" {
		return errors.New("clickhouse.host is required")
	}
	if c.ClickHouse.Port < 1 || c.ClickHouse.Port > 65535 {
		return fmt.Errorf("clickhouse.port must be between 1 and 65535, got %d", c.ClickHouse.Port)
	}
	if c.ClickHouse.Database == "" {
		return errors.New("clickhouse.database is required")
	}

	if c.Local.DataDir == "" {
		return errors.New("local.data_dir is required")
	}
	if c.Local.StateDir == "" {
		return errors.New("local.state_dir is required")
	}

	if c.Ingest.BatchSize < 1 {
		return errors.New("ingest.batch_size must be >= 1")
	}
	if c.Ingest.Workers < 1 {
		return errors.New("ingest.workers must be >= 1")
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if c.Retry.BaseDelay <= 0 {
		return errors.New("retry.base_delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return errors.New("retry.max_delay cannot be smaller than retry.base_delay")
	}

	switch c.Transfer.Type {
	case "r2":
		if c.Transfer.R2.Bucket == "" {
			return errors.New("transfer.r2.bucket is required when transfer.type is r2")
		}
	case "rsync":
		if c.Transfer.Rsync.RemoteHost == "" || c.Transfer.Rsync.RemotePath == "" {
			return errors.New("transfer.rsync.remote_host and remote_path are required when transfer.type is rsync")
		}
	default:
		return fmt.Errorf("transfer.type must be r2 or rsync, got %q", c.Transfer.Type)
	}

	return nil
}
