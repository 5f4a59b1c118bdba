// Package transfer moves staged archive files between the download host and
// the ingestion host. Two backends are supported: rclone against a
// Cloudflare R2 bucket, and rsync over SSH as a fallback.
//
// rclone is configured entirely through RCLONE_CONFIG_R2_* environment
// variables so no rclone config file is needed on the host:
//
//	RCLONE_CONFIG_R2_TYPE=s3
//	RCLONE_CONFIG_R2_PROVIDER=Cloudflare
//	RCLONE_CONFIG_R2_ACCESS_KEY_ID=...
//	RCLONE_CONFIG_R2_SECRET_ACCESS_KEY=...
//	RCLONE_CONFIG_R2_ENDPOINT=...
//	RCLONE_CONFIG_R2_NO_CHECK_BUCKET=true
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/zer0data/ingestor/internal/config"
)

// runFunc executes an external command and reports its exit code. Pulled
// out of Client so tests can intercept the command lines.
type runFunc func(ctx context.Context, name string, args ...string) (int, error)

// Client drives the configured transfer backend.
type Client struct {
	cfg     config.TransferConfig
	dataDir string
	logger  *slog.Logger
	run     runFunc
}

// New creates a Client that transfers into (or out of) dataDir.
func New(cfg config.TransferConfig, dataDir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		dataDir: dataDir,
		logger:  logger,
		run:     runCommand,
	}
}

// Pull fetches remote data into the local data directory using the
// configured backend.
func (c *Client) Pull(ctx context.Context, dryRun bool) error {
	switch c.cfg.Type {
	case "r2":
		return c.r2Pull(ctx, dryRun)
	case "rsync":
		return c.rsyncPull(ctx, dryRun)
	default:
		return fmt.Errorf("unknown transfer type %q", c.cfg.Type)
	}
}

// Upload pushes the local data directory to R2. Runs on the download host
// after the downloader finishes. With cleanup set, files removed locally
// are also removed from the bucket and local zip files are deleted after a
// successful sync.
func (c *Client) Upload(ctx context.Context, dryRun, cleanup bool) error {
	src := c.dataDir + "/"
	dst := c.remotePath()

	verb := "copy"
	if cleanup {
		verb = "sync"
	}
	args := []string{
		verb, src, dst,
		fmt.Sprintf("--transfers=%d", c.cfg.R2.Transfers),
		"--stats-one-line",
		"--retries=3",
		"--retries-sleep=10s",
		"--s3-chunk-size=64M",
		"--s3-upload-concurrency=4",
		"--checksum",
	}
	if dryRun {
		args = append(args, "--dry-run")
	}

	c.logger.Info("uploading to R2", "src", src, "dst", dst, "dry_run", dryRun)
	if err := c.rclone(ctx, args...); err != nil {
		return err
	}

	if cleanup && !dryRun {
		c.logger.Info("removing local archives after upload")
		return c.rclone(ctx, "delete", src, "--include", "*.zip")
	}
	return nil
}

func (c *Client) r2Pull(ctx context.Context, dryRun bool) error {
	src := c.remotePath()
	dst := c.dataDir + "/"

	args := []string{
		"copy", src, dst,
		fmt.Sprintf("--transfers=%d", c.cfg.R2.Transfers),
		"--stats-one-line",
	}
	if dryRun {
		args = append(args, "--dry-run")
	}

	c.logger.Info("pulling from R2", "src", src, "dst", dst, "dry_run", dryRun)
	return c.rclone(ctx, args...)
}

func (c *Client) rsyncPull(ctx context.Context, dryRun bool) error {
	args := []string{
		"-a",
		"--partial",
		"--append-verify",
		"--human-readable",
	}
	if dryRun {
		args = append(args, "--dry-run")
	}
	if c.cfg.Rsync.BandwidthKB > 0 {
		args = append(args, fmt.Sprintf("--bwlimit=%d", c.cfg.Rsync.BandwidthKB))
	}

	src := fmt.Sprintf("%s:%s/", c.cfg.Rsync.RemoteHost, c.cfg.Rsync.RemotePath)
	dst := c.dataDir + "/"
	args = append(args, src, dst)

	c.logger.Info("pulling via rsync", "src", src, "dst", dst, "dry_run", dryRun)
	code, err := c.run(ctx, "rsync", args...)
	switch code {
	case 0:
		return err
	case 23, 24:
		// Partial transfer / vanished source files. Leftovers are picked
		// up on the next run, so treat as success.
		c.logger.Warn("rsync finished with partial-transfer code", "code", code)
		return nil
	default:
		return fmt.Errorf("rsync exited with code %d", code)
	}
}

// remotePath builds the rclone remote path, e.g. "r2:zer0data/download".
func (c *Client) remotePath() string {
	prefix := strings.Trim(c.cfg.R2.Prefix, "/")
	if prefix == "" {
		return "r2:" + c.cfg.R2.Bucket
	}
	return fmt.Sprintf("r2:%s/%s", c.cfg.R2.Bucket, prefix)
}

func (c *Client) rclone(ctx context.Context, args ...string) error {
	code, err := c.run(ctx, "rclone", args...)
	if code != 0 {
		return fmt.Errorf("rclone %s exited with code %d", args[0], code)
	}
	return err
}

// runCommand runs name with args, streaming output to the parent process.
func runCommand(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("run %s: %w", name, err)
	}
	return 0, nil
}
