// Command sync moves staged archives between hosts and ingests pending
// markers into ClickHouse.
//
// Usage:
//
//	sync pull                  pull from R2 (or rsync) then ingest
//	sync pull -no-ingest       pull only
//	sync pull -dry-run         preview the transfer
//	sync upload                upload local data to R2
//	sync upload -cleanup       upload then delete local zip files
//	sync ingest                ingest pending markers without transferring
//	sync -config path.yaml ... custom config file
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zer0data/ingestor/internal/config"
	"github.com/zer0data/ingestor/internal/ingest"
	"github.com/zer0data/ingestor/internal/lock"
	"github.com/zer0data/ingestor/internal/storage"
	"github.com/zer0data/ingestor/internal/syncstate"
	"github.com/zer0data/ingestor/internal/transfer"
	"github.com/zer0data/ingestor/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := global.String("config", "configs/ingestor.yaml", "path to config file")
	showVersion := global.Bool("version", false, "print version and exit")
	global.Usage = usage(global)
	_ = global.Parse(args)

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 1
	}
	command, rest := rest[0], rest[1:]

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, closeLog, err := setupLogging(cfg.Local.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting sync",
		"version", version.Version,
		"commit", version.Commit,
		"command", command,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	state := syncstate.New(cfg.Local.DataDir, cfg.Local.StateDir)
	if err := state.EnsureDirs(); err != nil {
		logger.Error("failed to prepare directories", "error", err)
		return 1
	}

	// Only one sync process may run at a time; concurrent pulls would
	// double-ingest markers.
	lockPath := filepath.Join(cfg.Local.StateDir, ".sync.lock")
	l := lock.New(lockPath)
	acquired, err := l.TryAcquire()
	if err != nil {
		logger.Error("failed to acquire lock", "path", lockPath, "error", err)
		return 1
	}
	if !acquired {
		logger.Error("another sync process is already running", "lock", lockPath)
		return 1
	}
	defer l.Release()

	switch command {
	case "pull":
		return cmdPull(ctx, cfg, state, logger, rest)
	case "upload":
		return cmdUpload(ctx, cfg, logger, rest)
	case "ingest":
		return cmdIngest(ctx, cfg, state, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		global.Usage()
		return 1
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintln(os.Stderr, "Usage: sync [flags] <pull|upload|ingest> [command flags]")
		fs.PrintDefaults()
	}
}

func cmdPull(ctx context.Context, cfg *config.Config, state *syncstate.State, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "preview without transferring")
	noIngest := fs.Bool("no-ingest", false, "skip ingestion after pull")
	_ = fs.Parse(args)

	client := transfer.New(cfg.Transfer, cfg.Local.DataDir, logger)
	if err := client.Pull(ctx, *dryRun); err != nil {
		logger.Error("transfer failed", "error", err)
		return 1
	}
	logger.Info("data transfer completed")

	if *dryRun {
		logger.Info("dry-run mode, skipping ingest")
		return 0
	}
	if *noIngest {
		logger.Info("no-ingest mode, skipping ingestion")
		return 0
	}
	return cmdIngest(ctx, cfg, state, logger)
}

func cmdUpload(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "preview without transferring")
	cleanup := fs.Bool("cleanup", false, "delete local zip files after upload")
	_ = fs.Parse(args)

	client := transfer.New(cfg.Transfer, cfg.Local.DataDir, logger)
	if err := client.Upload(ctx, *dryRun, *cleanup); err != nil {
		logger.Error("upload failed", "error", err)
		return 1
	}
	logger.Info("upload completed")
	return 0
}

// cmdIngest processes pending markers oldest first. A marker is checked off
// only after every file it covers was ingested; a failed marker stays
// pending and is retried on the next run.
func cmdIngest(ctx context.Context, cfg *config.Config, state *syncstate.State, logger *slog.Logger) int {
	pending, err := state.Pending()
	if err != nil {
		logger.Error("failed to list pending markers", "error", err)
		return 1
	}
	if len(pending) == 0 {
		logger.Info("no pending markers to ingest")
		return 0
	}
	logger.Info("found pending markers", "count", len(pending))

	conn, err := storage.Connect(ctx, cfg.ClickHouse)
	if err != nil {
		logger.Error("failed to connect to clickhouse", "error", err)
		return 1
	}
	defer conn.Close()

	var failed int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Ingest.Workers)
	results := make([]error, len(pending))

	for i, marker := range pending {
		i, marker := i, marker
		g.Go(func() error {
			// Writers buffer per interval and are not safe for
			// concurrent use, so each marker gets its own.
			writer, err := storage.NewWriter(conn, storage.WriterConfig{
				BatchSize:   cfg.Ingest.BatchSize,
				TablePrefix: cfg.ClickHouse.TablePrefix,
				Retry:       cfg.Retry,
			}, logger)
			if err != nil {
				results[i] = err
				return nil
			}
			ingestor, err := ingest.New(writer, writer, cfg.Ingest.BatchSize, logger)
			if err != nil {
				results[i] = err
				return nil
			}

			logger.Info("ingesting marker", "marker", marker.Name, "pattern", marker.Pattern())
			stats, err := ingestor.IngestDirectory(gctx, cfg.Local.DataDir, ingest.Options{
				Pattern: marker.Pattern(),
			})
			if err != nil {
				results[i] = fmt.Errorf("marker %s: %w", marker.Name, err)
				return nil
			}
			logger.Info("marker done",
				"marker", marker.Name,
				"summary", stats.Summary(),
			)
			results[i] = state.MarkIngested(marker.Name)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range results {
		if err != nil {
			logger.Error("marker left pending", "error", err)
			failed++
		}
	}
	if failed > 0 {
		logger.Error("ingestion finished with failures", "failed", failed, "total", len(pending))
		return 1
	}
	logger.Info("all markers ingested", "count", len(pending))
	return 0
}

// setupLogging writes structured logs to stderr and to a dated file under
// logDir. With an empty logDir only stderr is used.
func setupLogging(logDir string) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeLog := func() {}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, err
		}
		name := fmt.Sprintf("sync_%s.log", time.Now().UTC().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return logger, closeLog, nil
}
