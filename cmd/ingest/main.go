package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"log/slog"

	"github.com/zer0data/ingestor/internal/config"
	"github.com/zer0data/ingestor/internal/ingest"
	"github.com/zer0data/ingestor/internal/storage"
	"github.com/zer0data/ingestor/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestor.yaml", "path to config file")
	source := flag.String("source", "", "directory containing downloaded zip files (default: local.data_dir from config)")
	pattern := flag.String("pattern", "*.zip", "file pattern to match")
	symbols := flag.String("symbols", "", "comma-separated symbols to ingest (e.g. BTCUSDT,ETHUSDT); empty means all")
	force := flag.Bool("force", false, "re-import files even when data already exists")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingestor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dir := *source
	if dir == "" {
		dir = cfg.Local.DataDir
	}
	if dir == "" {
		logger.Error("no source directory: pass -source or set local.data_dir")
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to clickhouse",
		"host", cfg.ClickHouse.Host,
		"port", cfg.ClickHouse.Port,
		"database", cfg.ClickHouse.Database,
	)

	conn, err := storage.Connect(ctx, cfg.ClickHouse)
	if err != nil {
		logger.Error("failed to connect to clickhouse", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	writer, err := storage.NewWriter(conn, storage.WriterConfig{
		BatchSize:   cfg.Ingest.BatchSize,
		TablePrefix: cfg.ClickHouse.TablePrefix,
		Retry:       cfg.Retry,
	}, logger)
	if err != nil {
		logger.Error("failed to create writer", "error", err)
		os.Exit(1)
	}

	ingestor, err := ingest.New(writer, writer, cfg.Ingest.BatchSize, logger)
	if err != nil {
		logger.Error("failed to create ingestor", "error", err)
		os.Exit(1)
	}

	opts := ingest.Options{
		Pattern: *pattern,
		Force:   *force,
	}
	if *symbols != "" {
		opts.Symbols = strings.Split(*symbols, ",")
	}

	stats, err := ingestor.IngestDirectory(ctx, dir, opts)
	if err != nil {
		logger.Error("ingestion failed", "error", err, "summary", stats.Summary())
		os.Exit(1)
	}

	fmt.Println("Ingestion completed:")
	fmt.Printf("  Files processed:    %d\n", stats.FilesProcessed)
	fmt.Printf("  Files skipped:      %d\n", stats.FilesSkipped)
	fmt.Printf("  Records written:    %d\n", stats.RecordsWritten)
	fmt.Printf("  Duplicates removed: %d\n", stats.Cleaning.DuplicatesRemoved)
	fmt.Printf("  Gaps filled:        %d\n", stats.Cleaning.GapsFilled)
	fmt.Printf("  Invalid removed:    %d\n", stats.Cleaning.InvalidRemoved)
	if len(stats.Errors) > 0 {
		fmt.Printf("  Errors:             %d\n", len(stats.Errors))
		for _, e := range stats.Errors {
			fmt.Printf("    - %s\n", e)
		}
		os.Exit(1)
	}
}
