package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voclinx/nastools/internal/backup"
	"github.com/voclinx/nastools/internal/config"
	"github.com/voclinx/nastools/internal/logger"
	"github.com/voclinx/nastools/internal/scheduler"
	"github.com/voclinx/nastools/internal/watcher"
)

func main() {
	configPath := flag.String("config", "backup.json", "path to the backup configuration file")
	daemon := flag.Bool("daemon", false, "keep running and back up on the configured schedule")
	flag.Parse()

	cfg, err := config.LoadBackup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backuprotate: %v\n", err)
		os.Exit(2)
	}

	logger.Setup(cfg.LogLevel)
	runner := backup.New(cfg)

	if !*daemon {
		sum, err := runner.Run()
		if err != nil {
			logger.Critical("Backup run failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Backed up %d file(s) to %s (%d missing, %d pruned)\n",
			sum.Copied, sum.SnapshotDir, sum.SkippedMissing, sum.PrunedFiles)
		return
	}

	if cfg.Schedule == "" {
		fmt.Fprintln(os.Stderr, "backuprotate: daemon mode requires a schedule in the configuration")
		os.Exit(2)
	}

	run := func() error {
		_, err := runner.Run()
		return err
	}

	sched, err := scheduler.New(cfg.Schedule, run)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backuprotate: %v\n", err)
		os.Exit(2)
	}
	sched.Start()
	slog.Info("Backup daemon started", "schedule", cfg.Schedule)

	var srcWatcher *watcher.SourceWatcher
	if cfg.WatchSources {
		minInterval := time.Duration(cfg.MinWatchIntervalSecs) * time.Second
		srcWatcher, err = watcher.New(cfg.SourceDir, cfg.Files, minInterval, func() {
			if err := run(); err != nil {
				slog.Error("Change-triggered backup failed", "error", err)
			}
		})
		if err == nil {
			err = srcWatcher.Start()
		}
		if err != nil {
			logger.Critical("Failed to start source watcher", "dir", cfg.SourceDir, "error", err)
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	slog.Info("Shutting down", "signal", sig.String())
	if srcWatcher != nil {
		srcWatcher.Close()
	}
	sched.Stop()
	slog.Info("Shutdown complete")
}
