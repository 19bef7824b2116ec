package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/voclinx/nastools/internal/config"
	"github.com/voclinx/nastools/internal/logger"
	"github.com/voclinx/nastools/internal/report"
	"github.com/voclinx/nastools/internal/scanner"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the scan configuration file")
	flag.Parse()

	cfg, err := config.LoadScan(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkaudit: %v\n", err)
		os.Exit(2)
	}

	logger.Setup(cfg.LogLevel)

	s := scanner.New(cfg.ReportHardlinked, cfg.ProgressEvery)
	res, err := s.Scan(cfg.FolderPath)
	if err != nil {
		logger.Critical("Scan failed", "path", cfg.FolderPath, "error", err)
		os.Exit(1)
	}

	writeErr := report.Write(cfg.OutputPath, res)
	if writeErr != nil {
		// The scan finished; the summary must still reach the console
		// before the process exits non-zero.
		logger.Critical("Failed to write report", "path", cfg.OutputPath, "error", writeErr)
		report.PrintConsole(os.Stdout, res, "")
		os.Exit(1)
	}

	report.PrintConsole(os.Stdout, res, cfg.OutputPath)
}
