package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigError is a fatal startup error naming the offending file and,
// where applicable, the configuration key.
type ConfigError struct {
	File string
	Key  string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration %s: key %q: %s", e.File, e.Key, e.Msg)
	}
	return fmt.Sprintf("configuration %s: %s", e.File, e.Msg)
}

// Valid log levels, matching the logger's ParseLevel.
var validLevels = map[string]bool{
	"DEBUG":    true,
	"INFO":     true,
	"WARNING":  true,
	"ERROR":    true,
	"CRITICAL": true,
}

// ScanConfig configures a single hardlink audit run. Loaded once at
// process start, immutable thereafter.
type ScanConfig struct {
	FolderPath       string `json:"folder_path"`
	OutputPath       string `json:"output_path"`
	LogLevel         string `json:"log_level"`
	ReportHardlinked bool   `json:"report_hardlinked"`
	ProgressEvery    int    `json:"progress_every"`
}

// LoadScan reads and validates a scan configuration file. The folder is
// checked for existence here so a bad path never reaches the walker.
func LoadScan(path string) (*ScanConfig, error) {
	var cfg ScanConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, err
	}

	if cfg.FolderPath == "" {
		return nil, &ConfigError{File: path, Key: "folder_path", Msg: "required"}
	}
	if cfg.OutputPath == "" {
		return nil, &ConfigError{File: path, Key: "output_path", Msg: "required"}
	}
	level, err := normalizeLevel(path, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	if cfg.ProgressEvery < 0 {
		return nil, &ConfigError{File: path, Key: "progress_every", Msg: "must not be negative"}
	}
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = 1000
	}

	info, err := os.Stat(cfg.FolderPath)
	if err != nil {
		return nil, &ConfigError{File: path, Key: "folder_path", Msg: fmt.Sprintf("folder does not exist: %s", cfg.FolderPath)}
	}
	if !info.IsDir() {
		return nil, &ConfigError{File: path, Key: "folder_path", Msg: fmt.Sprintf("not a directory: %s", cfg.FolderPath)}
	}

	return &cfg, nil
}

// BackupConfig configures the backup/rotation tool. The source and
// destination roots are validated per run, not here, so a daemon can
// outlive a temporarily missing mount.
type BackupConfig struct {
	SourceDir            string   `json:"source_dir"`
	DestinationDir       string   `json:"destination_dir"`
	Files                []string `json:"files"`
	RetentionDays        int      `json:"retention_days"`
	LogLevel             string   `json:"log_level"`
	Schedule             string   `json:"schedule"`
	WatchSources         bool     `json:"watch_sources"`
	MinWatchIntervalSecs int      `json:"min_watch_interval_secs"`
}

// LoadBackup reads and validates a backup configuration file.
func LoadBackup(path string) (*BackupConfig, error) {
	var cfg BackupConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, err
	}

	if cfg.SourceDir == "" {
		return nil, &ConfigError{File: path, Key: "source_dir", Msg: "required"}
	}
	if cfg.DestinationDir == "" {
		return nil, &ConfigError{File: path, Key: "destination_dir", Msg: "required"}
	}
	if len(cfg.Files) == 0 {
		return nil, &ConfigError{File: path, Key: "files", Msg: "at least one file name is required"}
	}
	for _, name := range cfg.Files {
		if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
			return nil, &ConfigError{File: path, Key: "files", Msg: fmt.Sprintf("%q is not a plain file name", name)}
		}
	}
	if cfg.RetentionDays <= 0 {
		return nil, &ConfigError{File: path, Key: "retention_days", Msg: "must be greater than zero"}
	}
	level, err := normalizeLevel(path, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	if cfg.MinWatchIntervalSecs < 0 {
		return nil, &ConfigError{File: path, Key: "min_watch_interval_secs", Msg: "must not be negative"}
	}
	if cfg.MinWatchIntervalSecs == 0 {
		cfg.MinWatchIntervalSecs = 30
	}

	return &cfg, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{File: path, Msg: fmt.Sprintf("cannot read configuration file: %v", err)}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ConfigError{File: path, Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func normalizeLevel(file, level string) (string, error) {
	if level == "" {
		return "INFO", nil
	}
	upper := strings.ToUpper(level)
	if !validLevels[upper] {
		return "", &ConfigError{File: file, Key: "log_level", Msg: fmt.Sprintf("unknown level %q", level)}
	}
	return upper, nil
}
