package backup

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voclinx/nastools/internal/config"
	"github.com/voclinx/nastools/internal/models"
)

// TimestampLayout names snapshot directories and is embedded in every
// copied file name. Pruning parses it back out, so the two must agree.
const TimestampLayout = "2006-01-02_15-04-05"

// Runner copies the configured files into a timestamped snapshot under
// the destination root, then prunes copies older than the retention
// window.
type Runner struct {
	cfg *config.BackupConfig
	now func() time.Time

	// Serializes runs: in daemon mode the scheduler and the source
	// watcher can both trigger a run, and overlapping runs would share
	// a snapshot directory.
	mu sync.Mutex
}

// New creates a Runner for the given configuration.
func New(cfg *config.BackupConfig) *Runner {
	return &Runner{cfg: cfg, now: time.Now}
}

// Run performs one backup cycle. A missing source or destination root
// aborts the run; a missing listed file is a warning and the run
// continues. Concurrent callers are serialized.
func (r *Runner) Run() (*models.BackupSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := &models.BackupSummary{
		RunID:     uuid.New().String(),
		StartedAt: r.now(),
	}
	slog.Info("Starting backup run",
		"run_id", sum.RunID,
		"source", r.cfg.SourceDir,
		"destination", r.cfg.DestinationDir,
		"files", len(r.cfg.Files),
	)

	if err := checkDir(r.cfg.SourceDir); err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if err := checkDir(r.cfg.DestinationDir); err != nil {
		return nil, fmt.Errorf("destination directory: %w", err)
	}

	stamp := sum.StartedAt.Format(TimestampLayout)
	snapDir := filepath.Join(r.cfg.DestinationDir, stamp)
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory %s: %w", snapDir, err)
	}
	sum.SnapshotDir = snapDir

	for _, name := range r.cfg.Files {
		result := r.copyOne(name, snapDir, stamp)
		sum.Results = append(sum.Results, result)
		switch result.Status {
		case models.CopyStatusCopied:
			sum.Copied++
			sum.CopiedBytes += result.SizeBytes
		case models.CopyStatusSkippedMissing:
			sum.SkippedMissing++
		default:
			sum.Failed++
		}
	}

	sum.PrunedFiles, sum.PrunedBytes, sum.PrunedDirs = r.prune()
	sum.CompletedAt = r.now()

	slog.Info("Backup run complete",
		"run_id", sum.RunID,
		"snapshot", snapDir,
		"copied", sum.Copied,
		"skipped_missing", sum.SkippedMissing,
		"failed", sum.Failed,
		"pruned_files", sum.PrunedFiles,
		"pruned_dirs", sum.PrunedDirs,
	)
	return sum, nil
}

// copyOne copies a single listed file into the snapshot directory,
// renaming it to embed the run timestamp.
func (r *Runner) copyOne(name, snapDir, stamp string) models.CopyResult {
	src := filepath.Join(r.cfg.SourceDir, name)
	result := models.CopyResult{Source: src, Status: models.CopyStatusCopied}

	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Listed source file missing, skipping", "path", src)
			result.Status = models.CopyStatusSkippedMissing
			return result
		}
		slog.Error("Cannot stat source file", "path", src, "error", err)
		result.Status = models.CopyStatusFailed
		result.Error = err.Error()
		return result
	}
	if info.IsDir() {
		slog.Warn("Listed source is a directory, skipping", "path", src)
		result.Status = models.CopyStatusFailed
		result.Error = "source is a directory"
		return result
	}

	target := filepath.Join(snapDir, stampedName(name, stamp))
	result.Target = target

	if err := copyFile(src, target, info); err != nil {
		slog.Error("Copy failed", "source", src, "target", target, "error", err)
		result.Status = models.CopyStatusFailed
		result.Error = err.Error()
		return result
	}

	result.SizeBytes = info.Size()
	slog.Info("Copied file", "source", src, "target", target, "size_bytes", info.Size())
	return result
}

// prune deletes copies older than the retention window. Only files whose
// name is exactly <stem>_<timestamp><ext> for one of the configured base
// names are candidates; anything else in the destination tree is left
// alone. Empty directories left behind are removed bottom-up.
func (r *Runner) prune() (files int, bytes int64, dirs int) {
	cutoff := r.now().Add(-time.Duration(r.cfg.RetentionDays) * 24 * time.Hour)
	var parents []string

	err := filepath.WalkDir(r.cfg.DestinationDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Warn("Error accessing entry during prune", "path", path, "error", walkErr)
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		ts, ok := r.matchCopy(d.Name())
		if !ok || !ts.Before(cutoff) {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to prune copy", "path", path, "error", err)
			return nil
		}
		slog.Info("Pruned expired copy", "path", path, "copied_at", ts.Format(TimestampLayout))
		files++
		bytes += size
		parents = append(parents, filepath.Dir(path))
		return nil
	})
	if err != nil {
		slog.Warn("Prune walk aborted", "error", err)
	}

	for _, dir := range parents {
		dirs += r.removeEmptyDirs(dir)
	}
	return files, bytes, dirs
}

// matchCopy reports whether base is a timestamped copy of one of the
// configured files, and the timestamp it carries. The embedded text must
// parse as a full timestamp, so names that merely share a prefix (for
// example server_old.properties against server.properties) never match.
func (r *Runner) matchCopy(base string) (time.Time, bool) {
	for _, name := range r.cfg.Files {
		ext := filepath.Ext(name)
		prefix := strings.TrimSuffix(name, ext) + "_"
		if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ext) {
			continue
		}
		stampText := base[len(prefix) : len(base)-len(ext)]
		ts, err := time.ParseInLocation(TimestampLayout, stampText, time.Local)
		if err != nil {
			continue
		}
		return ts, true
	}
	return time.Time{}, false
}

// removeEmptyDirs walks up from dir to the destination root, removing
// each empty directory. The root itself is never removed.
func (r *Runner) removeEmptyDirs(dir string) int {
	root := filepath.Clean(r.cfg.DestinationDir)
	sep := string(filepath.Separator)
	removed := 0

	for dir != root && strings.HasPrefix(dir, root+sep) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			slog.Warn("Failed to remove empty directory", "path", dir, "error", err)
			break
		}
		slog.Info("Removed empty snapshot directory", "path", dir)
		removed++
		dir = filepath.Dir(dir)
	}
	return removed
}

// stampedName builds the copy name for a source base name:
// server.properties becomes server_<stamp>.properties.
func stampedName(name, stamp string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + stamp + ext
}

func copyFile(src, target string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return err
	}
	// Keep the source's mtime so the copy still tells when the original
	// last changed.
	return os.Chtimes(target, time.Now(), info.ModTime())
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
