package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/voclinx/nastools/internal/hardlink"
	"github.com/voclinx/nastools/internal/models"
)

// Scanner walks a directory tree and classifies every regular file by its
// hardlink count. A single Scan call is one complete, sequential walk;
// WalkDir visits entries in lexical order, so visit order is stable
// within a run.
type Scanner struct {
	reportHardlinked bool
	progressEvery    int
}

// New creates a Scanner. progressEvery is the number of files between
// progress log lines.
func New(reportHardlinked bool, progressEvery int) *Scanner {
	if progressEvery <= 0 {
		progressEvery = 1000
	}
	return &Scanner{
		reportHardlinked: reportHardlinked,
		progressEvery:    progressEvery,
	}
}

// Scan performs one full recursive scan under root. Per-entry access
// errors are logged, counted and skipped; only a failure on root itself
// aborts the scan. The returned result is complete once Scan returns.
func (s *Scanner) Scan(root string) (*models.ScanResult, error) {
	scanID := uuid.New().String()
	slog.Info("Starting scan", "path", root, "scan_id", scanID)

	res := &models.ScanResult{
		Summary: models.ScanSummary{
			ScanPath:  root,
			ScanID:    scanID,
			StartedAt: time.Now(),
		},
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("walking %s: %w", root, walkErr)
			}
			// The entry was enumerated but could not be read. It still
			// counts toward the total so the summary stays consistent.
			slog.Warn("Error accessing entry", "path", path, "scan_id", scanID, "error", walkErr)
			res.Summary.TotalFiles++
			res.Summary.Errors++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks, devices, sockets and FIFOs are not classified.
			slog.Debug("Skipping non-regular entry", "path", path, "mode", d.Type().String())
			return nil
		}

		s.classify(path, res)

		if res.Summary.TotalFiles%s.progressEvery == 0 {
			slog.Info("Scan progress", "scan_id", scanID, "files_scanned", res.Summary.TotalFiles)
		}
		return nil
	})

	res.Summary.CompletedAt = time.Now()
	if err != nil {
		return res, err
	}

	slog.Info("Scan complete",
		"path", root,
		"scan_id", scanID,
		"total_files", res.Summary.TotalFiles,
		"hardlinked", res.Summary.HardlinkedCount,
		"non_hardlinked", res.Summary.NonHardlinkedCount,
		"errors", res.Summary.Errors,
		"duration_ms", res.Summary.CompletedAt.Sub(res.Summary.StartedAt).Milliseconds(),
	)
	return res, nil
}

// classify stats one regular file and updates the counters. A file with a
// single directory entry goes into the non-hardlinked detail list.
func (s *Scanner) classify(path string, res *models.ScanResult) {
	res.Summary.TotalFiles++

	st, err := hardlink.Stat(path)
	if err != nil {
		slog.Warn("Unable to stat file", "path", path, "error", err)
		res.Summary.Errors++
		return
	}
	res.Summary.TotalSizeBytes += st.SizeBytes

	rec := models.FileRecord{
		Path:      path,
		SizeBytes: st.SizeBytes,
		LinkCount: st.Nlink,
		Inode:     st.Inode,
		ModTime:   st.ModTime,
	}

	if st.IsHardlinked() {
		res.Summary.HardlinkedCount++
		if s.reportHardlinked {
			res.Hardlinked = append(res.Hardlinked, rec)
		}
		return
	}

	res.Summary.NonHardlinkedCount++
	res.Summary.NonHardlinkedSizeBytes += st.SizeBytes
	res.NonHardlinked = append(res.NonHardlinked, rec)
}
