package models

import "time"

// FileRecord describes one regular file encountered during a scan.
// Records are built once during the walk and never mutated afterwards.
type FileRecord struct {
	Path      string
	SizeBytes int64
	LinkCount uint64
	Inode     uint64
	ModTime   time.Time
}

// ScanSummary accumulates counters during a scan and is final once the
// walk completes. HardlinkedCount + NonHardlinkedCount + Errors always
// equals TotalFiles.
type ScanSummary struct {
	ScanPath    string
	ScanID      string
	StartedAt   time.Time
	CompletedAt time.Time

	TotalFiles             int
	HardlinkedCount        int
	NonHardlinkedCount     int
	Errors                 int
	TotalSizeBytes         int64
	NonHardlinkedSizeBytes int64
}

// PercentNonHardlinked returns the share of scanned files that have a
// single directory entry, as a percentage.
func (s ScanSummary) PercentNonHardlinked() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return float64(s.NonHardlinkedCount) / float64(s.TotalFiles) * 100
}

// ScanResult is the complete outcome of one scan: the summary plus the
// detail lists. Hardlinked is populated only when configured.
type ScanResult struct {
	Summary       ScanSummary
	NonHardlinked []FileRecord
	Hardlinked    []FileRecord
}

// Copy statuses for a single backup copy attempt.
const (
	CopyStatusCopied         = "copied"
	CopyStatusSkippedMissing = "skipped_missing"
	CopyStatusFailed         = "failed"
)

// CopyResult describes one copy attempt within a backup run.
type CopyResult struct {
	Source    string
	Target    string
	SizeBytes int64
	Status    string
	Error     string
}

// BackupSummary is the outcome of one backup run: the snapshot copy
// followed by retention pruning.
type BackupSummary struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	SnapshotDir string

	Copied         int
	SkippedMissing int
	Failed         int
	CopiedBytes    int64

	PrunedFiles int
	PrunedBytes int64
	PrunedDirs  int

	Results []CopyResult
}
