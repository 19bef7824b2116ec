package backup

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voclinx/nastools/internal/config"
	"github.com/voclinx/nastools/internal/models"
)

func testConfig(t *testing.T, files []string, retentionDays int) *config.BackupConfig {
	t.Helper()
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	for _, dir := range []string{src, dst} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return &config.BackupConfig{
		SourceDir:      src,
		DestinationDir: dst,
		Files:          files,
		RetentionDays:  retentionDays,
	}
}

func writeSource(t *testing.T, cfg *config.BackupConfig, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.SourceDir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// plantCopy creates a previously backed-up file whose name embeds the
// given timestamp, inside its own snapshot directory.
func plantCopy(t *testing.T, cfg *config.BackupConfig, name string, ts time.Time) string {
	t.Helper()
	stamp := ts.Format(TimestampLayout)
	dir := filepath.Join(cfg.DestinationDir, stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, stampedName(name, stamp))
	if err := os.WriteFile(path, []byte("old copy"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_CopiesWithEmbeddedTimestamp(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties", "whitelist.json"}, 7)
	writeSource(t, cfg, "server.properties", "motd=hello")
	writeSource(t, cfg, "whitelist.json", "[]")

	runner := New(cfg)
	fixed := time.Date(2025, 6, 1, 12, 30, 0, 0, time.Local)
	runner.now = func() time.Time { return fixed }

	sum, err := runner.Run()
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if sum.Copied != 2 {
		t.Errorf("Copied = %d, want 2", sum.Copied)
	}
	if sum.SkippedMissing != 0 || sum.Failed != 0 {
		t.Errorf("SkippedMissing = %d, Failed = %d, want 0/0", sum.SkippedMissing, sum.Failed)
	}

	wantSnap := filepath.Join(cfg.DestinationDir, "2025-06-01_12-30-00")
	if sum.SnapshotDir != wantSnap {
		t.Errorf("SnapshotDir = %q, want %q", sum.SnapshotDir, wantSnap)
	}

	copyPath := filepath.Join(wantSnap, "server_2025-06-01_12-30-00.properties")
	data, err := os.ReadFile(copyPath)
	if err != nil {
		t.Fatalf("expected copy at %s: %v", copyPath, err)
	}
	if string(data) != "motd=hello" {
		t.Errorf("copy content = %q, want %q", data, "motd=hello")
	}
}

func TestRun_MissingListedFileIsSkipped(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties", "missing.json"}, 7)
	writeSource(t, cfg, "server.properties", "motd=hello")

	sum, err := New(cfg).Run()
	if err != nil {
		t.Fatalf("Run() must not fail on a missing listed file: %v", err)
	}

	if sum.Copied != 1 {
		t.Errorf("Copied = %d, want 1", sum.Copied)
	}
	if sum.SkippedMissing != 1 {
		t.Errorf("SkippedMissing = %d, want 1", sum.SkippedMissing)
	}

	var skipped *models.CopyResult
	for i := range sum.Results {
		if sum.Results[i].Status == models.CopyStatusSkippedMissing {
			skipped = &sum.Results[i]
		}
	}
	if skipped == nil {
		t.Fatal("expected a skipped_missing result")
	}
	if !strings.HasSuffix(skipped.Source, "missing.json") {
		t.Errorf("skipped result names %q, want the missing file", skipped.Source)
	}
}

func TestRun_MissingSourceRootFails(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties"}, 7)
	if err := os.RemoveAll(cfg.SourceDir); err != nil {
		t.Fatal(err)
	}

	if _, err := New(cfg).Run(); err == nil {
		t.Error("expected error for missing source root, got nil")
	}
}

func TestRun_MissingDestinationRootFails(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties"}, 7)
	writeSource(t, cfg, "server.properties", "x")
	if err := os.RemoveAll(cfg.DestinationDir); err != nil {
		t.Fatal(err)
	}

	if _, err := New(cfg).Run(); err == nil {
		t.Error("expected error for missing destination root, got nil")
	}
}

func TestRun_PrunesOnlyExpiredMatchingCopies(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties"}, 7)
	writeSource(t, cfg, "server.properties", "motd=hello")

	now := time.Now()
	oldCopy := plantCopy(t, cfg, "server.properties", now.AddDate(0, 0, -10))
	freshCopy := plantCopy(t, cfg, "server.properties", now.AddDate(0, 0, -2))

	// An unrelated file sharing the prefix must survive even though it is
	// old: its name does not parse as <stem>_<timestamp><ext>.
	unrelated := filepath.Join(filepath.Dir(oldCopy), "server_old.properties")
	if err := os.WriteFile(unrelated, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := New(cfg).Run()
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if sum.PrunedFiles != 1 {
		t.Errorf("PrunedFiles = %d, want 1", sum.PrunedFiles)
	}
	if _, err := os.Stat(oldCopy); !os.IsNotExist(err) {
		t.Error("expired copy should have been pruned")
	}
	if _, err := os.Stat(freshCopy); err != nil {
		t.Errorf("copy inside the retention window was pruned: %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("unrelated file sharing a prefix was pruned: %v", err)
	}
}

func TestRun_PruneRemovesEmptySnapshotDirs(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties"}, 7)
	writeSource(t, cfg, "server.properties", "motd=hello")

	oldCopy := plantCopy(t, cfg, "server.properties", time.Now().AddDate(0, 0, -30))
	oldDir := filepath.Dir(oldCopy)

	sum, err := New(cfg).Run()
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if sum.PrunedDirs != 1 {
		t.Errorf("PrunedDirs = %d, want 1", sum.PrunedDirs)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("emptied snapshot directory should have been removed")
	}
	if _, err := os.Stat(cfg.DestinationDir); err != nil {
		t.Errorf("destination root must never be removed: %v", err)
	}
}

func TestRun_FailedPruneNotCounted(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	cfg := testConfig(t, []string{"server.properties"}, 7)
	writeSource(t, cfg, "server.properties", "motd=hello")

	oldCopy := plantCopy(t, cfg, "server.properties", time.Now().AddDate(0, 0, -30))
	oldDir := filepath.Dir(oldCopy)

	// Read-only snapshot directory: the expired copy is found but cannot
	// be removed.
	if err := os.Chmod(oldDir, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(oldDir, 0o755) })

	sum, err := New(cfg).Run()
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if sum.PrunedFiles != 0 {
		t.Errorf("PrunedFiles = %d, want 0", sum.PrunedFiles)
	}
	if sum.PrunedBytes != 0 {
		t.Errorf("PrunedBytes = %d, want 0 when no copy was removed", sum.PrunedBytes)
	}
	if _, err := os.Stat(oldCopy); err != nil {
		t.Errorf("copy must survive a failed removal: %v", err)
	}
}

func TestRun_ConcurrentCallersSerialized(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties"}, 7)
	writeSource(t, cfg, "server.properties", "motd=hello")

	runner := New(cfg)

	// Run calls now several times per cycle; if two runs ever overlap,
	// their slowed-down clock reads interleave.
	var active, overlapped int32
	runner.now = func() time.Time {
		if atomic.AddInt32(&active, 1) != 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return time.Now()
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := runner.Run(); err != nil {
				t.Errorf("Run() returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&overlapped) != 0 {
		t.Error("backup runs overlapped; scheduled and change-triggered runs must be serialized")
	}
}

func TestMatchCopy_ExactStemBoundary(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties", "Dockerfile"}, 7)
	r := New(cfg)

	stamp := "2025-06-01_12-30-00"
	cases := []struct {
		base string
		want bool
	}{
		{"server_" + stamp + ".properties", true},
		{"Dockerfile_" + stamp, true},
		{"server_old.properties", false},
		{"server_" + stamp + ".json", false},
		{"backup_server_" + stamp + ".properties", false},
		{"server_2025-13-99_99-99-99.properties", false},
		{"server.properties", false},
	}

	for _, tc := range cases {
		if _, got := r.matchCopy(tc.base); got != tc.want {
			t.Errorf("matchCopy(%q) = %v, want %v", tc.base, got, tc.want)
		}
	}
}

func TestCopyFile_PreservesModTime(t *testing.T) {
	cfg := testConfig(t, []string{"server.properties"}, 7)
	writeSource(t, cfg, "server.properties", "motd=hello")

	src := filepath.Join(cfg.SourceDir, "server.properties")
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(src, past, past); err != nil {
		t.Fatal(err)
	}

	sum, err := New(cfg).Run()
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	info, err := os.Stat(sum.Results[0].Target)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Truncate(time.Second).Equal(past) {
		t.Errorf("copy mtime = %v, want source mtime %v", info.ModTime(), past)
	}
}
