package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/voclinx/nastools/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	rule     = strings.Repeat("=", 80)
	thinRule = strings.Repeat("-", 80)
)

// Write renders the full text report for res and writes it to path,
// replacing any previous report. Parent directories are created as
// needed.
func Write(path string, res *models.ScanResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	if err := Render(f, res); err != nil {
		f.Close()
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// Render writes the report body: a banner, the summary block, then one
// numbered entry per detail record.
func Render(w io.Writer, res *models.ScanResult) error {
	bw := bufio.NewWriter(w)
	sum := res.Summary

	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw, "HARDLINK AUDIT REPORT")
	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "SUMMARY")
	fmt.Fprintln(bw, thinRule)
	fmt.Fprintf(bw, "Scan Path:                %s\n", sum.ScanPath)
	fmt.Fprintf(bw, "Scan ID:                  %s\n", sum.ScanID)
	fmt.Fprintf(bw, "Started:                  %s\n", sum.StartedAt.Format(timeLayout))
	fmt.Fprintf(bw, "Completed:                %s\n", sum.CompletedAt.Format(timeLayout))
	fmt.Fprintf(bw, "Total Files Scanned:      %d\n", sum.TotalFiles)
	fmt.Fprintf(bw, "Hardlinked Files:         %d\n", sum.HardlinkedCount)
	fmt.Fprintf(bw, "Non-Hardlinked Files:     %d\n", sum.NonHardlinkedCount)
	fmt.Fprintf(bw, "Errors Encountered:       %d\n", sum.Errors)
	fmt.Fprintf(bw, "Total Size:               %s (%d bytes)\n", humanize.Bytes(uint64(sum.TotalSizeBytes)), sum.TotalSizeBytes)
	fmt.Fprintf(bw, "Non-Hardlinked Size:      %s (%d bytes)\n", humanize.Bytes(uint64(sum.NonHardlinkedSizeBytes)), sum.NonHardlinkedSizeBytes)
	fmt.Fprintf(bw, "Not Hardlinked:           %.2f%%\n", sum.PercentNonHardlinked())
	fmt.Fprintln(bw)

	if len(res.NonHardlinked) > 0 {
		writeDetailSection(bw, "NON-HARDLINKED FILES", res.NonHardlinked)
	} else {
		fmt.Fprintln(bw, rule)
		fmt.Fprintln(bw, "All files are hardlinked.")
		fmt.Fprintln(bw, rule)
	}

	if len(res.Hardlinked) > 0 {
		writeDetailSection(bw, "HARDLINKED FILES", res.Hardlinked)
	}

	return bw.Flush()
}

func writeDetailSection(w io.Writer, title string, records []models.FileRecord) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	for i, rec := range records {
		fmt.Fprintf(w, "[%d] %s\n", i+1, rec.Path)
		fmt.Fprintf(w, "    Size:        %s (%d bytes)\n", humanize.Bytes(uint64(rec.SizeBytes)), rec.SizeBytes)
		fmt.Fprintf(w, "    Link Count:  %d\n", rec.LinkCount)
		fmt.Fprintf(w, "    Inode:       %d\n", rec.Inode)
		fmt.Fprintf(w, "    Modified:    %s\n", rec.ModTime.Format(timeLayout))
		fmt.Fprintln(w)
	}
}

// PrintConsole writes the final summary block to w. It works purely from
// the in-memory result, so it is printed even when the report file could
// not be written. reportPath is included when non-empty.
func PrintConsole(w io.Writer, res *models.ScanResult, reportPath string) {
	sum := res.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SCAN COMPLETE")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total files scanned:      %d\n", sum.TotalFiles)
	fmt.Fprintf(w, "Hardlinked files:         %d\n", sum.HardlinkedCount)
	fmt.Fprintf(w, "Non-hardlinked files:     %d\n", sum.NonHardlinkedCount)
	fmt.Fprintf(w, "Errors encountered:       %d\n", sum.Errors)
	fmt.Fprintf(w, "Non-hardlinked size:      %s (%d bytes)\n", humanize.Bytes(uint64(sum.NonHardlinkedSizeBytes)), sum.NonHardlinkedSizeBytes)
	if reportPath != "" {
		fmt.Fprintf(w, "Report saved to:          %s\n", reportPath)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
