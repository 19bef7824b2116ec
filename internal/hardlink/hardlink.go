package hardlink

import (
	"syscall"
	"time"
)

// FileStat holds the link-relevant fields of a single stat call.
type FileStat struct {
	SizeBytes int64
	Nlink     uint64
	Inode     uint64
	DeviceID  uint64
	ModTime   time.Time
}

// Stat returns the FileStat for the given path. Lstat is used so a
// symlink is inspected itself rather than its target.
func Stat(path string) (FileStat, error) {
	var st syscall.Stat_t
	if err := syscall.Lstat(path, &st); err != nil {
		return FileStat{}, err
	}
	return FileStat{
		SizeBytes: st.Size,
		Nlink:     uint64(st.Nlink),
		Inode:     st.Ino,
		DeviceID:  uint64(st.Dev),
		ModTime:   time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
	}, nil
}

// IsHardlinked reports whether the file has more than one directory entry.
func (fs FileStat) IsHardlinked() bool {
	return fs.Nlink > 1
}
