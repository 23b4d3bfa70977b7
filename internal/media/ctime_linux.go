//go:build linux

package media

import (
	"os"
	"syscall"
	"time"
)

// Linux has no portable birth time; the inode change time is the closest
// stat field and matches what the session capture tooling records.
func creationTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
