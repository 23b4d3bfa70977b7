//go:build !linux && !darwin

package media

import (
	"os"
	"time"
)

func creationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
