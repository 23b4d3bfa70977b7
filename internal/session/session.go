package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mode says how sessions were laid out under the input directory.
type Mode string

const (
	// ModeSingle means audio files sit directly in the input directory.
	ModeSingle Mode = "single"
	// ModeMultiple means each subdirectory with audio is its own session.
	ModeMultiple Mode = "multiple"
)

// Session is one interview's recordings, processed as a unit.
type Session struct {
	Name      string
	Path      string
	VideoPath string // empty when no reference video was found
}

// videoExtensions is checked in priority order; the first match wins.
var videoExtensions = []string{".mkv", ".mp4", ".avi", ".mov"}

// Discover locates sessions under inputDir. Audio directly in inputDir
// makes it a single session named after the directory; otherwise every
// subdirectory containing audio becomes a session, skipping any name in
// excludeDirs (the pipeline's own output and staging directories).
func Discover(inputDir string, extensions, ignore, excludeDirs []string) (Mode, []Session, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return "", nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("input path is not a directory: %s", inputDir)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return "", nil, fmt.Errorf("read input directory: %w", err)
	}

	if hasAudio(entries, extensions, ignore) {
		return ModeSingle, []Session{{
			Name:      filepath.Base(inputDir),
			Path:      inputDir,
			VideoPath: findVideo(inputDir, entries),
		}}, nil
	}

	excluded := make(map[string]struct{}, len(excludeDirs))
	for _, name := range excludeDirs {
		excluded[name] = struct{}{}
	}

	var sessions []Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, skip := excluded[entry.Name()]; skip {
			continue
		}
		dir := filepath.Join(inputDir, entry.Name())
		sub, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if !hasAudio(sub, extensions, ignore) {
			continue
		}
		sessions = append(sessions, Session{
			Name:      entry.Name(),
			Path:      dir,
			VideoPath: findVideo(dir, sub),
		})
	}
	if len(sessions) == 0 {
		return "", nil, fmt.Errorf("no audio files found in %s or its subdirectories", inputDir)
	}
	return ModeMultiple, sessions, nil
}

func hasAudio(entries []os.DirEntry, extensions, ignore []string) bool {
	ignored := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		ignored[name] = struct{}{}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, skip := ignored[entry.Name()]; skip {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range extensions {
			if ext == strings.ToLower(want) {
				return true
			}
		}
	}
	return false
}

func findVideo(dir string, entries []os.DirEntry) string {
	for _, want := range videoExtensions {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.ToLower(filepath.Ext(entry.Name())) == want {
				return filepath.Join(dir, entry.Name())
			}
		}
	}
	return ""
}
