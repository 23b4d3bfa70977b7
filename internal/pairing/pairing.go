package pairing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RecordingID is the stable key for one recording: the audio file's base
// name without its extension. Unique within a session directory.
type RecordingID string

// AudioRecord is one discovered recording. Immutable after discovery.
type AudioRecord struct {
	ID         RecordingID
	SourcePath string
	CreatedAt  time.Time
}

// PairedRecord is an audio recording with a resolved video timestamp.
type PairedRecord struct {
	AudioRecord
	VideoTimestampSec float64
}

// OrphanRecord is an audio recording without a usable timestamp.
type OrphanRecord struct {
	AudioRecord
}

// CreationTimeFunc reports when a file was created. Injected so tests can
// pin orphan ordering without touching real inode timestamps.
type CreationTimeFunc func(path string) time.Time

// Resolver matches audio recordings to their timestamp metadata files
// within one session directory.
type Resolver struct {
	extensions map[string]struct{}
	ignored    map[string]struct{}
	ctime      CreationTimeFunc
	log        *slog.Logger
}

// NewResolver builds a resolver. Extensions are matched case-insensitively;
// ignored names are matched by exact file name only, never by substring.
func NewResolver(extensions, ignored []string, ctime CreationTimeFunc, log *slog.Logger) *Resolver {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}
	ignoreSet := make(map[string]struct{}, len(ignored))
	for _, name := range ignored {
		ignoreSet[name] = struct{}{}
	}
	return &Resolver{
		extensions: extSet,
		ignored:    ignoreSet,
		ctime:      ctime,
		log:        log.With(slog.String("component", "pairing")),
	}
}

// Resolve partitions the session's audio files into paired and orphan
// records. Missing or malformed metadata never fails the call: the affected
// recording is downgraded to an orphan with a warning. The only errors are
// a missing session directory or a path that is not a directory.
func (r *Resolver) Resolve(sessionDir string) ([]PairedRecord, []OrphanRecord, error) {
	info, err := os.Stat(sessionDir)
	if err != nil {
		return nil, nil, fmt.Errorf("session directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("session path is not a directory: %s", sessionDir)
	}

	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read session directory: %w", err)
	}

	var paired []PairedRecord
	var orphans []OrphanRecord
	seen := make(map[RecordingID]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, skip := r.ignored[name]; skip {
			continue
		}
		ext := filepath.Ext(name)
		if _, ok := r.extensions[strings.ToLower(ext)]; !ok {
			continue
		}
		id := RecordingID(strings.TrimSuffix(name, ext))
		if kept, dup := seen[id]; dup {
			r.log.Warn("duplicate recording identifier, skipping file",
				slog.String("file", name),
				slog.String("kept", kept))
			continue
		}
		seen[id] = name

		path := filepath.Join(sessionDir, name)
		record := AudioRecord{ID: id, SourcePath: path, CreatedAt: r.ctime(path)}

		timestamp, ok := r.readTimestamp(filepath.Join(sessionDir, string(id)+".json"))
		if ok {
			paired = append(paired, PairedRecord{AudioRecord: record, VideoTimestampSec: timestamp})
		} else {
			orphans = append(orphans, OrphanRecord{AudioRecord: record})
		}
	}

	SortPaired(paired)
	SortOrphans(orphans)
	return paired, orphans, nil
}

// readTimestamp reads the companion metadata file. The bool result is false
// when the file is absent, malformed, or lacks a numeric
// video_timestamp_sec; only the latter two warrant a warning.
func (r *Resolver) readTimestamp(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("metadata file unreadable, treating recording as orphaned",
				slog.String("file", path),
				slog.String("error", err.Error()))
		}
		return 0, false
	}
	var meta struct {
		VideoTimestampSec *float64 `json:"video_timestamp_sec"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		r.log.Warn("metadata file malformed, treating recording as orphaned",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return 0, false
	}
	if meta.VideoTimestampSec == nil {
		r.log.Warn("metadata file has no numeric video_timestamp_sec, treating recording as orphaned",
			slog.String("file", path))
		return 0, false
	}
	return *meta.VideoTimestampSec, true
}

// SortPaired orders records ascending by video timestamp. NaN timestamps
// sort last, same as +Inf, so a hand-built record with an unresolved
// timestamp cannot float to the front.
func SortPaired(records []PairedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return sortKey(records[i].VideoTimestampSec) < sortKey(records[j].VideoTimestampSec)
	})
}

func sortKey(ts float64) float64 {
	if math.IsNaN(ts) {
		return math.Inf(1)
	}
	return ts
}

// SortOrphans orders records ascending by filesystem creation time.
func SortOrphans(records []OrphanRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
