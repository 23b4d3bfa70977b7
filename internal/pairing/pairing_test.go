package pairing

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// ctimeFromMap returns a fake creation-time lookup keyed by base name.
func ctimeFromMap(times map[string]time.Time) CreationTimeFunc {
	return func(path string) time.Time {
		return times[filepath.Base(path)]
	}
}

func defaultResolver(times map[string]time.Time) *Resolver {
	return NewResolver([]string{".wav"}, []string{".DS_Store", "Thumbs.db", "desktop.ini"}, ctimeFromMap(times), newLogger())
}

func TestResolvePartitionsAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "late.wav", "")
	writeFile(t, dir, "late.json", `{"video_timestamp_sec": 120.5}`)
	writeFile(t, dir, "early.wav", "")
	writeFile(t, dir, "early.json", `{"video_timestamp_sec": 5.0}`)
	writeFile(t, dir, "lost.wav", "")
	writeFile(t, dir, "older.wav", "")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resolver := defaultResolver(map[string]time.Time{
		"lost.wav":  base.Add(time.Hour),
		"older.wav": base,
	})

	paired, orphans, err := resolver.Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(paired) != 2 || len(orphans) != 2 {
		t.Fatalf("got %d paired, %d orphans, want 2 and 2", len(paired), len(orphans))
	}
	if paired[0].ID != "early" || paired[1].ID != "late" {
		t.Fatalf("paired order = %v, %v", paired[0].ID, paired[1].ID)
	}
	if paired[0].VideoTimestampSec != 5.0 {
		t.Fatalf("timestamp = %v, want 5.0", paired[0].VideoTimestampSec)
	}
	if orphans[0].ID != "older" || orphans[1].ID != "lost" {
		t.Fatalf("orphan order = %v, %v", orphans[0].ID, orphans[1].ID)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wav", "")
	writeFile(t, dir, "a.json", `{"video_timestamp_sec": 10}`)
	writeFile(t, dir, "b.wav", "")
	writeFile(t, dir, "b.json", `{"video_timestamp_sec": 10}`)
	writeFile(t, dir, "c.wav", "")

	resolver := defaultResolver(map[string]time.Time{})
	paired1, orphans1, err := resolver.Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	paired2, orphans2, err := resolver.Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(paired1, paired2) || !reflect.DeepEqual(orphans1, orphans2) {
		t.Fatal("repeated resolution produced different partitions")
	}
	// Equal timestamps keep directory (name) order.
	if paired1[0].ID != "a" || paired1[1].ID != "b" {
		t.Fatalf("tie-break order = %v, %v", paired1[0].ID, paired1[1].ID)
	}
}

func TestResolveMetadataFailuresBecomeOrphans(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.wav", "")
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "keyless.wav", "")
	writeFile(t, dir, "keyless.json", `{"other_key": 1}`)
	writeFile(t, dir, "textual.wav", "")
	writeFile(t, dir, "textual.json", `{"video_timestamp_sec": "twelve"}`)

	resolver := defaultResolver(map[string]time.Time{})
	paired, orphans, err := resolver.Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(paired) != 0 {
		t.Fatalf("expected no paired records, got %d", len(paired))
	}
	if len(orphans) != 3 {
		t.Fatalf("expected 3 orphans, got %d", len(orphans))
	}
}

func TestResolveIgnoreListIsExact(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".DS_Store", "")
	writeFile(t, dir, "temp_audio.wav", "")

	resolver := defaultResolver(map[string]time.Time{})
	paired, orphans, err := resolver.Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(paired) != 0 || len(orphans) != 1 {
		t.Fatalf("got %d paired, %d orphans, want 0 and 1", len(paired), len(orphans))
	}
	if orphans[0].ID != "temp_audio" {
		t.Fatalf("orphan = %v, want temp_audio", orphans[0].ID)
	}
}

func TestResolveExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shout.WAV", "")

	resolver := defaultResolver(map[string]time.Time{})
	_, orphans, err := resolver.Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != "shout" {
		t.Fatalf("expected shout orphan, got %v", orphans)
	}
}

func TestResolveDuplicateIdentifierKeepsFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "take.aif", "")
	writeFile(t, dir, "take.wav", "")

	resolver := NewResolver([]string{".wav", ".aif"}, nil, ctimeFromMap(nil), newLogger())
	_, orphans, err := resolver.Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan after collision, got %d", len(orphans))
	}
	if filepath.Ext(orphans[0].SourcePath) != ".aif" {
		t.Fatalf("expected first entry in directory order kept, got %s", orphans[0].SourcePath)
	}
}

func TestResolveMissingDirectoryFails(t *testing.T) {
	resolver := defaultResolver(map[string]time.Time{})
	if _, _, err := resolver.Resolve(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestResolveFileAsDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plain.txt", "")
	resolver := defaultResolver(map[string]time.Time{})
	if _, _, err := resolver.Resolve(filepath.Join(dir, "plain.txt")); err == nil {
		t.Fatal("expected error for non-directory path")
	}
}

func TestSortPairedUnresolvedSortsLast(t *testing.T) {
	records := []PairedRecord{
		{AudioRecord: AudioRecord{ID: "inf"}, VideoTimestampSec: math.Inf(1)},
		{AudioRecord: AudioRecord{ID: "nan"}, VideoTimestampSec: math.NaN()},
		{AudioRecord: AudioRecord{ID: "five"}, VideoTimestampSec: 5},
		{AudioRecord: AudioRecord{ID: "zero"}, VideoTimestampSec: 0},
	}
	SortPaired(records)
	if records[0].ID != "zero" || records[1].ID != "five" {
		t.Fatalf("numeric records out of order: %v, %v", records[0].ID, records[1].ID)
	}
	for _, rec := range records[2:] {
		if rec.ID != "inf" && rec.ID != "nan" {
			t.Fatalf("unresolved record %v sorted before the end", rec.ID)
		}
	}
}
