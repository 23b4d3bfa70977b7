package assemble

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phenoscribe/phenoscribe/internal/media"
	"github.com/phenoscribe/phenoscribe/internal/pairing"
	"github.com/phenoscribe/phenoscribe/internal/quality"
	"github.com/phenoscribe/phenoscribe/internal/transcribe"
)

const orphanNote = "No matching JSON timestamp file found"

// Options configures one session's assembly.
type Options struct {
	SessionID           string
	VideoPath           string // empty when the session has no reference video
	Model               string // whisper model name, e.g. "small.en"
	PipelineVersion     string
	QualityChecks       bool
	IncludeMilliseconds bool
}

// Assembler folds per-recording transcription results into individual and
// combined transcripts plus session statistics.
type Assembler struct {
	analyzer *quality.Analyzer
	prober   media.Prober
	opts     Options
	log      *slog.Logger
	clock    func() time.Time
}

func New(analyzer *quality.Analyzer, prober media.Prober, opts Options, log *slog.Logger) *Assembler {
	return &Assembler{
		analyzer: analyzer,
		prober:   prober,
		opts:     opts,
		log:      log.With(slog.String("component", "assemble")),
		clock:    time.Now,
	}
}

// Assemble builds the session's outputs. A record's document comes from
// its transcription result, or from restored when an earlier run already
// produced it. Records with neither are skipped silently; they failed or
// were skipped upstream.
func (a *Assembler) Assemble(paired []pairing.PairedRecord, orphans []pairing.OrphanRecord, results map[pairing.RecordingID]*transcribe.Result, restored map[pairing.RecordingID]RecordingDocument) *Assembly {
	asm := &Assembly{}
	var annotations []Annotation
	var orphanDocs []OrphanedRecording

	for _, rec := range paired {
		doc, ok := a.resolveDocument(rec.AudioRecord, results, restored)
		if !ok {
			continue
		}
		ts := rec.VideoTimestampSec
		doc.HasVideoTimestamp = true
		doc.VideoTimestampSec = &ts
		doc.VideoTimestampFormatted = FormatTimestamp(ts, a.opts.IncludeMilliseconds)

		asm.Individual = append(asm.Individual, IndividualOutput{
			ID:       rec.ID,
			Text:     a.renderPairedText(doc),
			Document: doc,
		})
		annotations = append(annotations, Annotation{ID: len(annotations) + 1, RecordingDocument: doc})
	}

	for _, rec := range orphans {
		doc, ok := a.resolveDocument(rec.AudioRecord, results, restored)
		if !ok {
			continue
		}
		doc.FileCreated = media.FormatCreationTime(rec.CreatedAt)
		doc.Note = orphanNote

		asm.Individual = append(asm.Individual, IndividualOutput{
			ID:       rec.ID,
			Text:     a.renderOrphanText(doc),
			Document: doc,
		})
		orphanDocs = append(orphanDocs, OrphanedRecording{
			ID:                fmt.Sprintf("orphan_%d", len(orphanDocs)+1),
			RecordingDocument: doc,
		})
	}

	totalRecordings := len(paired) + len(orphans)
	asm.Combined = CombinedDocument{
		SessionMetadata:    a.sessionMetadata(totalRecordings, len(annotations), len(orphanDocs)),
		Annotations:        annotations,
		OrphanedRecordings: orphanDocs,
		Statistics:         a.statistics(annotations),
	}
	asm.CombinedText = a.renderCombinedText(annotations, orphanDocs, totalRecordings)
	return asm
}

// resolveDocument prefers a fresh transcription result over a document
// restored from a previous run's persisted output.
func (a *Assembler) resolveDocument(rec pairing.AudioRecord, results map[pairing.RecordingID]*transcribe.Result, restored map[pairing.RecordingID]RecordingDocument) (RecordingDocument, bool) {
	if result, ok := results[rec.ID]; ok {
		return a.recordingDocument(rec, result), true
	}
	if doc, ok := restored[rec.ID]; ok {
		return doc, true
	}
	return RecordingDocument{}, false
}

func (a *Assembler) recordingDocument(rec pairing.AudioRecord, result *transcribe.Result) RecordingDocument {
	text := strings.TrimSpace(result.Text)
	doc := RecordingDocument{
		AudioFile:        filepath.Base(rec.SourcePath),
		AudioDurationSec: round3(a.prober.DurationSeconds(rec.SourcePath)),
		Language:         result.Language,
		Transcription:    text,
		WordCount:        CountWords(text),
		CharacterCount:   utf8.RuneCountInString(text),
	}
	for _, seg := range result.Segments {
		signals := seg.Signals()
		assessment := a.analyzer.Analyze(signals)
		segDoc := SegmentDocument{
			ID:               seg.ID,
			Start:            round3(seg.Start),
			End:              round3(seg.End),
			Text:             seg.Text,
			Confidence:       round3(assessment.Confidence),
			CompressionRatio: round3(signals.CompressionRatio),
			NoSpeechProb:     round3(signals.NoSpeechProb),
			AvgLogProb:       round3(signals.AvgLogProb),
		}
		if a.opts.QualityChecks {
			segDoc.QualityFlags = assessment.Flags
			doc.QualityFlags = doc.QualityFlags.Union(assessment.Flags)
		}
		doc.Segments = append(doc.Segments, segDoc)
	}
	return doc
}

func (a *Assembler) sessionMetadata(total, withTimestamps, orphaned int) SessionMetadata {
	meta := SessionMetadata{
		SessionID:            a.opts.SessionID,
		ProcessingTimestamp:  a.clock().Format(time.RFC3339),
		TranscriptionModel:   "whisper-" + a.opts.Model,
		TotalRecordings:      total,
		TotalWithTimestamps:  withTimestamps,
		TotalOrphaned:        orphaned,
		PipelineVersion:      a.opts.PipelineVersion,
		QualityChecksEnabled: a.opts.QualityChecks,
	}
	if a.opts.VideoPath != "" {
		name := filepath.Base(a.opts.VideoPath)
		meta.VideoFile = &name
		_, err := os.Stat(a.opts.VideoPath)
		meta.VideoFileExists = err == nil
	}
	return meta
}

func (a *Assembler) statistics(annotations []Annotation) Statistics {
	var totalDuration float64
	var totalWords, totalChars int
	for _, ann := range annotations {
		totalDuration += ann.AudioDurationSec
		totalWords += ann.WordCount
		totalChars += ann.CharacterCount
	}

	stats := Statistics{
		TotalAudioDurationSec:       round1(totalDuration),
		TotalAudioDurationFormatted: FormatTimestamp(totalDuration, false),
		TotalWords:                  totalWords,
		TotalCharacters:             totalChars,
		VideoCoverage:               VideoCoverage{SpanFormatted: "00:00:00"},
	}
	if n := len(annotations); n > 0 {
		stats.AverageAnnotationDurationSec = round1(totalDuration / float64(n))
		stats.AverageWordsPerAnnotation = int(math.Round(float64(totalWords) / float64(n)))
		stats.VideoCoverage.FirstTimestampSec = annotations[0].VideoTimestampSec
		stats.VideoCoverage.LastTimestampSec = annotations[n-1].VideoTimestampSec
	}
	if len(annotations) > 1 {
		span := *annotations[len(annotations)-1].VideoTimestampSec - *annotations[0].VideoTimestampSec
		stats.VideoCoverage.SpanSec = round3(span)
		stats.VideoCoverage.SpanFormatted = FormatTimestamp(span, false)
	}
	if a.opts.QualityChecks {
		stats.Quality = a.qualityStats(annotations)
	}
	return stats
}

func (a *Assembler) qualityStats(annotations []Annotation) *QualityStats {
	segmentCounts := make(map[string]int, 3)
	recordingCounts := make(map[string]int, 3)
	for _, name := range quality.FlagNames() {
		segmentCounts[name] = 0
		recordingCounts[name] = 0
	}

	stats := &QualityStats{
		SegmentFlagCounts:   segmentCounts,
		RecordingFlagCounts: recordingCounts,
	}
	for _, ann := range annotations {
		for _, seg := range ann.Segments {
			stats.TotalSegments++
			for _, name := range seg.QualityFlags.Names() {
				segmentCounts[name]++
			}
		}
		for _, name := range ann.QualityFlags.Names() {
			recordingCounts[name]++
		}
	}
	thresholds := a.analyzer.Thresholds()
	stats.Thresholds = ThresholdSettings{
		CompressionRatio: thresholds.CompressionRatio,
		NoSpeech:         thresholds.NoSpeechProb,
		AvgLogProb:       thresholds.AvgLogProb,
	}
	return stats
}
