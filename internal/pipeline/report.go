package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phenoscribe/phenoscribe/internal/assemble"
	"github.com/phenoscribe/phenoscribe/internal/config"
	"github.com/phenoscribe/phenoscribe/internal/session"
)

var (
	reportHeaderSep  = strings.Repeat("=", 80)
	reportSectionSep = strings.Repeat("─", 80)
)

// writeReport renders the session's processing report to
// outputDir/processing_report.txt.
func (r *Runner) writeReport(runID string, sess session.Session, asm *assemble.Assembly, elapsed time.Duration, outputDir string) error {
	meta := asm.Combined.SessionMetadata
	stats := asm.Combined.Statistics
	transcribed := len(asm.Individual)

	var b strings.Builder
	b.WriteString(reportHeaderSep + "\n")
	b.WriteString("TRANSCRIPTION PROCESSING REPORT\n")
	b.WriteString(reportHeaderSep + "\n")
	fmt.Fprintf(&b, "Session: %s\n", sess.Name)
	fmt.Fprintf(&b, "Run ID: %s\n", runID)
	fmt.Fprintf(&b, "Date: %s\n", r.clock().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Model: Whisper %s\n", r.cfg.Transcriber.Model)
	b.WriteString(reportHeaderSep + "\n\n")

	b.WriteString("FILES PROCESSED\n")
	b.WriteString(reportSectionSep + "\n")
	fmt.Fprintf(&b, "Total audio files found:        %d\n", meta.TotalRecordings)
	fmt.Fprintf(&b, "With JSON timestamps:           %d\n", meta.TotalWithTimestamps)
	fmt.Fprintf(&b, "Orphaned (no JSON):             %d\n", meta.TotalOrphaned)
	fmt.Fprintf(&b, "Successfully transcribed:       %d\n", transcribed)
	fmt.Fprintf(&b, "Failed transcriptions:          %d\n", meta.TotalRecordings-transcribed)
	if meta.TotalRecordings > 0 {
		fmt.Fprintf(&b, "Success rate:                   %.1f%%\n", 100*float64(transcribed)/float64(meta.TotalRecordings))
	}
	b.WriteString("\n")

	b.WriteString("TIMING\n")
	b.WriteString(reportSectionSep + "\n")
	fmt.Fprintf(&b, "Total processing time:          %dm %ds\n",
		int(elapsed.Minutes()), int(elapsed.Seconds())%60)
	if transcribed > 0 {
		fmt.Fprintf(&b, "Average per file:               %.1fs\n", elapsed.Seconds()/float64(transcribed))
	}
	if stats.TotalAudioDurationSec > 0 && elapsed.Seconds() > 0 {
		fmt.Fprintf(&b, "Audio duration / processing:    %.2fx (realtime)\n", stats.TotalAudioDurationSec/elapsed.Seconds())
	}
	b.WriteString("\n")

	b.WriteString("CONTENT STATISTICS\n")
	b.WriteString(reportSectionSep + "\n")
	fmt.Fprintf(&b, "Total audio duration:           %.1f seconds\n", stats.TotalAudioDurationSec)
	fmt.Fprintf(&b, "Total words transcribed:        %d\n", stats.TotalWords)
	fmt.Fprintf(&b, "Total characters:               %d\n", stats.TotalCharacters)
	fmt.Fprintf(&b, "Average words per annotation:   %d\n", stats.AverageWordsPerAnnotation)
	b.WriteString("\n")

	if stats.VideoCoverage.FirstTimestampSec != nil {
		b.WriteString("VIDEO COVERAGE\n")
		b.WriteString(reportSectionSep + "\n")
		fmt.Fprintf(&b, "First annotation timestamp:     %s\n",
			assemble.FormatTimestamp(*stats.VideoCoverage.FirstTimestampSec, r.cfg.Output.IncludeMilliseconds))
		fmt.Fprintf(&b, "Last annotation timestamp:      %s\n",
			assemble.FormatTimestamp(*stats.VideoCoverage.LastTimestampSec, r.cfg.Output.IncludeMilliseconds))
		fmt.Fprintf(&b, "Total video span covered:       %s (%.1f seconds)\n",
			stats.VideoCoverage.SpanFormatted, stats.VideoCoverage.SpanSec)
		b.WriteString("\n")
	}

	if stats.Quality != nil {
		b.WriteString("QUALITY\n")
		b.WriteString(reportSectionSep + "\n")
		fmt.Fprintf(&b, "Segments analyzed:              %d\n", stats.Quality.TotalSegments)
		fmt.Fprintf(&b, "Hallucination-flagged:          %d segments / %d recordings\n",
			stats.Quality.SegmentFlagCounts["hallucination_detected"],
			stats.Quality.RecordingFlagCounts["hallucination_detected"])
		fmt.Fprintf(&b, "Silence-flagged:                %d segments / %d recordings\n",
			stats.Quality.SegmentFlagCounts["silence_detected"],
			stats.Quality.RecordingFlagCounts["silence_detected"])
		fmt.Fprintf(&b, "Low-confidence:                 %d segments / %d recordings\n",
			stats.Quality.SegmentFlagCounts["low_confidence"],
			stats.Quality.RecordingFlagCounts["low_confidence"])
		fmt.Fprintf(&b, "Thresholds:                     compression %.2f, no-speech %.2f, logprob %.2f\n",
			stats.Quality.Thresholds.CompressionRatio,
			stats.Quality.Thresholds.NoSpeech,
			stats.Quality.Thresholds.AvgLogProb)
		b.WriteString("\n")
	}

	b.WriteString("OUTPUT FILES CREATED\n")
	b.WriteString(reportSectionSep + "\n")
	if r.cfg.Output.IndividualTranscripts {
		fmt.Fprintf(&b, "%d individual transcript files (transcripts/)\n", transcribed)
	}
	if r.cfg.Output.CombinedText {
		b.WriteString("combined_transcript.txt\n")
	}
	if r.cfg.Output.CombinedJSON {
		b.WriteString("combined_transcript.json\n")
	}
	b.WriteString("processing_report.txt\n\n")

	fmt.Fprintf(&b, "Pipeline Version: %s\n\n", config.PipelineVersion)
	b.WriteString(reportHeaderSep + "\n")
	b.WriteString("END OF REPORT\n")
	b.WriteString(reportHeaderSep + "\n")

	path := filepath.Join(outputDir, "processing_report.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write processing report: %w", err)
	}
	return nil
}
