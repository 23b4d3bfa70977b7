package assemble

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	headerSeparator  = strings.Repeat("=", 80)
	sectionSeparator = strings.Repeat("─", 80)
)

// formatRawSeconds renders a timestamp's raw seconds value. Whole numbers
// keep a trailing .0 so 5 reads as 5.0, matching the stored metadata.
func formatRawSeconds(seconds float64) string {
	s := strconv.FormatFloat(seconds, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (a *Assembler) renderPairedText(doc RecordingDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[VIDEO TIMESTAMP: %s]\n", doc.VideoTimestampFormatted)
	a.writeWarningLine(&b, doc)
	b.WriteString("\n")
	b.WriteString(doc.Transcription)
	b.WriteString("\n")
	return b.String()
}

func (a *Assembler) renderOrphanText(doc RecordingDocument) string {
	var b strings.Builder
	b.WriteString("[ORPHANED - NO VIDEO TIMESTAMP]\n")
	fmt.Fprintf(&b, "[File created: %s]\n", doc.FileCreated)
	a.writeWarningLine(&b, doc)
	b.WriteString("\n")
	b.WriteString("This recording has no matching JSON timestamp file.\n\n")
	b.WriteString(doc.Transcription)
	b.WriteString("\n")
	return b.String()
}

// writeWarningLine emits the single quality warning line, flags in
// lexicographic order, only when checks are on and a flag fired.
func (a *Assembler) writeWarningLine(b *strings.Builder, doc RecordingDocument) {
	if !a.opts.QualityChecks || doc.QualityFlags.Empty() {
		return
	}
	fmt.Fprintf(b, "[QUALITY WARNINGS: %s]\n", strings.Join(doc.QualityFlags.Names(), ", "))
}

func (a *Assembler) renderCombinedText(annotations []Annotation, orphans []OrphanedRecording, totalRecordings int) string {
	var b strings.Builder

	b.WriteString(headerSeparator + "\n")
	b.WriteString("MICRO-PHENOMENOLOGICAL INTERVIEW TRANSCRIPT\n")
	b.WriteString(headerSeparator + "\n")
	fmt.Fprintf(&b, "Session: %s\n", a.opts.SessionID)
	if a.opts.VideoPath != "" {
		fmt.Fprintf(&b, "Video File: %s\n", filepath.Base(a.opts.VideoPath))
	}
	fmt.Fprintf(&b, "Total Recordings: %d\n", totalRecordings)
	fmt.Fprintf(&b, "Transcription Model: Whisper %s\n", a.opts.Model)
	fmt.Fprintf(&b, "Processing Date: %s\n", a.clock().Format("2006-01-02 15:04:05"))
	b.WriteString(headerSeparator + "\n\n\n")

	for _, ann := range annotations {
		b.WriteString(sectionSeparator + "\n")
		fmt.Fprintf(&b, "ANNOTATION #%d\n", ann.ID)
		fmt.Fprintf(&b, "VIDEO TIMESTAMP: %s (%s seconds)\n",
			ann.VideoTimestampFormatted,
			formatRawSeconds(*ann.VideoTimestampSec))
		fmt.Fprintf(&b, "AUDIO FILE: %s\n", ann.AudioFile)
		fmt.Fprintf(&b, "DURATION: %.1f seconds\n", ann.AudioDurationSec)
		if a.opts.QualityChecks && !ann.QualityFlags.Empty() {
			fmt.Fprintf(&b, "QUALITY WARNINGS: %s\n", strings.Join(ann.QualityFlags.Names(), ", "))
		}
		b.WriteString(sectionSeparator + "\n\n")
		b.WriteString(ann.Transcription)
		b.WriteString("\n\n\n")
	}

	if len(orphans) > 0 {
		b.WriteString(sectionSeparator + "\n")
		b.WriteString("ORPHANED RECORDINGS (No Video Timestamp)\n")
		b.WriteString(sectionSeparator + "\n\n")
		for _, orphan := range orphans {
			fmt.Fprintf(&b, "File: %s\n", orphan.AudioFile)
			fmt.Fprintf(&b, "Created: %s\n", orphan.FileCreated)
			fmt.Fprintf(&b, "Duration: %.1f seconds\n\n", orphan.AudioDurationSec)
			b.WriteString(orphan.Transcription)
			b.WriteString("\n\n")
		}
	}

	// Footer totals cover only paired recordings with results.
	var totalDuration float64
	var totalWords int
	for _, ann := range annotations {
		totalDuration += ann.AudioDurationSec
		totalWords += ann.WordCount
	}
	b.WriteString(headerSeparator + "\n")
	b.WriteString("END OF TRANSCRIPT\n")
	fmt.Fprintf(&b, "Total Audio Duration: %.1f seconds\n", totalDuration)
	fmt.Fprintf(&b, "Total Word Count: %d words\n", totalWords)
	b.WriteString(headerSeparator + "\n")
	return b.String()
}
