package assemble

import (
	"github.com/phenoscribe/phenoscribe/internal/pairing"
	"github.com/phenoscribe/phenoscribe/internal/quality"
)

// SegmentDocument is one transcribed segment with its quality assessment,
// as persisted in structured outputs.
type SegmentDocument struct {
	ID               int             `json:"id"`
	Start            float64         `json:"start"`
	End              float64         `json:"end"`
	Text             string          `json:"text"`
	Confidence       float64         `json:"confidence"`
	CompressionRatio float64         `json:"compression_ratio"`
	NoSpeechProb     float64         `json:"no_speech_prob"`
	AvgLogProb       float64         `json:"avg_logprob"`
	QualityFlags     quality.FlagSet `json:"quality_flags"`
}

// RecordingDocument is the structured output for one recording. Paired
// recordings carry the timestamp fields, orphans the creation fields.
type RecordingDocument struct {
	AudioFile               string            `json:"audio_file"`
	HasVideoTimestamp       bool              `json:"has_video_timestamp"`
	VideoTimestampSec       *float64          `json:"video_timestamp_sec,omitempty"`
	VideoTimestampFormatted string            `json:"video_timestamp_formatted,omitempty"`
	FileCreated             string            `json:"file_created,omitempty"`
	AudioDurationSec        float64           `json:"audio_duration_sec"`
	Language                string            `json:"language,omitempty"`
	Transcription           string            `json:"transcription"`
	WordCount               int               `json:"word_count"`
	CharacterCount          int               `json:"character_count"`
	QualityFlags            quality.FlagSet   `json:"quality_flags"`
	Segments                []SegmentDocument `json:"segments"`
	Note                    string            `json:"note,omitempty"`
}

// Annotation is a paired recording in the combined output, numbered in
// timestamp order starting at 1.
type Annotation struct {
	ID int `json:"id"`
	RecordingDocument
}

// OrphanedRecording is an orphan in the combined output, with a synthetic
// id of the form orphan_N assigned in output order.
type OrphanedRecording struct {
	ID string `json:"id"`
	RecordingDocument
}

// SessionMetadata heads the combined structured output.
type SessionMetadata struct {
	SessionID            string  `json:"session_id"`
	VideoFile            *string `json:"video_file"`
	VideoFileExists      bool    `json:"video_file_exists"`
	ProcessingTimestamp  string  `json:"processing_timestamp"`
	TranscriptionModel   string  `json:"transcription_model"`
	TotalRecordings      int     `json:"total_recordings"`
	TotalWithTimestamps  int     `json:"total_with_timestamps"`
	TotalOrphaned        int     `json:"total_orphaned"`
	PipelineVersion      string  `json:"pipeline_version"`
	QualityChecksEnabled bool    `json:"quality_checks_enabled"`
}

// VideoCoverage spans the annotations' timestamps.
type VideoCoverage struct {
	FirstTimestampSec *float64 `json:"first_timestamp_sec"`
	LastTimestampSec  *float64 `json:"last_timestamp_sec"`
	SpanSec           float64  `json:"span_sec"`
	SpanFormatted     string   `json:"span_formatted"`
}

// ThresholdSettings echoes the quality configuration a session was
// analyzed with.
type ThresholdSettings struct {
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeech         float64 `json:"no_speech"`
	AvgLogProb       float64 `json:"avg_logprob"`
}

// QualityStats aggregates flag hits over a session's annotations.
type QualityStats struct {
	TotalSegments       int               `json:"total_segments"`
	SegmentFlagCounts   map[string]int    `json:"segment_flag_counts"`
	RecordingFlagCounts map[string]int    `json:"recording_flag_counts"`
	Thresholds          ThresholdSettings `json:"thresholds"`
}

// Statistics aggregates over annotations only; orphans are excluded.
type Statistics struct {
	TotalAudioDurationSec        float64       `json:"total_audio_duration_sec"`
	TotalAudioDurationFormatted  string        `json:"total_audio_duration_formatted"`
	TotalWords                   int           `json:"total_words"`
	TotalCharacters              int           `json:"total_characters"`
	AverageAnnotationDurationSec float64       `json:"average_annotation_duration_sec"`
	AverageWordsPerAnnotation    int           `json:"average_words_per_annotation"`
	VideoCoverage                VideoCoverage `json:"video_coverage"`
	Quality                      *QualityStats `json:"quality,omitempty"`
}

// CombinedDocument is the session-level structured output.
type CombinedDocument struct {
	SessionMetadata    SessionMetadata     `json:"session_metadata"`
	Annotations        []Annotation        `json:"annotations"`
	OrphanedRecordings []OrphanedRecording `json:"orphaned_recordings"`
	Statistics         Statistics          `json:"statistics"`
}

// IndividualOutput is one recording's rendered text and structured output.
type IndividualOutput struct {
	ID       pairing.RecordingID
	Text     string
	Document RecordingDocument
}

// Assembly is everything produced for one session, ready to be written.
type Assembly struct {
	Individual   []IndividualOutput
	CombinedText string
	Combined     CombinedDocument
}
