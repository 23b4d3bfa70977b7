package transcribe

import (
	"context"

	"github.com/phenoscribe/phenoscribe/internal/quality"
)

// Result is the model output for one audio file, in the verbose JSON shape
// emitted by Whisper-style transcribers.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Segment is one time-bounded slice of transcribed speech. The confidence
// metrics are pointers so that absent fields can be told apart from zero
// values and defaulted per Signals.
type Segment struct {
	ID               int      `json:"id"`
	Seek             int      `json:"seek"`
	Start            float64  `json:"start"`
	End              float64  `json:"end"`
	Text             string   `json:"text"`
	Temperature      *float64 `json:"temperature,omitempty"`
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`
	NoSpeechProb     *float64 `json:"no_speech_prob,omitempty"`
	AvgLogProb       *float64 `json:"avg_logprob,omitempty"`
}

// Signals returns the segment's quality inputs with defaults substituted
// for metrics the transcriber did not report.
func (s Segment) Signals() quality.SegmentSignals {
	return quality.SegmentSignals{
		CompressionRatio: valueOr(s.CompressionRatio, quality.DefaultCompressionRatio),
		NoSpeechProb:     valueOr(s.NoSpeechProb, quality.DefaultNoSpeechProb),
		AvgLogProb:       valueOr(s.AvgLogProb, quality.DefaultAvgLogProb),
	}
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// Transcriber abstracts speech-to-text backends.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}
