package quality

import (
	"encoding/json"
	"fmt"
	"math"
)

// Flag marks one quality concern raised for a transcribed segment.
type Flag uint8

const (
	// FlagHallucination fires when the compression ratio suggests repetitive,
	// looping model output.
	FlagHallucination Flag = 1 << iota
	// FlagLowConfidence fires when the average log-probability falls below
	// the configured floor.
	FlagLowConfidence
	// FlagSilence fires when the model considers the audio likely non-speech.
	FlagSilence
)

// String returns the canonical wire name for the flag.
func (f Flag) String() string {
	switch f {
	case FlagHallucination:
		return "hallucination_detected"
	case FlagLowConfidence:
		return "low_confidence"
	case FlagSilence:
		return "silence_detected"
	default:
		return "unknown"
	}
}

// allFlags is ordered so that canonical names come out lexicographically.
var allFlags = []Flag{FlagHallucination, FlagLowConfidence, FlagSilence}

// FlagNames lists every canonical flag name in lexicographic order.
func FlagNames() []string {
	names := make([]string, len(allFlags))
	for i, f := range allFlags {
		names[i] = f.String()
	}
	return names
}

// FlagSet is the union of flags raised for a segment or recording.
type FlagSet uint8

// Has reports whether the set contains f.
func (s FlagSet) Has(f Flag) bool { return s&FlagSet(f) != 0 }

// Empty reports whether no flag is raised.
func (s FlagSet) Empty() bool { return s == 0 }

// Add returns the set with f included.
func (s FlagSet) Add(f Flag) FlagSet { return s | FlagSet(f) }

// Union merges two sets.
func (s FlagSet) Union(other FlagSet) FlagSet { return s | other }

// Names lists the canonical names of raised flags in lexicographic order.
// The slice is never nil so it serializes as [] rather than null.
func (s FlagSet) Names() []string {
	names := make([]string, 0, len(allFlags))
	for _, f := range allFlags {
		if s.Has(f) {
			names = append(names, f.String())
		}
	}
	return names
}

// MarshalJSON renders the set as a sorted array of canonical names.
func (s FlagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON parses an array of canonical names back into a set.
func (s *FlagSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set FlagSet
	for _, name := range names {
		matched := false
		for _, f := range allFlags {
			if f.String() == name {
				set = set.Add(f)
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("unknown quality flag %q", name)
		}
	}
	*s = set
	return nil
}

// Defaults substituted for metrics the transcriber did not report.
const (
	DefaultCompressionRatio = 1.0
	DefaultNoSpeechProb     = 0.0
	DefaultAvgLogProb       = -0.5
)

// SegmentSignals carries the model-reported metrics for one segment.
type SegmentSignals struct {
	CompressionRatio float64
	NoSpeechProb     float64
	AvgLogProb       float64
}

// Thresholds bound the signal values beyond which flags fire. All
// comparisons are strict, so a value exactly at a threshold passes.
type Thresholds struct {
	CompressionRatio float64
	NoSpeechProb     float64
	AvgLogProb       float64
}

// DefaultThresholds returns the tuning used for Whisper-style transcribers.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CompressionRatio: 2.4,
		NoSpeechProb:     0.6,
		AvgLogProb:       -1.0,
	}
}

// Assessment is the analyzer verdict for one segment.
type Assessment struct {
	Confidence float64
	Flags      FlagSet
}

// Analyzer derives per-segment quality assessments from model metrics.
type Analyzer struct {
	thresholds Thresholds
}

// NewAnalyzer builds an analyzer with the given thresholds.
func NewAnalyzer(t Thresholds) *Analyzer {
	return &Analyzer{thresholds: t}
}

// Thresholds returns the analyzer's active thresholds.
func (a *Analyzer) Thresholds() Thresholds {
	return a.thresholds
}

// Analyze evaluates one segment's signals. Each check is independent, so a
// segment can raise any combination of flags.
func (a *Analyzer) Analyze(sig SegmentSignals) Assessment {
	var flags FlagSet
	if sig.CompressionRatio > a.thresholds.CompressionRatio {
		flags = flags.Add(FlagHallucination)
	}
	if sig.NoSpeechProb > a.thresholds.NoSpeechProb {
		flags = flags.Add(FlagSilence)
	}
	if sig.AvgLogProb < a.thresholds.AvgLogProb {
		flags = flags.Add(FlagLowConfidence)
	}
	return Assessment{Confidence: Confidence(sig.AvgLogProb), Flags: flags}
}

// Confidence maps an average log-probability onto [0, 1]. Values at or
// below -10 collapse to zero rather than producing a denormal exponent.
func Confidence(avgLogProb float64) float64 {
	if avgLogProb <= -10 {
		return 0
	}
	c := math.Exp(avgLogProb)
	if c > 1 {
		return 1
	}
	return c
}
