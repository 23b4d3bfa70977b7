package quality

import (
	"math"
	"testing"
)

func TestAnalyzeThresholdsAreStrict(t *testing.T) {
	analyzer := NewAnalyzer(DefaultThresholds())

	cases := []struct {
		name    string
		signals SegmentSignals
		want    FlagSet
	}{
		{
			name:    "clean segment",
			signals: SegmentSignals{CompressionRatio: 1.2, NoSpeechProb: 0.1, AvgLogProb: -0.3},
			want:    0,
		},
		{
			name:    "compression above threshold",
			signals: SegmentSignals{CompressionRatio: 3.0, NoSpeechProb: 0.1, AvgLogProb: -0.3},
			want:    FlagSet(FlagHallucination),
		},
		{
			name:    "compression exactly at threshold",
			signals: SegmentSignals{CompressionRatio: 2.4, NoSpeechProb: 0.1, AvgLogProb: -0.3},
			want:    0,
		},
		{
			name:    "no-speech above threshold",
			signals: SegmentSignals{CompressionRatio: 1.0, NoSpeechProb: 0.7, AvgLogProb: -0.3},
			want:    FlagSet(FlagSilence),
		},
		{
			name:    "no-speech exactly at threshold",
			signals: SegmentSignals{CompressionRatio: 1.0, NoSpeechProb: 0.6, AvgLogProb: -0.3},
			want:    0,
		},
		{
			name:    "log-probability below threshold",
			signals: SegmentSignals{CompressionRatio: 1.0, NoSpeechProb: 0.1, AvgLogProb: -1.5},
			want:    FlagSet(FlagLowConfidence),
		},
		{
			name:    "log-probability exactly at threshold",
			signals: SegmentSignals{CompressionRatio: 1.0, NoSpeechProb: 0.1, AvgLogProb: -1.0},
			want:    0,
		},
		{
			name:    "all signals bad",
			signals: SegmentSignals{CompressionRatio: 5.1, NoSpeechProb: 0.95, AvgLogProb: -2.8},
			want:    FlagSet(FlagHallucination) | FlagSet(FlagSilence) | FlagSet(FlagLowConfidence),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := analyzer.Analyze(tc.signals)
			if got.Flags != tc.want {
				t.Fatalf("flags = %v, want %v", got.Flags.Names(), tc.want.Names())
			}
		})
	}
}

func TestAnalyzeChecksAreIndependent(t *testing.T) {
	analyzer := NewAnalyzer(DefaultThresholds())
	got := analyzer.Analyze(SegmentSignals{CompressionRatio: 3.0, NoSpeechProb: 0.0, AvgLogProb: -1.2})
	if !got.Flags.Has(FlagHallucination) || !got.Flags.Has(FlagLowConfidence) {
		t.Fatalf("expected hallucination and low confidence, got %v", got.Flags.Names())
	}
	if got.Flags.Has(FlagSilence) {
		t.Fatalf("silence flag raised without cause: %v", got.Flags.Names())
	}
}

func TestConfidenceMapping(t *testing.T) {
	cases := []struct {
		avgLogProb float64
		want       float64
	}{
		{0, 1.0},
		{-0.5, math.Exp(-0.5)},
		{-10, 0},
		{-20, 0},
		{0.5, 1.0},
	}
	for _, tc := range cases {
		got := Confidence(tc.avgLogProb)
		if math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("Confidence(%v) = %v, want %v", tc.avgLogProb, got, tc.want)
		}
		if got < 0 || got > 1 {
			t.Fatalf("Confidence(%v) = %v outside [0,1]", tc.avgLogProb, got)
		}
	}
}

func TestFlagSetNamesSorted(t *testing.T) {
	set := FlagSet(FlagSilence).Add(FlagHallucination).Add(FlagLowConfidence)
	names := set.Names()
	want := []string{"hallucination_detected", "low_confidence", "silence_detected"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestFlagSetMarshalEmpty(t *testing.T) {
	data, err := FlagSet(0).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("empty set marshaled as %s, want []", data)
	}
}
