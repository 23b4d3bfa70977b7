package assemble

import (
	"fmt"
	"math"
	"strings"
)

// FormatTimestamp renders seconds as HH:MM:SS with optional milliseconds.
// Hours and minutes are zero-padded to two digits; hours are unbounded
// rather than wrapped at 24.
func FormatTimestamp(seconds float64, includeMilliseconds bool) string {
	hours := int(seconds) / 3600
	remainder := seconds - float64(hours*3600)
	minutes := int(remainder) / 60
	secs := remainder - float64(minutes*60)
	if includeMilliseconds {
		return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, int(secs))
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
