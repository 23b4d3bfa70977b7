package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// MockTranscriber returns canned results keyed by recording identifier
// (audio file base name without extension).
type MockTranscriber struct {
	Results map[string]*Result
}

func NewMockTranscriber(results map[string]*Result) *MockTranscriber {
	return &MockTranscriber{Results: results}
}

func (m *MockTranscriber) Transcribe(_ context.Context, audioPath string) (*Result, error) {
	name := filepath.Base(audioPath)
	id := strings.TrimSuffix(name, filepath.Ext(name))
	result, ok := m.Results[id]
	if !ok {
		return nil, fmt.Errorf("no canned result for %q", id)
	}
	return result, nil
}
