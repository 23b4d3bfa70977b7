package assemble

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// WriteIndividual writes each recording's .txt and .json under
// outputDir/transcripts. A failure on one file is logged and the rest
// continue; only an unusable transcripts directory is an error.
func (a *Assembler) WriteIndividual(asm *Assembly, outputDir string) error {
	dir := filepath.Join(outputDir, "transcripts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create transcripts dir: %w", err)
	}
	for _, out := range asm.Individual {
		txtPath := filepath.Join(dir, string(out.ID)+".txt")
		if err := os.WriteFile(txtPath, []byte(out.Text), 0o644); err != nil {
			a.log.Warn("failed to write individual transcript",
				slog.String("file", txtPath),
				slog.String("error", err.Error()))
		}
		jsonPath := filepath.Join(dir, string(out.ID)+".json")
		if err := writeJSON(jsonPath, out.Document); err != nil {
			a.log.Warn("failed to write individual transcript metadata",
				slog.String("file", jsonPath),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// WriteCombinedText writes combined_transcript.txt under outputDir.
func (a *Assembler) WriteCombinedText(asm *Assembly, outputDir string) error {
	path := filepath.Join(outputDir, "combined_transcript.txt")
	if err := os.WriteFile(path, []byte(asm.CombinedText), 0o644); err != nil {
		return fmt.Errorf("write combined transcript: %w", err)
	}
	return nil
}

// WriteCombinedJSON writes combined_transcript.json under outputDir.
func (a *Assembler) WriteCombinedJSON(asm *Assembly, outputDir string) error {
	path := filepath.Join(outputDir, "combined_transcript.json")
	if err := writeJSON(path, asm.Combined); err != nil {
		return fmt.Errorf("write combined transcript json: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
