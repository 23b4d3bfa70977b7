package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PHENOSCRIBE_INPUT_DIR", "./sessions")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transcriber.Model != "small.en" {
		t.Fatalf("expected default model small.en, got %q", cfg.Transcriber.Model)
	}
	if cfg.Quality.CompressionRatioThreshold != 2.4 || cfg.Quality.NoSpeechThreshold != 0.6 || cfg.Quality.ConfidenceThreshold != -1.0 {
		t.Fatalf("unexpected quality defaults: %+v", cfg.Quality)
	}
	if len(cfg.Audio.Extensions) != 1 || cfg.Audio.Extensions[0] != ".wav" {
		t.Fatalf("unexpected default extensions: %v", cfg.Audio.Extensions)
	}
	if !cfg.Journal.Enabled || !cfg.Journal.SkipCompleted {
		t.Fatalf("unexpected journal defaults: %+v", cfg.Journal)
	}
	if cfg.OutputDir != filepath.Join("./sessions", "output") {
		t.Fatalf("expected derived output dir, got %q", cfg.OutputDir)
	}
	if cfg.WorkDir != filepath.Join("./sessions", "processed") {
		t.Fatalf("expected derived work dir, got %q", cfg.WorkDir)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phenoscribe.yaml")
	content := `
input_dir: /data/sessions
output_dir: /data/out
transcriber:
  model: medium.en
  language: de
quality:
  no_speech_threshold: 0.8
output:
  include_milliseconds: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InputDir != "/data/sessions" || cfg.OutputDir != "/data/out" {
		t.Fatalf("unexpected paths: %q, %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.WorkDir != filepath.Join("/data/sessions", "processed") {
		t.Fatalf("expected derived work dir, got %q", cfg.WorkDir)
	}
	if cfg.Transcriber.Model != "medium.en" || cfg.Transcriber.Language != "de" {
		t.Fatalf("unexpected transcriber config: %+v", cfg.Transcriber)
	}
	if cfg.Quality.NoSpeechThreshold != 0.8 {
		t.Fatalf("expected no_speech_threshold override, got %v", cfg.Quality.NoSpeechThreshold)
	}
	if cfg.Output.IncludeMilliseconds {
		t.Fatal("expected include_milliseconds override false")
	}
	if cfg.Quality.CompressionRatioThreshold != 2.4 {
		t.Fatalf("expected untouched keys to keep defaults, got %v", cfg.Quality.CompressionRatioThreshold)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PHENOSCRIBE_INPUT_DIR", "/env/sessions")
	t.Setenv("PHENOSCRIBE_TRANSCRIBER_MODEL", "base.en")
	t.Setenv("PHENOSCRIBE_TRANSCRIBER_TEMPERATURE", "0.2")
	t.Setenv("PHENOSCRIBE_AUDIO_EXTENSIONS", ".wav, .aif")
	t.Setenv("PHENOSCRIBE_AUDIO_PARALLEL_CONVERSIONS", "4")
	t.Setenv("PHENOSCRIBE_QUALITY_ENABLED", "false")
	t.Setenv("PHENOSCRIBE_QUALITY_NO_SPEECH_THRESHOLD", "0.75")
	t.Setenv("PHENOSCRIBE_JOURNAL_SKIP_COMPLETED", "false")
	t.Setenv("PHENOSCRIBE_TELEMETRY_LOG_FORMAT", "text")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InputDir != "/env/sessions" {
		t.Fatalf("expected input dir override, got %q", cfg.InputDir)
	}
	if cfg.Transcriber.Model != "base.en" || cfg.Transcriber.Temperature != 0.2 {
		t.Fatalf("expected transcriber overrides, got %+v", cfg.Transcriber)
	}
	if len(cfg.Audio.Extensions) != 2 || cfg.Audio.Extensions[1] != ".aif" {
		t.Fatalf("expected extensions override, got %v", cfg.Audio.Extensions)
	}
	if cfg.Audio.ParallelConversions != 4 {
		t.Fatalf("expected parallel conversions override, got %d", cfg.Audio.ParallelConversions)
	}
	if cfg.Quality.Enabled {
		t.Fatal("expected quality checks disabled")
	}
	if cfg.Quality.NoSpeechThreshold != 0.75 {
		t.Fatalf("expected no_speech_threshold override, got %v", cfg.Quality.NoSpeechThreshold)
	}
	if cfg.Journal.SkipCompleted {
		t.Fatal("expected skip_completed override false")
	}
	if cfg.Telemetry.LogFormat != "text" {
		t.Fatalf("expected log format override, got %q", cfg.Telemetry.LogFormat)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty input dir", func(c *Config) { c.InputDir = "" }},
		{"unknown model", func(c *Config) { c.Transcriber.Model = "gigantic-v9" }},
		{"temperature out of range", func(c *Config) { c.Transcriber.Temperature = 1.5 }},
		{"empty command", func(c *Config) { c.Transcriber.Command = "" }},
		{"no extensions", func(c *Config) { c.Audio.Extensions = nil }},
		{"extension without dot", func(c *Config) { c.Audio.Extensions = []string{"wav"} }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"negative parallelism", func(c *Config) { c.Audio.ParallelConversions = -1 }},
		{"non-positive compression threshold", func(c *Config) { c.Quality.CompressionRatioThreshold = 0 }},
		{"no-speech threshold above one", func(c *Config) { c.Quality.NoSpeechThreshold = 1.2 }},
		{"bad log level", func(c *Config) { c.Telemetry.LogLevel = "chatty" }},
		{"bad trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.TraceExporter = "otlp"; c.Telemetry.OTLPEndpoint = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.InputDir = "./sessions"
			applyDerivedPaths(&cfg)
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
