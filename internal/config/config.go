package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PipelineVersion is stamped into combined outputs and processing reports.
const PipelineVersion = "1.0.0"

// Config is the full pipeline configuration. Zero values are filled from
// Default, then a YAML file, then PHENOSCRIBE_* environment overrides.
type Config struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	WorkDir   string `yaml:"work_dir"`

	Transcriber TranscriberConfig `yaml:"transcriber"`
	Audio       AudioConfig       `yaml:"audio"`
	Quality     QualityConfig     `yaml:"quality"`
	Output      OutputConfig      `yaml:"output"`
	Journal     JournalConfig     `yaml:"journal"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

type TranscriberConfig struct {
	Model       string  `yaml:"model"`
	Language    string  `yaml:"language"`
	Temperature float64 `yaml:"temperature"`
	Command     string  `yaml:"command"`
}

type AudioConfig struct {
	Extensions          []string `yaml:"extensions"`
	IgnoreFiles         []string `yaml:"ignore_files"`
	SampleRate          int      `yaml:"sample_rate"`
	Channels            int      `yaml:"channels"`
	Convert             bool     `yaml:"convert"`
	Normalize           bool     `yaml:"normalize"`
	FFmpegPath          string   `yaml:"ffmpeg_path"`
	FFprobePath         string   `yaml:"ffprobe_path"`
	ParallelConversions int      `yaml:"parallel_conversions"`
}

type QualityConfig struct {
	Enabled                   bool    `yaml:"enabled"`
	CompressionRatioThreshold float64 `yaml:"compression_ratio_threshold"`
	NoSpeechThreshold         float64 `yaml:"no_speech_threshold"`
	ConfidenceThreshold       float64 `yaml:"confidence_threshold"`
}

type OutputConfig struct {
	IndividualTranscripts bool `yaml:"individual_transcripts"`
	CombinedText          bool `yaml:"combined_text"`
	CombinedJSON          bool `yaml:"combined_json"`
	ProcessingReport      bool `yaml:"processing_report"`
	IncludeMilliseconds   bool `yaml:"include_milliseconds"`
	KeepIntermediate      bool `yaml:"keep_intermediate"`
}

type JournalConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	SkipCompleted bool   `yaml:"skip_completed"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	TraceExporter  string `yaml:"trace_exporter"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

// knownModels mirrors the Whisper release line the exec transcriber accepts.
var knownModels = []string{
	"tiny.en", "tiny", "base.en", "base", "small.en",
	"small", "medium.en", "medium", "large", "large-v2", "large-v3",
}

func Default() Config {
	return Config{
		Transcriber: TranscriberConfig{
			Model:       "small.en",
			Language:    "en",
			Temperature: 0.0,
			Command:     "whisper-json",
		},
		Audio: AudioConfig{
			Extensions:          []string{".wav"},
			IgnoreFiles:         []string{".DS_Store", "Thumbs.db", "desktop.ini"},
			SampleRate:          16000,
			Channels:            1,
			Convert:             true,
			Normalize:           true,
			FFmpegPath:          "ffmpeg",
			FFprobePath:         "ffprobe",
			ParallelConversions: 0,
		},
		Quality: QualityConfig{
			Enabled:                   true,
			CompressionRatioThreshold: 2.4,
			NoSpeechThreshold:         0.6,
			ConfidenceThreshold:       -1.0,
		},
		Output: OutputConfig{
			IndividualTranscripts: true,
			CombinedText:          true,
			CombinedJSON:          true,
			ProcessingReport:      true,
			IncludeMilliseconds:   true,
			KeepIntermediate:      false,
		},
		Journal: JournalConfig{
			Enabled:       true,
			SkipCompleted: true,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			TraceExporter:  "none",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: "",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDerivedPaths(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyDerivedPaths fills output and staging directories relative to the
// input directory when they were not set explicitly.
func applyDerivedPaths(cfg *Config) {
	if cfg.InputDir == "" {
		return
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.InputDir, "output")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(cfg.InputDir, "processed")
	}
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.InputDir, "PHENOSCRIBE_INPUT_DIR")
	overrideString(&cfg.OutputDir, "PHENOSCRIBE_OUTPUT_DIR")
	overrideString(&cfg.WorkDir, "PHENOSCRIBE_WORK_DIR")
	overrideString(&cfg.Transcriber.Model, "PHENOSCRIBE_TRANSCRIBER_MODEL")
	overrideString(&cfg.Transcriber.Language, "PHENOSCRIBE_TRANSCRIBER_LANGUAGE")
	overrideFloat(&cfg.Transcriber.Temperature, "PHENOSCRIBE_TRANSCRIBER_TEMPERATURE")
	overrideString(&cfg.Transcriber.Command, "PHENOSCRIBE_TRANSCRIBER_COMMAND")
	overrideStringSlice(&cfg.Audio.Extensions, "PHENOSCRIBE_AUDIO_EXTENSIONS")
	overrideStringSlice(&cfg.Audio.IgnoreFiles, "PHENOSCRIBE_AUDIO_IGNORE_FILES")
	overrideInt(&cfg.Audio.SampleRate, "PHENOSCRIBE_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "PHENOSCRIBE_AUDIO_CHANNELS")
	overrideBool(&cfg.Audio.Convert, "PHENOSCRIBE_AUDIO_CONVERT")
	overrideBool(&cfg.Audio.Normalize, "PHENOSCRIBE_AUDIO_NORMALIZE")
	overrideString(&cfg.Audio.FFmpegPath, "PHENOSCRIBE_AUDIO_FFMPEG_PATH")
	overrideString(&cfg.Audio.FFprobePath, "PHENOSCRIBE_AUDIO_FFPROBE_PATH")
	overrideInt(&cfg.Audio.ParallelConversions, "PHENOSCRIBE_AUDIO_PARALLEL_CONVERSIONS")
	overrideBool(&cfg.Quality.Enabled, "PHENOSCRIBE_QUALITY_ENABLED")
	overrideFloat(&cfg.Quality.CompressionRatioThreshold, "PHENOSCRIBE_QUALITY_COMPRESSION_RATIO_THRESHOLD")
	overrideFloat(&cfg.Quality.NoSpeechThreshold, "PHENOSCRIBE_QUALITY_NO_SPEECH_THRESHOLD")
	overrideFloat(&cfg.Quality.ConfidenceThreshold, "PHENOSCRIBE_QUALITY_CONFIDENCE_THRESHOLD")
	overrideBool(&cfg.Output.IndividualTranscripts, "PHENOSCRIBE_OUTPUT_INDIVIDUAL_TRANSCRIPTS")
	overrideBool(&cfg.Output.CombinedText, "PHENOSCRIBE_OUTPUT_COMBINED_TEXT")
	overrideBool(&cfg.Output.CombinedJSON, "PHENOSCRIBE_OUTPUT_COMBINED_JSON")
	overrideBool(&cfg.Output.ProcessingReport, "PHENOSCRIBE_OUTPUT_PROCESSING_REPORT")
	overrideBool(&cfg.Output.IncludeMilliseconds, "PHENOSCRIBE_OUTPUT_INCLUDE_MILLISECONDS")
	overrideBool(&cfg.Output.KeepIntermediate, "PHENOSCRIBE_OUTPUT_KEEP_INTERMEDIATE")
	overrideBool(&cfg.Journal.Enabled, "PHENOSCRIBE_JOURNAL_ENABLED")
	overrideString(&cfg.Journal.Path, "PHENOSCRIBE_JOURNAL_PATH")
	overrideBool(&cfg.Journal.SkipCompleted, "PHENOSCRIBE_JOURNAL_SKIP_COMPLETED")
	overrideString(&cfg.Telemetry.LogLevel, "PHENOSCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "PHENOSCRIBE_TELEMETRY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.TraceExporter, "PHENOSCRIBE_TELEMETRY_TRACE_EXPORTER")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "PHENOSCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "PHENOSCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "PHENOSCRIBE_TELEMETRY_PROMETHEUS_BIND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.InputDir == "" {
		return errors.New("input_dir must not be empty")
	}
	if cfg.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if cfg.WorkDir == "" {
		return errors.New("work_dir must not be empty")
	}
	if !isKnownModel(cfg.Transcriber.Model) {
		return fmt.Errorf("transcriber.model %q is not a known model (valid: %s)",
			cfg.Transcriber.Model, strings.Join(knownModels, ", "))
	}
	if cfg.Transcriber.Temperature < 0 || cfg.Transcriber.Temperature > 1 {
		return errors.New("transcriber.temperature must be between 0 and 1")
	}
	if cfg.Transcriber.Command == "" {
		return errors.New("transcriber.command must not be empty")
	}
	if len(cfg.Audio.Extensions) == 0 {
		return errors.New("audio.extensions must not be empty")
	}
	for _, ext := range cfg.Audio.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("audio.extensions entries must start with a dot, got %q", ext)
		}
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.ParallelConversions < 0 {
		return errors.New("audio.parallel_conversions must be >= 0")
	}
	if cfg.Quality.CompressionRatioThreshold <= 0 {
		return errors.New("quality.compression_ratio_threshold must be positive")
	}
	if cfg.Quality.NoSpeechThreshold < 0 || cfg.Quality.NoSpeechThreshold > 1 {
		return errors.New("quality.no_speech_threshold must be between 0 and 1")
	}
	switch cfg.Telemetry.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "text":
	default:
		return errors.New("telemetry.log_format must be one of json|text")
	}
	switch cfg.Telemetry.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		return errors.New("telemetry.trace_exporter must be one of none|stdout|otlp")
	}
	if cfg.Telemetry.TraceExporter == "otlp" && cfg.Telemetry.OTLPEndpoint == "" {
		return errors.New("telemetry.otlp_endpoint must be set when trace_exporter=otlp")
	}
	return nil
}

func isKnownModel(model string) bool {
	for _, m := range knownModels {
		if m == model {
			return true
		}
	}
	return false
}
