package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/phenoscribe/phenoscribe/internal/assemble"
	"github.com/phenoscribe/phenoscribe/internal/config"
	"github.com/phenoscribe/phenoscribe/internal/journal"
	"github.com/phenoscribe/phenoscribe/internal/media"
	"github.com/phenoscribe/phenoscribe/internal/pairing"
	"github.com/phenoscribe/phenoscribe/internal/quality"
	"github.com/phenoscribe/phenoscribe/internal/session"
	"github.com/phenoscribe/phenoscribe/internal/transcribe"
)

// Summary is what one run attempted and achieved.
type Summary struct {
	RunID     string
	Attempted int
	Succeeded int
	Failed    []string
}

type runMetrics struct {
	recordings        metric.Int64Counter
	qualityFlags      metric.Int64Counter
	transcribeSeconds metric.Float64Histogram
}

func newRunMetrics(log *slog.Logger) runMetrics {
	meter := otel.Meter("phenoscribe/pipeline")
	var m runMetrics
	var err error
	if m.recordings, err = meter.Int64Counter("phenoscribe.recordings.transcribed",
		metric.WithDescription("Recordings successfully transcribed")); err != nil {
		log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	if m.qualityFlags, err = meter.Int64Counter("phenoscribe.quality.flagged_recordings",
		metric.WithDescription("Recordings that raised a quality flag")); err != nil {
		log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	if m.transcribeSeconds, err = meter.Float64Histogram("phenoscribe.transcribe.seconds",
		metric.WithDescription("Wall time spent transcribing one recording")); err != nil {
		log.Warn("failed to create histogram", slog.String("error", err.Error()))
	}
	return m
}

// Runner processes discovered sessions sequentially. Failures local to one
// file or artifact never abort the session; failures local to one session
// never abort the run.
type Runner struct {
	cfg         config.Config
	log         *slog.Logger
	resolver    *pairing.Resolver
	transcriber transcribe.Transcriber
	normalizer  *media.Normalizer
	prober      media.Prober
	journal     *journal.Journal
	filter      string
	tracer      trace.Tracer
	metrics     runMetrics
	clock       func() time.Time
}

func NewRunner(cfg config.Config, log *slog.Logger, transcriber transcribe.Transcriber, prober media.Prober, normalizer *media.Normalizer, jnl *journal.Journal) *Runner {
	return &Runner{
		cfg:         cfg,
		log:         log.With(slog.String("component", "pipeline")),
		resolver:    pairing.NewResolver(cfg.Audio.Extensions, cfg.Audio.IgnoreFiles, prober.CreationTime, log),
		transcriber: transcriber,
		normalizer:  normalizer,
		prober:      prober,
		journal:     jnl,
		tracer:      otel.Tracer("phenoscribe/pipeline"),
		metrics:     newRunMetrics(log),
		clock:       time.Now,
	}
}

// SetSessionFilter restricts the run to the named session.
func (r *Runner) SetSessionFilter(name string) {
	r.filter = name
}

// Run discovers and processes all sessions. The returned error covers only
// run-level failures; per-session failures land in the summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	excludes := []string{filepath.Base(r.cfg.OutputDir), filepath.Base(r.cfg.WorkDir)}
	mode, sessions, err := session.Discover(r.cfg.InputDir, r.cfg.Audio.Extensions, r.cfg.Audio.IgnoreFiles, excludes)
	if err != nil {
		return Summary{}, err
	}
	if r.filter != "" {
		var matched []session.Session
		for _, sess := range sessions {
			if sess.Name == r.filter {
				matched = append(matched, sess)
			}
		}
		if len(matched) == 0 {
			return Summary{}, fmt.Errorf("session %q not found", r.filter)
		}
		sessions = matched
	}
	r.log.Info("sessions discovered",
		slog.String("mode", string(mode)),
		slog.Int("count", len(sessions)))

	runID := uuid.NewString()
	if err := r.journal.BeginRun(ctx, runID, config.PipelineVersion, len(sessions)); err != nil {
		r.log.Warn("journal begin failed", slog.String("error", err.Error()))
	}

	summary := Summary{RunID: runID, Attempted: len(sessions)}
	for _, sess := range sessions {
		if err := r.processSession(ctx, runID, sess); err != nil {
			r.log.Warn("session failed",
				slog.String("session", sess.Name),
				slog.String("error", err.Error()))
			summary.Failed = append(summary.Failed, sess.Name)
			if err := r.journal.AppendEvent(ctx, journal.Event{
				RunID: runID, SessionID: sess.Name, Type: "session_failed", Detail: err.Error(),
			}); err != nil {
				r.log.Warn("journal append failed", slog.String("error", err.Error()))
			}
			continue
		}
		summary.Succeeded++
	}

	if err := r.journal.FinishRun(ctx, runID, summary.Succeeded); err != nil {
		r.log.Warn("journal finish failed", slog.String("error", err.Error()))
	}
	return summary, nil
}

func (r *Runner) processSession(ctx context.Context, runID string, sess session.Session) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.session",
		trace.WithAttributes(attribute.String("session.name", sess.Name)))
	defer span.End()

	log := r.log.With(slog.String("session", sess.Name))
	start := r.clock()

	_, pairSpan := r.tracer.Start(ctx, "pipeline.pair")
	paired, orphans, err := r.resolver.Resolve(sess.Path)
	pairSpan.End()
	if err != nil {
		return err
	}
	if len(paired)+len(orphans) == 0 {
		return errors.New("no audio recordings found")
	}
	log.Info("recordings resolved",
		slog.Int("paired", len(paired)),
		slog.Int("orphaned", len(orphans)))

	outputDir := filepath.Join(r.cfg.OutputDir, sess.Name)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create session output dir: %w", err)
	}

	// Recordings in processing order: paired by timestamp, then orphans
	// by creation time.
	records := make([]pairing.AudioRecord, 0, len(paired)+len(orphans))
	for _, rec := range paired {
		records = append(records, rec.AudioRecord)
	}
	for _, rec := range orphans {
		records = append(records, rec.AudioRecord)
	}

	skip := r.completedToSkip(ctx, sess.Name, outputDir, log)
	restored := r.restoreCompleted(outputDir, skip, log)

	audioPaths := r.normalize(ctx, sess.Name, records, skip)
	results := r.transcribeAll(ctx, runID, sess.Name, records, audioPaths, skip, log)
	if len(results) == 0 && len(skip) == 0 {
		return errors.New("no recordings transcribed")
	}

	analyzer := quality.NewAnalyzer(quality.Thresholds{
		CompressionRatio: r.cfg.Quality.CompressionRatioThreshold,
		NoSpeechProb:     r.cfg.Quality.NoSpeechThreshold,
		AvgLogProb:       r.cfg.Quality.ConfidenceThreshold,
	})
	assembler := assemble.New(analyzer, r.prober, assemble.Options{
		SessionID:           sess.Name,
		VideoPath:           sess.VideoPath,
		Model:               r.cfg.Transcriber.Model,
		PipelineVersion:     config.PipelineVersion,
		QualityChecks:       r.cfg.Quality.Enabled,
		IncludeMilliseconds: r.cfg.Output.IncludeMilliseconds,
	}, r.log)

	_, assembleSpan := r.tracer.Start(ctx, "pipeline.assemble")
	asm := assembler.Assemble(paired, orphans, results, restored)
	assembleSpan.End()

	if r.cfg.Output.IndividualTranscripts {
		if err := assembler.WriteIndividual(asm, outputDir); err != nil {
			log.Warn("individual transcripts skipped", slog.String("error", err.Error()))
		}
	}
	if r.cfg.Output.CombinedText {
		if err := assembler.WriteCombinedText(asm, outputDir); err != nil {
			log.Warn("combined transcript skipped", slog.String("error", err.Error()))
		}
	}
	if r.cfg.Output.CombinedJSON {
		if err := assembler.WriteCombinedJSON(asm, outputDir); err != nil {
			log.Warn("combined transcript json skipped", slog.String("error", err.Error()))
		}
	}
	if r.cfg.Output.ProcessingReport {
		if err := r.writeReport(runID, sess, asm, r.clock().Sub(start), outputDir); err != nil {
			log.Warn("processing report skipped", slog.String("error", err.Error()))
		}
	}

	r.recordOutcome(ctx, runID, sess.Name, asm)

	if r.cfg.Audio.Convert && !r.cfg.Output.KeepIntermediate {
		workDir := r.sessionWorkDir(sess.Name)
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("could not remove intermediate audio", slog.String("error", err.Error()))
		}
	}

	log.Info("session processed",
		slog.Int("transcribed", len(results)),
		slog.Duration("elapsed", r.clock().Sub(start)))
	return nil
}

// completedToSkip returns the recordings a previous run already finished,
// as long as their persisted structured outputs are still on disk.
func (r *Runner) completedToSkip(ctx context.Context, sessionName, outputDir string, log *slog.Logger) map[string]bool {
	if !r.cfg.Journal.SkipCompleted {
		return nil
	}
	completed, err := r.journal.CompletedRecordings(ctx, sessionName)
	if err != nil {
		log.Warn("journal lookup failed", slog.String("error", err.Error()))
		return nil
	}
	skip := make(map[string]bool, len(completed))
	for id := range completed {
		if _, err := os.Stat(filepath.Join(outputDir, "transcripts", id+".json")); err == nil {
			skip[id] = true
		}
	}
	if len(skip) > 0 {
		log.Info("skipping previously completed recordings", slog.Int("count", len(skip)))
	}
	return skip
}

// restoreCompleted loads the persisted documents of skipped recordings so
// reassembly keeps them in the combined outputs. A recording whose stored
// document cannot be read is dropped from skip and transcribed again.
func (r *Runner) restoreCompleted(outputDir string, skip map[string]bool, log *slog.Logger) map[pairing.RecordingID]assemble.RecordingDocument {
	if len(skip) == 0 {
		return nil
	}
	restored := make(map[pairing.RecordingID]assemble.RecordingDocument, len(skip))
	for id := range skip {
		path := filepath.Join(outputDir, "transcripts", id+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("stored transcript unreadable, re-transcribing",
				slog.String("file", path),
				slog.String("error", err.Error()))
			delete(skip, id)
			continue
		}
		var doc assemble.RecordingDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			log.Warn("stored transcript malformed, re-transcribing",
				slog.String("file", path),
				slog.String("error", err.Error()))
			delete(skip, id)
			continue
		}
		restored[pairing.RecordingID(id)] = doc
	}
	return restored
}

func (r *Runner) sessionWorkDir(sessionName string) string {
	return filepath.Join(r.cfg.WorkDir, sessionName, "normalized_audio")
}

// normalize converts the session's recordings and returns the audio path
// to transcribe per recording ID. With conversion disabled the originals
// are used directly.
func (r *Runner) normalize(ctx context.Context, sessionName string, records []pairing.AudioRecord, skip map[string]bool) map[pairing.RecordingID]string {
	paths := make(map[pairing.RecordingID]string, len(records))
	if !r.cfg.Audio.Convert {
		for _, rec := range records {
			paths[rec.ID] = rec.SourcePath
		}
		return paths
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.normalize")
	defer span.End()

	var tasks []media.Task
	for _, rec := range records {
		if skip[string(rec.ID)] {
			continue
		}
		tasks = append(tasks, media.Task{ID: string(rec.ID), SourcePath: rec.SourcePath})
	}
	for id, path := range r.normalizer.NormalizeAll(ctx, tasks, r.sessionWorkDir(sessionName)) {
		paths[pairing.RecordingID(id)] = path
	}
	return paths
}

// transcribeAll runs the transcriber sequentially over every recording
// that has audio to feed it. A failed transcription leaves the recording
// absent from the result map; assembly skips it.
func (r *Runner) transcribeAll(ctx context.Context, runID, sessionName string, records []pairing.AudioRecord, audioPaths map[pairing.RecordingID]string, skip map[string]bool, log *slog.Logger) map[pairing.RecordingID]*transcribe.Result {
	ctx, span := r.tracer.Start(ctx, "pipeline.transcribe")
	defer span.End()

	results := make(map[pairing.RecordingID]*transcribe.Result, len(records))
	for _, rec := range records {
		if skip[string(rec.ID)] {
			continue
		}
		path, ok := audioPaths[rec.ID]
		if !ok {
			// Normalization failed; already logged.
			continue
		}
		started := r.clock()
		result, err := r.transcriber.Transcribe(ctx, path)
		elapsed := r.clock().Sub(started)
		if r.metrics.transcribeSeconds != nil {
			r.metrics.transcribeSeconds.Record(ctx, elapsed.Seconds())
		}
		if err != nil {
			log.Warn("transcription failed",
				slog.String("recording", string(rec.ID)),
				slog.String("error", err.Error()))
			if jerr := r.journal.AppendEvent(ctx, journal.Event{
				RunID: runID, SessionID: sessionName, RecordingID: string(rec.ID),
				Type: "transcription_failed", Detail: err.Error(),
			}); jerr != nil {
				log.Warn("journal append failed", slog.String("error", jerr.Error()))
			}
			continue
		}
		results[rec.ID] = result
		if r.metrics.recordings != nil {
			r.metrics.recordings.Add(ctx, 1)
		}
	}
	return results
}

// recordOutcome persists per-recording completion and emits quality
// metrics for the assembled session.
func (r *Runner) recordOutcome(ctx context.Context, runID, sessionName string, asm *assemble.Assembly) {
	for _, out := range asm.Individual {
		if err := r.journal.MarkCompleted(ctx, sessionName, journal.Completed{
			RecordingID:  string(out.ID),
			RunID:        runID,
			DurationSec:  out.Document.AudioDurationSec,
			WordCount:    out.Document.WordCount,
			QualityFlags: out.Document.QualityFlags.Names(),
		}); err != nil {
			r.log.Warn("journal mark failed", slog.String("error", err.Error()))
		}
		if r.metrics.qualityFlags != nil {
			for _, name := range out.Document.QualityFlags.Names() {
				r.metrics.qualityFlags.Add(ctx, 1, metric.WithAttributes(attribute.String("flag", name)))
			}
		}
	}
}
