package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/phenoscribe/phenoscribe/internal/config"
)

// Task names one audio file to normalize.
type Task struct {
	ID         string
	SourcePath string
}

// Normalizer converts recordings to the sample rate and channel layout the
// transcriber expects, via ffmpeg.
type Normalizer struct {
	ffmpegPath string
	sampleRate int
	channels   int
	loudnorm   bool
	workers    int
	log        *slog.Logger
}

func NewNormalizer(cfg config.AudioConfig, log *slog.Logger) *Normalizer {
	return &Normalizer{
		ffmpegPath: cfg.FFmpegPath,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		loudnorm:   cfg.Normalize,
		workers:    cfg.ParallelConversions,
		log:        log.With(slog.String("component", "media")),
	}
}

// args builds the ffmpeg invocation for one conversion.
func (n *Normalizer) args(src, dst string) []string {
	args := []string{
		"-i", src,
		"-vn",
		"-ar", strconv.Itoa(n.sampleRate),
		"-ac", strconv.Itoa(n.channels),
		"-sample_fmt", "s16",
	}
	if n.loudnorm {
		args = append(args, "-af", "loudnorm")
	}
	return append(args, "-y", dst)
}

// Normalize converts one file.
func (n *Normalizer) Normalize(ctx context.Context, src, dst string) error {
	command := exec.CommandContext(ctx, n.ffmpegPath, n.args(src, dst)...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed for %s: %w: %s", src, err, stderr.String())
	}
	return nil
}

// NormalizeAll converts the given files into workDir with a bounded worker
// pool and returns the normalized path per task ID. Failed conversions are
// logged and left out, surfacing downstream as missing results.
func (n *Normalizer) NormalizeAll(ctx context.Context, tasks []Task, workDir string) map[string]string {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		n.log.Warn("could not create normalization work dir",
			slog.String("dir", workDir),
			slog.String("error", err.Error()))
		return nil
	}

	workers := n.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	normalized := make(map[string]string, len(tasks))

	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			dst := filepath.Join(workDir, t.ID+".wav")
			if err := n.Normalize(ctx, t.SourcePath, dst); err != nil {
				n.log.Warn("audio normalization failed",
					slog.String("file", t.SourcePath),
					slog.String("error", err.Error()))
				return
			}
			mu.Lock()
			normalized[t.ID] = dst
			mu.Unlock()
		}(task)
	}
	wg.Wait()
	return normalized
}
