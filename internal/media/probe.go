package media

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// Prober answers black-box media queries keyed by file path.
type Prober interface {
	// DurationSeconds reports the audio file's length, or 0 when it
	// cannot be determined.
	DurationSeconds(path string) float64
	// CreationTime reports when the file was created, or the zero time
	// when the file cannot be stat'ed.
	CreationTime(path string) time.Time
}

// FileProber probes real files: WAV durations are decoded in-process, any
// other format goes through ffprobe.
type FileProber struct {
	ffprobePath string
	log         *slog.Logger
}

func NewFileProber(ffprobePath string, log *slog.Logger) *FileProber {
	return &FileProber{
		ffprobePath: ffprobePath,
		log:         log.With(slog.String("component", "media")),
	}
}

func (p *FileProber) DurationSeconds(path string) float64 {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if d, err := wavDuration(path); err == nil {
			return d
		}
		// Fall through to ffprobe for WAV variants the decoder rejects.
	}
	d, err := p.ffprobeDuration(path)
	if err != nil {
		p.log.Warn("could not determine audio duration",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return 0
	}
	return d
}

func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	d, err := wav.NewDecoder(f).Duration()
	if err != nil {
		return 0, fmt.Errorf("decode wav header: %w", err)
	}
	return d.Seconds(), nil
}

func (p *FileProber) ffprobeDuration(path string) (float64, error) {
	command := exec.Command(p.ffprobePath, "-v", "quiet", "-print_format", "json", "-show_format", path)
	out, err := command.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", probe.Format.Duration, err)
	}
	return d, nil
}

func (p *FileProber) CreationTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		p.log.Warn("could not stat file for creation time",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return time.Time{}
	}
	return creationTime(info)
}

// FormatCreationTime renders a creation time the way it appears in orphan
// transcript headers.
func FormatCreationTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
