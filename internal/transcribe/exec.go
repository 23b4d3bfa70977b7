package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/phenoscribe/phenoscribe/internal/config"
)

// ExecTranscriber shells out to an external whisper-style command that
// prints a verbose JSON result on stdout. Invocations are serialized: the
// model is far too heavy to load concurrently.
type ExecTranscriber struct {
	cmd []string
	cfg config.TranscriberConfig
	mu  sync.Mutex
}

func NewExecTranscriber(cfg config.TranscriberConfig) (*ExecTranscriber, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse transcriber command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcriber command is empty")
	}
	return &ExecTranscriber{cmd: args, cfg: cfg}, nil
}

func (t *ExecTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	base := t.cmd[0]
	cmdArgs := append([]string{}, t.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", audioPath)
	if t.cfg.Model != "" {
		cmdArgs = append(cmdArgs, "--model", t.cfg.Model)
	}
	if t.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", t.cfg.Language)
	}
	cmdArgs = append(cmdArgs, "--temperature", strconv.FormatFloat(t.cfg.Temperature, 'f', -1, 64))

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("transcriber command failed: %w: %s", err, stderr.String())
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("decode transcriber response: %w", err)
	}
	return &result, nil
}
