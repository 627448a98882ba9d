package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"amv-gen/internal/logging"
)

// Tool runs ffmpeg and ffprobe. Args never include the binary name.
type Tool interface {
	// Run executes ffmpeg and waits for it to exit.
	Run(ctx context.Context, label string, args []string) error
	// Output executes ffmpeg and returns whatever it wrote to stdout.
	Output(ctx context.Context, label string, args []string) ([]byte, error)
	Probe(ctx context.Context, path string) (ProbeInfo, error)
}

var baseArgs = []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}

type FFmpeg struct {
	bin      string
	probeBin string
	sem      chan struct{}
	log      *logging.Logger
}

// NewFFmpeg limits the number of concurrent ffmpeg processes to concurrency,
// which avoids "pthread_create() failed" under heavy load.
func NewFFmpeg(bin, probeBin string, concurrency int, log *logging.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if probeBin == "" {
		probeBin = "ffprobe"
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	return &FFmpeg{bin: bin, probeBin: probeBin, sem: make(chan struct{}, concurrency), log: log}
}

func (f *FFmpeg) acquire(ctx context.Context) error {
	select {
	case f.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FFmpeg) release() { <-f.sem }

func (f *FFmpeg) Run(ctx context.Context, label string, args []string) error {
	_, err := f.exec(ctx, label, args, false)
	return err
}

func (f *FFmpeg) Output(ctx context.Context, label string, args []string) ([]byte, error) {
	return f.exec(ctx, label, args, true)
}

func (f *FFmpeg) exec(ctx context.Context, label string, args []string, captureStdout bool) ([]byte, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	defer f.release()

	full := append(append([]string{}, baseArgs...), args...)
	f.log.Infof("[FFMPEG] %s: %s %s", label, f.bin, strings.Join(full, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.bin, full...)
	cmd.Stderr = &stderr
	if captureStdout {
		cmd.Stdout = &stdout
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		f.log.Errorf("[FFMPEG] %s failed: %s", label, errMsg)
		return nil, fmt.Errorf("ffmpeg error: %s", errMsg)
	}
	return stdout.Bytes(), nil
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return ProbeInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.probeBin,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ProbeInfo{}, ctx.Err()
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return ProbeInfo{}, fmt.Errorf("ffprobe error: %s", errMsg)
	}
	return ParseProbe(stdout.Bytes())
}

// Seconds formats a timestamp the way ffmpeg options expect it.
func Seconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
