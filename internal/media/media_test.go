package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "width": 1280, "height": 720, "duration": "12.480000"},
    {"index": 1, "codec_type": "audio", "duration": "12.500000"},
    {"index": 2, "codec_type": "video", "width": 300, "height": 300, "disposition": {"attached_pic": 1}}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.512000"}
}`

func TestParseProbe(t *testing.T) {
	t.Parallel()

	info, err := ParseProbe([]byte(probeJSON))
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if !info.HasVideo || !info.HasAudio {
		t.Fatalf("streams not detected: %+v", info)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Fatalf("size = %dx%d", info.Width, info.Height)
	}
	if info.Duration != 12.512 {
		t.Fatalf("duration = %v", info.Duration)
	}
}

func TestParseProbeFallsBackToStreamDuration(t *testing.T) {
	t.Parallel()

	info, err := ParseProbe([]byte(`{"streams":[{"codec_type":"audio","duration":"31.2"}],"format":{"format_name":"mp3"}}`))
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.HasVideo || !info.HasAudio {
		t.Fatalf("unexpected streams: %+v", info)
	}
	if info.Duration != 31.2 {
		t.Fatalf("duration = %v", info.Duration)
	}
}

func TestParseProbeUsesLongestStream(t *testing.T) {
	t.Parallel()

	data := `{"streams":[
		{"codec_type":"audio","duration":"5.0"},
		{"codec_type":"video","width":1280,"height":720,"duration":"20.0"}
	],"format":{"format_name":"matroska,webm"}}`
	info, err := ParseProbe([]byte(data))
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.Duration != 20 {
		t.Fatalf("duration = %v, want 20", info.Duration)
	}

	info, err = ParseProbe([]byte(`{"streams":[{"codec_type":"video","duration":"20.0"}],"format":{"duration":"12.5"}}`))
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.Duration != 12.5 {
		t.Fatalf("container duration must win, got %v", info.Duration)
	}
}

func TestParseProbeRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseProbe([]byte("not json")); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseProbe([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty object")
	}
}

func TestSeconds(t *testing.T) {
	t.Parallel()

	for in, want := range map[float64]string{0: "0.000", 10: "10.000", 1.23456: "1.235", -3: "0.000"} {
		if got := Seconds(in); got != want {
			t.Errorf("Seconds(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "work", "final.mp4")
	dst := filepath.Join(dir, "results", "x_AMV.mp4")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still exists: %v", err)
	}
	if err := NonEmptyFile(dst); err != nil {
		t.Fatalf("destination: %v", err)
	}
}

func TestNonEmptyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NonEmptyFile(empty); err == nil {
		t.Fatalf("empty file accepted")
	}
	if err := NonEmptyFile(dir); err == nil {
		t.Fatalf("directory accepted")
	}
	if err := NonEmptyFile(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegRunFoldsStderrIntoError(t *testing.T) {
	t.Parallel()

	bin := fakeBinary(t, "echo 'Invalid data found when processing input' >&2\nexit 1")
	f := NewFFmpeg(bin, "", 1, nil)

	err := f.Run(context.Background(), "test", []string{"-i", "x.mp4", "y.mp4"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("stderr not in error: %v", err)
	}
}

func TestFFmpegOutputCapturesStdout(t *testing.T) {
	t.Parallel()

	bin := fakeBinary(t, "printf 'pcm'")
	f := NewFFmpeg(bin, "", 1, nil)

	out, err := f.Output(context.Background(), "test", []string{"pipe:"})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if string(out) != "pcm" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestFFmpegHonoursCancelledContextWhileWaiting(t *testing.T) {
	t.Parallel()

	f := NewFFmpeg("ffmpeg", "", 1, nil)
	f.sem <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Run(ctx, "blocked", nil); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
