package internal

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WORK_DIR", "RESULTS_DIR", "FIXED_WINDOW_SECONDS", "ALLOWED_VIDEO_EXTENSIONS",
		"S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY", "S3_ACCESS_KEY_ID",
		"S3_SECRET_ACCESS_KEY", "S3_SECRET_ACCESS_KEY_ID", "RUN_TIMEOUT", "MAX_CONCURRENT_RUNS"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WorkDir != "uploads" || cfg.ResultsDir != "results" {
		t.Fatalf("dirs = %q %q", cfg.WorkDir, cfg.ResultsDir)
	}
	if cfg.FixedWindowSeconds != 10 {
		t.Fatalf("window = %v", cfg.FixedWindowSeconds)
	}
	if cfg.RunTimeout != 0 || cfg.S3Enabled() {
		t.Fatalf("unexpected optional features enabled: %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORK_DIR", "/tmp/amv-work")
	t.Setenv("FIXED_WINDOW_SECONDS", "7.5")
	t.Setenv("ALLOWED_VIDEO_EXTENSIONS", "MP4, mov,,.mp4")
	t.Setenv("RUN_TIMEOUT", "90s")
	t.Setenv("MAX_CONCURRENT_RUNS", "not-a-number")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100500")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WorkDir != "/tmp/amv-work" || cfg.FixedWindowSeconds != 7.5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if got := strings.Join(cfg.AllowedVideoExtensions, ","); got != ".mp4,.mov" {
		t.Fatalf("extensions = %s", got)
	}
	if cfg.RunTimeout != 90*time.Second {
		t.Fatalf("run timeout = %v", cfg.RunTimeout)
	}
	if cfg.MaxConcurrentRuns != 2 {
		t.Fatalf("bad MAX_CONCURRENT_RUNS must keep the default, got %d", cfg.MaxConcurrentRuns)
	}
	if !cfg.TelegramEnabled() || cfg.TelegramChatID != -100500 {
		t.Fatalf("telegram = %q %d", cfg.TelegramToken, cfg.TelegramChatID)
	}
}

func TestValidatePartialS3(t *testing.T) {
	cfg := Config{
		WorkDir:                "w",
		ResultsDir:             "r",
		FixedWindowSeconds:     10,
		AllowedVideoExtensions: []string{".mp4"},
		S3Bucket:               "amv",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("partial S3 config accepted")
	}

	cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey = "http://minio:9000", "us-east-1", "k", "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("full S3 config rejected: %v", err)
	}

	cfg.FixedWindowSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero window accepted")
	}
}
