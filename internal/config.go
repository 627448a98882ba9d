package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	WorkDir    string // per-run workspaces live here, one directory per run
	ResultsDir string // final AMV files

	FixedWindowSeconds     float64
	AllowedVideoExtensions []string

	FFmpegPath        string
	FFprobePath       string
	FFmpegConcurrency int

	AudioBitrate       string
	TempoWindowSeconds float64

	OverlayFontFile string
	OverlayFontSize int

	AcquireRetries int
	HTTPTimeout    time.Duration
	RunTimeout     time.Duration // 0 disables the per-run deadline

	MaxConcurrentRuns int

	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	ResultsPrefix string

	TelegramToken  string
	TelegramChatID int64

	JanitorSchedule string
	StaleRunAge     time.Duration
	// ResultRetention removes finished AMV files older than this; 0 keeps them forever.
	ResultRetention time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{
		WorkDir:    firstNonEmpty(os.Getenv("WORK_DIR"), "uploads"),
		ResultsDir: firstNonEmpty(os.Getenv("RESULTS_DIR"), "results"),

		FixedWindowSeconds:     10,
		AllowedVideoExtensions: []string{".mp4", ".mov", ".mkv", ".avi", ".webm"},

		FFmpegPath:        firstNonEmpty(os.Getenv("FFMPEG_PATH"), "ffmpeg"),
		FFprobePath:       firstNonEmpty(os.Getenv("FFPROBE_PATH"), "ffprobe"),
		FFmpegConcurrency: 2,

		AudioBitrate:       firstNonEmpty(os.Getenv("AUDIO_BITRATE"), "192k"),
		TempoWindowSeconds: 120,

		OverlayFontFile: os.Getenv("OVERLAY_FONT_FILE"),
		OverlayFontSize: 48,

		AcquireRetries: 0,
		HTTPTimeout:    2 * time.Minute,

		MaxConcurrentRuns: 2,

		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      os.Getenv("S3_REGION"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3AccessKey:   firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey:   firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID")),
		ResultsPrefix: firstNonEmpty(os.Getenv("RESULTS_PREFIX"), "results/"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		JanitorSchedule: firstNonEmpty(os.Getenv("JANITOR_SCHEDULE"), "0 */15 * * * *"),
		StaleRunAge:     6 * time.Hour,
	}

	if v := os.Getenv("FIXED_WINDOW_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.FixedWindowSeconds = f
		}
	}

	if v := os.Getenv("ALLOWED_VIDEO_EXTENSIONS"); v != "" {
		exts := lo.FilterMap(strings.Split(v, ","), func(s string, _ int) (string, bool) {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				return "", false
			}
			if !strings.HasPrefix(s, ".") {
				s = "." + s
			}
			return s, true
		})
		if len(exts) > 0 {
			cfg.AllowedVideoExtensions = lo.Uniq(exts)
		}
	}

	if v := os.Getenv("FFMPEG_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FFmpegConcurrency = n
		}
	}

	if v := os.Getenv("TEMPO_WINDOW_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.TempoWindowSeconds = f
		}
	}

	if v := os.Getenv("OVERLAY_FONT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OverlayFontSize = n
		}
	}

	if v := os.Getenv("ACQUIRE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AcquireRetries = n
		}
	}

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HTTPTimeout = d
		}
	}

	if v := os.Getenv("RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.RunTimeout = d
		}
	}

	if v := os.Getenv("MAX_CONCURRENT_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentRuns = n
		}
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		}
	}

	if v := os.Getenv("STALE_RUN_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StaleRunAge = d
		}
	}

	if v := os.Getenv("RESULT_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.ResultRetention = d
		}
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.WorkDir) == "" {
		return errors.New("WORK_DIR is empty")
	}
	if strings.TrimSpace(c.ResultsDir) == "" {
		return errors.New("RESULTS_DIR is empty")
	}
	if c.FixedWindowSeconds <= 0 {
		return fmt.Errorf("fixed window must be > 0, got %v", c.FixedWindowSeconds)
	}
	if len(c.AllowedVideoExtensions) == 0 {
		return errors.New("no allowed video extensions")
	}
	s3Fields := []string{c.S3Endpoint, c.S3Region, c.S3Bucket, c.S3AccessKey, c.S3SecretKey}
	set := lo.CountBy(s3Fields, func(s string) bool { return s != "" })
	if set != 0 && set != len(s3Fields) {
		return errors.New("S3_* env vars must be set together (endpoint, region, bucket, access key, secret key)")
	}
	return nil
}

// S3Enabled reports whether object storage is configured.
func (c Config) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
