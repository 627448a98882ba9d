package main

import (
	"context"
	"fmt"

	"amv-gen/internal"
	"amv-gen/internal/audio"
	"amv-gen/internal/logging"
	"amv-gen/internal/media"
	"amv-gen/internal/pipeline"
	"amv-gen/internal/s3"
	"amv-gen/internal/scheduler"
	"amv-gen/internal/uploaders"
	"amv-gen/internal/video"
)

// app holds everything a command needs, built once per process.
type app struct {
	cfg    internal.Config
	log    *logging.Logger
	store  s3.Client
	runner *pipeline.Runner
}

func newApp(ctx context.Context, errorsPath string) (*app, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(errorsPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	if cfg.S3Enabled() {
		store, err := s3.New(ctx, cfg)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("s3: %w", err)
		}
		a.store = store
	}

	publisher, err := a.publisher()
	if err != nil {
		log.Close()
		return nil, err
	}

	tool := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, cfg.FFmpegConcurrency, log)
	deps := pipeline.Deps{
		Acquirer: audio.NewAcquirer(cfg, tool, a.store, log),
		Prober:   video.NewProber(tool, cfg.AllowedVideoExtensions, log),
		Selector: video.NewFixedWindowSelector(cfg.FixedWindowSeconds),
		Analyzer: audio.NewTempoAnalyzer(tool, cfg.TempoWindowSeconds, log),
		Composer: video.NewComposer(tool, cfg.OverlayFontFile, cfg.OverlayFontSize, cfg.AudioBitrate, log),
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	a.runner = pipeline.NewRunner(pipeline.OptionsFromConfig(cfg), deps, log)

	return a, nil
}

// publisher returns nil when no destination is configured.
func (a *app) publisher() (*uploaders.Manager, error) {
	var ups []uploaders.Uploader
	if a.store != nil {
		ups = append(ups, uploaders.NewS3Uploader(a.store, a.cfg.ResultsPrefix))
	}
	if a.cfg.TelegramEnabled() {
		tg, err := uploaders.NewTelegramUploader(a.cfg.TelegramToken, a.cfg.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		ups = append(ups, tg)
	}
	if len(ups) == 0 {
		return nil, nil
	}
	return uploaders.NewManager(a.log, ups...), nil
}

func (a *app) janitor() *scheduler.Janitor {
	return scheduler.NewJanitor(a.cfg, a.store, a.log)
}

func (a *app) Close() {
	a.log.Close()
}
