package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"amv-gen/internal"
	"amv-gen/internal/audio"
	"amv-gen/internal/logging"
	"amv-gen/internal/model"
	"amv-gen/internal/video"
)

type Options struct {
	WorkDir        string
	ResultsDir     string
	AcquireRetries int
	RetryBackoff   time.Duration
	RunTimeout     time.Duration
}

func OptionsFromConfig(cfg internal.Config) Options {
	return Options{
		WorkDir:        cfg.WorkDir,
		ResultsDir:     cfg.ResultsDir,
		AcquireRetries: cfg.AcquireRetries,
		RetryBackoff:   time.Second,
		RunTimeout:     cfg.RunTimeout,
	}
}

type Deps struct {
	Acquirer AudioAcquirer
	Prober   VideoProber
	Selector video.SegmentSelector
	Analyzer TempoAnalyzer
	Composer Composer
	// Publisher is optional.
	Publisher Publisher
}

type Runner struct {
	opts  Options
	deps  Deps
	log   *logging.Logger
	newID func() string
}

func NewRunner(opts Options, deps Deps, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{opts: opts, deps: deps, log: log, newID: uuid.NewString}
}

// stageError tags an error with the stage that produced it.
type stageError struct {
	stage model.Stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Run executes one request end to end. It never panics and never returns
// without releasing the run's temporary files; on success only the output
// under ResultsDir remains.
func (r *Runner) Run(ctx context.Context, req model.PipelineRequest) (res model.PipelineResult) {
	runID := r.newID()
	started := time.Now()
	stage := model.StageAcquireAudio

	defer func() {
		res.RunID = runID
		res.StartedAt = started
		res.FinishedAt = time.Now()
	}()

	scope := NewScope(r.log)
	defer scope.Release()

	defer func() {
		if p := recover(); p != nil {
			r.log.Errorf("pipeline: run %s panicked in %s: %v", runID, stage, p)
			res = model.Failed(runID, stage, fmt.Sprintf("panic: %v", p))
		}
	}()

	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}

	req = req.Normalize()
	r.log.Infof("pipeline: run %s start video=%s music=%s style=%s", runID, req.VideoAssetPath, req.MusicReference, req.Style)

	workDir := filepath.Join(r.opts.WorkDir, runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return r.fail(runID, stage, fmt.Errorf("create workspace: %w", err))
	}
	scope.TrackDir(workDir)

	musicPath := filepath.Join(workDir, "music.mp3")
	scope.Track(musicPath)
	music, err := r.acquire(ctx, req.MusicReference, musicPath)
	if err != nil {
		return r.fail(runID, stage, err)
	}

	var (
		clip  model.MediaAsset
		segs  []model.Segment
		tempo model.TempoEstimate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(model.StageSelectSegments, func() error {
		var err error
		clip, err = r.deps.Prober.Probe(gctx, req.VideoAssetPath)
		if err != nil {
			return err
		}
		segs, err = r.deps.Selector.Select(gctx, clip)
		if err != nil {
			return err
		}
		return video.ValidateSegments(segs, clip.Duration)
	}))
	g.Go(guard(model.StageAnalyzeTempo, func() error {
		var err error
		tempo, err = r.deps.Analyzer.Analyze(gctx, music)
		return err
	}))
	if err := g.Wait(); err != nil {
		var se *stageError
		if errors.As(err, &se) {
			return r.fail(runID, se.stage, se.err)
		}
		return r.fail(runID, model.StageSelectSegments, err)
	}
	r.log.Infof("pipeline: run %s segments=%v tempo=%.1fbpm", runID, segs, tempo.BPM)

	stage = model.StageCompose
	if err := os.MkdirAll(r.opts.ResultsDir, 0o755); err != nil {
		return r.fail(runID, stage, err)
	}
	outPath := filepath.Join(r.opts.ResultsDir, runID+"_AMV.mp4")
	scope.Track(outPath)

	out, err := r.deps.Composer.Compose(ctx, video.ComposeInput{
		Video:       clip,
		Segments:    segs,
		Audio:       music,
		OverlayText: req.OverlayText,
		Style:       req.Style,
		Tempo:       &tempo,
		WorkDir:     filepath.Join(workDir, "render"),
		OutputPath:  outPath,
	})
	if err != nil {
		return r.fail(runID, stage, err)
	}
	scope.Keep(out.Path)

	res = model.Succeeded(runID, out.Path, &tempo)
	r.log.Infof("pipeline: run %s ✓ done in %s -> %s (%.2fs)", runID, time.Since(started).Round(time.Millisecond), out.Path, out.Duration)

	if r.deps.Publisher != nil {
		if err := r.deps.Publisher.Publish(ctx, req, res); err != nil {
			r.log.Warnf("pipeline: run %s publish: %v", runID, err)
		}
	}
	return res
}

func (r *Runner) acquire(ctx context.Context, ref, dest string) (model.MediaAsset, error) {
	for attempt := 0; ; attempt++ {
		asset, err := r.deps.Acquirer.Acquire(ctx, ref, dest)
		if err == nil || attempt >= r.opts.AcquireRetries || !audio.IsTransient(err) {
			return asset, err
		}
		wait := r.opts.RetryBackoff << attempt
		r.log.Warnf("pipeline: acquire attempt %d failed, retrying in %s: %v", attempt+1, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return asset, err
		}
	}
}

func (r *Runner) fail(runID string, stage model.Stage, err error) model.PipelineResult {
	r.log.Errorf("pipeline: run %s failed at %s: %v", runID, stage, err)
	return model.Failed(runID, stage, err.Error())
}

// guard tags fn's error with stage and turns a panic into an error so one
// goroutine cannot take the process down.
func guard(stage model.Stage, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = &stageError{stage: stage, err: fmt.Errorf("panic: %v", p)}
			}
		}()
		if err := fn(); err != nil {
			return &stageError{stage: stage, err: err}
		}
		return nil
	}
}
