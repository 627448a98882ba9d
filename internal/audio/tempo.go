package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"amv-gen/internal/logging"
	"amv-gen/internal/media"
	"amv-gen/internal/model"
)

const (
	analysisRate = 11025
	frameSize    = 512
	hopSize      = 256
	minBPM       = 60.0
	maxBPM       = 200.0
	priorBPM     = 120.0
)

var smoothKernel = [5]float64{0.25, 0.5, 1, 0.5, 0.25}

type TempoAnalyzer struct {
	tool   media.Tool
	window float64
	log    *logging.Logger
}

// NewTempoAnalyzer analyzes at most windowSeconds from the start of a track.
func NewTempoAnalyzer(tool media.Tool, windowSeconds float64, log *logging.Logger) *TempoAnalyzer {
	if windowSeconds <= 0 {
		windowSeconds = 120
	}
	if log == nil {
		log = logging.Discard()
	}
	return &TempoAnalyzer{tool: tool, window: windowSeconds, log: log}
}

func (t *TempoAnalyzer) Analyze(ctx context.Context, asset model.MediaAsset) (model.TempoEstimate, error) {
	args := ffmpeg.Input(asset.Path, ffmpeg.KwArgs{"t": media.Seconds(t.window)}).Audio().
		Output("pipe:", ffmpeg.KwArgs{
			"f":  "f32le",
			"ac": "1",
			"ar": fmt.Sprint(analysisRate),
		}).GetArgs()

	pcm, err := t.tool.Output(ctx, "tempo-decode", args)
	if err != nil {
		return model.TempoEstimate{}, &AnalysisError{Path: asset.Path, Err: fmt.Errorf("decode: %w", err)}
	}

	bpm, err := EstimateBPM(decodeF32LE(pcm), analysisRate)
	if err != nil {
		return model.TempoEstimate{}, &AnalysisError{Path: asset.Path, Err: err}
	}
	t.log.Infof("audio: tempo of %s ≈ %.1f BPM", asset.Path, bpm)
	return model.TempoEstimate{BPM: bpm}, nil
}

func decodeF32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// EstimateBPM finds the dominant beat period of mono PCM samples.
//
// The onset envelope is the positive first difference of log-compressed
// frame energy, smoothed and mean-centred. Its autocorrelation over lags
// covering 60-200 BPM is weighted by a log-normal prior around 120 BPM with
// one octave of spread, which keeps half and double tempo peaks from
// winning. The best lag is refined with a parabola through its neighbours.
func EstimateBPM(samples []float32, sampleRate int) (float64, error) {
	if sampleRate <= 0 || len(samples) < sampleRate {
		return 0, ErrTooShort
	}
	frames := (len(samples)-frameSize)/hopSize + 1
	if frames < 8 {
		return 0, ErrTooShort
	}

	env := make([]float64, frames)
	for j := range env {
		var e float64
		for _, v := range samples[j*hopSize : j*hopSize+frameSize] {
			e += float64(v) * float64(v)
		}
		env[j] = math.Log1p(1000 * e / frameSize)
	}

	flux := make([]float64, frames)
	maxFlux := 0.0
	for j := 1; j < frames; j++ {
		if d := env[j] - env[j-1]; d > 0 {
			flux[j] = d
			maxFlux = math.Max(maxFlux, d)
		}
	}
	if maxFlux < 1e-6 {
		return 0, ErrSilent
	}

	onset := make([]float64, frames)
	mean := 0.0
	for i := range onset {
		acc := 0.0
		for k, w := range smoothKernel {
			if idx := i + k - 2; idx >= 0 && idx < frames {
				acc += w * flux[idx]
			}
		}
		onset[i] = acc
		mean += acc
	}
	mean /= float64(frames)
	for i := range onset {
		onset[i] -= mean
	}

	fps := float64(sampleRate) / hopSize
	minLag := max(1, int(math.Floor(fps*60/maxBPM)))
	maxLag := min(frames/2, int(math.Ceil(fps*60/minBPM)))
	if maxLag < minLag {
		return 0, ErrTooShort
	}

	first, last := max(1, minLag-1), min(maxLag+1, frames-1)
	ac := make([]float64, last+1)
	for lag := first; lag <= last; lag++ {
		sum := 0.0
		for i := 0; i+lag < frames; i++ {
			sum += onset[i] * onset[i+lag]
		}
		ac[lag] = sum / float64(frames-lag)
	}
	has := func(lag int) bool { return lag >= first && lag <= last }

	best, bestScore := -1, math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		if !has(lag) {
			continue
		}
		bpm := 60 * fps / float64(lag)
		dev := math.Log2(bpm / priorBPM)
		if score := ac[lag] * math.Exp(-0.5*dev*dev); score > bestScore {
			best, bestScore = lag, score
		}
	}
	if best < 0 || ac[best] <= 0 {
		return 0, ErrNoPeriodicity
	}

	refined := float64(best)
	if has(best-1) && has(best+1) {
		prev, next := ac[best-1], ac[best+1]
		if d := prev - 2*ac[best] + next; d < 0 {
			refined = float64(best) + 0.5*(prev-next)/d
		}
	}
	return 60 * fps / refined, nil
}
