package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"

	"amv-gen/internal/model"
)

// clickTrack renders 10ms 1kHz bursts at the given tempo.
func clickTrack(bpm, seconds float64, sampleRate int) []float32 {
	x := make([]float32, int(seconds*float64(sampleRate)))
	period := 60 / bpm
	clickLen := int(0.01 * float64(sampleRate))
	for t := 0.0; t < seconds; t += period {
		start := int(t * float64(sampleRate))
		for i := 0; i < clickLen && start+i < len(x); i++ {
			x[start+i] += float32(0.8 * math.Sin(2*math.Pi*1000*float64(i)/float64(sampleRate)))
		}
	}
	return x
}

func encodeF32LE(samples []float32) []byte {
	b := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func TestEstimateBPMClickTracks(t *testing.T) {
	t.Parallel()

	for _, bpm := range []float64{90, 100, 120, 128, 140} {
		bpm := bpm
		t.Run(fmt.Sprint(bpm), func(t *testing.T) {
			t.Parallel()
			got, err := EstimateBPM(clickTrack(bpm, 20, analysisRate), analysisRate)
			if err != nil {
				t.Fatalf("EstimateBPM(%v): %v", bpm, err)
			}
			if math.Abs(got-bpm) > 2 {
				t.Fatalf("EstimateBPM(%v) = %.2f", bpm, got)
			}
		})
	}
}

func TestEstimateBPMShortClipsStayInLagRange(t *testing.T) {
	t.Parallel()

	// Short inputs cap the lag search at half the frame count.
	for _, seconds := range []float64{1, 1.5, 2, 3} {
		got, err := EstimateBPM(clickTrack(120, seconds, analysisRate), analysisRate)
		if err != nil {
			if !errors.Is(err, ErrNoPeriodicity) {
				t.Fatalf("%vs: err = %v", seconds, err)
			}
			continue
		}
		if math.IsNaN(got) || math.IsInf(got, 0) || got <= 0 {
			t.Fatalf("%vs: bpm = %v", seconds, got)
		}
	}
}

func TestEstimateBPMSilence(t *testing.T) {
	t.Parallel()

	_, err := EstimateBPM(make([]float32, analysisRate*5), analysisRate)
	if !errors.Is(err, ErrSilent) {
		t.Fatalf("err = %v, want ErrSilent", err)
	}
}

func TestEstimateBPMTooShort(t *testing.T) {
	t.Parallel()

	_, err := EstimateBPM(clickTrack(120, 0.5, analysisRate), analysisRate)
	if !errors.Is(err, ErrTooShort) {
		t.Fatalf("err = %v, want ErrTooShort", err)
	}
}

func TestAnalyzeDecodesThroughTool(t *testing.T) {
	t.Parallel()

	tool := &fakeTool{pcm: encodeF32LE(clickTrack(120, 20, analysisRate))}
	an := NewTempoAnalyzer(tool, 30, nil)

	got, err := an.Analyze(context.Background(), model.MediaAsset{Path: "music.mp3", Kind: model.MediaKindAudio})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if math.Abs(got.BPM-120) > 2 {
		t.Fatalf("BPM = %.2f", got.BPM)
	}
	if len(tool.outputs) != 1 {
		t.Fatalf("expected one decode, got %d", len(tool.outputs))
	}
	args := tool.outputs[0]
	if args[len(args)-1] != "pipe:" {
		t.Fatalf("decode should write to stdout, args %v", args)
	}
}

func TestAnalyzeWrapsFailures(t *testing.T) {
	t.Parallel()

	an := NewTempoAnalyzer(&fakeTool{pcm: encodeF32LE(make([]float32, analysisRate*3))}, 30, nil)
	_, err := an.Analyze(context.Background(), model.MediaAsset{Path: "quiet.mp3"})

	var ae *AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AnalysisError", err)
	}
	if !errors.Is(err, ErrSilent) {
		t.Fatalf("err = %v, want ErrSilent inside", err)
	}

	an = NewTempoAnalyzer(&fakeTool{outputErr: errors.New("ffmpeg error: bad data")}, 30, nil)
	if _, err := an.Analyze(context.Background(), model.MediaAsset{Path: "bad.mp3"}); !errors.As(err, &ae) {
		t.Fatalf("decode failure not wrapped: %v", err)
	}
}
