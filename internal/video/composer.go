package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"amv-gen/internal/logging"
	"amv-gen/internal/media"
	"amv-gen/internal/model"
)

type ComposeInput struct {
	Video       model.MediaAsset
	Segments    []model.Segment
	Audio       model.MediaAsset
	OverlayText string
	Style       string
	Tempo       *model.TempoEstimate
	// WorkDir holds intermediates; OutputPath receives the finished file.
	WorkDir    string
	OutputPath string
}

// RetimeFunc may move or resize segments to fit a tempo before rendering.
type RetimeFunc func(segs []model.Segment, tempo model.TempoEstimate) []model.Segment

type Composer struct {
	tool         media.Tool
	fontFile     string
	fontSize     int
	audioBitrate string
	log          *logging.Logger

	Retime RetimeFunc
}

func NewComposer(tool media.Tool, fontFile string, fontSize int, audioBitrate string, log *logging.Logger) *Composer {
	if fontSize <= 0 {
		fontSize = 48
	}
	if audioBitrate == "" {
		audioBitrate = "192k"
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Composer{tool: tool, fontFile: fontFile, fontSize: fontSize, audioBitrate: audioBitrate, log: log}
}

// Compose renders the segments with overlay text and the audio track. The
// result lasts min(total segment time, audio duration). Intermediates are
// removed on every path and OutputPath only appears on success.
func (c *Composer) Compose(ctx context.Context, in ComposeInput) (model.MediaAsset, error) {
	if err := ctx.Err(); err != nil {
		return model.MediaAsset{}, &CompositionError{Stage: StageTrim, Err: err}
	}

	segs := in.Segments
	if c.Retime != nil && in.Tempo != nil {
		segs = c.Retime(segs, *in.Tempo)
	}
	if err := ValidateSegments(segs, in.Video.Duration); err != nil {
		return model.MediaAsset{}, &CompositionError{Stage: StageTrim, Err: err}
	}

	budget := math.Min(model.TotalDuration(segs), in.Audio.Duration)
	if budget <= 0 {
		return model.MediaAsset{}, &CompositionError{Stage: StageMux, Err: errors.New("audio track has no duration")}
	}
	segs = ClipToBudget(segs, budget)

	if in.Style != "" && in.Style != model.DefaultStyle {
		c.log.Warnf("video: style %q has no preset, rendering with %q", in.Style, model.DefaultStyle)
	}

	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		return model.MediaAsset{}, &CompositionError{Stage: StageTrim, Err: err}
	}
	cut := filepath.Join(in.WorkDir, "cut.mp4")
	overlaid := filepath.Join(in.WorkDir, "overlay.mp4")
	textFile := filepath.Join(in.WorkDir, "overlay.txt")
	final := filepath.Join(in.WorkDir, "final.mp4")
	defer func() {
		for _, p := range []string{cut, overlaid, textFile, final} {
			_ = os.Remove(p)
		}
	}()

	c.log.Infof("video: composing %d segment(s), %.3fs, into %s", len(segs), budget, in.OutputPath)

	if err := c.trim(ctx, in.Video.Path, segs, cut); err != nil {
		return model.MediaAsset{}, &CompositionError{Stage: StageTrim, Err: err}
	}

	current := cut
	if strings.TrimSpace(in.OverlayText) != "" {
		if err := c.overlay(ctx, cut, in.OverlayText, textFile, overlaid); err != nil {
			return model.MediaAsset{}, &CompositionError{Stage: StageOverlay, Err: err}
		}
		current = overlaid
	}

	if err := c.mux(ctx, current, in.Audio.Path, budget, final); err != nil {
		return model.MediaAsset{}, &CompositionError{Stage: StageMux, Err: err}
	}
	if err := media.MoveFile(final, in.OutputPath); err != nil {
		_ = os.Remove(in.OutputPath)
		return model.MediaAsset{}, &CompositionError{Stage: StageMux, Err: err}
	}

	c.log.Infof("video: ✓ wrote %s", in.OutputPath)
	return model.MediaAsset{Path: in.OutputPath, Duration: budget, Kind: model.MediaKindVideo}, nil
}

// trim seeks each segment as its own input and concatenates them in order.
func (c *Composer) trim(ctx context.Context, src string, segs []model.Segment, dst string) error {
	parts := make([]*ffmpeg.Stream, 0, len(segs))
	for _, s := range segs {
		part := ffmpeg.Input(src, ffmpeg.KwArgs{
			"ss": media.Seconds(s.Start),
			"t":  media.Seconds(s.Duration()),
		}).Video().Filter("setpts", ffmpeg.Args{"PTS-STARTPTS"})
		parts = append(parts, part)
	}

	joined := ffmpeg.Filter(parts, "concat", ffmpeg.Args{}, ffmpeg.KwArgs{
		"n": strconv.Itoa(len(parts)),
		"v": "1",
		"a": "0",
	}).Filter("scale", ffmpeg.Args{"trunc(iw/2)*2", "trunc(ih/2)*2"})

	args := joined.Output(dst, ffmpeg.KwArgs{
		"c:v":     "libx264",
		"preset":  "veryfast",
		"crf":     "18",
		"pix_fmt": "yuv420p",
	}).GetArgs()
	return c.run(ctx, "trim", args, dst)
}

func (c *Composer) overlay(ctx context.Context, src, text, textFile, dst string) error {
	// a textfile avoids escaping user text inside the filter graph
	if err := os.WriteFile(textFile, []byte(text), 0o644); err != nil {
		return err
	}

	kw := ffmpeg.KwArgs{
		"textfile":    textFile,
		"expansion":   "none",
		"fontsize":    strconv.Itoa(c.fontSize),
		"fontcolor":   "white",
		"borderw":     strconv.Itoa(max(2, c.fontSize/16)),
		"bordercolor": "black",
		"x":           "(w-text_w)/2",
		"y":           "h-text_h-" + strconv.Itoa(c.fontSize),
	}
	if c.fontFile != "" {
		kw["fontfile"] = c.fontFile
	}

	args := ffmpeg.Input(src).Video().
		Filter("drawtext", ffmpeg.Args{}, kw).
		Output(dst, ffmpeg.KwArgs{
			"c:v":     "libx264",
			"preset":  "veryfast",
			"crf":     "18",
			"pix_fmt": "yuv420p",
		}).GetArgs()
	return c.run(ctx, "overlay", args, dst)
}

func (c *Composer) mux(ctx context.Context, videoPath, audioPath string, duration float64, dst string) error {
	v := ffmpeg.Input(videoPath).Video()
	a := ffmpeg.Input(audioPath, ffmpeg.KwArgs{"t": media.Seconds(duration)}).Audio()

	args := ffmpeg.Output([]*ffmpeg.Stream{v, a}, dst, ffmpeg.KwArgs{
		"c:v":      "copy",
		"c:a":      "aac",
		"b:a":      c.audioBitrate,
		"t":        media.Seconds(duration),
		"movflags": "+faststart",
	}).GetArgs()
	return c.run(ctx, "mux", args, dst)
}

func (c *Composer) run(ctx context.Context, label string, args []string, dst string) error {
	if err := c.tool.Run(ctx, label, args); err != nil {
		return err
	}
	if err := media.NonEmptyFile(dst); err != nil {
		return fmt.Errorf("ffmpeg did not create output file: %s (%w)", dst, err)
	}
	return nil
}
