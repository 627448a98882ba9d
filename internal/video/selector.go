package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"amv-gen/internal/logging"
	"amv-gen/internal/media"
	"amv-gen/internal/model"
)

// SegmentSelector picks the highlight ranges of a video.
type SegmentSelector interface {
	Select(ctx context.Context, asset model.MediaAsset) ([]model.Segment, error)
}

// FixedWindowSelector stands in for scene detection: it always keeps the
// first Window seconds of the clip.
type FixedWindowSelector struct {
	Window float64
}

func NewFixedWindowSelector(window float64) FixedWindowSelector {
	if window <= 0 {
		window = 10
	}
	return FixedWindowSelector{Window: window}
}

func (s FixedWindowSelector) Select(_ context.Context, asset model.MediaAsset) ([]model.Segment, error) {
	if asset.Duration <= 0 || math.IsNaN(asset.Duration) {
		return nil, &SelectionError{Path: asset.Path, Err: fmt.Errorf("non-positive duration %v", asset.Duration)}
	}
	window := s.Window
	if window <= 0 {
		window = 10
	}
	return []model.Segment{{Start: 0, End: math.Min(window, asset.Duration)}}, nil
}

// ValidateSegments checks that segs is non-empty, ordered by start,
// non-overlapping and inside [0, duration].
func ValidateSegments(segs []model.Segment, duration float64) error {
	if len(segs) == 0 {
		return errors.New("no segments selected")
	}
	for i, s := range segs {
		if !s.Valid(duration) {
			return fmt.Errorf("segment %d %s outside [0, %.3f]", i, s, duration)
		}
		if i > 0 && s.Start < segs[i-1].End {
			return fmt.Errorf("segment %d %s overlaps or precedes %s", i, s, segs[i-1])
		}
	}
	return nil
}

// ClipToBudget keeps segments in order until budget seconds are used,
// shortening the last one that crosses it.
func ClipToBudget(segs []model.Segment, budget float64) []model.Segment {
	out := make([]model.Segment, 0, len(segs))
	left := budget
	for _, s := range segs {
		if left <= 0 {
			break
		}
		if s.Duration() > left {
			s.End = s.Start + left
		}
		out = append(out, s)
		left -= s.Duration()
	}
	return out
}

// Prober turns an input video path into a MediaAsset.
type Prober struct {
	tool    media.Tool
	allowed []string
	log     *logging.Logger
	// load checks decodability; swapped out in tests
	load func(path string) error
}

func NewProber(tool media.Tool, allowedExtensions []string, log *logging.Logger) *Prober {
	if log == nil {
		log = logging.Discard()
	}
	return &Prober{
		tool:    tool,
		allowed: lo.Map(allowedExtensions, func(e string, _ int) string { return strings.ToLower(e) }),
		log:     log,
		load: func(path string) error {
			_, err := media.SafeLoadVideo(path)
			return err
		},
	}
}

func (p *Prober) Probe(ctx context.Context, path string) (model.MediaAsset, error) {
	fail := func(err error) (model.MediaAsset, error) {
		return model.MediaAsset{}, &SelectionError{Path: path, Err: err}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if len(p.allowed) > 0 && !lo.Contains(p.allowed, ext) {
		return fail(fmt.Errorf("extension %q not in %v", ext, p.allowed))
	}
	if err := media.NonEmptyFile(path); err != nil {
		return fail(err)
	}
	if err := p.load(path); err != nil {
		return fail(fmt.Errorf("load video: %w", err))
	}

	info, err := p.tool.Probe(ctx, path)
	if err != nil {
		return fail(err)
	}
	if !info.HasVideo {
		return fail(errors.New("no video stream"))
	}
	if info.Duration <= 0 {
		return fail(fmt.Errorf("non-positive duration %v", info.Duration))
	}

	p.log.Infof("video: probed %s (%.2fs, %dx%d)", path, info.Duration, info.Width, info.Height)
	return model.MediaAsset{Path: path, Duration: info.Duration, Kind: model.MediaKindVideo}, nil
}
