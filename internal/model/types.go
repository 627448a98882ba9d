package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultOverlayText = "Epic AMV Edit"
	DefaultStyle       = "default"
)

type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// MediaAsset is a file on disk produced or consumed by a run.
type MediaAsset struct {
	Path     string    `json:"path"`
	Duration float64   `json:"duration_s"`
	Kind     MediaKind `json:"kind"`
}

// Segment is the half-open range [Start, End) in seconds.
type Segment struct {
	Start float64 `json:"start_s"`
	End   float64 `json:"end_s"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Valid reports whether 0 <= Start < End <= duration.
func (s Segment) Valid(duration float64) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= duration
}

func (s Segment) String() string {
	return fmt.Sprintf("[%.3f, %.3f)", s.Start, s.End)
}

func TotalDuration(segs []Segment) float64 {
	return lo.Reduce(segs, func(acc float64, s Segment, _ int) float64 {
		return acc + s.Duration()
	}, 0)
}

type TempoEstimate struct {
	BPM float64 `json:"bpm"`
}

type ReferenceKind string

const (
	ReferenceKindLocal   ReferenceKind = "local"
	ReferenceKindYouTube ReferenceKind = "youtube"
	ReferenceKindHTTP    ReferenceKind = "http"
	ReferenceKindS3      ReferenceKind = "s3"
)

type PipelineRequest struct {
	VideoAssetPath string `json:"video"`
	MusicReference string `json:"music"`
	// OverlayText is drawn over the clip; empty disables the overlay.
	OverlayText string `json:"text"`
	Style       string `json:"style"`
}

func NewPipelineRequest(videoPath, musicRef string) PipelineRequest {
	return PipelineRequest{
		VideoAssetPath: videoPath,
		MusicReference: musicRef,
		OverlayText:    DefaultOverlayText,
		Style:          DefaultStyle,
	}
}

// Normalize trims the string fields and fills an empty Style.
func (r PipelineRequest) Normalize() PipelineRequest {
	r.VideoAssetPath = strings.TrimSpace(r.VideoAssetPath)
	r.MusicReference = strings.TrimSpace(r.MusicReference)
	r.Style = strings.TrimSpace(r.Style)
	if r.Style == "" {
		r.Style = DefaultStyle
	}
	return r
}

type Stage string

const (
	StageAcquireAudio   Stage = "ACQUIRE_AUDIO"
	StageSelectSegments Stage = "SELECT_SEGMENTS"
	StageAnalyzeTempo   Stage = "ANALYZE_TEMPO"
	StageCompose        Stage = "COMPOSE"
)

type Failure struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Stage, f.Message)
}

// PipelineResult holds either an output path or a Failure, never both.
type PipelineResult struct {
	RunID           string         `json:"run_id"`
	OutputAssetPath string         `json:"output,omitempty"`
	Tempo           *TempoEstimate `json:"tempo,omitempty"`
	Failure         *Failure       `json:"failure,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}

func (r PipelineResult) OK() bool {
	return r.Failure == nil && r.OutputAssetPath != ""
}

func Succeeded(runID, output string, tempo *TempoEstimate) PipelineResult {
	return PipelineResult{RunID: runID, OutputAssetPath: output, Tempo: tempo}
}

func Failed(runID string, stage Stage, msg string) PipelineResult {
	return PipelineResult{RunID: runID, Failure: &Failure{Stage: stage, Message: msg}}
}
