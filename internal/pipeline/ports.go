package pipeline

import (
	"context"

	"amv-gen/internal/model"
	"amv-gen/internal/video"
)

type AudioAcquirer interface {
	Acquire(ctx context.Context, ref, dest string) (model.MediaAsset, error)
}

type VideoProber interface {
	Probe(ctx context.Context, path string) (model.MediaAsset, error)
}

type TempoAnalyzer interface {
	Analyze(ctx context.Context, asset model.MediaAsset) (model.TempoEstimate, error)
}

type Composer interface {
	Compose(ctx context.Context, in video.ComposeInput) (model.MediaAsset, error)
}

// Publisher ships a finished result somewhere. Errors are logged, never
// turned into a run failure.
type Publisher interface {
	Publish(ctx context.Context, req model.PipelineRequest, res model.PipelineResult) error
}

// Pipeline is what the worker pool and the CLI drive.
type Pipeline interface {
	Run(ctx context.Context, req model.PipelineRequest) model.PipelineResult
}
