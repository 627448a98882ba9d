package video

import "fmt"

type SelectionError struct {
	Path string
	Err  error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("select segments of %s: %v", e.Path, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// ComposeStage names the ffmpeg pass that failed.
type ComposeStage string

const (
	StageTrim    ComposeStage = "trim"
	StageOverlay ComposeStage = "overlay"
	StageMux     ComposeStage = "mux"
)

type CompositionError struct {
	Stage ComposeStage
	Err   error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose (%s): %v", e.Stage, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }
