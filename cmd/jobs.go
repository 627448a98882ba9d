package main

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"amv-gen/internal/model"
)

// parseJobs reads a JSON array of jobs. A job without a "text" key keeps the
// default overlay text; an explicit empty string disables the overlay.
func parseJobs(data []byte) ([]model.PipelineRequest, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("jobs: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errors.New("jobs: expected a JSON array")
	}

	var reqs []model.PipelineRequest
	var errs []error
	i := -1
	root.ForEach(func(_, job gjson.Result) bool {
		i++
		if !job.IsObject() {
			errs = append(errs, fmt.Errorf("jobs[%d]: expected an object", i))
			return true
		}
		video, music := job.Get("video"), job.Get("music")
		if video.String() == "" || music.String() == "" {
			errs = append(errs, fmt.Errorf("jobs[%d]: video and music are required", i))
			return true
		}

		req := model.NewPipelineRequest(video.String(), music.String())
		if text := job.Get("text"); text.Exists() {
			req.OverlayText = text.String()
		}
		if style := job.Get("style"); style.Exists() {
			req.Style = style.String()
		}
		reqs = append(reqs, req)
		return true
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, errors.New("jobs: empty job list")
	}
	return reqs, nil
}
