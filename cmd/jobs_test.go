package main

import (
	"strings"
	"testing"

	"amv-gen/internal/model"
)

func TestParseJobs(t *testing.T) {
	t.Parallel()

	data := `[
		{"video": "a.mp4", "music": "https://youtu.be/x"},
		{"video": "b.mp4", "music": "song.mp3", "text": "", "style": "glitch"},
		{"video": "c.mp4", "music": "s3://amv/m.mp3", "text": "Hype"}
	]`
	reqs, err := parseJobs([]byte(data))
	if err != nil {
		t.Fatalf("parseJobs: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("len = %d", len(reqs))
	}
	if reqs[0].OverlayText != model.DefaultOverlayText || reqs[0].Style != model.DefaultStyle {
		t.Fatalf("job 0 defaults = %+v", reqs[0])
	}
	if reqs[1].OverlayText != "" || reqs[1].Style != "glitch" {
		t.Fatalf("job 1 = %+v", reqs[1])
	}
	if reqs[2].OverlayText != "Hype" || reqs[2].MusicReference != "s3://amv/m.mp3" {
		t.Fatalf("job 2 = %+v", reqs[2])
	}
}

func TestParseJobsErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":      `[{`,
		"not an array":  `{"video": "a.mp4"}`,
		"empty":         `[]`,
		"missing music": `[{"video": "a.mp4"}]`,
		"not an object": `["a.mp4"]`,
	}
	for name, data := range cases {
		if _, err := parseJobs([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	_, err := parseJobs([]byte(`[{"video": "a.mp4", "music": "m.mp3"}, {"video": "b.mp4"}]`))
	if err == nil || !strings.Contains(err.Error(), "jobs[1]") {
		t.Fatalf("err = %v, want index of bad job", err)
	}
}
