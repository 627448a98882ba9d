package uploaders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"amv-gen/internal/s3"
)

// S3Uploader archives results under a key prefix together with a JSON
// manifest describing the run.
type S3Uploader struct {
	store  s3.Client
	prefix string
}

func NewS3Uploader(store s3.Client, prefix string) *S3Uploader {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Uploader{store: store, prefix: prefix}
}

func (u *S3Uploader) Platform() string { return "s3" }

type manifest struct {
	RunID      string    `json:"run_id"`
	Key        string    `json:"key"`
	Music      string    `json:"music"`
	Style      string    `json:"style"`
	TempoBPM   float64   `json:"tempo_bpm,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (u *S3Uploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	key := u.prefix + filepath.Base(req.VideoPath)
	loc, err := u.store.UploadFile(ctx, key, req.VideoPath, "video/mp4")
	if err != nil {
		return &UploadResult{
			Success:  false,
			Platform: "s3",
			Error:    fmt.Sprintf("Failed to upload video: %v", err),
		}, err
	}

	manifestKey := strings.TrimSuffix(key, filepath.Ext(key)) + ".json"
	m := manifest{
		RunID:      req.RunID,
		Key:        key,
		Music:      req.Music,
		Style:      req.Style,
		TempoBPM:   req.TempoBPM,
		UploadedAt: time.Now().UTC(),
	}
	if err := u.store.WriteJSON(ctx, manifestKey, m); err != nil {
		return &UploadResult{
			Success:  false,
			Platform: "s3",
			URL:      loc,
			Error:    fmt.Sprintf("Failed to write manifest: %v", err),
		}, err
	}

	return &UploadResult{
		Success:  true,
		Platform: "s3",
		URL:      loc,
		Details:  map[string]string{"key": key, "manifest": manifestKey},
	}, nil
}
