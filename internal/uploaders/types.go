package uploaders

import "context"

// UploadResult represents the result of an upload operation
type UploadResult struct {
	Success  bool              `json:"success"`
	Platform string            `json:"platform"`
	URL      string            `json:"url,omitempty"`
	Error    string            `json:"error,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// UploadRequest describes a finished AMV to publish
type UploadRequest struct {
	RunID     string
	VideoPath string
	Title     string
	Caption   string
	Style     string
	TempoBPM  float64
	Music     string
}

// Uploader publishes a rendered video to one destination
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Platform() string
}
