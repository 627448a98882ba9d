package uploaders

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/samber/lo"

	"amv-gen/internal/logging"
	"amv-gen/internal/model"
)

// Manager manages all uploaders
type Manager struct {
	uploaders map[string]Uploader
	log       *logging.Logger
}

// NewManager creates a manager for the given uploaders
func NewManager(log *logging.Logger, uploaders ...Uploader) *Manager {
	if log == nil {
		log = logging.Discard()
	}
	m := &Manager{uploaders: make(map[string]Uploader), log: log}
	for _, u := range uploaders {
		m.AddUploader(u.Platform(), u)
	}
	return m
}

// GetUploader returns an uploader for the specified platform
func (m *Manager) GetUploader(platform string) (Uploader, error) {
	uploader, ok := m.uploaders[platform]
	if !ok {
		return nil, fmt.Errorf("uploader not found for platform: %s", platform)
	}
	return uploader, nil
}

// Upload uploads to the specified platform
func (m *Manager) Upload(ctx context.Context, platform string, req *UploadRequest) (*UploadResult, error) {
	uploader, err := m.GetUploader(platform)
	if err != nil {
		return &UploadResult{
			Success:  false,
			Platform: platform,
			Error:    err.Error(),
		}, err
	}

	res, err := uploader.Upload(ctx, req)
	if res == nil {
		res = &UploadResult{Platform: platform}
	}
	if err != nil && res.Error == "" {
		res.Error = err.Error()
	}
	return res, err
}

// UploadToAll uploads to all configured platforms
func (m *Manager) UploadToAll(ctx context.Context, req *UploadRequest) map[string]*UploadResult {
	return m.UploadToSelected(ctx, m.AvailablePlatforms(), req)
}

// UploadToSelected uploads to selected platforms
func (m *Manager) UploadToSelected(ctx context.Context, platforms []string, req *UploadRequest) map[string]*UploadResult {
	results := make(map[string]*UploadResult)

	for _, platform := range platforms {
		result, err := m.Upload(ctx, platform, req)
		if err != nil {
			m.log.Warnf("uploaders: %s upload of %s failed: %v", platform, req.VideoPath, err)
		} else {
			m.log.Infof("uploaders: %s ✓ %s %s", platform, req.VideoPath, result.URL)
		}
		results[platform] = result
	}

	return results
}

// AvailablePlatforms returns the configured platforms in name order
func (m *Manager) AvailablePlatforms() []string {
	platforms := lo.Keys(m.uploaders)
	sort.Strings(platforms)
	return platforms
}

// AddUploader adds or replaces an uploader for a platform
func (m *Manager) AddUploader(platform string, uploader Uploader) {
	m.uploaders[platform] = uploader
}

// Publish fans a successful pipeline result out to every platform. The
// returned error joins all per-platform failures.
func (m *Manager) Publish(ctx context.Context, req model.PipelineRequest, res model.PipelineResult) error {
	if !res.OK() || len(m.uploaders) == 0 {
		return nil
	}

	up := &UploadRequest{
		RunID:     res.RunID,
		VideoPath: res.OutputAssetPath,
		Title:     filepath.Base(res.OutputAssetPath),
		Style:     req.Style,
		Music:     req.MusicReference,
	}
	if res.Tempo != nil {
		up.TempoBPM = res.Tempo.BPM
	}
	up.Caption = caption(up)

	var errs []error
	for platform, r := range m.UploadToAll(ctx, up) {
		if r != nil && !r.Success {
			errs = append(errs, fmt.Errorf("%s: %s", platform, r.Error))
		}
	}
	return errors.Join(errs...)
}

func caption(req *UploadRequest) string {
	c := "🎬 " + req.Title
	if req.Style != "" {
		c += "\nstyle: " + req.Style
	}
	if req.TempoBPM > 0 {
		c += fmt.Sprintf("\ntempo: %.0f BPM", req.TempoBPM)
	}
	return c
}
