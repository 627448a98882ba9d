package audio

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"amv-gen/internal/model"
)

var youtubeHosts = []string{"youtube.com", "youtu.be", "music.youtube.com", "m.youtube.com", "www.youtube.com"}

var audioExtensions = []string{".mp3", ".m4a", ".aac", ".wav", ".ogg", ".oga", ".opus", ".flac", ".weba"}

// ClassifyReference decides how a music reference is fetched. For local
// references the returned location is a filesystem path.
func ClassifyReference(ref string) (model.ReferenceKind, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", errors.New("empty music reference")
	}

	u, err := url.Parse(ref)
	// a windows drive letter parses as a one-letter scheme
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return model.ReferenceKindLocal, filepath.Clean(ref), nil
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		if u.Path == "" {
			return "", "", fmt.Errorf("file reference without path: %q", ref)
		}
		return model.ReferenceKindLocal, filepath.FromSlash(u.Path), nil
	case "s3":
		return model.ReferenceKindS3, ref, nil
	case "http", "https":
		if u.Host == "" {
			return "", "", fmt.Errorf("url without host: %q", ref)
		}
		host := strings.ToLower(u.Hostname())
		if lo.Contains(youtubeHosts, host) {
			return model.ReferenceKindYouTube, ref, nil
		}
		return model.ReferenceKindHTTP, ref, nil
	default:
		return "", "", fmt.Errorf("unsupported reference scheme %q", u.Scheme)
	}
}

func looksLikeAudioFile(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return lo.Contains(audioExtensions, strings.ToLower(filepath.Ext(u.Path)))
}
