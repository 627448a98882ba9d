package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"amv-gen/internal"
	"amv-gen/internal/logging"
	"amv-gen/internal/media"
	"amv-gen/internal/model"
	"amv-gen/internal/s3"
)

const (
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxDownloadBytes = 256 << 20
)

type youtubeClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// Acquirer turns a music reference into an MP3 on local disk.
type Acquirer struct {
	tool        media.Tool
	http        *http.Client
	yt          youtubeClient
	store       s3.Client
	bitrate     string
	httpTimeout time.Duration
	log         *logging.Logger
}

// NewAcquirer builds an Acquirer. store may be nil, in which case s3://
// references are rejected.
func NewAcquirer(cfg internal.Config, tool media.Tool, store s3.Client, log *logging.Logger) *Acquirer {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	bitrate := cfg.AudioBitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	if log == nil {
		log = logging.Discard()
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Acquirer{
		tool:        tool,
		http:        httpClient,
		yt:          &youtube.Client{HTTPClient: httpClient},
		store:       store,
		bitrate:     bitrate,
		httpTimeout: timeout,
		log:         log,
	}
}

// Acquire fetches ref, transcodes it to MP3 at dest and probes the result.
// On failure neither dest nor the intermediate download remain.
func (a *Acquirer) Acquire(ctx context.Context, ref, dest string) (asset model.MediaAsset, err error) {
	defer func() {
		if err != nil {
			_ = os.Remove(dest)
			err = &AcquisitionError{Reference: ref, Err: err}
		}
	}()

	kind, loc, err := ClassifyReference(ref)
	if err != nil {
		return model.MediaAsset{}, err
	}
	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return model.MediaAsset{}, err
	}

	raw := dest + ".src"
	defer os.Remove(raw)

	a.log.Infof("audio: acquiring %s reference %s", kind, ref)

	src := raw
	switch kind {
	case model.ReferenceKindLocal:
		if err = media.NonEmptyFile(loc); err != nil {
			return model.MediaAsset{}, err
		}
		src = loc
	case model.ReferenceKindYouTube:
		err = a.fetchYouTube(ctx, loc, raw)
	case model.ReferenceKindHTTP:
		err = a.fetchHTTP(ctx, loc, raw, true)
	case model.ReferenceKindS3:
		err = a.fetchS3(ctx, loc, raw)
	}
	if err != nil {
		return model.MediaAsset{}, err
	}

	info, err := a.tool.Probe(ctx, src)
	if err != nil {
		return model.MediaAsset{}, fmt.Errorf("probe source: %w", err)
	}
	if !info.HasAudio {
		return model.MediaAsset{}, ErrNoAudioStream
	}

	args := ffmpeg.Input(src).Audio().
		Output(dest, ffmpeg.KwArgs{
			"c:a": "libmp3lame",
			"b:a": a.bitrate,
			"ar":  "44100",
			"ac":  "2",
			"f":   "mp3",
		}).GetArgs()
	if err = a.tool.Run(ctx, "transcode", args); err != nil {
		return model.MediaAsset{}, fmt.Errorf("transcode: %w", err)
	}

	out, err := a.tool.Probe(ctx, dest)
	if err != nil {
		return model.MediaAsset{}, fmt.Errorf("probe transcoded audio: %w", err)
	}
	if !out.HasAudio || out.Duration <= 0 {
		return model.MediaAsset{}, ErrNoAudioStream
	}

	a.log.Infof("audio: ✓ acquired %s (%.2fs)", dest, out.Duration)
	return model.MediaAsset{Path: dest, Duration: out.Duration, Kind: model.MediaKindAudio}, nil
}

func (a *Acquirer) fetchYouTube(ctx context.Context, videoURL, dest string) error {
	video, err := a.yt.GetVideoContext(ctx, videoURL)
	if err != nil {
		return fmt.Errorf("youtube: get video: %w", err)
	}
	format, err := pickAudioFormat(video.Formats)
	if err != nil {
		return fmt.Errorf("youtube %s: %w", video.ID, err)
	}
	a.log.Infof("audio: youtube %s format itag=%d bitrate=%d", video.ID, format.ItagNo, format.Bitrate)

	stream, _, err := a.yt.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("youtube: get stream: %w", err)
	}
	defer stream.Close()
	return writeLimited(dest, stream)
}

// pickAudioFormat prefers audio-only formats and then the highest bitrate.
func pickAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, ErrNoAudioStream
	}
	candidates := []youtube.Format(withAudio)
	audioOnly := lo.Filter(candidates, func(f youtube.Format, _ int) bool {
		return strings.HasPrefix(f.MimeType, "audio/")
	})
	if len(audioOnly) > 0 {
		candidates = audioOnly
	}
	best := lo.MaxBy(candidates, func(a, b youtube.Format) bool { return a.Bitrate > b.Bitrate })
	return &best, nil
}

// fetchHTTP downloads rawURL to dest. When the URL serves an HTML page and
// allowPage is set, the page is scraped for an audio link which is fetched
// instead.
func (a *Acquirer) fetchHTTP(ctx context.Context, rawURL, dest string, allowPage bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPStatusError{URL: rawURL, Code: resp.StatusCode}
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		if !allowPage {
			return fmt.Errorf("%s is a page: %w", rawURL, ErrNoAudioStream)
		}
		links, err := a.discoverAudio(ctx, rawURL)
		if err != nil {
			return fmt.Errorf("scrape %s: %w", rawURL, err)
		}
		if len(links) == 0 {
			return fmt.Errorf("page %s: %w", rawURL, ErrNoAudioStream)
		}
		a.log.Infof("audio: page %s has %d audio candidates, using %s", rawURL, len(links), links[0])
		return a.fetchHTTP(ctx, links[0], dest, false)
	}

	return writeLimited(dest, resp.Body)
}

func (a *Acquirer) fetchS3(ctx context.Context, ref, dest string) error {
	if a.store == nil {
		return errors.New("s3 reference but S3 is not configured")
	}
	bucket, key, err := s3.ParseURL(ref)
	if err != nil {
		return err
	}
	if bucket != a.store.Bucket() {
		return fmt.Errorf("bucket %q is not the configured bucket %q", bucket, a.store.Bucket())
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := a.store.Download(ctx, key, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("s3 object %s is empty", key)
	}
	return nil
}

func writeLimited(dest string, r io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(r, maxDownloadBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > maxDownloadBytes {
		return fmt.Errorf("download exceeds %d bytes", maxDownloadBytes)
	}
	if n == 0 {
		return errors.New("download is empty")
	}
	return nil
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
