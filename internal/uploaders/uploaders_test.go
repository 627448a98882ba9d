package uploaders

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"amv-gen/internal/model"
	"amv-gen/internal/s3"
)

type stubUploader struct {
	platform string
	err      error
	got      *UploadRequest
}

func (s *stubUploader) Platform() string { return s.platform }

func (s *stubUploader) Upload(_ context.Context, req *UploadRequest) (*UploadResult, error) {
	s.got = req
	if s.err != nil {
		return &UploadResult{Success: false, Platform: s.platform, Error: s.err.Error()}, s.err
	}
	return &UploadResult{Success: true, Platform: s.platform, URL: "https://example/" + s.platform}, nil
}

func TestManagerUploadToAll(t *testing.T) {
	t.Parallel()

	ok := &stubUploader{platform: "telegram"}
	bad := &stubUploader{platform: "s3", err: errors.New("access denied")}
	m := NewManager(nil, ok, bad)

	if got := strings.Join(m.AvailablePlatforms(), ","); got != "s3,telegram" {
		t.Fatalf("platforms = %s", got)
	}

	results := m.UploadToAll(context.Background(), &UploadRequest{VideoPath: "out.mp4"})
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if !results["telegram"].Success || results["s3"].Success {
		t.Fatalf("unexpected results: %+v %+v", results["telegram"], results["s3"])
	}

	if _, err := m.Upload(context.Background(), "tiktok", &UploadRequest{}); err == nil {
		t.Fatalf("unknown platform accepted")
	}
}

func TestManagerPublish(t *testing.T) {
	t.Parallel()

	tg := &stubUploader{platform: "telegram"}
	m := NewManager(nil, tg)

	req := model.NewPipelineRequest("in.mp4", "https://youtu.be/x")
	res := model.Succeeded("abc", "results/abc_AMV.mp4", &model.TempoEstimate{BPM: 127.6})
	if err := m.Publish(context.Background(), req, res); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if tg.got == nil || tg.got.RunID != "abc" || tg.got.VideoPath != "results/abc_AMV.mp4" {
		t.Fatalf("request = %+v", tg.got)
	}
	if !strings.Contains(tg.got.Caption, "128 BPM") || !strings.Contains(tg.got.Caption, "style: default") {
		t.Fatalf("caption = %q", tg.got.Caption)
	}

	tg.got = nil
	if err := m.Publish(context.Background(), req, model.Failed("x", model.StageCompose, "boom")); err != nil || tg.got != nil {
		t.Fatalf("failed runs must not be published")
	}

	m.AddUploader("s3", &stubUploader{platform: "s3", err: errors.New("quota")})
	if err := m.Publish(context.Background(), req, res); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("err = %v, want joined platform failure", err)
	}
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 42}, f.err
}

func TestTelegramUploader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run_AMV.mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	sender := &fakeSender{}
	up := &TelegramUploader{api: sender, chatID: -100123}
	res, err := up.Upload(context.Background(), &UploadRequest{VideoPath: path, Caption: "hello"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.Success || res.Details["message_id"] != "42" {
		t.Fatalf("result = %+v", res)
	}
	v, ok := sender.sent[0].(tgbotapi.VideoConfig)
	if !ok {
		t.Fatalf("sent %T, want VideoConfig", sender.sent[0])
	}
	if v.ChatID != -100123 || v.Caption != "hello" {
		t.Fatalf("video config = chat %d caption %q", v.ChatID, v.Caption)
	}

	sender.err = errors.New("Bad Request: chat not found")
	if res, err := up.Upload(context.Background(), &UploadRequest{VideoPath: path}); err == nil || res.Success {
		t.Fatalf("send error not reported")
	}
	if _, err := up.Upload(context.Background(), &UploadRequest{VideoPath: path + ".missing"}); err == nil {
		t.Fatalf("missing file accepted")
	}
}

type fakeStore struct {
	uploaded map[string]string
	json     map[string]any
	err      error
}

func (f *fakeStore) Bucket() string { return "amv" }
func (f *fakeStore) Download(context.Context, string, io.WriterAt) (int64, error) {
	return 0, s3.ErrNotExist
}
func (f *fakeStore) UploadFile(_ context.Context, key, path, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded[key] = path
	return "https://s3.example/amv/" + key, nil
}
func (f *fakeStore) WriteJSON(_ context.Context, key string, v any) error {
	f.json[key] = v
	return nil
}
func (f *fakeStore) Delete(context.Context, string) error { return nil }
func (f *fakeStore) List(context.Context, string) ([]s3.ObjectInfo, error) {
	return nil, nil
}

func TestS3Uploader(t *testing.T) {
	t.Parallel()

	store := &fakeStore{uploaded: map[string]string{}, json: map[string]any{}}
	up := NewS3Uploader(store, "results")
	res, err := up.Upload(context.Background(), &UploadRequest{RunID: "r1", VideoPath: "/tmp/results/r1_AMV.mp4", Style: "default"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if store.uploaded["results/r1_AMV.mp4"] != "/tmp/results/r1_AMV.mp4" {
		t.Fatalf("uploaded = %v", store.uploaded)
	}
	if _, ok := store.json["results/r1_AMV.json"]; !ok {
		t.Fatalf("manifest missing: %v", store.json)
	}
	if res.URL != "https://s3.example/amv/results/r1_AMV.mp4" {
		t.Fatalf("url = %s", res.URL)
	}

	store.err = errors.New("SlowDown")
	if res, err := up.Upload(context.Background(), &UploadRequest{VideoPath: "x.mp4"}); err == nil || res.Success {
		t.Fatalf("upload error not reported")
	}
}
