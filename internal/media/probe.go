package media

import (
	"errors"
	"fmt"

	"github.com/mowshon/moviego"
	"github.com/tidwall/gjson"
)

type ProbeInfo struct {
	Duration   float64
	FormatName string
	HasVideo   bool
	HasAudio   bool
	Width      int
	Height     int
}

// ParseProbe reads `ffprobe -show_format -show_streams -of json` output.
// The container duration wins; otherwise the longest stream duration is used.
func ParseProbe(data []byte) (ProbeInfo, error) {
	if !gjson.ValidBytes(data) {
		return ProbeInfo{}, errors.New("ffprobe returned invalid json")
	}
	root := gjson.ParseBytes(data)

	info := ProbeInfo{
		FormatName: root.Get("format.format_name").String(),
		Duration:   root.Get("format.duration").Float(),
	}

	var longest float64
	root.Get("streams").ForEach(func(_, s gjson.Result) bool {
		switch s.Get("codec_type").String() {
		case "video":
			// cover art shows up as a single-frame video stream
			if s.Get("disposition.attached_pic").Int() == 1 {
				return true
			}
			if !info.HasVideo {
				info.Width = int(s.Get("width").Int())
				info.Height = int(s.Get("height").Int())
			}
			info.HasVideo = true
		case "audio":
			info.HasAudio = true
		}
		if d := s.Get("duration").Float(); d > longest {
			longest = d
		}
		return true
	})
	if info.Duration <= 0 {
		info.Duration = longest
	}

	if !root.Get("format").Exists() && !root.Get("streams").Exists() {
		return ProbeInfo{}, errors.New("ffprobe output has neither format nor streams")
	}
	return info, nil
}

// SafeLoadVideo wraps moviego.Load, which panics on some malformed inputs.
func SafeLoadVideo(path string) (vid moviego.Video, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("moviego.Load panicked: %v", r)
		}
	}()
	vid, err = moviego.Load(path)
	return
}
