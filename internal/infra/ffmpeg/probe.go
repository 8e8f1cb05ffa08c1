package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
)

// VideoInfo is what the extractor needs to know about the first video stream.
type VideoInfo struct {
	Width       int
	Height      int
	Duration    float64
	TotalFrames int
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Duration     string `json:"duration"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (e *Extractor) probe(ctx context.Context, videoPath string) (VideoInfo, error) {
	res, err := e.runner.Run(ctx, port.Command{
		Name: e.ffprobe,
		Args: []string{
			"-v", "error",
			"-select_streams", "v",
			"-show_entries", "stream=codec_type,width,height,duration,nb_frames,avg_frame_rate:format=duration",
			"-of", "json",
			videoPath,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return VideoInfo{}, err
		}
		return VideoInfo{}, fmt.Errorf("%w: ffprobe: %v: %s", entity.ErrMediaProbe, err, strings.TrimSpace(string(res.Stderr)))
	}
	return parseProbe(res.Stdout)
}

func parseProbe(data []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("%w: parse ffprobe output: %v", entity.ErrMediaProbe, err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info := VideoInfo{Width: s.Width, Height: s.Height}

		d, ok := parseNumber(s.Duration)
		if !ok {
			d, ok = parseNumber(out.Format.Duration)
		}
		if !ok || d <= 0 {
			return VideoInfo{}, fmt.Errorf("%w: video stream has no duration", entity.ErrMediaProbe)
		}
		info.Duration = d

		if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
			info.TotalFrames = n
		} else if rate, ok := parseRate(s.AvgFrameRate); ok {
			info.TotalFrames = int(math.Floor(d * rate))
		}
		if info.TotalFrames <= 0 {
			return VideoInfo{}, fmt.Errorf("%w: cannot determine frame count", entity.ErrMediaProbe)
		}
		return info, nil
	}
	return VideoInfo{}, fmt.Errorf("%w: no video stream found", entity.ErrMediaProbe)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) (float64, bool) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseNumber(s)
	}
	n, ok1 := parseNumber(num)
	d, ok2 := parseNumber(den)
	if !ok1 || !ok2 || d == 0 {
		return 0, false
	}
	return n / d, true
}
