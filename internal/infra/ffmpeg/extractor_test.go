package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRunner answers ffprobe with a canned JSON document and emulates ffmpeg
// by writing solid JPEG frames following the output pattern.
type fakeRunner struct {
	probeJSON   string
	probeErr    error
	ffmpegErr   error
	frameW      int
	frameH      int
	extraFrames int
	calls       []port.Command
}

func (f *fakeRunner) Run(_ context.Context, cmd port.Command) (port.CommandResult, error) {
	f.calls = append(f.calls, cmd)
	switch cmd.Name {
	case "ffprobe":
		if f.probeErr != nil {
			return port.CommandResult{ExitCode: 1, Stderr: []byte("moov atom not found")}, f.probeErr
		}
		return port.CommandResult{Stdout: []byte(f.probeJSON)}, nil
	case "ffmpeg":
		if f.ffmpegErr != nil {
			return port.CommandResult{ExitCode: 1, Stderr: []byte("decode error")}, f.ffmpegErr
		}
		n := 0
		for i, a := range cmd.Args {
			if a == "-frames:v" {
				n, _ = strconv.Atoi(cmd.Args[i+1])
			}
		}
		pattern := cmd.Args[len(cmd.Args)-1]
		for i := 1; i <= n+f.extraFrames; i++ {
			if err := writeJPEG(fmt.Sprintf(pattern, i), f.frameW, f.frameH); err != nil {
				return port.CommandResult{}, err
			}
		}
		return port.CommandResult{}, nil
	}
	return port.CommandResult{}, fmt.Errorf("unexpected command %s", cmd.Name)
}

func writeJPEG(path string, w, h int) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 10, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, nil)
}

func probeDoc(duration string, nbFrames string) string {
	return fmt.Sprintf(`{"streams":[{"codec_type":"video","width":64,"height":32,"duration":%q,"nb_frames":%q,"avg_frame_rate":"30/1"}],"format":{"duration":%q}}`,
		duration, nbFrames, duration)
}

func TestFramesToExtractCapsAtNativeFrames(t *testing.T) {
	assert.Equal(t, 20, FramesToExtract(VideoInfo{Duration: 10, TotalFrames: 300}, 2))
	assert.Equal(t, 5, FramesToExtract(VideoInfo{Duration: 10, TotalFrames: 5}, 2))
	assert.Equal(t, 0, FramesToExtract(VideoInfo{Duration: 0.2, TotalFrames: 6}, 2))
}

func TestExtractRequestsAtMostTwentyFrames(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeDoc("10.0", "300"), frameW: 16, frameH: 8}
	ex := NewExtractor(runner, "ffmpeg", "ffprobe", zap.NewNop())
	dir := filepath.Join(t.TempDir(), "frames")

	fs, err := ex.Extract(context.Background(), "in.mp4", dir, 2, 1280)
	require.NoError(t, err)
	require.Equal(t, 20, fs.Len())
	require.NoError(t, fs.Validate())
	assert.Equal(t, filepath.Join(dir, "frame_0001.jpg"), fs.Frames[0].Path)
	assert.Equal(t, filepath.Join(dir, "frame_0020.jpg"), fs.Frames[19].Path)

	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[1].Args, "fps=2")
	assert.Contains(t, runner.calls[1].Args, "20")
}

func TestExtractRejectsSurplusFrames(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeDoc("2.0", "60"), frameW: 16, frameH: 8, extraFrames: 1}
	ex := NewExtractor(runner, "ffmpeg", "ffprobe", zap.NewNop())

	_, err := ex.Extract(context.Background(), "in.mp4", t.TempDir(), 1, 0)
	assert.True(t, errors.Is(err, entity.ErrExtraction))
}

func TestExtractDownscalesOversizedFrames(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeDoc("1.0", "30"), frameW: 400, frameH: 200}
	ex := NewExtractor(runner, "ffmpeg", "ffprobe", zap.NewNop())

	fs, err := ex.Extract(context.Background(), "in.mp4", t.TempDir(), 3, 100)
	require.NoError(t, err)
	require.Equal(t, 3, fs.Len())

	for _, fr := range fs.Frames {
		f, err := os.Open(fr.Path)
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	}
}

func TestExtractLeavesSmallFramesUntouched(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeDoc("1.0", "30"), frameW: 40, frameH: 20}
	ex := NewExtractor(runner, "ffmpeg", "ffprobe", zap.NewNop())
	dir := t.TempDir()

	fs, err := ex.Extract(context.Background(), "in.mp4", dir, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 1, fs.Len())

	before, err := os.ReadFile(fs.Frames[0].Path)
	require.NoError(t, err)
	changed, err := downscale(fs.Frames[0].Path, 100)
	require.NoError(t, err)
	assert.False(t, changed)
	after, err := os.ReadFile(fs.Frames[0].Path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestExtractErrors(t *testing.T) {
	cases := []struct {
		name   string
		runner *fakeRunner
		fps    float64
		want   error
	}{
		{"no video stream", &fakeRunner{probeJSON: `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3.0"}}`}, 2, entity.ErrMediaProbe},
		{"probe failure", &fakeRunner{probeErr: errors.New("exit status 1")}, 2, entity.ErrMediaProbe},
		{"garbage probe output", &fakeRunner{probeJSON: "not json"}, 2, entity.ErrMediaProbe},
		{"decode failure", &fakeRunner{probeJSON: probeDoc("3.0", "90"), ffmpegErr: errors.New("exit status 1")}, 2, entity.ErrExtraction},
		{"too short", &fakeRunner{probeJSON: probeDoc("0.1", "3")}, 2, entity.ErrExtraction},
		{"bad fps", &fakeRunner{}, 0, entity.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := NewExtractor(tc.runner, "ffmpeg", "ffprobe", zap.NewNop())
			_, err := ex.Extract(context.Background(), "in.mp4", t.TempDir(), tc.fps, 1280)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestParseProbeFallsBackToFrameRate(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080,"nb_frames":"N/A","avg_frame_rate":"25/1"}],"format":{"duration":"4.0"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)
	assert.InDelta(t, 4.0, info.Duration, 1e-9)
	assert.Equal(t, 100, info.TotalFrames)
}

func TestScaledSize(t *testing.T) {
	cases := []struct {
		w, h, max    int
		wantW, wantH int
		resized      bool
	}{
		{1920, 1080, 1280, 1280, 720, true},
		{1080, 1920, 1280, 720, 1280, true},
		{1280, 720, 1280, 1280, 720, false},
		{640, 480, 1280, 640, 480, false},
		{5000, 1, 100, 100, 1, true},
		{1920, 1080, 0, 1920, 1080, false},
	}
	for _, tc := range cases {
		w, h, ok := ScaledSize(tc.w, tc.h, tc.max)
		assert.Equal(t, tc.resized, ok, "%dx%d", tc.w, tc.h)
		assert.Equal(t, tc.wantW, w)
		assert.Equal(t, tc.wantH, h)
	}
}

func TestDownscaleSkipsUnreadableFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_0001.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not a jpeg"), 0644))

	changed, err := downscale(path, 10)
	assert.Error(t, err)
	assert.False(t, changed)
}
