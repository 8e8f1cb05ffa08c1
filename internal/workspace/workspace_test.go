package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) entity.Session {
	t.Helper()
	opts := entity.PipelineOptions{FPS: 2, MaxDimension: 1280, Reconstruct: true, PointCount: 100}
	return entity.NewSession(t.TempDir(), "/videos/in.mp4", opts, time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC))
}

func TestCreateLayoutAndManifest(t *testing.T) {
	s := newSession(t)
	w, err := Create(s)
	require.NoError(t, err)

	assert.DirExists(t, w.FramesDir())
	assert.FileExists(t, w.ManifestPath())
	assert.Equal(t, filepath.Join(s.Root, "sparse", "0", "images.txt"), w.ImagesPath())
	assert.Equal(t, filepath.Join(s.Root, "points3D.ply"), w.PointCloudPath())

	got, err := w.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = Create(s)
	assert.Error(t, err, "a session root must never be reused")
}

func TestWritePoseSetRoundTrip(t *testing.T) {
	w, err := Create(newSession(t))
	require.NoError(t, err)

	ps, err := scene.NewSynthesizer(0).Synthesize(3, 640, 480)
	require.NoError(t, err)
	require.NoError(t, w.WritePoseSet(ps))

	assert.FileExists(t, w.CamerasPath())
	assert.FileExists(t, w.Points3DTextPath())

	got, err := w.ReadPoseSet()
	require.NoError(t, err)
	assert.Equal(t, ps.Intrinsics, got.Intrinsics)
	require.Len(t, got.Poses, 3)
	assert.Equal(t, "frame_0003.jpg", got.Poses[2].Name)
}

func TestResetModelDropsStaleFiles(t *testing.T) {
	w, err := Create(newSession(t))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(w.ModelDir(), 0755))
	stale := filepath.Join(w.ModelDir(), "images.bin")
	require.NoError(t, os.WriteFile(stale, []byte{1, 2, 3}, 0644))

	require.NoError(t, w.ResetModel())
	assert.NoFileExists(t, stale)
	assert.DirExists(t, w.ModelDir())
}

func TestPointCloudRoundTripLeavesNoTempFiles(t *testing.T) {
	w, err := Create(newSession(t))
	require.NoError(t, err)

	points := []entity.PointCloudPoint{{Position: [3]float64{1, 2, 3}, Color: [3]uint8{4, 5, 6}}}
	require.NoError(t, w.WritePointCloud(points))

	got, err := w.ReadPointCloud()
	require.NoError(t, err)
	assert.Equal(t, points, got)

	entries, err := os.ReadDir(w.Root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotRegexp(t, `^\.`, e.Name())
	}
}

func TestFrames(t *testing.T) {
	w, err := Create(newSession(t))
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(w.FramesDir(), entity.FrameName(i)), nil, 0644))
	}

	fs, err := w.Frames()
	require.NoError(t, err)
	assert.Equal(t, 3, fs.Len())

	require.NoError(t, os.Remove(filepath.Join(w.FramesDir(), entity.FrameName(2))))
	_, err = w.Frames()
	assert.Error(t, err)
}
