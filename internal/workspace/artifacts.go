package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/scene"
)

// WritePoseSet writes cameras.txt, images.txt and a header-only points3D.txt
// into sparse/0.
func (w Workspace) WritePoseSet(ps entity.PoseSet) error {
	if err := os.MkdirAll(w.ModelDir(), dirPerm); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := writeAtomic(w.CamerasPath(), func(f *os.File) error {
		return scene.WriteCameras(f, ps.Intrinsics)
	}); err != nil {
		return fmt.Errorf("write cameras: %w", err)
	}
	if err := writeAtomic(w.ImagesPath(), func(f *os.File) error {
		return scene.WriteImages(f, ps.Poses)
	}); err != nil {
		return fmt.Errorf("write images: %w", err)
	}
	if err := writeAtomic(w.Points3DTextPath(), func(f *os.File) error {
		return scene.WritePoints3DHeader(f)
	}); err != nil {
		return fmt.Errorf("write points3D: %w", err)
	}
	return nil
}

// ReadPoseSet loads the text model in sparse/0.
func (w Workspace) ReadPoseSet() (entity.PoseSet, error) {
	var ps entity.PoseSet

	cf, err := os.Open(w.CamerasPath())
	if err != nil {
		return ps, err
	}
	defer cf.Close()
	if ps.Intrinsics, err = scene.ReadCameras(cf); err != nil {
		return ps, fmt.Errorf("%s: %w", w.CamerasPath(), err)
	}

	imf, err := os.Open(w.ImagesPath())
	if err != nil {
		return ps, err
	}
	defer imf.Close()
	if ps.Poses, err = scene.ReadImages(imf); err != nil {
		return ps, fmt.Errorf("%s: %w", w.ImagesPath(), err)
	}
	return ps, nil
}

func (w Workspace) WritePointCloud(points []entity.PointCloudPoint) error {
	if err := writeAtomic(w.PointCloudPath(), func(f *os.File) error {
		return scene.WritePLY(f, points)
	}); err != nil {
		return fmt.Errorf("write point cloud: %w", err)
	}
	return nil
}

func (w Workspace) ReadPointCloud() ([]entity.PointCloudPoint, error) {
	f, err := os.Open(w.PointCloudPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scene.ReadPLY(f)
}

// Frames lists the frames already on disk, in index order.
func (w Workspace) Frames() (entity.FrameSet, error) {
	matches, err := filepath.Glob(filepath.Join(w.FramesDir(), "frame_*.jpg"))
	if err != nil {
		return entity.FrameSet{}, err
	}
	fs := entity.NewFrameSet(w.FramesDir(), len(matches))
	if err := fs.Validate(); err != nil {
		return entity.FrameSet{}, err
	}
	for _, f := range fs.Frames {
		if _, err := os.Stat(f.Path); err != nil {
			return entity.FrameSet{}, fmt.Errorf("frames are not contiguous: %w", err)
		}
	}
	return fs, nil
}
