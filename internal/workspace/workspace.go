// Package workspace owns the on-disk layout of a session directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
)

const (
	FramesDirName    = "frames"
	SparseDirName    = "sparse"
	ModelDirName     = "0"
	CamerasFile      = "cameras.txt"
	ImagesFile       = "images.txt"
	Points3DTextFile = "points3D.txt"
	PointCloudFile   = "points3D.ply"
	DatabaseFile     = "database.db"
	ManifestFile     = "session.yaml"
	dirPerm          = 0755
	filePerm         = 0644
)

// Workspace is a session directory. All paths are derived from Root.
type Workspace struct {
	Root string
}

func Open(root string) Workspace {
	return Workspace{Root: root}
}

func (w Workspace) FramesDir() string   { return filepath.Join(w.Root, FramesDirName) }
func (w Workspace) SparseDir() string   { return filepath.Join(w.Root, SparseDirName) }
func (w Workspace) ModelDir() string    { return filepath.Join(w.Root, SparseDirName, ModelDirName) }
func (w Workspace) CamerasPath() string { return filepath.Join(w.ModelDir(), CamerasFile) }
func (w Workspace) ImagesPath() string  { return filepath.Join(w.ModelDir(), ImagesFile) }
func (w Workspace) Points3DTextPath() string {
	return filepath.Join(w.ModelDir(), Points3DTextFile)
}
func (w Workspace) PointCloudPath() string { return filepath.Join(w.Root, PointCloudFile) }
func (w Workspace) DatabasePath() string   { return filepath.Join(w.Root, DatabaseFile) }
func (w Workspace) ManifestPath() string   { return filepath.Join(w.Root, ManifestFile) }

// Create makes the session root and frames directory and writes the manifest.
// An existing root is an error so two sessions never share a directory.
func Create(s entity.Session) (Workspace, error) {
	w := Open(s.Root)
	if err := os.MkdirAll(filepath.Dir(s.Root), dirPerm); err != nil {
		return w, fmt.Errorf("create workspace parent: %w", err)
	}
	if err := os.Mkdir(s.Root, dirPerm); err != nil {
		return w, fmt.Errorf("create workspace: %w", err)
	}
	if err := os.Mkdir(w.FramesDir(), dirPerm); err != nil {
		return w, fmt.Errorf("create frames dir: %w", err)
	}
	if err := w.WriteManifest(s); err != nil {
		return w, err
	}
	return w, nil
}

// ResetModel removes whatever a failed reconstruction left in sparse/0 and
// recreates it empty.
func (w Workspace) ResetModel() error {
	if err := os.RemoveAll(w.ModelDir()); err != nil {
		return fmt.Errorf("clear model dir: %w", err)
	}
	if err := os.MkdirAll(w.ModelDir(), dirPerm); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	return nil
}

// writeAtomic writes through fn into a temporary sibling of path and renames
// it into place, so readers never observe a half-written file.
func writeAtomic(path string, fn func(f *os.File) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, filePerm); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
