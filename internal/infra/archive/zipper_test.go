package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestZipDirKeepsRelativeLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "session.yaml"), "id: s\n")
	writeFile(t, filepath.Join(dir, "frames", "frame_0001.jpg"), "jpeg")
	writeFile(t, filepath.Join(dir, "sparse", "0", "images.txt"), "# images\n")

	out := filepath.Join(dir, "export.zip")
	require.NoError(t, NewZipCreator().ZipDir(context.Background(), dir, out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "frames/frame_0001.jpg" {
			assert.Equal(t, zip.Store, f.Method)
		}
	}
	sort.Strings(names)
	assert.Equal(t, []string{"frames/frame_0001.jpg", "session.yaml", "sparse/0/images.txt"}, names)

	rc, err := zr.Open("sparse/0/images.txt")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "# images\n", string(body))
}

func TestZipDirCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewZipCreator().ZipDir(ctx, dir, filepath.Join(t.TempDir(), "out.zip"))
	assert.ErrorIs(t, err, context.Canceled)
}
