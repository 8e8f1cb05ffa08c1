package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type ZipCreator struct{}

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

// ZipDir archives every regular file under dir with paths relative to dir.
// outputPath may live inside dir; it is not archived into itself.
func (z *ZipCreator) ZipDir(ctx context.Context, dir string, outputPath string) (err error) {
	absOut, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("resolve zip path: %w", err)
	}

	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer func() {
		if cerr := zipFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	zipWriter := zip.NewWriter(zipFile)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absOut {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if err := addFileToZip(zipWriter, path, filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("add %s to zip: %w", rel, err)
		}
		return nil
	})
	if walkErr != nil {
		zipWriter.Close()
		return walkErr
	}
	return zipWriter.Close()
}

func addFileToZip(zw *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	header.Method = zip.Deflate
	// JPEG frames do not shrink any further.
	if strings.EqualFold(filepath.Ext(name), ".jpg") {
		header.Method = zip.Store
	}

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}
