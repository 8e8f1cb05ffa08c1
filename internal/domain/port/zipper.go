package port

import "context"

type Zipper interface {
	ZipDir(ctx context.Context, dir string, outputPath string) error
}
