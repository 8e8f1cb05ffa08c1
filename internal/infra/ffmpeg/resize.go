package ffmpeg

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

const jpegQuality = 95

// ScaledSize returns the size with the larger side clamped to maxDim and the
// aspect ratio preserved. ok is false when no resize is needed.
func ScaledSize(w, h, maxDim int) (int, int, bool) {
	larger := max(w, h)
	if maxDim <= 0 || larger <= maxDim {
		return w, h, false
	}
	scale := float64(maxDim) / float64(larger)
	if w >= h {
		return maxDim, max(1, int(float64(h)*scale)), true
	}
	return max(1, int(float64(w)*scale)), maxDim, true
}

// downscale rewrites the JPEG at path in place if it exceeds maxDim.
func downscale(path string, maxDim int) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		f.Close()
		return false, fmt.Errorf("read header: %w", err)
	}
	nw, nh, ok := ScaledSize(cfg.Width, cfg.Height, maxDim)
	if !ok {
		f.Close()
		return false, nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return false, err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".resize-*.jpg")
	if err != nil {
		return false, err
	}
	if err := jpeg.Encode(tmp, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	return true, nil
}
