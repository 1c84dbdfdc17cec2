package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
)

// Stills replays a list of image files as frames.
type Stills struct {
	dispatcher
	opts  options
	paths []string
	loop  bool
}

// NewStills creates a source over the given image files. When loop is set the
// list repeats until the context is cancelled or the frame limit is reached.
func NewStills(paths []string, loop bool, opts ...Option) *Stills {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Stills{opts: o, paths: paths, loop: loop}
}

// Glob creates a Stills source over the supported images in dir, sorted by
// name.
func Glob(dir string, loop bool, opts ...Option) (*Stills, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && IsSupportedFormat(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	sort.Strings(paths)
	return NewStills(paths, loop, opts...), nil
}

// Name describes the still list.
func (s *Stills) Name() string {
	if len(s.paths) == 1 {
		return s.paths[0]
	}
	return fmt.Sprintf("%d stills", len(s.paths))
}

// Run loads and dispatches each image in turn. Unreadable files are logged
// and skipped.
func (s *Stills) Run(ctx context.Context) error {
	var n int64
	for {
		for _, path := range s.paths {
			if ctx.Err() != nil {
				return nil
			}
			if s.opts.maxFrames > 0 && n >= s.opts.maxFrames {
				return nil
			}

			start := s.opts.clock.Now()
			mat, err := LoadMat(path)
			if err != nil {
				s.opts.logger.Warn("skipping still", zap.String("path", path), zap.Error(err))
				continue
			}

			n++
			s.dispatch(Frame{Mat: mat, Number: n, Timestamp: start})
			mat.Close()
			pace(ctx, s.opts, start)
		}
		if !s.loop || n == 0 {
			return nil
		}
	}
}

// Close is a no-op; stills are loaded per frame.
func (s *Stills) Close() error {
	return nil
}

// LoadMat decodes an image file into a BGR Mat.
func LoadMat(path string) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return ImageToMat(img), nil
}

// ImageToMat converts a Go image to a BGR Mat.
func ImageToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat
}

// SupportedFormats returns the still image extensions.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks the extension of path.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
