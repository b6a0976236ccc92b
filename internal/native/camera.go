package native

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/scanbridge/internal/pdf"
	"github.com/MeKo-Tech/scanbridge/internal/utils"
)

// Camera yields frames for a scan session. Next returns io.EOF once the
// source is exhausted. A Camera that also implements io.Closer is closed
// when its session ends.
type Camera interface {
	Next(ctx context.Context) (image.Image, error)
}

// CameraOpener opens a fresh Camera for each scan session.
type CameraOpener func(ctx context.Context) (Camera, error)

// CameraFunc adapts a function to the Camera interface.
type CameraFunc func(ctx context.Context) (image.Image, error)

// Next calls f.
func (f CameraFunc) Next(ctx context.Context) (image.Image, error) { return f(ctx) }

// StaticCamera replays a fixed list of frames.
type StaticCamera struct {
	mu     sync.Mutex
	frames []image.Image
	pos    int
}

// NewStaticCamera returns a camera that yields frames in order.
func NewStaticCamera(frames ...image.Image) *StaticCamera {
	return &StaticCamera{frames: frames}
}

// Next returns the next frame or io.EOF.
func (c *StaticCamera) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos >= len(c.frames) {
		return nil, io.EOF
	}
	img := c.frames[c.pos]
	c.pos++
	return img, nil
}

// DirCamera reads image files in name order, one frame per file.
type DirCamera struct {
	mu    sync.Mutex
	files []string
	pos   int
}

// NewDirCamera lists the supported images under path, which may be a
// single file or a directory.
func NewDirCamera(path string, recursive bool) (*DirCamera, error) {
	files, err := utils.DiscoverImages([]string{path}, recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", path)
	}
	return &DirCamera{files: files}, nil
}

// Next decodes the next image file. Unreadable files are reported as errors.
func (c *DirCamera) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.pos >= len(c.files) {
		c.mu.Unlock()
		return nil, io.EOF
	}
	path := c.files[c.pos]
	c.pos++
	c.mu.Unlock()

	img, _, err := utils.LoadImage(path)
	return img, err
}

// PDFCamera yields the images embedded in a PDF, in page order. Extraction
// happens on the first call to Next.
type PDFCamera struct {
	path      string
	pageRange string

	once   sync.Once
	err    error
	frames *StaticCamera
}

// NewPDFCamera returns a camera over the images of the PDF at path.
// pageRange uses the "1-3,5" syntax; empty means all pages.
func NewPDFCamera(path, pageRange string) *PDFCamera {
	return &PDFCamera{path: path, pageRange: pageRange}
}

// Next returns the next embedded image or io.EOF.
func (c *PDFCamera) Next(ctx context.Context) (image.Image, error) {
	c.once.Do(func() {
		pages, err := pdf.ExtractImages(c.path, c.pageRange)
		if err != nil {
			c.err = err
			return
		}
		c.frames = NewStaticCamera(pdf.Frames(pages)...)
	})
	if c.err != nil {
		return nil, c.err
	}
	return c.frames.Next(ctx)
}

// OpenSource builds a CameraOpener from a configured source path. PDFs are
// read with PDFCamera, anything else with DirCamera. An empty source yields
// a nil opener, meaning no camera is available.
func OpenSource(source, pageRange string) CameraOpener {
	if source == "" {
		return nil
	}
	return func(context.Context) (Camera, error) {
		if strings.EqualFold(filepath.Ext(source), ".pdf") {
			if _, err := os.Stat(source); err != nil {
				return nil, err
			}
			return NewPDFCamera(source, pageRange), nil
		}
		return NewDirCamera(source, false)
	}
}

func closeCamera(cam Camera) error {
	if c, ok := cam.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isEOF(err error) bool { return errors.Is(err, io.EOF) }
