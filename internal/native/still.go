package native

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/pdf"
	"github.com/MeKo-Tech/scanbridge/internal/utils"
)

// Detection is a symbol found in a still image or document.
type Detection struct {
	Source string `json:"source,omitempty"`
	Page   int    `json:"page,omitempty"`
	Frame  int    `json:"frame"`
	Text   string `json:"text"`
	Format string `json:"format"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DecodeFrames decodes every frame and collects all symbols in frame order.
// Frames without a symbol are skipped.
func DecodeFrames(ctx context.Context, backend barcode.Backend, frames []image.Image, opts barcode.Options) ([]Detection, error) {
	var out []Detection
	for i, img := range frames {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		results, err := backend.Decode(ctx, img, opts)
		if errors.Is(err, barcode.ErrNotFound) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("frame %d: %w", i, err)
		}
		for _, r := range results {
			out = append(out, Detection{
				Frame:  i,
				Text:   r.Text,
				Format: r.Format.String(),
				X:      r.BBox.Min.X,
				Y:      r.BBox.Min.Y,
				Width:  r.BBox.Dx(),
				Height: r.BBox.Dy(),
			})
		}
	}
	return out, nil
}

// DecodeFile decodes an image file, or the images embedded in a PDF when
// path ends in .pdf. pageRange only applies to PDFs.
func DecodeFile(ctx context.Context, backend barcode.Backend, path, pageRange string, opts barcode.Options) ([]Detection, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return decodePDF(ctx, backend, path, pageRange, opts)
	}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	found, err := DecodeFrames(ctx, backend, []image.Image{img}, opts)
	for i := range found {
		found[i].Source = path
	}
	return found, err
}

func decodePDF(ctx context.Context, backend barcode.Backend, path, pageRange string, opts barcode.Options) ([]Detection, error) {
	pages, err := pdf.ExtractImages(path, pageRange)
	if err != nil {
		return nil, err
	}

	var out []Detection
	frame := 0
	for _, page := range pages {
		found, err := DecodeFrames(ctx, backend, page.Images, opts)
		for _, d := range found {
			d.Source = path
			d.Page = page.Number
			d.Frame += frame
			out = append(out, d)
		}
		if err != nil {
			return out, fmt.Errorf("page %d: %w", page.Number, err)
		}
		frame += len(page.Images)
	}
	return out, nil
}
