// Package testutil holds helpers shared by tests: synthetic barcode labels
// and PNG fixtures.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common label sizes.
	SymbolSize = ImageSize{240, 240}
	LabelSize  = ImageSize{320, 320}
	PageSize   = ImageSize{640, 480}
)

// LabelConfig describes a synthetic label: one barcode centered on a page
// with an optional caption underneath.
type LabelConfig struct {
	Text       string
	Format     barcode.Format // zero renders a QR code
	Symbol     ImageSize
	Size       ImageSize
	Caption    string
	Background color.Color
	Foreground color.Color
	Rotation   float64 // degrees, counter-clockwise
	Noise      float64 // share of flipped pixels, 0..1
}

// DefaultLabelConfig returns a QR label that every decoder in the repo reads.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{
		Text:       "Sample Label",
		Symbol:     SymbolSize,
		Size:       LabelSize,
		Background: color.White,
		Foreground: color.Black,
	}
}

// GenerateLabel renders the label described by config.
func GenerateLabel(config LabelConfig) (*image.RGBA, error) {
	symbol, err := barcode.NewEncoder().Encode(context.Background(), barcode.EncodeSpec{
		Type:   barcode.EncodeText,
		Data:   config.Text,
		Format: config.Format,
		Width:  config.Symbol.Width,
		Height: config.Symbol.Height,
		Margin: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q: %w", config.Text, err)
	}

	img := CreateTestImage(config.Size.Width, config.Size.Height, config.Background)

	sb := symbol.Bounds()
	captionHeight := 0
	if config.Caption != "" {
		captionHeight = basicfont.Face7x13.Metrics().Height.Ceil() + 4
	}
	offset := image.Pt(
		(config.Size.Width-sb.Dx())/2,
		(config.Size.Height-sb.Dy()-captionHeight)/2,
	)
	draw.Draw(img, sb.Add(offset).Sub(sb.Min), symbol, sb.Min, draw.Src)

	if config.Caption != "" {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{config.Foreground},
			Face: basicfont.Face7x13,
		}
		textWidth := font.MeasureString(drawer.Face, config.Caption).Ceil()
		drawer.Dot = fixed.P((config.Size.Width-textWidth)/2, offset.Y+sb.Dy()+captionHeight)
		drawer.DrawString(config.Caption)
	}

	if config.Noise > 0 {
		img = addNoise(img, config.Noise)
	}

	if config.Rotation != 0 {
		rotated := imaging.Rotate(img, config.Rotation, config.Background)
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		return rgba, nil
	}

	return img, nil
}

// QRImage returns a plain QR label for text.
func QRImage(t *testing.T, text string) image.Image {
	t.Helper()

	config := DefaultLabelConfig()
	config.Text = text
	img, err := GenerateLabel(config)
	require.NoError(t, err, "Failed to generate label for %q", text)
	return img
}

// WriteQR saves a QR label for text as PNG at path.
func WriteQR(t *testing.T, path, text string) {
	t.Helper()
	SaveImage(t, QRImage(t, text), path)
}

// WriteBlank saves a white image without any symbol at path.
func WriteBlank(t *testing.T, path string) {
	t.Helper()
	SaveImage(t, CreateTestImage(SymbolSize.Width, SymbolSize.Height, color.White), path)
}

// PNGBytes encodes img as PNG.
func PNGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	// Ensure directory exists
	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	err := os.WriteFile(path, PNGBytes(t, img), 0o600)
	require.NoError(t, err, "Failed to write %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// CreateTestImage creates a uniformly colored image.
func CreateTestImage(width, height int, backgroundColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// addNoise inverts a deterministic share of pixels to simulate sensor noise.
func addNoise(img *image.RGBA, noiseLevel float64) *image.RGBA {
	bounds := img.Bounds()
	noisy := image.NewRGBA(bounds)
	draw.Draw(noisy, bounds, img, bounds.Min, draw.Src)

	step := int(1 / noiseLevel)
	if step < 1 {
		step = 1
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if (x*31+y*17)%step != 0 {
				continue
			}
			c := noisy.RGBAAt(x, y)
			noisy.SetRGBA(x, y, color.RGBA{255 - c.R, 255 - c.G, 255 - c.B, c.A})
		}
	}
	return noisy
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
