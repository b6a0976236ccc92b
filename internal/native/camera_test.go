package native

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path) //nolint:gosec // controlled test path
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, png.Encode(f, img))
}

func TestStaticCamera(t *testing.T) {
	a, b := blankFrame(), blankFrame()
	cam := NewStaticCamera(a, b)
	ctx := context.Background()

	got, err := cam.Next(ctx)
	require.NoError(t, err)
	assert.Same(t, a, got)
	got, err = cam.Next(ctx)
	require.NoError(t, err)
	assert.Same(t, b, got)
	_, err = cam.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewStaticCamera(a).Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirCamera_NameOrder(t *testing.T) {
	dir := t.TempDir()
	savePNG(t, filepath.Join(dir, "02.png"), image.NewGray(image.Rect(0, 0, 2, 2)))
	savePNG(t, filepath.Join(dir, "01.png"), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o600))

	cam, err := NewDirCamera(dir, false)
	require.NoError(t, err)

	first, err := cam.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Bounds().Dx())

	second, err := cam.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Bounds().Dx())

	_, err = cam.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestDirCamera_Empty(t *testing.T) {
	_, err := NewDirCamera(t.TempDir(), false)
	require.Error(t, err)
}

func TestPDFCamera_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))

	cam := NewPDFCamera(path, "")
	_, err := cam.Next(context.Background())
	require.Error(t, err)

	// The extraction error sticks.
	_, err2 := cam.Next(context.Background())
	assert.Equal(t, err, err2)
}

func TestOpenSource(t *testing.T) {
	assert.Nil(t, OpenSource("", ""))

	dir := t.TempDir()
	savePNG(t, filepath.Join(dir, "frame.png"), qrFrame(t, "from-disk"))

	p := newTestPlugin(t, Config{OpenCamera: OpenSource(dir, "")})
	cb := newCallbacks()
	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)

	o := cb.wait(t)
	require.True(t, o.ok, "payload: %v", o.payload)
	assert.Equal(t, "from-disk", o.payload.(barcode.ScanResult).Text)

	missing := OpenSource(filepath.Join(dir, "missing.pdf"), "")
	_, err := missing(context.Background())
	require.Error(t, err)
}
