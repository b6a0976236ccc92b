package native

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrames(t *testing.T) {
	frames := []image.Image{blankFrame(), qrFrame(t, "first"), blankFrame(), qrFrame(t, "second")}

	found, err := DecodeFrames(context.Background(), barcode.NewBackend(), frames, barcode.Options{})
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, 1, found[0].Frame)
	assert.Equal(t, "first", found[0].Text)
	assert.Equal(t, "QR_CODE", found[0].Format)
	assert.Equal(t, 3, found[1].Frame)
	assert.Equal(t, "second", found[1].Text)
}

func TestDecodeFrames_BackendFailure(t *testing.T) {
	boom := errors.New("boom")
	backend := decodeFunc(func(context.Context, image.Image, barcode.Options) ([]barcode.Result, error) {
		return nil, boom
	})

	_, err := DecodeFrames(context.Background(), backend, []image.Image{blankFrame()}, barcode.Options{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "frame 0")
}

func TestDecodeFrames_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DecodeFrames(ctx, barcode.NewBackend(), []image.Image{blankFrame()}, barcode.Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeFile_Image(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, qrFrame(t, "on disk")))
	require.NoError(t, f.Close())

	found, err := DecodeFile(context.Background(), barcode.NewBackend(), path, "", barcode.Options{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, path, found[0].Source)
	assert.Equal(t, "on disk", found[0].Text)
	assert.Positive(t, found[0].Width)
}

func TestDecodeFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := DecodeFile(context.Background(), barcode.NewBackend(), filepath.Join(dir, "missing.png"), "", barcode.Options{})
	require.Error(t, err)

	_, err = DecodeFile(context.Background(), barcode.NewBackend(), filepath.Join(dir, "missing.pdf"), "", barcode.Options{})
	require.Error(t, err)

	_, err = DecodeFile(context.Background(), barcode.NewBackend(), filepath.Join(dir, "notes.txt"), "", barcode.Options{})
	require.Error(t, err)
}
