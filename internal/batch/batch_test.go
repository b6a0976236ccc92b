package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatch(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteQR(t, filepath.Join(dir, "a.png"), "first")
	testutil.WriteBlank(t, filepath.Join(dir, "b.png"))
	testutil.WriteQR(t, filepath.Join(dir, "sub", "c.png"), "third")

	result, err := ProcessBatch(context.Background(), []string{dir}, &Config{Workers: 2, Recursive: true}, barcode.NewBackend())
	require.NoError(t, err)
	require.Len(t, result.Files, 3)
	assert.Equal(t, 2, result.WorkerCount)
	assert.True(t, result.Duration > 0)

	found := result.Detections()
	require.Len(t, found, 2)
	assert.Equal(t, "first", found[0].Text)
	assert.Equal(t, "third", found[1].Text)
}

func TestProcessBatch_FormatFilter(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteQR(t, filepath.Join(dir, "a.png"), "first")

	cfg := &Config{Options: barcode.Options{Formats: barcode.FormatEAN13}}
	result, err := ProcessBatch(context.Background(), []string{dir}, cfg, barcode.NewBackend())
	require.NoError(t, err)
	assert.Empty(t, result.Detections())
}

func TestProcessBatch_Patterns(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteQR(t, filepath.Join(dir, "keep.png"), "kept")
	testutil.WriteQR(t, filepath.Join(dir, "skip.png"), "skipped")

	cfg := &Config{ExcludePatterns: []string{"skip*"}}
	result, err := ProcessBatch(context.Background(), []string{dir}, cfg, barcode.NewBackend())
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, filepath.Join(dir, "keep.png"), result.Files[0].File)
}

func TestProcessBatch_Errors(t *testing.T) {
	_, err := ProcessBatch(context.Background(), []string{t.TempDir()}, &Config{}, barcode.NewBackend())
	require.ErrorIs(t, err, ErrNoFiles)

	_, err = ProcessBatch(context.Background(), []string{"/nonexistent/dir"}, &Config{}, barcode.NewBackend())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")

	_, err = ProcessBatch(context.Background(), []string{"missing.pdf"}, &Config{}, barcode.NewBackend())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch decode failed: failed to decode missing.pdf")
}
