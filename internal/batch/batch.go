// Package batch decodes barcodes in many image and PDF files in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
)

// ErrNoFiles is returned when discovery finds nothing to decode.
var ErrNoFiles = errors.New("no supported files found")

// ProcessBatch discovers the files named by paths and decodes them with
// the given backend.
func ProcessBatch(ctx context.Context, paths []string, config *Config, backend barcode.Backend) (*Result, error) {
	files, err := discoverFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	workers := config.workerCount(len(files))
	slog.Debug("Starting batch decode", "files", len(files), "workers", workers)

	startTime := time.Now()
	results, err := processFilesParallel(ctx, backend, files, config, workers)
	duration := time.Since(startTime)

	if err != nil {
		return nil, fmt.Errorf("batch decode failed: %w", err)
	}

	return &Result{
		Files:       results,
		Duration:    duration,
		WorkerCount: workers,
	}, nil
}
