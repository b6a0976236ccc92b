package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/native"
)

// processSingleFile decodes one image or PDF.
func processSingleFile(ctx context.Context, backend barcode.Backend, path string, config *Config) (FileResult, error) {
	found, err := native.DecodeFile(ctx, backend, path, config.Pages, config.Options)
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	slog.Debug("Decoded file", "file", path, "count", len(found))
	if found == nil {
		found = []native.Detection{}
	}
	return FileResult{File: path, Detections: found}, nil
}

// processFilesParallel decodes files on a fixed pool of workers. Results
// keep the order of files. The first failure stops the remaining work and
// is returned.
func processFilesParallel(ctx context.Context, backend barcode.Backend, files []string,
	config *Config, workers int) ([]FileResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]FileResult, len(files))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := processSingleFile(ctx, backend, files[i], config)
				if err != nil {
					fail(err)
					continue
				}
				results[i] = res
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
