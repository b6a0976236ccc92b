package batch

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/native"
)

// Config holds all configuration for batch decoding.
type Config struct {
	// Decoder settings
	Pages   string
	Options barcode.Options

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
}

// workerCount never exceeds the number of files.
func (c *Config) workerCount(files int) int {
	n := c.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, files))
}

// FileResult holds the symbols found in one file.
type FileResult struct {
	File       string             `json:"file"`
	Detections []native.Detection `json:"detections"`
}

// Result holds the result of a batch run. Files keep discovery order.
type Result struct {
	Files       []FileResult
	Duration    time.Duration
	WorkerCount int
}

// Detections returns every symbol of the batch in file order.
func (r *Result) Detections() []native.Detection {
	out := []native.Detection{}
	for _, f := range r.Files {
		out = append(out, f.Detections...)
	}
	return out
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, err = fmt.Fprint(w, output)
		return err
	}

	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, err = fmt.Fprintf(w, "Results written to %s\n", outputFile)
	return err
}

// Stats summarises a batch run.
type Stats struct {
	TotalFiles       int
	FilesWithSymbols int
	Symbols          int
	WorkerCount      int
	TotalDuration    time.Duration
	AveragePerFile   time.Duration
	ThroughputPerSec float64
}

// Stats computes processing statistics.
func (r *Result) Stats() Stats {
	s := Stats{
		TotalFiles:    len(r.Files),
		WorkerCount:   r.WorkerCount,
		TotalDuration: r.Duration,
	}
	for _, f := range r.Files {
		if len(f.Detections) > 0 {
			s.FilesWithSymbols++
		}
		s.Symbols += len(f.Detections)
	}
	if s.TotalFiles > 0 {
		s.AveragePerFile = r.Duration / time.Duration(s.TotalFiles)
	}
	if r.Duration > 0 {
		s.ThroughputPerSec = float64(s.TotalFiles) / r.Duration.Seconds()
	}
	return s
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total files: %d\n", stats.TotalFiles)
	_, _ = fmt.Fprintf(w, "  Files with barcodes: %d\n", stats.FilesWithSymbols)
	_, _ = fmt.Fprintf(w, "  Barcodes: %d\n", stats.Symbols)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per file: %v\n", stats.AveragePerFile.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f files/sec\n", stats.ThroughputPerSec)
}
