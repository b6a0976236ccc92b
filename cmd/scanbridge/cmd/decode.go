package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/batch"
	"github.com/spf13/cobra"
)

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode FILE...",
	Short: "Decode barcodes in image and PDF files",
	Long: `Decode every barcode found in the given images, image directories or PDF
documents. Unlike scan, decode reports all symbols of every frame and never
talks to a camera. Files are decoded in parallel.

Examples:
  scanbridge decode label.png
  scanbridge decode ./shots --recursive --format json
  scanbridge decode ./shots -r --include '*.png' --exclude '*_thumb.*' -f csv -o codes.csv
  scanbridge decode invoice.pdf --pages 1-2 --formats qr_CODE`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, decodeFlagBindings)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		outputFormat, _ := cmd.Flags().GetString("format")
		if !batch.ValidFormat(outputFormat) {
			return fmt.Errorf("invalid output format: %s (must be text, json or csv)", outputFormat)
		}
		outputFile, _ := cmd.Flags().GetString("output")
		showStats, _ := cmd.Flags().GetBool("stats")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := batch.ProcessBatch(ctx, args, decodeConfig(cmd), barcode.NewBackend())
		if errors.Is(err, batch.ErrNoFiles) {
			return fmt.Errorf("%w in %s", err, strings.Join(args, ", "))
		}
		if err != nil {
			return err
		}

		if err := result.SaveResults(cmd.OutOrStdout(), outputFormat, outputFile); err != nil {
			return err
		}
		if showStats {
			result.PrintStats(cmd.ErrOrStderr())
		}
		return nil
	},
}

var decodeFlagBindings = []flagBinding{
	{"native.pages", "pages"},
	{"native.formats", "formats"},
	{"native.try_harder", "try-harder"},
}

// decodeConfig maps the merged configuration and the CLI-only discovery
// flags to a batch configuration. Formats were checked by Validate.
func decodeConfig(cmd *cobra.Command) *batch.Config {
	cfg := GetConfig()
	formats, _ := barcode.ParseFormats(cfg.Native.Formats)

	bc := &batch.Config{
		Pages:   cfg.Native.Pages,
		Options: barcode.Options{Formats: formats, TryHarder: cfg.Native.TryHarder},
	}
	bc.Workers, _ = cmd.Flags().GetInt("workers")
	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	return bc
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().String("pages", "", "page range for PDF files (e.g. 1-3,5)")
	decodeCmd.Flags().String("formats", "", "comma-separated barcode formats to accept (default: all)")
	decodeCmd.Flags().Bool("try-harder", false, "spend more time per image looking for barcodes")

	// Output flags
	decodeCmd.Flags().StringP("format", "f", "text", "output format: text, json, csv")
	decodeCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	decodeCmd.Flags().Bool("stats", false, "print processing statistics to stderr")

	// Parallel processing flags
	decodeCmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))

	// File discovery flags
	decodeCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	decodeCmd.Flags().StringSlice("include", []string{}, "file patterns to include")
	decodeCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")
}
