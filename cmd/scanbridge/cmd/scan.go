package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a barcode from the configured camera",
	Long: `Start a scan session and print the first barcode found.

The camera is an image file, a directory of images or a PDF document whose
embedded images are used as frames. With --remote the scan runs on a
scanbridge server instead. When --timeout expires, or on Ctrl-C, the scan is
cancelled and reported as cancelled.

Examples:
  scanbridge scan --camera ./frames
  scanbridge scan --camera label.pdf --pages 1-2 --formats qr_CODE,ean_13
  scanbridge scan --remote ws://scanner:8080/ws --timeout 30s --json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, scanFlagBindings)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, closeFn, err := openBridge(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		result, err := runScan(ctx, b, timeout)
		if err != nil {
			return err
		}
		return printScanResult(cmd.OutOrStdout(), result, asJSON)
	},
}

var scanFlagBindings = []flagBinding{
	{"native.camera", "camera"},
	{"native.pages", "pages"},
	{"native.formats", "formats"},
	{"native.try_harder", "try-harder"},
	{"native.poll_interval", "poll-interval"},
}

// runScan starts a scan and waits for its result. When ctx ends or the
// timeout expires first, the scan is cancelled and its cancelled result is
// awaited.
func runScan(ctx context.Context, b *bridge.Bridge, timeout time.Duration) (barcode.ScanResult, error) {
	c := newCall()
	b.Scan(c.success, c.failure)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	o, ok := c.wait(waitCtx)
	if !ok {
		slog.Info("Cancelling scan", "reason", waitCtx.Err())
		b.Cancel(func(any) {}, func(reason any) {
			slog.Debug("Cancel rejected", "reason", reason)
		})

		graceCtx, cancel := context.WithTimeout(context.Background(), cancelGrace)
		defer cancel()
		if o, ok = c.wait(graceCtx); !ok {
			return barcode.ScanResult{}, errCancelTimeout
		}
	}

	payload, err := o.result()
	if err != nil {
		return barcode.ScanResult{}, fmt.Errorf("scan failed: %w", err)
	}
	return barcode.ParseScanResult(payload)
}

func printScanResult(w io.Writer, result barcode.ScanResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if result.Cancelled {
		_, err := fmt.Fprintln(w, "Scan cancelled")
		return err
	}
	_, err := fmt.Fprintf(w, "Format: %s\nText: %s\n", result.Format, result.Text)
	return err
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("camera", "", "frame source: image file, image directory or PDF")
	scanCmd.Flags().String("pages", "", "page range for PDF cameras (e.g. 1-3,5)")
	scanCmd.Flags().String("formats", "", "comma-separated barcode formats to accept (default: all)")
	scanCmd.Flags().Bool("try-harder", false, "spend more time per frame looking for a barcode")
	scanCmd.Flags().Duration("poll-interval", 100*time.Millisecond, "delay between frames without a barcode")
	scanCmd.Flags().Duration("timeout", 0, "cancel the scan after this long (0 waits until a result)")
	scanCmd.Flags().Bool("json", false, "print the scan result as JSON")
}
