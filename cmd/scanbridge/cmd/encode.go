package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/spf13/cobra"
)

// encodeCmd represents the encode command.
var encodeCmd = &cobra.Command{
	Use:   "encode TYPE DATA",
	Short: "Render a barcode for the given data",
	Long: `Encode DATA as a barcode and write it as PNG.

TYPE is one of TEXT_TYPE, EMAIL_TYPE, PHONE_TYPE or SMS_TYPE. Email, phone
and SMS data are encoded as mailto:, tel: and sms: URIs. The symbol is a QR
code unless --format names another writable symbology.

When an output directory is configured the scanner stores the PNG there and
the path is printed. Otherwise the PNG is written to --output ("-" for stdout).

Examples:
  scanbridge encode TEXT_TYPE "hello" -o hello.png
  scanbridge encode EMAIL_TYPE someone@example.com --width 400
  scanbridge encode TEXT_TYPE 4006381333931 --format ean_13 --output-dir ./codes`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, encodeFlagBindings)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, closeFn, err := openBridge(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		c := newCall()
		b.Encode(args[0], args[1], c.success, c.failure, encodeOptions(cmd))

		o, ok := c.wait(ctx)
		if !ok {
			return fmt.Errorf("encode interrupted: %w", ctx.Err())
		}
		payload, err := o.result()
		if err != nil {
			return fmt.Errorf("encode failed: %w", err)
		}
		result, err := barcode.ParseEncodeResult(payload)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		output, _ := cmd.Flags().GetString("output")
		return writeEncodeResult(cmd.OutOrStdout(), result, output, asJSON)
	},
}

var encodeFlagBindings = []flagBinding{
	{"native.output_dir", "output-dir"},
}

// encodeOptions collects the options the user actually set.
func encodeOptions(cmd *cobra.Command) map[string]any {
	opts := map[string]any{}
	for _, key := range []string{native.OptionWidth, native.OptionHeight, native.OptionMargin} {
		if cmd.Flags().Changed(key) {
			v, _ := cmd.Flags().GetInt(key)
			opts[key] = v
		}
	}
	if cmd.Flags().Changed(native.OptionFormat) {
		v, _ := cmd.Flags().GetString(native.OptionFormat)
		opts[native.OptionFormat] = v
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func writeEncodeResult(w io.Writer, result barcode.EncodeResult, output string, asJSON bool) error {
	if len(result.Image) > 0 && output != "" {
		if output == "-" {
			_, err := w.Write(result.Image)
			return err
		}
		if err := os.WriteFile(output, result.Image, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		result.File = output
	}

	if asJSON {
		result.Image = nil
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.File == "" {
		return fmt.Errorf("no output for %d byte image: set --output or --output-dir", len(result.Image))
	}
	_, err := fmt.Fprintf(w, "Wrote %s %dx%d to %s\n", result.Format, result.Width, result.Height, result.File)
	return err
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().Int(native.OptionWidth, barcode.DefaultEncodeSize, "image width in pixels")
	encodeCmd.Flags().Int(native.OptionHeight, barcode.DefaultEncodeSize, "image height in pixels (default: width)")
	encodeCmd.Flags().Int(native.OptionMargin, 4, "quiet zone in modules")
	encodeCmd.Flags().String(native.OptionFormat, "qr_CODE", "barcode format to render")
	encodeCmd.Flags().String("output-dir", "", "directory the scanner stores encoded PNGs in")
	encodeCmd.Flags().StringP("output", "o", "barcode.png", `output PNG file ("-" for stdout)`)
	encodeCmd.Flags().Bool("json", false, "print the encode result as JSON")
}
