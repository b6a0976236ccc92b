package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/spf13/cobra"
)

// formatsCmd represents the formats command.
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List encode types and barcode format codes",
	Long: `List the encode types accepted by "scanbridge encode" and the barcode
format codes reported by scans. Formats marked "encode" can also be rendered.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return printFormats(cmd.OutOrStdout(), barcode.NewEncodeTypes(), barcode.NewFormatTable(), asJSON)
	},
}

func printFormats(w io.Writer, types barcode.EncodeTypes, table barcode.FormatTable, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"encode": types.Map(),
			"format": table.Map(),
		})
	}

	_, _ = fmt.Fprintln(w, "Encode types:")
	for _, name := range types.Names() {
		_, _ = fmt.Fprintf(w, "  %s\n", name)
	}

	_, _ = fmt.Fprintln(w, "Formats:")
	for _, name := range table.Names() {
		code, _ := table.Code(name)
		mark := ""
		if barcode.CanEncode(code) {
			mark = "  encode"
		}
		if _, err := fmt.Fprintf(w, "  %-12s %4d%s\n", name, int(code), mark); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(formatsCmd)
	formatsCmd.Flags().Bool("json", false, "print both tables as JSON")
}
