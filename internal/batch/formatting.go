package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Output formats understood by FormatResults.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ValidFormat reports whether format names an output format.
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(r)
	case FormatCSV:
		return formatCSV(r)
	case FormatText:
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// formatJSON writes all detections as one array.
func formatJSON(r *Result) (string, error) {
	bts, err := json.MarshalIndent(r.Detections(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

// formatCSV writes one row per detection and an empty row for files
// without symbols.
func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"file", "page", "frame", "format", "text", "x", "y", "width", "height"}); err != nil {
		return "", err
	}

	for _, f := range r.Files {
		if len(f.Detections) == 0 {
			if err := writer.Write([]string{f.File, "", "", "", "", "", "", "", ""}); err != nil {
				return "", err
			}
			continue
		}
		for _, d := range f.Detections {
			row := []string{
				f.File,
				strconv.Itoa(d.Page),
				strconv.Itoa(d.Frame),
				d.Format,
				d.Text,
				strconv.Itoa(d.X),
				strconv.Itoa(d.Y),
				strconv.Itoa(d.Width),
				strconv.Itoa(d.Height),
			}
			if err := writer.Write(row); err != nil {
				return "", err
			}
		}
	}

	writer.Flush()
	return output.String(), writer.Error()
}

// formatText writes one line per detection.
func formatText(r *Result) string {
	found := r.Detections()
	if len(found) == 0 {
		return "No barcodes found\n"
	}

	var output strings.Builder
	for _, d := range found {
		location := d.Source
		if d.Page > 0 {
			location = fmt.Sprintf("%s (page %d)", d.Source, d.Page)
		}
		fmt.Fprintf(&output, "%s: %s %s\n", location, d.Format, d.Text)
	}
	return output.String()
}
