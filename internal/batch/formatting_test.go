package batch

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	return &Result{
		Files: []FileResult{
			{File: "a.png", Detections: []native.Detection{
				{Source: "a.png", Text: "hello", Format: "QR_CODE", X: 10, Y: 20, Width: 100, Height: 100},
			}},
			{File: "blank.png", Detections: []native.Detection{}},
			{File: "doc.pdf", Detections: []native.Detection{
				{Source: "doc.pdf", Page: 2, Frame: 1, Text: "4006381333931", Format: "EAN_13"},
			}},
		},
		WorkerCount: 2,
	}
}

func TestFormatBatchResults_Text(t *testing.T) {
	output, err := sampleResult().FormatResults(FormatText)
	require.NoError(t, err)
	assert.Equal(t, "a.png: QR_CODE hello\ndoc.pdf (page 2): EAN_13 4006381333931\n", output)
}

func TestFormatBatchResults_TextEmpty(t *testing.T) {
	output, err := (&Result{}).FormatResults(FormatText)
	require.NoError(t, err)
	assert.Equal(t, "No barcodes found\n", output)
}

func TestFormatBatchResults_JSON(t *testing.T) {
	output, err := sampleResult().FormatResults(FormatJSON)
	require.NoError(t, err)

	var found []native.Detection
	require.NoError(t, json.Unmarshal([]byte(output), &found))
	require.Len(t, found, 2)
	assert.Equal(t, "hello", found[0].Text)
	assert.Equal(t, 2, found[1].Page)
}

func TestFormatBatchResults_JSONEmpty(t *testing.T) {
	output, err := (&Result{}).FormatResults(FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", output)
}

func TestFormatBatchResults_CSV(t *testing.T) {
	output, err := sampleResult().FormatResults(FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(output)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"file", "page", "frame", "format", "text", "x", "y", "width", "height"}, rows[0])
	assert.Equal(t, []string{"a.png", "0", "0", "QR_CODE", "hello", "10", "20", "100", "100"}, rows[1])
	assert.Equal(t, "blank.png", rows[2][0])
	assert.Empty(t, rows[2][4])
	assert.Equal(t, []string{"doc.pdf", "2", "1", "EAN_13", "4006381333931", "0", "0", "0", "0"}, rows[3])
}

func TestFormatBatchResults_InvalidFormat(t *testing.T) {
	_, err := sampleResult().FormatResults("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"text", "json", "csv"} {
		assert.True(t, ValidFormat(f), f)
	}
	assert.False(t, ValidFormat("yaml"))
	assert.False(t, ValidFormat(""))
}
