package cmd

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatsCommand(t *testing.T) {
	isolate(t)
	output, _, err := runCLI(t, "formats")
	require.NoError(t, err)

	assert.Contains(t, output, "Encode types:")
	assert.Contains(t, output, "  EMAIL_TYPE\n")
	assert.Regexp(t, `qr_CODE\s+2048  encode`, output)
	assert.Regexp(t, `all_1D\s+61918\n`, output)
	assert.Regexp(t, `maxicode\s+512\n`, output)
}

func TestFormatsCommandJSON(t *testing.T) {
	isolate(t)
	output, _, err := runCLI(t, "formats", "--json")
	require.NoError(t, err)

	var tables struct {
		Encode map[string]string `json:"encode"`
		Format map[string]int    `json:"format"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &tables))

	assert.Equal(t, barcode.NewEncodeTypes().Map(), tables.Encode)
	assert.Equal(t, barcode.NewFormatTable().Map(), tables.Format)
	assert.Equal(t, 2048, tables.Format["qr_CODE"])
}
