package cmd

import (
	"os"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/config"
	"github.com/MeKo-Tech/scanbridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigInit(t *testing.T) {
	isolate(t)

	output, _, err := runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "scanbridge.yaml")

	data, err := os.ReadFile("scanbridge.yaml")
	require.NoError(t, err)
	var written config.Config
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, config.DefaultConfig().Server, written.Server)

	_, _, err = runCLI(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = runCLI(t, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	isolate(t)

	output, _, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "log_level: info")
	assert.Contains(t, output, "port: 8080")
}

func TestConfigShowWithFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("custom.yaml", []byte(`
log_level: debug
native:
  camera: ./frames
  formats: [qr_CODE, ean_13]
server:
  port: 9090
`), 0o600))

	output, _, err := runCLI(t, "--config", "custom.yaml", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "# custom.yaml")
	assert.Contains(t, output, "log_level: debug")
	assert.Contains(t, output, "camera: ./frames")
	assert.Contains(t, output, "port: 9090")
}

func TestConfigFileFeedsCommands(t *testing.T) {
	isolate(t)
	testutil.WriteQR(t, "label.png", "from config")
	require.NoError(t, os.WriteFile("scanbridge.yaml", []byte("native:\n  camera: label.png\n"), 0o600))

	output, _, err := runCLI(t, "scan")
	require.NoError(t, err)
	assert.Contains(t, output, "Text: from config")
}

func TestConfigEnvironmentOverride(t *testing.T) {
	isolate(t)
	t.Setenv("SCANBRIDGE_SERVER_PORT", "7070")

	output, _, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "port: 7070")
}
