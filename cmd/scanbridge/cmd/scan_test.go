package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/MeKo-Tech/scanbridge/internal/server"
	"github.com/MeKo-Tech/scanbridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCommand(t *testing.T) {
	isolate(t)
	testutil.WriteBlank(t, filepath.Join("frames", "01.png"))
	testutil.WriteQR(t, filepath.Join("frames", "02.png"), "found it")

	output, _, err := runCLI(t, "scan", "--camera", "frames", "--poll-interval", "1ms")
	require.NoError(t, err)
	assert.Equal(t, "Format: QR_CODE\nText: found it\n", output)
}

func TestScanCommandJSON(t *testing.T) {
	isolate(t)
	testutil.WriteQR(t, "frame.png", "json please")

	output, _, err := runCLI(t, "scan", "--camera", "frame.png", "--json")
	require.NoError(t, err)

	var res barcode.ScanResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, barcode.ScanResult{Text: "json please", Format: "QR_CODE"}, res)
}

func TestScanCommandErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
		args  []string
		want  string
	}{
		{
			name: "no camera",
			args: []string{"scan"},
			want: native.ErrCameraUnavailable.Error(),
		},
		{
			name:  "no barcode in frames",
			setup: func(t *testing.T) { testutil.WriteBlank(t, "blank.png") },
			args:  []string{"scan", "--camera", "blank.png", "--poll-interval", "1ms"},
			want:  native.ErrNoBarcode.Error(),
		},
		{
			name:  "format filter",
			setup: func(t *testing.T) { testutil.WriteQR(t, "qr.png", "x") },
			args:  []string{"scan", "--camera", "qr.png", "--formats", "ean_13"},
			want:  native.ErrNoBarcode.Error(),
		},
		{
			name: "invalid remote url",
			args: []string{"scan", "--remote", "http://scanner"},
			want: "invalid client.remote_url",
		},
		{
			name: "positional argument",
			args: []string{"scan", "extra"},
			want: "unknown command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if tt.setup != nil {
				tt.setup(t)
			}
			_, _, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScanCommandRemote(t *testing.T) {
	dir := isolate(t)
	testutil.WriteQR(t, filepath.Join(dir, "remote.png"), "over the wire")

	scanServer := server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		TimeoutSec:  5,
		Native:      native.Config{OpenCamera: native.OpenSource(filepath.Join(dir, "remote.png"), "")},
	})
	t.Cleanup(func() { _ = scanServer.Close() })
	srv := httptest.NewServer(scanServer.Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	output, _, err := runCLI(t, "scan", "--remote", url)
	require.NoError(t, err)
	assert.Equal(t, "Format: QR_CODE\nText: over the wire\n", output)
}

// cancellableChannel holds scans open until a cancel arrives.
type cancellableChannel struct {
	mu      sync.Mutex
	pending bridge.SuccessFunc
	ops     []string
}

func (c *cancellableChannel) Execute(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc, _ string, operation string, _ []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, operation)
	switch operation {
	case bridge.OpScan:
		c.pending = onSuccess
	case bridge.OpCancel:
		if c.pending == nil {
			onError(native.ErrScannerNotRunning.Error())
			return
		}
		go c.pending(barcode.CancelledScan())
		c.pending = nil
		onSuccess(map[string]any{})
	}
}

func TestRunScanCancelsOnTimeout(t *testing.T) {
	ch := &cancellableChannel{}
	result, err := runScan(context.Background(), bridge.New(ch), 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, []string{bridge.OpScan, bridge.OpCancel}, ch.ops)

	var buf bytes.Buffer
	require.NoError(t, printScanResult(&buf, result, false))
	assert.Equal(t, "Scan cancelled\n", buf.String())
}

func TestRunScanCancelsWhenContextEnds(t *testing.T) {
	ch := &cancellableChannel{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := runScan(ctx, bridge.New(ch), 0)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
}

func TestRunScanReportsFailure(t *testing.T) {
	ch := bridge.ChannelFunc(func(_ bridge.SuccessFunc, onError bridge.ErrorFunc, _, _ string, _ []any) {
		onError(native.ErrScanInProgress.Error())
	})
	_, err := runScan(context.Background(), bridge.New(ch), time.Second)
	require.Error(t, err)
	assert.Equal(t, "scan failed: scan already in progress", err.Error())
}
