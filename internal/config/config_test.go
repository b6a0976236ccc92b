package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/native"
)

const (
	infoLevel  = "info"
	debugLevel = "debug"
)

// TestDefaultConfig verifies that DefaultConfig returns expected values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log_level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Verbose {
		t.Error("Expected verbose to be false")
	}

	// Native defaults
	if cfg.Native.Camera != "" {
		t.Errorf("Expected no camera by default, got %s", cfg.Native.Camera)
	}
	if cfg.Native.PollInterval != native.DefaultPollInterval {
		t.Errorf("Expected poll_interval %s, got %s", native.DefaultPollInterval, cfg.Native.PollInterval)
	}
	if cfg.Native.MaxFrameSize != native.DefaultMaxFrameSize {
		t.Errorf("Expected max_frame_size %d, got %d", native.DefaultMaxFrameSize, cfg.Native.MaxFrameSize)
	}
	if cfg.Native.ScanTimeout != 0 {
		t.Errorf("Expected no scan timeout, got %s", cfg.Native.ScanTimeout)
	}

	// Client defaults
	if cfg.Client.DialTimeout != 10*time.Second {
		t.Errorf("Expected dial_timeout 10s, got %s", cfg.Client.DialTimeout)
	}

	// Server defaults
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected server host 'localhost', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

// TestValidate covers each rejected field.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"unknown format", func(c *Config) { c.Native.Formats = []string{"qr", "hologram"} }, "hologram"},
		{"known formats", func(c *Config) { c.Native.Formats = []string{"qr_CODE", "EAN_13", "code128"} }, ""},
		{"negative scan timeout", func(c *Config) { c.Native.ScanTimeout = -time.Second }, "scan_timeout"},
		{"zero poll interval", func(c *Config) { c.Native.PollInterval = 0 }, "poll_interval"},
		{"negative frame size", func(c *Config) { c.Native.MaxFrameSize = -1 }, "max_frame_size"},
		{"http remote", func(c *Config) { c.Client.RemoteURL = "http://host/ws" }, "scheme"},
		{"remote without host", func(c *Config) { c.Client.RemoteURL = "ws:///ws" }, "missing host"},
		{"valid remote", func(c *Config) { c.Client.RemoteURL = "wss://scanner.local:8443/ws" }, ""},
		{"dial timeout", func(c *Config) { c.Client.DialTimeout = 0 }, "dial_timeout"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload size", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = -5 }, "invalid timeout"},
		{"shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = -1 }, "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

// TestToNativeConfig verifies the native section conversion.
func TestToNativeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Native.Formats = []string{"qr_CODE", "ean_13"}
	cfg.Native.TryHarder = true
	cfg.Native.OutputDir = "/tmp/codes"
	cfg.Native.ScanTimeout = 5 * time.Second
	cfg.Native.MaxFrameSize = 640

	nc := cfg.ToNativeConfig()

	if nc.Formats != barcode.FormatQR|barcode.FormatEAN13 {
		t.Errorf("Expected QR|EAN13 mask, got %v", nc.Formats)
	}
	if !nc.TryHarder {
		t.Error("Expected try_harder to carry over")
	}
	if nc.OutputDir != "/tmp/codes" {
		t.Errorf("Expected output dir /tmp/codes, got %s", nc.OutputDir)
	}
	if nc.ScanTimeout != 5*time.Second {
		t.Errorf("Expected scan timeout 5s, got %s", nc.ScanTimeout)
	}
	if nc.MaxFrameSize != 640 {
		t.Errorf("Expected max frame size 640, got %d", nc.MaxFrameSize)
	}
	if nc.OpenCamera != nil {
		t.Error("Expected no camera opener without a camera source")
	}

	cfg.Native.Camera = "/dev/null/frames"
	if cfg.ToNativeConfig().OpenCamera == nil {
		t.Error("Expected a camera opener for a configured source")
	}
}

// TestContains tests the contains helper.
func TestContains(t *testing.T) {
	slice := []string{"debug", "info"}
	if !contains(slice, "info") {
		t.Error("Expected contains to find 'info'")
	}
	if contains(slice, "warn") {
		t.Error("Expected contains not to find 'warn'")
	}
	if contains(nil, "info") {
		t.Error("Expected contains on nil slice to be false")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    slog.Level
	}{
		{"debug", false, slog.LevelDebug},
		{"info", false, slog.LevelInfo},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"WARN", false, slog.LevelWarn},
		{"error", true, slog.LevelDebug},
		{"", false, slog.LevelInfo},
		{"trace", false, slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.LogLevel = tt.level
		cfg.Verbose = tt.verbose
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q, verbose=%v) = %v, want %v", tt.level, tt.verbose, got, tt.want)
		}
	}
}
