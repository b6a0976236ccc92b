package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/native"
)

// Config represents the complete configuration for the scanbridge application.
// It covers the in-process native plugin, the remote client and the HTTP
// server, and supports loading from configuration files, environment
// variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Native plugin configuration
	Native NativeConfig `mapstructure:"native" yaml:"native" json:"native"`

	// Remote channel configuration (scan --remote)
	Client ClientConfig `mapstructure:"client" yaml:"client" json:"client"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// NativeConfig contains scan and encode settings of the native plugin.
type NativeConfig struct {
	// Camera is the frame source: an image file, a directory of images or a PDF.
	Camera       string        `mapstructure:"camera" yaml:"camera" json:"camera"`
	Pages        string        `mapstructure:"pages" yaml:"pages" json:"pages"`
	OutputDir    string        `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Formats      []string      `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder    bool          `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	ScanTimeout  time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout" json:"scan_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	MaxFrameSize int           `mapstructure:"max_frame_size" yaml:"max_frame_size" json:"max_frame_size"`
}

// ClientConfig contains settings for talking to a remote scanbridge server.
type ClientConfig struct {
	RemoteURL   string        `mapstructure:"remote_url" yaml:"remote_url" json:"remote_url"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" json:"dial_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Native: NativeConfig{
			Camera:       "",
			Pages:        "",
			OutputDir:    "",
			Formats:      []string{},
			TryHarder:    false,
			ScanTimeout:  0,
			PollInterval: native.DefaultPollInterval,
			MaxFrameSize: native.DefaultMaxFrameSize,
		},
		Client: ClientConfig{
			RemoteURL:   "",
			DialTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Native plugin
	if _, unknown := barcode.ParseFormats(c.Native.Formats); len(unknown) > 0 {
		return fmt.Errorf("invalid native.formats: unknown format(s) %s", strings.Join(unknown, ", "))
	}
	if c.Native.ScanTimeout < 0 {
		return fmt.Errorf("invalid native.scan_timeout: %s (must not be negative)", c.Native.ScanTimeout)
	}
	if c.Native.PollInterval <= 0 {
		return fmt.Errorf("invalid native.poll_interval: %s (must be positive)", c.Native.PollInterval)
	}
	if c.Native.MaxFrameSize < 0 {
		return fmt.Errorf("invalid native.max_frame_size: %d (must not be negative)", c.Native.MaxFrameSize)
	}

	// Client
	if c.Client.RemoteURL != "" {
		if err := validateWebSocketURL(c.Client.RemoteURL); err != nil {
			return fmt.Errorf("invalid client.remote_url: %w", err)
		}
	}
	if c.Client.DialTimeout <= 0 {
		return fmt.Errorf("invalid client.dial_timeout: %s (must be positive)", c.Client.DialTimeout)
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}

	return nil
}

// ToNativeConfig converts the native section into the plugin configuration.
// Formats must already have passed Validate.
func (c *Config) ToNativeConfig() native.Config {
	formats, _ := barcode.ParseFormats(c.Native.Formats)
	return native.Config{
		OpenCamera:   native.OpenSource(c.Native.Camera, c.Native.Pages),
		OutputDir:    c.Native.OutputDir,
		Formats:      formats,
		TryHarder:    c.Native.TryHarder,
		ScanTimeout:  c.Native.ScanTimeout,
		PollInterval: c.Native.PollInterval,
		MaxFrameSize: c.Native.MaxFrameSize,
	}
}

// Helper functions

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateWebSocketURL checks that raw is an absolute ws:// or wss:// URL.
func validateWebSocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// SlogLevel returns the logging level; Verbose forces debug. Unknown
// levels fall back to info.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
