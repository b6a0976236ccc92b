package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server hosting the native scanner",
	Long: `Start an HTTP server that hosts the native scanner.

The server provides the following endpoints:
  GET  /health       - Health check endpoint
  GET  /formats      - Encode types and barcode format codes
  POST /scan         - Scan until a barcode is found or the timeout expires
  POST /scan/cancel  - Cancel the running scan
  POST /encode       - Render a barcode as PNG
  POST /decode       - Decode barcodes in an uploaded image or PDF
  GET  /ws           - Bridge channel for "scanbridge --remote"
  GET  /metrics      - Prometheus metrics

Examples:
  scanbridge serve
  scanbridge serve --port 8080 --camera ./frames
  scanbridge serve --host 0.0.0.0 --port 3000 --cors-origin https://app.example`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, serveFlagBindings)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		serverConfig := server.Config{
			Host:        cfg.Server.Host,
			Port:        cfg.Server.Port,
			CORSOrigin:  cfg.Server.CORSOrigin,
			MaxUploadMB: int64(cfg.Server.MaxUploadMB),
			TimeoutSec:  cfg.Server.TimeoutSec,
			Native:      cfg.ToNativeConfig(),
		}

		scanServer := server.NewServer(serverConfig)
		defer func() { _ = scanServer.Close() }()

		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           scanServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			// A timed out scan still needs time to report its cancellation.
			WriteTimeout: timeout + server.CancelGrace,
		}

		go func() {
			slog.Info("Starting scanbridge server", "host", cfg.Server.Host, "port", cfg.Server.Port,
				"camera", cfg.Native.Camera)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		// Release the camera first so a running scan does not hold the shutdown.
		slog.Info("Closing native scanner")
		if err := scanServer.Close(); err != nil {
			slog.Error("Scanner close error", "error", err)
		}

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

var serveFlagBindings = []flagBinding{
	{"server.host", "host"},
	{"server.port", "port"},
	{"server.cors_origin", "cors-origin"},
	{"server.max_upload_mb", "max-upload-size"},
	{"server.timeout_sec", "timeout"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"native.camera", "camera"},
	{"native.pages", "pages"},
	{"native.output_dir", "output-dir"},
	{"native.formats", "formats"},
	{"native.try_harder", "try-harder"},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Native scanner flags
	serveCmd.Flags().String("camera", "", "frame source: image file, image directory or PDF")
	serveCmd.Flags().String("pages", "", "page range for PDF cameras (e.g. 1-3,5)")
	serveCmd.Flags().String("output-dir", "", "directory encoded PNGs are stored in")
	serveCmd.Flags().String("formats", "", "comma-separated barcode formats to accept (default: all)")
	serveCmd.Flags().Bool("try-harder", false, "spend more time per frame looking for a barcode")
}
