package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/MeKo-Tech/scanbridge/internal/transport"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CancelGrace is how long a timed out scan request waits for the cancelled
// result after issuing a cancel.
const CancelGrace = 2 * time.Second

// barcodeFormatHeader names the symbology of a PNG returned by /encode.
const barcodeFormatHeader = "X-Barcode-Format"

// channelInterface is the native side the server drives.
type channelInterface interface {
	bridge.Channel
	Scanning() bool
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	channel     channelInterface
	bridge      *bridge.Bridge
	host        *transport.Host
	backend     barcode.Backend
	decodeOpts  barcode.Options
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Native      native.Config
}

// Response types for API endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Scanning bool   `json:"scanning"`
	Time     string `json:"time"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type FormatsResponse struct {
	Encode map[string]string `json:"encode"`
	Format map[string]int    `json:"format"`
}

type ScanResponse struct {
	Success bool                `json:"success"`
	Result  *barcode.ScanResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type EncodeResponse struct {
	Success bool                  `json:"success"`
	Result  *barcode.EncodeResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

type DecodeResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Results []native.Detection `json:"results"`
	Error   string             `json:"error,omitempty"`
}

// NewServer creates a server around a fresh native plugin.
func NewServer(config Config) *Server {
	plugin := native.New(config.Native, native.WithLogger(slog.Default()))
	return newServer(config, plugin, barcode.NewBackend())
}

func newServer(config Config, ch channelInterface, backend barcode.Backend) *Server {
	instrumented := bridge.Instrument(ch)
	return &Server{
		channel:     ch,
		bridge:      bridge.New(instrumented),
		host:        transport.NewHost(instrumented),
		backend:     backend,
		decodeOpts:  barcode.Options{Formats: config.Native.Formats, TryHarder: config.Native.TryHarder},
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
}

// Close releases server resources. A running scan is cancelled.
func (s *Server) Close() error {
	if s.channel != nil {
		return s.channel.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.corsMiddleware(s.healthHandler)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/formats", s.corsMiddleware(s.formatsHandler)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/scan", s.corsMiddleware(s.scanHandler)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/scan/cancel", s.corsMiddleware(s.cancelHandler)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/encode", s.corsMiddleware(s.encodeHandler)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/decode", s.corsMiddleware(s.decodeHandler)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws", s.corsMiddleware(s.bridgeWebSocketHandler)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler returns a router with all routes installed.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.SetupRoutes(r)
	return r
}
