// Package native is the in-process counterpart of the scanner bridge. Its
// Plugin receives BarcodeScanner operations over the bridge Channel, runs
// scan sessions against a Camera, renders barcodes and answers through the
// supplied callbacks with plain-data payloads.
package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
)

// Errors reported to callers. Messages cross the channel verbatim.
var (
	ErrScannerNotRunning = errors.New("Scanner not running")                  //nolint:staticcheck // wire message
	ErrNoData            = errors.New("User did not specify data to encode")  //nolint:staticcheck // wire message
	ErrUnexpected        = errors.New("Unexpected error")                     //nolint:staticcheck // wire message
	ErrScanInProgress    = errors.New("scan already in progress")
	ErrNoBarcode         = errors.New("no barcode found")
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrClosed            = errors.New("plugin closed")
)

// Defaults applied by New for zero Config fields.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxFrameSize = 1280
)

// Config controls scan and encode behavior.
type Config struct {
	// OpenCamera opens the frame source for each scan; nil means no camera.
	OpenCamera CameraOpener

	// OutputDir receives encoded PNGs. Empty returns the image inline.
	OutputDir string

	// Formats restricts decoding; zero means every supported symbology.
	Formats   barcode.Format
	TryHarder bool

	// ScanTimeout ends a session as cancelled; zero waits indefinitely.
	ScanTimeout  time.Duration
	PollInterval time.Duration
	MaxFrameSize int
}

// Plugin executes BarcodeScanner operations. It implements bridge.Channel.
type Plugin struct {
	cfg     Config
	backend barcode.Backend
	encoder barcode.Encoder
	logger  *slog.Logger

	mu     sync.Mutex
	active *session
	closed bool
	wg     sync.WaitGroup
}

type session struct {
	cancel context.CancelFunc
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the plugin logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithBackend overrides the barcode decoder.
func WithBackend(b barcode.Backend) Option {
	return func(p *Plugin) {
		if b != nil {
			p.backend = b
		}
	}
}

// WithEncoder overrides the barcode renderer.
func WithEncoder(e barcode.Encoder) Option {
	return func(p *Plugin) {
		if e != nil {
			p.encoder = e
		}
	}
}

// New creates a plugin.
func New(cfg Config, opts ...Option) *Plugin {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	p := &Plugin{
		cfg:     cfg,
		backend: barcode.NewBackend(),
		encoder: barcode.NewEncoder(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute dispatches one operation. Callbacks are invoked exactly once, on
// a goroutine owned by the plugin.
func (p *Plugin) Execute(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc, target, operation string, args []any) {
	if onSuccess == nil {
		onSuccess = func(any) {}
	}
	if onError == nil {
		onError = func(any) {}
	}

	if target != bridge.Target {
		p.respond(func() { onError(fmt.Sprintf("unknown target: %s", target)) })
		return
	}

	switch operation {
	case bridge.OpScan:
		p.startScan(onSuccess, onError)
	case bridge.OpCancel:
		p.cancelScan(onSuccess, onError)
	case bridge.OpEncode:
		p.spawn(onError, func() { p.encode(onSuccess, onError, args) })
	default:
		p.respond(func() { onError(fmt.Sprintf("invalid action: %s", operation)) })
	}
}

// Scanning reports whether a scan session is active.
func (p *Plugin) Scanning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// Close cancels any active scan, rejects further work and waits for
// in-flight operations to deliver their callbacks.
func (p *Plugin) Close() error {
	p.mu.Lock()
	p.closed = true
	if p.active != nil {
		p.active.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// respond runs fn asynchronously; fn must not block. Once the plugin is
// closed fn still runs, but Close no longer waits for it.
func (p *Plugin) respond(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		go fn()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		fn()
	}()
}

// spawn runs fn unless the plugin is closed.
func (p *Plugin) spawn(onError bridge.ErrorFunc, fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.respond(func() { onError(ErrClosed.Error()) })
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		fn()
	}()
}
