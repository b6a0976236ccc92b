// Package bridge exposes barcode scan and encode operations to application
// code and forwards them to a native collaborator over an asynchronous
// Channel. It validates callbacks, dispatches once, and relays the channel's
// result unchanged.
package bridge

import (
	"log/slog"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
)

// Target identifies this bridge to the native side.
const Target = "BarcodeScanner"

// Operations understood by the native side.
const (
	OpScan   = "scan"
	OpCancel = "cancel"
	OpEncode = "encode"
)

// SuccessFunc receives the channel's success payload.
type SuccessFunc func(result any)

// ErrorFunc receives the channel's failure payload.
type ErrorFunc func(err any)

// Channel is the asynchronous call primitive to the native collaborator.
// Implementations resolve each call at most once, on either callback.
type Channel interface {
	Execute(onSuccess SuccessFunc, onError ErrorFunc, target, operation string, args []any)
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(onSuccess SuccessFunc, onError ErrorFunc, target, operation string, args []any)

// Execute calls f.
func (f ChannelFunc) Execute(onSuccess SuccessFunc, onError ErrorFunc, target, operation string, args []any) {
	f(onSuccess, onError, target, operation, args)
}

// Bridge forwards scan, cancel and encode requests to a Channel.
type Bridge struct {
	channel Channel
	logger  *slog.Logger
	encode  barcode.EncodeTypes
	format  barcode.FormatTable
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for caller-misuse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a bridge dispatching to ch.
func New(ch Channel, opts ...Option) *Bridge {
	b := &Bridge{
		channel: ch,
		logger:  slog.Default(),
		encode:  barcode.NewEncodeTypes(),
		format:  barcode.NewFormatTable(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EncodeTypes returns the encode target descriptor.
func (b *Bridge) EncodeTypes() barcode.EncodeTypes { return b.encode }

// Formats returns the barcode format descriptor.
func (b *Bridge) Formats() barcode.FormatTable { return b.format }

// Scan starts a scan. onSuccess receives the scan result payload; a nil
// onError discards failures.
func (b *Bridge) Scan(onSuccess SuccessFunc, onError ErrorFunc) {
	b.dispatch(OpScan, onSuccess, onError, []any{})
}

// Cancel asks the native side to abort an outstanding scan. Unlike scan
// and encode it is always dispatched; nil callbacks discard the outcome.
func (b *Bridge) Cancel(onSuccess SuccessFunc, onError ErrorFunc) {
	if onSuccess == nil {
		onSuccess = func(any) {}
	}
	b.dispatch(OpCancel, onSuccess, onError, []any{})
}

// Encode asks the native side to render data as a barcode. typ is not
// checked against EncodeTypes; options are passed through verbatim.
func (b *Bridge) Encode(typ, data string, onSuccess SuccessFunc, onError ErrorFunc, options map[string]any) {
	req := barcode.EncodeRequest{Type: typ, Data: data, Options: options}
	b.dispatch(OpEncode, onSuccess, onError, []any{req})
}

func (b *Bridge) dispatch(op string, onSuccess SuccessFunc, onError ErrorFunc, args []any) {
	if onSuccess == nil {
		b.logger.Warn("BarcodeScanner dispatch rejected: success callback is nil", "operation", op)
		rejectedTotal.WithLabelValues(op).Inc()
		return
	}
	if onError == nil {
		onError = func(any) {}
	}
	b.channel.Execute(onSuccess, onError, Target, op, args)
}
