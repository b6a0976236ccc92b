package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/MeKo-Tech/scanbridge/internal/config"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/MeKo-Tech/scanbridge/internal/transport"
)

// cancelGrace bounds the wait for a scan to report back after a cancel.
const cancelGrace = 5 * time.Second

var errCancelTimeout = errors.New("scan did not stop after cancel")

// openBridge connects a bridge to the remote server named in the config, or
// to an in-process native plugin. The returned func releases the channel.
func openBridge(ctx context.Context, cfg *config.Config) (*bridge.Bridge, func(), error) {
	logger := slog.Default()

	if cfg.Client.RemoteURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Client.DialTimeout)
		defer cancel()
		client, err := transport.Dial(dialCtx, cfg.Client.RemoteURL, transport.WithClientLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Client.RemoteURL, err)
		}
		logger.Debug("Connected to remote scanner", "url", cfg.Client.RemoteURL)
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close remote connection", "error", err)
			}
		}
		return bridge.New(bridge.Instrument(client), bridge.WithLogger(logger)), closeFn, nil
	}

	plugin := native.New(cfg.ToNativeConfig(), native.WithLogger(logger))
	closeFn := func() { _ = plugin.Close() }
	return bridge.New(bridge.Instrument(plugin), bridge.WithLogger(logger)), closeFn, nil
}

// outcome is the resolution of one bridge call.
type outcome struct {
	ok      bool
	payload any
}

// call collects the single resolution of a bridge call.
type call chan outcome

func newCall() call { return make(call, 1) }

func (c call) success(v any) { c.resolve(outcome{ok: true, payload: v}) }
func (c call) failure(v any) { c.resolve(outcome{ok: false, payload: v}) }

func (c call) resolve(o outcome) {
	select {
	case c <- o:
	default:
	}
}

// wait blocks until the call resolves or ctx ends.
func (c call) wait(ctx context.Context) (outcome, bool) {
	select {
	case o := <-c:
		return o, true
	case <-ctx.Done():
		return outcome{}, false
	}
}

// result turns a failure payload into an error.
func (o outcome) result() (any, error) {
	if o.ok {
		return o.payload, nil
	}
	return nil, fmt.Errorf("%v", o.payload)
}
