package native

import (
	"context"
	"errors"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/MeKo-Tech/scanbridge/internal/utils"
)

// startScan registers a session synchronously so a cancel issued right
// after the scan dispatch always finds it.
func (p *Plugin) startScan(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		p.respond(func() { onError(ErrClosed.Error()) })
		return
	case p.active != nil:
		p.mu.Unlock()
		scansTotal.WithLabelValues("busy").Inc()
		p.respond(func() { onError(ErrScanInProgress.Error()) })
		return
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.cfg.ScanTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), p.cfg.ScanTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s := &session{cancel: cancel}
	p.active = s
	p.wg.Add(1)
	p.mu.Unlock()

	activeScans.Inc()
	go func() {
		defer p.wg.Done()
		start := time.Now()

		result, err := p.runScan(ctx)

		cancel()
		p.mu.Lock()
		if p.active == s {
			p.active = nil
		}
		p.mu.Unlock()
		activeScans.Dec()
		scanDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			scansTotal.WithLabelValues(scanOutcome(err)).Inc()
			p.logger.Info("Scan failed", "error", err, "duration", time.Since(start))
			onError(err.Error())
			return
		}
		if result.Cancelled {
			scansTotal.WithLabelValues("cancelled").Inc()
		} else {
			scansTotal.WithLabelValues("decoded").Inc()
		}
		p.logger.Info("Scan finished",
			"format", result.Format,
			"cancelled", result.Cancelled,
			"duration", time.Since(start))
		onSuccess(result)
	}()
}

// runScan pulls frames until one decodes, the camera runs dry or the
// session context ends.
func (p *Plugin) runScan(ctx context.Context) (barcode.ScanResult, error) {
	if p.cfg.OpenCamera == nil {
		return barcode.ScanResult{}, ErrCameraUnavailable
	}
	cam, err := p.cfg.OpenCamera(ctx)
	if err != nil {
		p.logger.Warn("Failed to open camera", "error", err)
		return barcode.ScanResult{}, ErrCameraUnavailable
	}
	defer func() {
		if err := closeCamera(cam); err != nil {
			p.logger.Warn("Failed to close camera", "error", err)
		}
	}()

	opts := barcode.Options{Formats: p.cfg.Formats, TryHarder: p.cfg.TryHarder}
	for frame := 0; ; frame++ {
		if ctx.Err() != nil {
			return barcode.CancelledScan(), nil
		}

		img, err := cam.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return barcode.CancelledScan(), nil
		case isEOF(err):
			return barcode.ScanResult{}, ErrNoBarcode
		default:
			p.logger.Error("Camera frame failed", "frame", frame, "error", err)
			return barcode.ScanResult{}, ErrUnexpected
		}

		img, err = utils.FitFrame(img, p.cfg.MaxFrameSize)
		if err != nil {
			p.logger.Debug("Skipping frame", "frame", frame, "error", err)
			framesTotal.WithLabelValues("empty").Inc()
			continue
		}

		results, err := p.backend.Decode(ctx, img, opts)
		if err == nil && len(results) > 0 {
			framesTotal.WithLabelValues("decoded").Inc()
			return results[0].ScanResult(), nil
		}
		framesTotal.WithLabelValues("empty").Inc()
		if err != nil && !errors.Is(err, barcode.ErrNotFound) && ctx.Err() == nil {
			p.logger.Debug("Frame decode failed", "frame", frame, "error", err)
		}

		select {
		case <-ctx.Done():
			return barcode.CancelledScan(), nil
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// cancelScan aborts the active session. The session itself reports the
// cancelled result on its own callbacks.
func (p *Plugin) cancelScan(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc) {
	p.mu.Lock()
	s := p.active
	p.mu.Unlock()

	if s == nil {
		p.respond(func() { onError(ErrScannerNotRunning.Error()) })
		return
	}
	s.cancel()
	p.logger.Info("Scan cancel requested")
	p.respond(func() { onSuccess(map[string]any{}) })
}

func scanOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNoBarcode):
		return "not_found"
	case errors.Is(err, ErrCameraUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
