package native

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is one callback invocation.
type outcome struct {
	ok      bool
	payload any
}

// callbacks collects asynchronous results.
type callbacks struct {
	ch chan outcome
}

func newCallbacks() *callbacks { return &callbacks{ch: make(chan outcome, 4)} }

func (c *callbacks) success(v any) { c.ch <- outcome{ok: true, payload: v} }
func (c *callbacks) failure(v any) { c.ch <- outcome{ok: false, payload: v} }

func (c *callbacks) wait(t *testing.T) outcome {
	t.Helper()
	select {
	case o := <-c.ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
		return outcome{}
	}
}

func (c *callbacks) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case o := <-c.ch:
		t.Fatalf("unexpected extra callback: %+v", o)
	case <-time.After(50 * time.Millisecond):
	}
}

func qrFrame(t *testing.T, text string) image.Image {
	t.Helper()
	img, err := barcode.NewEncoder().Encode(context.Background(), barcode.EncodeSpec{
		Type:   barcode.EncodeText,
		Data:   text,
		Width:  300,
		Height: 300,
		Margin: 4,
	})
	require.NoError(t, err)
	return img
}

func blankFrame() image.Image {
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func staticOpener(frames ...image.Image) CameraOpener {
	return func(context.Context) (Camera, error) { return NewStaticCamera(frames...), nil }
}

// blockingOpener returns a camera whose Next blocks until the session ends.
func blockingOpener() CameraOpener {
	return func(context.Context) (Camera, error) {
		return CameraFunc(func(ctx context.Context) (image.Image, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil
	}
}

func newTestPlugin(t *testing.T, cfg Config) *Plugin {
	t.Helper()
	cfg.PollInterval = time.Millisecond
	p := New(cfg)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestScan_DecodesFirstReadableFrame(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: staticOpener(blankFrame(), qrFrame(t, "12345-mock"))})
	cb := newCallbacks()

	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, []any{})

	o := cb.wait(t)
	require.True(t, o.ok, "payload: %v", o.payload)
	assert.Equal(t, barcode.ScanResult{Text: "12345-mock", Format: "QR_CODE", Cancelled: false}, o.payload)
	cb.assertQuiet(t)
	assert.False(t, p.Scanning())
}

func TestScan_ExhaustedCamera(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: staticOpener(blankFrame())})
	cb := newCallbacks()

	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)

	o := cb.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "no barcode found", o.payload)
}

func TestScan_NoCamera(t *testing.T) {
	p := newTestPlugin(t, Config{})
	cb := newCallbacks()

	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)

	o := cb.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "camera unavailable", o.payload)
}

func TestScan_CameraFailure(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: func(context.Context) (Camera, error) {
		return CameraFunc(func(context.Context) (image.Image, error) {
			return nil, io.ErrUnexpectedEOF
		}), nil
	}})
	cb := newCallbacks()

	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)

	o := cb.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "Unexpected error", o.payload)
}

func TestScan_SecondScanRejected(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: blockingOpener()})
	first := newCallbacks()
	second := newCallbacks()

	p.Execute(first.success, first.failure, bridge.Target, bridge.OpScan, nil)
	p.Execute(second.success, second.failure, bridge.Target, bridge.OpScan, nil)

	o := second.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "scan already in progress", o.payload)
	assert.True(t, p.Scanning())
}

func TestCancel_ActiveScanReportsCancelled(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: blockingOpener()})
	scan := newCallbacks()
	cancel := newCallbacks()

	p.Execute(scan.success, scan.failure, bridge.Target, bridge.OpScan, nil)
	p.Execute(cancel.success, cancel.failure, bridge.Target, bridge.OpCancel, nil)

	c := cancel.wait(t)
	require.True(t, c.ok)
	assert.Equal(t, map[string]any{}, c.payload)

	s := scan.wait(t)
	require.True(t, s.ok)
	assert.Equal(t, barcode.CancelledScan(), s.payload)
	scan.assertQuiet(t)
}

func TestCancel_NotRunning(t *testing.T) {
	p := newTestPlugin(t, Config{})
	cb := newCallbacks()

	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpCancel, nil)

	o := cb.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "Scanner not running", o.payload)
}

func TestScan_TimeoutReportsCancelled(t *testing.T) {
	var frames atomic.Int32
	p := newTestPlugin(t, Config{
		ScanTimeout: 50 * time.Millisecond,
		OpenCamera: func(context.Context) (Camera, error) {
			return CameraFunc(func(context.Context) (image.Image, error) {
				frames.Add(1)
				return blankFrame(), nil
			}), nil
		},
	})
	cb := newCallbacks()

	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)

	o := cb.wait(t)
	require.True(t, o.ok)
	assert.Equal(t, barcode.CancelledScan(), o.payload)
	assert.Positive(t, frames.Load())
}

func TestScan_NewScanAfterCompletion(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: staticOpener(qrFrame(t, "again"))})

	for i := 0; i < 2; i++ {
		cb := newCallbacks()
		p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)
		o := cb.wait(t)
		require.True(t, o.ok, "payload: %v", o.payload)
		assert.Equal(t, "again", o.payload.(barcode.ScanResult).Text)
	}
}

func TestExecute_UnknownTargetAndAction(t *testing.T) {
	p := newTestPlugin(t, Config{})

	cb := newCallbacks()
	p.Execute(cb.success, cb.failure, "Camera", bridge.OpScan, nil)
	o := cb.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "unknown target: Camera", o.payload)

	cb = newCallbacks()
	p.Execute(cb.success, cb.failure, bridge.Target, "torch", nil)
	o = cb.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "invalid action: torch", o.payload)
}

func TestClose_CancelsActiveScanAndRejectsNewWork(t *testing.T) {
	p := New(Config{OpenCamera: blockingOpener()})
	scan := newCallbacks()

	p.Execute(scan.success, scan.failure, bridge.Target, bridge.OpScan, nil)
	require.NoError(t, p.Close())

	s := scan.wait(t)
	require.True(t, s.ok)
	assert.Equal(t, barcode.CancelledScan(), s.payload)

	cb := newCallbacks()
	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)
	o := cb.wait(t)
	assert.False(t, o.ok)
	assert.Equal(t, "plugin closed", o.payload)
}

func TestClose_ImmediateRepliesStillDelivered(t *testing.T) {
	p := New(Config{})
	require.NoError(t, p.Close())

	cases := []struct {
		target, operation, want string
	}{
		{"Camera", bridge.OpScan, "unknown target: Camera"},
		{bridge.Target, "torch", "invalid action: torch"},
		{bridge.Target, bridge.OpCancel, "Scanner not running"},
		{bridge.Target, bridge.OpEncode, "plugin closed"},
	}
	for _, tc := range cases {
		cb := newCallbacks()
		p.Execute(cb.success, cb.failure, tc.target, tc.operation, nil)
		o := cb.wait(t)
		assert.False(t, o.ok)
		assert.Equal(t, tc.want, o.payload)
	}
	require.NoError(t, p.Close())
}

func TestClose_ConcurrentWithExecute(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := New(Config{})
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 20; k++ {
					p.Execute(nil, nil, "Camera", bridge.OpScan, nil)
					p.Execute(nil, nil, bridge.Target, "torch", nil)
					p.Execute(nil, nil, bridge.Target, bridge.OpCancel, nil)
				}
			}()
		}
		require.NoError(t, p.Close())
		wg.Wait()
	}
}

func TestCancel_NilCallbacksThroughBridgeStopScan(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: blockingOpener()})
	b := bridge.New(p)
	scan := newCallbacks()

	b.Scan(scan.success, scan.failure)
	require.Eventually(t, p.Scanning, time.Second, 5*time.Millisecond)
	b.Cancel(nil, nil)

	s := scan.wait(t)
	require.True(t, s.ok)
	assert.Equal(t, barcode.CancelledScan(), s.payload)
	assert.False(t, p.Scanning())
}

func TestScan_ThroughBridge(t *testing.T) {
	p := newTestPlugin(t, Config{OpenCamera: staticOpener(qrFrame(t, "bridge-path"))})
	b := bridge.New(bridge.Instrument(p))
	cb := newCallbacks()

	b.Scan(cb.success, cb.failure)

	o := cb.wait(t)
	require.True(t, o.ok)
	assert.Equal(t, "bridge-path", o.payload.(barcode.ScanResult).Text)
}

func TestScan_FramesAreDownscaled(t *testing.T) {
	var seen atomic.Int32
	backend := decodeFunc(func(_ context.Context, img image.Image, _ barcode.Options) ([]barcode.Result, error) {
		seen.Store(int32(img.Bounds().Dx()))
		return []barcode.Result{{Format: barcode.FormatEAN13, Text: "4006381333931"}}, nil
	})
	big := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	big.Set(0, 0, color.Black)

	p := New(Config{OpenCamera: staticOpener(big), MaxFrameSize: 500}, WithBackend(backend))
	t.Cleanup(func() { _ = p.Close() })
	cb := newCallbacks()

	p.Execute(cb.success, cb.failure, bridge.Target, bridge.OpScan, nil)

	o := cb.wait(t)
	require.True(t, o.ok)
	assert.Equal(t, barcode.ScanResult{Text: "4006381333931", Format: "EAN_13"}, o.payload)
	assert.Equal(t, int32(500), seen.Load())
}

type decodeFunc func(ctx context.Context, img image.Image, opts barcode.Options) ([]barcode.Result, error)

func (f decodeFunc) Decode(ctx context.Context, img image.Image, opts barcode.Options) ([]barcode.Result, error) {
	return f(ctx, img, opts)
}
