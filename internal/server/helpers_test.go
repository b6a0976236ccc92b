package server

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/MeKo-Tech/scanbridge/internal/testutil"
	"github.com/stretchr/testify/require"
)

// scriptedChannel answers every operation through a test supplied function.
type scriptedChannel struct {
	mu     sync.Mutex
	ops    []string
	answer func(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc, operation string, args []any)
	closed bool
}

func (c *scriptedChannel) Execute(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc, _ string, operation string, args []any) {
	c.mu.Lock()
	c.ops = append(c.ops, operation)
	c.mu.Unlock()
	c.answer(onSuccess, onError, operation, args)
}

func (c *scriptedChannel) Scanning() bool { return false }

func (c *scriptedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedChannel) operations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}

func testConfig() Config {
	return Config{CORSOrigin: "*", MaxUploadMB: 5, TimeoutSec: 5}
}

// newPluginServer builds a server around a real native plugin.
func newPluginServer(t *testing.T, cfg Config, opener native.CameraOpener) *Server {
	t.Helper()
	cfg.Native.OpenCamera = opener
	plugin := native.New(cfg.Native)
	s := newServer(cfg, plugin, barcode.NewBackend())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func staticCamera(frames ...image.Image) native.CameraOpener {
	return func(context.Context) (native.Camera, error) { return native.NewStaticCamera(frames...), nil }
}

// blockingCamera never yields a frame until the scan ends.
func blockingCamera() native.CameraOpener {
	return func(context.Context) (native.Camera, error) {
		return native.CameraFunc(func(ctx context.Context) (image.Image, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func qrPNG(t *testing.T, text string) []byte {
	t.Helper()
	return testutil.PNGBytes(t, testutil.QRImage(t, text))
}

// multipartUpload builds a multipart request with one file and extra fields.
func multipartUpload(t *testing.T, url, field, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
