// Package support holds the godog step definitions for the bridge feature
// suite.
package support

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/MeKo-Tech/scanbridge/internal/server"
	"github.com/MeKo-Tech/scanbridge/internal/transport"
)

// CallTimeout bounds the wait for any bridge callback.
const CallTimeout = 5 * time.Second

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string

	// Native side
	Opener    native.CameraOpener
	OutputDir string
	Plugin    *native.Plugin
	Recorder  *RecordingChannel
	Bridge    *bridge.Bridge

	// Served scanner
	Server     *server.Server
	HTTPServer *httptest.Server
	Client     *transport.Client

	// Outstanding and resolved bridge calls by name
	Calls map[string]*Call

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a new test context.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "scanbridge-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir: tempDir,
		Calls:   map[string]*Call{},
	}, nil
}

// ensureBridge builds an in-process bridge unless a served one exists.
func (testCtx *TestContext) ensureBridge() *bridge.Bridge {
	if testCtx.Bridge != nil {
		return testCtx.Bridge
	}
	testCtx.Plugin = native.New(testCtx.nativeConfig())
	testCtx.Recorder = &RecordingChannel{Inner: testCtx.Plugin}
	testCtx.Bridge = bridge.New(testCtx.Recorder)
	return testCtx.Bridge
}

func (testCtx *TestContext) nativeConfig() native.Config {
	return native.Config{
		OpenCamera:   testCtx.Opener,
		OutputDir:    testCtx.OutputDir,
		PollInterval: time.Millisecond,
	}
}

// StartServer hosts the native scanner over HTTP. With websocket set, the
// scenario bridge talks to it through a transport client.
func (testCtx *TestContext) StartServer(websocket bool) error {
	if testCtx.Bridge != nil {
		return errors.New("the scanner is already in use in-process")
	}
	testCtx.Server = server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  5,
		Native:      testCtx.nativeConfig(),
	})
	testCtx.HTTPServer = httptest.NewServer(testCtx.Server.Handler())

	if !websocket {
		return nil
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), CallTimeout)
	defer cancel()
	client, err := transport.Dial(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	testCtx.Client = client
	testCtx.Recorder = &RecordingChannel{Inner: client}
	testCtx.Bridge = bridge.New(testCtx.Recorder)
	return nil
}

// Cleanup releases the scanner, the server and the temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.Client != nil {
		if err := testCtx.Client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client: %w", err))
		}
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
	}
	if testCtx.Server != nil {
		if err := testCtx.Server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close server: %w", err))
		}
	}
	if testCtx.Plugin != nil {
		if err := testCtx.Plugin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close plugin: %w", err))
		}
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	return errors.Join(errs...)
}

// RecordingChannel remembers the operations that reach the native side.
type RecordingChannel struct {
	Inner bridge.Channel

	mu  sync.Mutex
	ops []string
}

// Execute records operation and forwards the call.
func (c *RecordingChannel) Execute(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc, target, operation string, args []any) {
	c.mu.Lock()
	c.ops = append(c.ops, operation)
	c.mu.Unlock()
	c.Inner.Execute(onSuccess, onError, target, operation, args)
}

// Operations returns the recorded operations in dispatch order.
func (c *RecordingChannel) Operations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}
