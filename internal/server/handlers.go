package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/MeKo-Tech/scanbridge/internal/transport"
	"github.com/MeKo-Tech/scanbridge/internal/utils"
	"github.com/MeKo-Tech/scanbridge/internal/version"
)

const (
	defaultTimeout = 30 * time.Second
	maxEncodeBody  = 1 << 20
)

// outcome is the resolution of one bridge call.
type outcome struct {
	ok      bool
	payload any
}

// pendingCall receives the first resolution of a bridge call.
type pendingCall chan outcome

func newPendingCall() pendingCall { return make(pendingCall, 1) }

func (p pendingCall) success(v any) { p.resolve(outcome{ok: true, payload: v}) }
func (p pendingCall) failure(v any) { p.resolve(outcome{ok: false, payload: v}) }

func (p pendingCall) resolve(o outcome) {
	select {
	case p <- o:
	default:
	}
}

func (p pendingCall) wait(ctx context.Context) (outcome, bool) {
	select {
	case o := <-p:
		return o, true
	case <-ctx.Done():
		return outcome{}, false
	}
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:   "healthy",
		Version:  version.Version,
		Scanning: s.channel != nil && s.channel.Scanning(),
		Time:     time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// formatsHandler returns the encode type and barcode format tables.
func (s *Server) formatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormatsResponse{
		Encode: s.bridge.EncodeTypes().Map(),
		Format: s.bridge.Formats().Map(),
	})
}

// scanHandler runs one scan session. When the wait expires, or the client
// goes away, the scan is cancelled and its cancelled result is returned.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	wait, err := s.requestWait(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	call := newPendingCall()
	s.bridge.Scan(call.success, call.failure)

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()

	res, ok := call.wait(ctx)
	if !ok {
		scanTimeoutsTotal.Inc()
		slog.Info("Scan request expired, cancelling", "wait", wait)
		s.bridge.Cancel(nil, nil)

		graceCtx, graceCancel := context.WithTimeout(context.Background(), CancelGrace)
		defer graceCancel()
		if res, ok = call.wait(graceCtx); !ok {
			s.writeErrorResponse(w, "Scan did not stop after cancel", http.StatusGatewayTimeout)
			return
		}
	}

	if !res.ok {
		msg := errorMessage(res.payload)
		s.writeErrorResponse(w, msg, statusForError(msg))
		return
	}
	scan, err := barcode.ParseScanResult(res.payload)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{Success: true, Result: &scan})
}

// cancelHandler cancels the running scan, if any.
func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	call := newPendingCall()
	s.bridge.Cancel(call.success, call.failure)

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	res, ok := call.wait(ctx)
	if !ok {
		s.writeErrorResponse(w, "Cancel timed out", http.StatusGatewayTimeout)
		return
	}
	if !res.ok {
		msg := errorMessage(res.payload)
		s.writeErrorResponse(w, msg, statusForError(msg))
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{Success: true})
}

// encodeHandler renders a barcode from a JSON encode request. The PNG is
// returned as is unless JSON output is requested or the image was written
// to the output directory.
func (s *Server) encodeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEncodeBody)

	var req barcode.EncodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	call := newPendingCall()
	s.bridge.Encode(req.Type, req.Data, call.success, call.failure, req.Options)

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	res, ok := call.wait(ctx)
	if !ok {
		s.writeErrorResponse(w, "Encode timed out", http.StatusGatewayTimeout)
		return
	}
	if !res.ok {
		msg := errorMessage(res.payload)
		s.writeErrorResponse(w, msg, statusForError(msg))
		return
	}

	result, err := barcode.ParseEncodeResult(res.payload)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) || len(result.Image) == 0 {
		writeJSON(w, http.StatusOK, EncodeResponse{Success: true, Result: &result})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set(barcodeFormatHeader, result.Format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Image); err != nil {
		slog.Error("Failed to write encoded image", "error", err)
	}
}

// decodeHandler decodes every barcode in an uploaded image or PDF.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadMB * 1024 * 1024

	// Set content length limit
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorResponse(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	opts, err := s.requestDecodeOptions(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	var found []native.Detection
	if strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		found, err = s.decodePDFUpload(ctx, file, r.FormValue("pages"), opts)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("PDF decoding failed: %v", err), http.StatusUnprocessableEntity)
			return
		}
	} else {
		img, _, err := utils.DecodeImage(file)
		if err != nil {
			s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
			return
		}
		found, err = native.DecodeFrames(ctx, s.backend, []image.Image{img}, opts)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Decoding failed: %v", err), http.StatusInternalServerError)
			return
		}
	}

	decodedBarcodes.Observe(float64(len(found)))
	if found == nil {
		found = []native.Detection{}
	}
	for i := range found {
		found[i].Source = header.Filename
	}
	writeJSON(w, http.StatusOK, DecodeResponse{Success: true, Count: len(found), Results: found})
}

// decodePDFUpload spools the upload to disk so pdfcpu can read it.
func (s *Server) decodePDFUpload(ctx context.Context, src io.Reader, pages string, opts barcode.Options) ([]native.Detection, error) {
	tmp, err := os.CreateTemp("", "scanbridge-upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	return native.DecodeFile(ctx, s.backend, tmp.Name(), pages, opts)
}

// requestDecodeOptions applies the formats and try_harder form values on
// top of the configured decode options.
func (s *Server) requestDecodeOptions(r *http.Request) (barcode.Options, error) {
	opts := s.decodeOpts

	if raw := strings.TrimSpace(r.FormValue("formats")); raw != "" {
		formats, unknown := barcode.ParseFormats(strings.Split(raw, ","))
		if len(unknown) > 0 {
			return opts, fmt.Errorf("unknown format(s): %s", strings.Join(unknown, ", "))
		}
		opts.Formats = formats
	}
	if raw := r.FormValue("try_harder"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid try_harder value: %q", raw)
		}
		opts.TryHarder = v
	}
	return opts, nil
}

// requestWait returns how long a scan request may wait, bounded by the
// server timeout.
func (s *Server) requestWait(r *http.Request) (time.Duration, error) {
	wait := s.requestTimeout()
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return wait, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid timeout: %q", raw)
	}
	return min(d, wait), nil
}

func (s *Server) requestTimeout() time.Duration {
	if s.timeoutSec <= 0 {
		return defaultTimeout
	}
	return time.Duration(s.timeoutSec) * time.Second
}

// statusForError maps a failure payload to an HTTP status.
func statusForError(msg string) int {
	switch msg {
	case native.ErrNoData.Error():
		return http.StatusBadRequest
	case native.ErrScanInProgress.Error(), native.ErrScannerNotRunning.Error():
		return http.StatusConflict
	case native.ErrNoBarcode.Error():
		return http.StatusNotFound
	case native.ErrCameraUnavailable.Error(), native.ErrClosed.Error(), transport.ErrConnectionClosed.Error():
		return http.StatusServiceUnavailable
	}
	if strings.HasPrefix(msg, "option ") || strings.Contains(msg, "unsupported") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorMessage renders a channel failure payload as text.
func errorMessage(payload any) string {
	switch v := payload.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("output") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log error, but can't send another response
		slog.Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
