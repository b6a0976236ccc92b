package barcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
)

// ScanResult is the payload a successful scan produces.
type ScanResult struct {
	Text      string `json:"text"`
	Format    string `json:"format"`
	Cancelled bool   `json:"cancelled"`
}

// CancelledScan is the result reported when the user backs out of a scan.
func CancelledScan() ScanResult {
	return ScanResult{Text: "", Format: "", Cancelled: true}
}

// EncodeRequest is the single structured argument of an encode dispatch.
// Options are passed through verbatim. A nil map is omitted from JSON; an
// empty one is kept as {}.
type EncodeRequest struct {
	Type    string         `json:"type"`
	Data    string         `json:"data"`
	Options map[string]any `json:"options,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r EncodeRequest) MarshalJSON() ([]byte, error) {
	type plain EncodeRequest
	if r.Options == nil {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Options map[string]any `json:"options"`
	}{plain(r), r.Options})
}

// EncodeResult describes a rendered barcode.
type EncodeResult struct {
	Type   string `json:"type"`
	Data   string `json:"data"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	File   string `json:"file,omitempty"`
	Image  []byte `json:"image,omitempty"` // PNG, when no output directory is configured
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the symbologies to search; zero means all supported.
	Formats Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds, backends should ignore it.
	ROI image.Rectangle
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result represents a decoded barcode.
type Result struct {
	Format Format
	Text   string
	Points []Point         // Corner or key points if available
	BBox   image.Rectangle // Bounding box if derivable from points
}

// ScanResult converts a decode result into the payload shape scanners report.
func (r Result) ScanResult() ScanResult {
	return ScanResult{Text: r.Text, Format: r.Format.String(), Cancelled: false}
}

// Backend is a pluggable barcode decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// ErrNotFound is returned by backends when no symbol could be decoded.
var ErrNotFound = errors.New("barcode: no symbol found")

// ParseScanResult accepts a scan payload either as a ScanResult or in the
// generic form it takes after crossing a JSON channel.
func ParseScanResult(payload any) (ScanResult, error) {
	switch v := payload.(type) {
	case ScanResult:
		return v, nil
	case *ScanResult:
		if v == nil {
			return ScanResult{}, errors.New("nil scan result")
		}
		return *v, nil
	default:
		var out ScanResult
		if err := remarshal(payload, &out); err != nil {
			return ScanResult{}, fmt.Errorf("invalid scan result: %w", err)
		}
		return out, nil
	}
}

// ParseEncodeRequest accepts the encode argument either as an EncodeRequest or in generic form.
func ParseEncodeRequest(arg any) (EncodeRequest, error) {
	switch v := arg.(type) {
	case EncodeRequest:
		return v, nil
	case *EncodeRequest:
		if v == nil {
			return EncodeRequest{}, errors.New("nil encode request")
		}
		return *v, nil
	case nil:
		return EncodeRequest{}, errors.New("missing encode request")
	default:
		var out EncodeRequest
		if err := remarshal(arg, &out); err != nil {
			return EncodeRequest{}, fmt.Errorf("invalid encode request: %w", err)
		}
		return out, nil
	}
}

// ParseEncodeResult accepts an encode payload either typed or in generic form.
func ParseEncodeResult(payload any) (EncodeResult, error) {
	switch v := payload.(type) {
	case EncodeResult:
		return v, nil
	case *EncodeResult:
		if v == nil {
			return EncodeResult{}, errors.New("nil encode result")
		}
		return *v, nil
	default:
		var out EncodeResult
		if err := remarshal(payload, &out); err != nil {
			return EncodeResult{}, fmt.Errorf("invalid encode result: %w", err)
		}
		return out, nil
	}
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
