package native

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Recognized encode option keys.
const (
	OptionWidth  = "width"
	OptionHeight = "height"
	OptionMargin = "margin"
	OptionFormat = "format"
)

func (p *Plugin) encode(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc, args []any) {
	res, err := p.Encode(context.Background(), args)
	if err != nil {
		encodesTotal.WithLabelValues("error").Inc()
		p.logger.Info("Encode failed", "error", err)
		onError(err.Error())
		return
	}
	encodesTotal.WithLabelValues("success").Inc()
	p.logger.Info("Encoded barcode",
		"type", res.Type,
		"format", res.Format,
		"width", res.Width,
		"height", res.Height,
		"file", res.File)
	onSuccess(res)
}

// Encode renders the first argument of an encode dispatch.
func (p *Plugin) Encode(ctx context.Context, args []any) (barcode.EncodeResult, error) {
	if len(args) == 0 {
		return barcode.EncodeResult{}, ErrNoData
	}
	req, err := barcode.ParseEncodeRequest(args[0])
	if err != nil || req.Data == "" {
		return barcode.EncodeResult{}, ErrNoData
	}
	if req.Type == "" {
		req.Type = barcode.EncodeText
	}
	req.Data = norm.NFC.String(req.Data)

	spec, err := encodeSpec(req)
	if err != nil {
		return barcode.EncodeResult{}, err
	}

	img, err := p.encoder.Encode(ctx, spec)
	if err != nil {
		return barcode.EncodeResult{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return barcode.EncodeResult{}, fmt.Errorf("failed to encode PNG: %w", err)
	}

	format := spec.Format
	if format == barcode.FormatUnknown {
		format = barcode.FormatQR
	}
	b := img.Bounds()
	res := barcode.EncodeResult{
		Type:   req.Type,
		Data:   req.Data,
		Format: format.String(),
		Width:  b.Dx(),
		Height: b.Dy(),
	}

	if p.cfg.OutputDir == "" {
		res.Image = buf.Bytes()
		return res, nil
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o750); err != nil {
		return barcode.EncodeResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	res.File = filepath.Join(p.cfg.OutputDir, uuid.NewString()+".png")
	if err := os.WriteFile(res.File, buf.Bytes(), 0o600); err != nil {
		return barcode.EncodeResult{}, fmt.Errorf("failed to write %s: %w", res.File, err)
	}
	return res, nil
}

// encodeSpec applies the request options on top of encoder defaults.
func encodeSpec(req barcode.EncodeRequest) (barcode.EncodeSpec, error) {
	spec := barcode.EncodeSpec{Type: req.Type, Data: req.Data, Margin: -1}

	var err error
	if spec.Width, err = intOption(req.Options, OptionWidth, 0); err != nil {
		return spec, err
	}
	if spec.Height, err = intOption(req.Options, OptionHeight, spec.Width); err != nil {
		return spec, err
	}
	if spec.Margin, err = intOption(req.Options, OptionMargin, -1); err != nil {
		return spec, err
	}

	if raw, ok := req.Options[OptionFormat]; ok && raw != nil {
		name, ok := raw.(string)
		if !ok {
			return spec, fmt.Errorf("option %s: expected a string, got %T", OptionFormat, raw)
		}
		f, ok := barcode.ParseFormat(name)
		if !ok || !barcode.CanEncode(f) {
			return spec, fmt.Errorf("%w: %s", barcode.ErrUnsupportedFormat, name)
		}
		spec.Format = f
	}
	return spec, nil
}

// intOption reads a numeric option in any of the shapes it takes after
// crossing a JSON boundary.
func intOption(opts map[string]any, key string, def int) (int, error) {
	raw, ok := opts[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("option %s: unsupported type %T", key, raw)
	}
}
