package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Default rendering size for encoded symbols.
const (
	DefaultEncodeSize = 256
	maxEncodeSize     = 4096
)

var (
	// ErrUnsupportedEncodeType is returned for encode targets outside the descriptor.
	ErrUnsupportedEncodeType = errors.New("unsupported encode type")
	// ErrUnsupportedFormat is returned when no writer exists for a symbology.
	ErrUnsupportedFormat = errors.New("unsupported barcode format")
)

// EncodeSpec describes a symbol to render.
type EncodeSpec struct {
	Type   string
	Data   string
	Format Format // defaults to QR
	Width  int
	Height int
	Margin int // quiet zone in modules; negative leaves the writer default
}

// Encoder renders barcodes.
type Encoder interface {
	Encode(ctx context.Context, spec EncodeSpec) (image.Image, error)
}

// NewEncoder returns the gozxing-backed encoder.
func NewEncoder() Encoder { return &gozxingEncoder{} }

type gozxingEncoder struct{}

var writers = map[Format]func() gozxing.Writer{
	FormatQR:      func() gozxing.Writer { return qrcode.NewQRCodeWriter() },
	FormatCode128: func() gozxing.Writer { return oned.NewCode128Writer() },
	FormatCode39:  func() gozxing.Writer { return oned.NewCode39Writer() },
	FormatEAN13:   func() gozxing.Writer { return oned.NewEAN13Writer() },
	FormatEAN8:    func() gozxing.Writer { return oned.NewEAN8Writer() },
	FormatUPCA:    func() gozxing.Writer { return oned.NewUPCAWriter() },
	FormatITF:     func() gozxing.Writer { return oned.NewITFWriter() },
	FormatCodabar: func() gozxing.Writer { return oned.NewCodaBarWriter() },
}

// CanEncode reports whether f has a writer.
func CanEncode(f Format) bool {
	_, ok := writers[f]
	return ok
}

func (e *gozxingEncoder) Encode(ctx context.Context, spec EncodeSpec) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contents, err := EncodeContents(spec.Type, spec.Data)
	if err != nil {
		return nil, err
	}

	format := spec.Format
	if format == FormatUnknown {
		format = FormatQR
	}
	newWriter, ok := writers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	zf, _ := mapFormatToZXing(format)

	width, height := clampSize(spec.Width), clampSize(spec.Height)
	hints := make(map[gozxing.EncodeHintType]interface{})
	if spec.Margin >= 0 {
		hints[gozxing.EncodeHintType_MARGIN] = spec.Margin
	}

	matrix, err := newWriter().Encode(contents, zf, width, height, hints)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return matrix, nil
}

// EncodeContents builds the symbol contents for an encode type, the way
// native encoders do: email, phone and SMS targets become URIs.
func EncodeContents(encodeType, data string) (string, error) {
	if data == "" {
		return "", errors.New("no data to encode")
	}
	switch encodeType {
	case "", EncodeText:
		return data, nil
	case EncodeEmail:
		return "mailto:" + strings.TrimPrefix(data, "mailto:"), nil
	case EncodePhone:
		return "tel:" + strings.TrimPrefix(data, "tel:"), nil
	case EncodeSMS:
		return "sms:" + strings.TrimPrefix(data, "sms:"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEncodeType, encodeType)
	}
}

func clampSize(v int) int {
	switch {
	case v <= 0:
		return DefaultEncodeSize
	case v > maxEncodeSize:
		return maxEncodeSize
	default:
		return v
	}
}
