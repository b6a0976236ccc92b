package barcode

import (
	"sort"
	"strings"
)

// Format represents a barcode symbology. Values are the descriptor codes
// understood by native scanners; a Format may also be a mask of several.
type Format int

const (
	FormatUnknown         Format = 0
	FormatAztec           Format = 1
	FormatCodabar         Format = 2
	FormatCode39          Format = 4
	FormatCode93          Format = 8
	FormatCode128         Format = 16
	FormatDataMatrix      Format = 32
	FormatEAN8            Format = 64
	FormatEAN13           Format = 128
	FormatITF             Format = 256
	FormatMaxiCode        Format = 512
	FormatPDF417          Format = 1024
	FormatQR              Format = 2048
	FormatRSS14           Format = 4096
	FormatRSSExpanded     Format = 8192
	FormatUPCA            Format = 16384
	FormatUPCE            Format = 32768
	FormatUPCEANExtension Format = 65536
	FormatMSI             Format = 131072
	FormatPlessey         Format = 262144

	// Format1D is the all_1D mask.
	Format1D Format = 61918
)

// formatCodes is the format descriptor table.
var formatCodes = map[string]Format{
	"all_1D":            Format1D,
	"aztec":             FormatAztec,
	"codabar":           FormatCodabar,
	"code_128":          FormatCode128,
	"code_39":           FormatCode39,
	"code_93":           FormatCode93,
	"data_MATRIX":       FormatDataMatrix,
	"ean_13":            FormatEAN13,
	"ean_8":             FormatEAN8,
	"itf":               FormatITF,
	"maxicode":          FormatMaxiCode,
	"msi":               FormatMSI,
	"pdf_417":           FormatPDF417,
	"plessey":           FormatPlessey,
	"qr_CODE":           FormatQR,
	"rss_14":            FormatRSS14,
	"rss_EXPANDED":      FormatRSSExpanded,
	"upc_A":             FormatUPCA,
	"upc_E":             FormatUPCE,
	"upc_EAN_EXTENSION": FormatUPCEANExtension,
}

// symbologyNames maps single formats to the names scanners report in results.
var symbologyNames = map[Format]string{
	FormatAztec:           "AZTEC",
	FormatCodabar:         "CODABAR",
	FormatCode39:          "CODE_39",
	FormatCode93:          "CODE_93",
	FormatCode128:         "CODE_128",
	FormatDataMatrix:      "DATA_MATRIX",
	FormatEAN8:            "EAN_8",
	FormatEAN13:           "EAN_13",
	FormatITF:             "ITF",
	FormatMaxiCode:        "MAXICODE",
	FormatPDF417:          "PDF_417",
	FormatQR:              "QR_CODE",
	FormatRSS14:           "RSS_14",
	FormatRSSExpanded:     "RSS_EXPANDED",
	FormatUPCA:            "UPC_A",
	FormatUPCE:            "UPC_E",
	FormatUPCEANExtension: "UPC_EAN_EXTENSION",
	FormatMSI:             "MSI",
	FormatPlessey:         "PLESSEY",
}

// String returns the symbology name, e.g. QR_CODE. Masks render as names joined by "|".
func (f Format) String() string {
	if name, ok := symbologyNames[f]; ok {
		return name
	}
	if f == Format1D {
		return "ALL_1D"
	}
	parts := f.Expand()
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, symbologyNames[p])
	}
	return strings.Join(names, "|")
}

// Expand splits a mask into its single formats in ascending code order.
func (f Format) Expand() []Format {
	var out []Format
	for bit := FormatAztec; bit <= FormatPlessey; bit <<= 1 {
		if f&bit != 0 {
			out = append(out, bit)
		}
	}
	return out
}

// Has reports whether every format in other is part of f.
func (f Format) Has(other Format) bool {
	return other != FormatUnknown && f&other == other
}

// ParseFormat resolves a symbology name, descriptor key or short alias.
func ParseFormat(s string) (Format, bool) {
	if f, ok := formatCodes[s]; ok {
		return f, true
	}
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "qr", "qrcode":
		return FormatQR, true
	case "datamatrix":
		return FormatDataMatrix, true
	case "aztec":
		return FormatAztec, true
	case "pdf417":
		return FormatPDF417, true
	case "code128":
		return FormatCode128, true
	case "code39":
		return FormatCode39, true
	case "code93":
		return FormatCode93, true
	case "ean8":
		return FormatEAN8, true
	case "ean13":
		return FormatEAN13, true
	case "upca":
		return FormatUPCA, true
	case "upce":
		return FormatUPCE, true
	case "upceanextension":
		return FormatUPCEANExtension, true
	case "itf", "interleaved2of5", "i2/5":
		return FormatITF, true
	case "codabar":
		return FormatCodabar, true
	case "maxicode":
		return FormatMaxiCode, true
	case "rss14":
		return FormatRSS14, true
	case "rssexpanded":
		return FormatRSSExpanded, true
	case "msi":
		return FormatMSI, true
	case "plessey":
		return FormatPlessey, true
	case "all1d", "1d":
		return Format1D, true
	default:
		return FormatUnknown, false
	}
}

// ParseFormats combines a list of names into a single mask. Unknown names are returned separately.
func ParseFormats(names []string) (Format, []string) {
	var mask Format
	var unknown []string
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, ok := ParseFormat(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		mask |= f
	}
	return mask, unknown
}

// FormatTable is the read-only format descriptor exposed on a bridge.
type FormatTable struct {
	codes map[string]Format
}

// NewFormatTable builds a table holding the full format descriptor.
func NewFormatTable() FormatTable {
	codes := make(map[string]Format, len(formatCodes))
	for k, v := range formatCodes {
		codes[k] = v
	}
	return FormatTable{codes: codes}
}

// Code returns the code registered under name.
func (t FormatTable) Code(name string) (Format, bool) {
	f, ok := t.codes[name]
	return f, ok
}

// Len returns the number of entries.
func (t FormatTable) Len() int { return len(t.codes) }

// Names returns the keys in sorted order.
func (t FormatTable) Names() []string {
	names := make([]string, 0, len(t.codes))
	for k := range t.codes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the table as plain integers.
func (t FormatTable) Map() map[string]int {
	out := make(map[string]int, len(t.codes))
	for k, v := range t.codes {
		out[k] = int(v)
	}
	return out
}

// Encode types understood by native encoders.
const (
	EncodeText  = "TEXT_TYPE"
	EncodeEmail = "EMAIL_TYPE"
	EncodePhone = "PHONE_TYPE"
	EncodeSMS   = "SMS_TYPE"
)

// EncodeTypes is the read-only encode target descriptor exposed on a bridge.
type EncodeTypes struct {
	values map[string]string
}

// NewEncodeTypes builds the encode target descriptor.
func NewEncodeTypes() EncodeTypes {
	return EncodeTypes{values: map[string]string{
		EncodeText:  EncodeText,
		EncodeEmail: EncodeEmail,
		EncodePhone: EncodePhone,
		EncodeSMS:   EncodeSMS,
	}}
}

// Value returns the opaque value for name.
func (e EncodeTypes) Value(name string) (string, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Len returns the number of entries.
func (e EncodeTypes) Len() int { return len(e.values) }

// Names returns the keys in sorted order.
func (e EncodeTypes) Names() []string {
	names := make([]string, 0, len(e.values))
	for k := range e.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the table.
func (e EncodeTypes) Map() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}
