// Package barcode holds the capability descriptor tables shared by the bridge
// and the native side, the payload types that cross the channel, and a
// gozxing-backed decoder and encoder.
//
// The descriptor codes are part of the wire contract with native scanners
// and must never be renumbered:
//
//	qr_CODE -> 2048, ean_13 -> 128, all_1D -> 61918, ...
package barcode
