// Package bits extracts bit and multi-byte fields from raw input
// reports.
package bits

import "encoding/binary"

// Bit reports whether the given bit of the byte at index is set.
// Out-of-range lookups read as false.
func Bit(report []byte, index, bit int) bool {
	if index < 0 || index >= len(report) || bit < 0 || bit > 7 {
		return false
	}
	return report[index]&(1<<uint(bit)) != 0
}

// Uint reads a little-endian unsigned field of 1 or 2 bytes. The second
// return value is false when the field does not fit in the report.
func Uint(report []byte, offset, size int) (uint16, bool) {
	if offset < 0 || size <= 0 || offset+size > len(report) {
		return 0, false
	}
	switch size {
	case 1:
		return uint16(report[offset]), true
	case 2:
		return binary.LittleEndian.Uint16(report[offset:]), true
	default:
		return 0, false
	}
}

// Norm scales an unsigned field of the given byte size to [0, 1].
func Norm(raw uint16, size int) float64 {
	if size == 2 {
		return float64(raw) / 65535
	}
	return float64(raw) / 255
}

// SignedNorm reads a 16-bit field as signed and recenters it so that
// the zero rest position maps to 0.5.
func SignedNorm(raw uint16) float64 {
	return (float64(int16(raw)) + 32768) / 65535
}
