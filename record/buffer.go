package record

import (
	"encoding/binary"
	"math"
	"net/netip"
	"time"
)

// hostOrder is the byte order analyzers use when appending fixed-width
// leaves to the output buffer (spec §4.B: "written in host byte order").
// Every architecture this module targets (amd64, arm64) is little-endian,
// so we fix it rather than detect it at runtime.
var hostOrder = binary.LittleEndian

// Buffer is the per-flow output buffer analyzers append their typed
// findings to in OnFlowTerminate. The runtime owns it; analyzers only
// borrow it for the duration of that call (spec §5 "Memory ownership").
type Buffer struct {
	b []byte
}

// NewBuffer returns an empty, reusable output buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Reset clears the buffer for reuse, keeping its backing array.
func (w *Buffer) Reset() {
	w.b = w.b[:0]
}

// Bytes returns the accumulated row bytes (not a copy).
func (w *Buffer) Bytes() []byte {
	return w.b
}

func (w *Buffer) WriteInt8(v int8)   { w.WriteUint8(uint8(v)) }
func (w *Buffer) WriteUint8(v uint8) { w.b = append(w.b, v) }

func (w *Buffer) WriteInt16(v int16)   { w.WriteUint16(uint16(v)) }
func (w *Buffer) WriteUint16(v uint16) { w.b = hostOrder.AppendUint16(w.b, v) }

func (w *Buffer) WriteInt32(v int32)   { w.WriteUint32(uint32(v)) }
func (w *Buffer) WriteUint32(v uint32) { w.b = hostOrder.AppendUint32(w.b, v) }

func (w *Buffer) WriteInt64(v int64)   { w.WriteUint64(uint64(v)) }
func (w *Buffer) WriteUint64(v uint64) { w.b = hostOrder.AppendUint64(w.b, v) }

// WriteUint128 writes a 128-bit unsigned value as two u64 limbs, low then high.
func (w *Buffer) WriteUint128(lo, hi uint64) {
	w.WriteUint64(lo)
	w.WriteUint64(hi)
}

// WriteUint256 writes a 256-bit unsigned value as four u64 limbs, lowest first.
func (w *Buffer) WriteUint256(limbs [4]uint64) {
	for _, l := range limbs {
		w.WriteUint64(l)
	}
}

func (w *Buffer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }
func (w *Buffer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

func (w *Buffer) WriteChar(v byte) { w.b = append(w.b, v) }

// WriteString writes a zero-terminated string, per spec §4.B.
func (w *Buffer) WriteString(s string) {
	w.b = append(w.b, s...)
	w.b = append(w.b, 0)
}

// WriteFixedString writes s truncated or zero-padded to exactly width bytes.
func (w *Buffer) WriteFixedString(s string, width int) {
	n := len(s)
	if n > width {
		n = width
	}
	w.b = append(w.b, s[:n]...)
	for i := n; i < width; i++ {
		w.b = append(w.b, 0)
	}
}

// WriteMAC writes a 6-byte hardware address.
func (w *Buffer) WriteMAC(mac [6]byte) { w.b = append(w.b, mac[:]...) }

// WriteIP4 writes a 4-byte IPv4 address.
func (w *Buffer) WriteIP4(ip [4]byte) { w.b = append(w.b, ip[:]...) }

// WriteIP6 writes a 16-byte IPv6 address.
func (w *Buffer) WriteIP6(ip [16]byte) { w.b = append(w.b, ip[:]...) }

// WriteIPX writes a version-tagged address: 00 for none, 04+4B for IPv4, 06+16B for IPv6.
func (w *Buffer) WriteIPX(addr netip.Addr) {
	switch {
	case !addr.IsValid():
		w.WriteUint8(0x00)
	case addr.Is4():
		w.WriteUint8(0x04)
		b := addr.As4()
		w.WriteIP4(b)
	default:
		w.WriteUint8(0x06)
		b := addr.As16()
		w.WriteIP6(b)
	}
}

// WriteTimestamp writes a u64-seconds + u32-subseconds pair.
func (w *Buffer) WriteTimestamp(t time.Time) {
	w.WriteUint64(uint64(t.Unix()))
	w.WriteUint32(uint32(t.Nanosecond()))
}

// WriteDuration writes a duration using the same wire shape as WriteTimestamp.
func (w *Buffer) WriteDuration(d time.Duration) {
	secs := d / time.Second
	frac := d % time.Second
	w.WriteUint64(uint64(secs))
	w.WriteUint32(uint32(frac))
}

// WriteFlowDirection writes a 1-byte direction tag.
func (w *Buffer) WriteFlowDirection(dir byte) { w.WriteUint8(dir) }

// BeginRepeat writes the u32 count prefix required before a repeating
// field's elements (spec §4.B). Callers must write exactly n elements
// afterwards -- see TESTABLE PROPERTIES #3.
func (w *Buffer) BeginRepeat(n uint32) { w.WriteUint32(n) }
