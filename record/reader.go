package record

import (
	"errors"
	"math"
	"net/netip"
	"time"
)

// ErrTruncated is returned by Reader methods when the row buffer has fewer
// bytes than the schema says it needs -- the "corrupt flow" condition spec
// §4.B leaves to sink-side diagnostics.
var ErrTruncated = errors.New("record: truncated row")

// Reader walks a row's bytes according to a Schema, used by the bin2text and
// bin2json translators (spec §4.C). It never looks past its declared
// length, matching TESTABLE PROPERTY #1 for this component too.
type Reader struct {
	b   []byte
	pos int
}

// NewReader wraps a row's bytes for schema-driven decoding.
func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) need(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, ErrTruncated
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.need(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.need(2)
	if err != nil {
		return 0, err
	}
	return hostOrder.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.need(4)
	if err != nil {
		return 0, err
	}
	return hostOrder.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.need(8)
	if err != nil {
		return 0, err
	}
	return hostOrder.Uint64(b), nil
}

func (r *Reader) ReadUint128() (lo, hi uint64, err error) {
	if lo, err = r.ReadUint64(); err != nil {
		return
	}
	hi, err = r.ReadUint64()
	return
}

func (r *Reader) ReadUint256() (limbs [4]uint64, err error) {
	for i := range limbs {
		if limbs[i], err = r.ReadUint64(); err != nil {
			return
		}
	}
	return
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

func (r *Reader) ReadChar() (byte, error) { return r.ReadUint8() }

// ReadString reads up to and including a NUL terminator, returning the
// string without it. Unterminated strings are ErrTruncated.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	for i := r.pos; i < len(r.b); i++ {
		if r.b[i] == 0 {
			s := string(r.b[start:i])
			r.pos = i + 1
			return s, nil
		}
	}
	return "", ErrTruncated
}

func (r *Reader) ReadFixedString(width int) (string, error) {
	b, err := r.need(width)
	if err != nil {
		return "", err
	}
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n]), nil
}

func (r *Reader) ReadMAC() ([6]byte, error) {
	var m [6]byte
	b, err := r.need(6)
	if err != nil {
		return m, err
	}
	copy(m[:], b)
	return m, nil
}

func (r *Reader) ReadIP4() ([4]byte, error) {
	var ip [4]byte
	b, err := r.need(4)
	if err != nil {
		return ip, err
	}
	copy(ip[:], b)
	return ip, nil
}

func (r *Reader) ReadIP6() ([16]byte, error) {
	var ip [16]byte
	b, err := r.need(16)
	if err != nil {
		return ip, err
	}
	copy(ip[:], b)
	return ip, nil
}

// ReadIPX reads the version-tagged address form written by WriteIPX.
func (r *Reader) ReadIPX() (netip.Addr, error) {
	ver, err := r.ReadUint8()
	if err != nil {
		return netip.Addr{}, err
	}
	switch ver {
	case 0x00:
		return netip.Addr{}, nil
	case 0x04:
		b, err := r.ReadIP4()
		if err != nil {
			return netip.Addr{}, err
		}
		return netip.AddrFrom4(b), nil
	case 0x06:
		b, err := r.ReadIP6()
		if err != nil {
			return netip.Addr{}, err
		}
		return netip.AddrFrom16(b), nil
	default:
		return netip.Addr{}, ErrTruncated
	}
}

func (r *Reader) ReadTimestamp() (time.Time, error) {
	secs, err := r.ReadUint64()
	if err != nil {
		return time.Time{}, err
	}
	nsec, err := r.ReadUint32()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), int64(nsec)).UTC(), nil
}

func (r *Reader) ReadDuration() (time.Duration, error) {
	secs, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	frac, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return time.Duration(secs)*time.Second + time.Duration(frac), nil
}

func (r *Reader) ReadFlowDirection() (byte, error) { return r.ReadUint8() }

// ReadRepeatCount reads the u32 length prefix in front of a repeating field.
func (r *Reader) ReadRepeatCount() (uint32, error) { return r.ReadUint32() }

// Len reports total bytes. Pos reports the current cursor.
func (r *Reader) Len() int { return len(r.b) }
func (r *Reader) Pos() int { return r.pos }
