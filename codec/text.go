package codec

import (
	"io"
	"net/netip"
	"strconv"
	"time"

	"github.com/bgpfix/flowan/record"
)

// WriteText renders one decoded row as a single text line with opts's
// column separator (spec §4.C "text mode emits a single line per flow").
func WriteText(w io.Writer, values []record.Value, opts Options) error {
	var out []byte
	for i, v := range values {
		if i > 0 {
			out = append(out, opts.Separator...)
		}
		out = appendTextValue(out, v, opts)
	}
	out = append(out, '\n')
	_, err := w.Write(out)
	return err
}

func appendTextValue(dst []byte, v record.Value, opts Options) []byte {
	f := v.Field
	if f.Repeating {
		for i, e := range v.Elems {
			if i > 0 {
				dst = append(dst, ';')
			}
			dst = appendTextScalarOrCompound(dst, e, opts)
		}
		return dst
	}
	return appendTextScalarOrCompound(dst, v, opts)
}

func appendTextScalarOrCompound(dst []byte, v record.Value, opts Options) []byte {
	f := v.Field
	if f.Kind == record.KindCompound {
		for i, c := range v.Children {
			if i > 0 {
				dst = append(dst, ':')
			}
			dst = appendTextValue(dst, c, opts)
		}
		return dst
	}
	return append(dst, textScalar(v, opts)...)
}

func textScalar(v record.Value, opts Options) string {
	switch v.Field.Kind {
	case record.KindInt8, record.KindInt16, record.KindInt32, record.KindInt64:
		return strconv.FormatInt(toInt64(v.Scalar), 10)
	case record.KindUint8, record.KindUint16, record.KindUint32, record.KindUint64,
		record.KindFlowDirection:
		return strconv.FormatUint(toUint64(v.Scalar), 10)
	case record.KindInt128, record.KindUint128:
		lh := v.Scalar.([2]uint64)
		return formatU128(lh[0], lh[1], opts.HexUpper)
	case record.KindInt256, record.KindUint256:
		limbs := v.Scalar.([4]uint64)
		return formatU256(limbs, opts.HexUpper)
	case record.KindFloat32:
		return FormatDouble(float64(v.Scalar.(float32)))
	case record.KindFloat64, record.KindLongDouble:
		return FormatDouble(v.Scalar.(float64))
	case record.KindChar:
		return string(rune(v.Scalar.(byte)))
	case record.KindString, record.KindFixedString:
		return quoteJSON(Sanitize(v.Scalar.(string)))
	case record.KindMAC:
		return FormatMAC(v.Scalar.([6]byte), opts.MAC, opts.HexUpper)
	case record.KindIP4:
		return FormatIP4(v.Scalar.([4]byte), opts.IPv4, opts.HexUpper)
	case record.KindIP6:
		return FormatIP6(v.Scalar.([16]byte), opts.IPv6, opts.HexUpper)
	case record.KindIPX:
		return formatIPX(v, opts)
	case record.KindTimestamp:
		return FormatTimestamp(v.Scalar.(time.Time), opts.Time)
	case record.KindDuration:
		return v.Scalar.(time.Duration).String()
	default:
		return ""
	}
}

func formatIPX(v record.Value, opts Options) string {
	addr := v.Scalar.(netip.Addr)
	if !addr.IsValid() {
		return "-"
	}
	if addr.Is4() {
		return FormatIP4(addr.As4(), opts.IPv4, opts.HexUpper)
	}
	return FormatIP6(addr.As16(), opts.IPv6, opts.HexUpper)
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	}
	return 0
}

func toUint64(v any) uint64 {
	switch x := v.(type) {
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	}
	return 0
}

func formatU128(lo, hi uint64, upper bool) string {
	if hi == 0 {
		return strconv.FormatUint(lo, 10)
	}
	t := hexTable(upper)
	b := []byte("0x")
	b = appendHexU64(b, hi, t)
	b = appendHexU64(b, lo, t)
	return string(b)
}

func formatU256(limbs [4]uint64, upper bool) string {
	allLow := limbs[1] == 0 && limbs[2] == 0 && limbs[3] == 0
	if allLow {
		return strconv.FormatUint(limbs[0], 10)
	}
	t := hexTable(upper)
	b := []byte("0x")
	for i := 3; i >= 0; i-- {
		b = appendHexU64(b, limbs[i], t)
	}
	return string(b)
}

func appendHexU64(dst []byte, v uint64, t string) []byte {
	for i := 7; i >= 0; i-- {
		b := byte(v >> (uint(i) * 8))
		dst = append(dst, t[b>>4], t[b&0xf])
	}
	return dst
}
