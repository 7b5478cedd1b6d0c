package record

import "fmt"

// Value is one decoded schema node: either a scalar leaf, a repeating array
// of elements, or a compound's decoded children, mirroring the Field it was
// decoded from.
type Value struct {
	Field    *Field
	Scalar   any
	Elems    []Value // populated iff Field.Repeating
	Children []Value // populated iff Field.Kind == KindCompound (non-repeating case)
}

// DecodeRow decodes one row's bytes against schema, walking fields
// left-to-right exactly as spec §4.B describes. Returns ErrTruncated if the
// row underruns what the schema declares.
func DecodeRow(schema *Schema, row []byte) ([]Value, error) {
	r := NewReader(row)
	out := make([]Value, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		v, err := decodeField(r, f)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeField(r *Reader, f *Field) (Value, error) {
	if f.Repeating {
		n, err := r.ReadRepeatCount()
		if err != nil {
			return Value{Field: f}, err
		}
		elems := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			e, err := decodeOne(r, f)
			if err != nil {
				return Value{Field: f, Elems: elems}, err
			}
			elems = append(elems, e)
		}
		return Value{Field: f, Elems: elems}, nil
	}
	return decodeOne(r, f)
}

// decodeOne decodes a single instance of f (ignoring its Repeating flag,
// since the caller already consumed the count prefix if any).
func decodeOne(r *Reader, f *Field) (Value, error) {
	if f.Kind == KindCompound {
		children := make([]Value, 0, len(f.Sub))
		for _, sub := range f.Sub {
			c, err := decodeField(r, sub)
			if err != nil {
				return Value{Field: f, Children: children}, err
			}
			children = append(children, c)
		}
		return Value{Field: f, Children: children}, nil
	}

	var (
		scalar any
		err    error
	)
	switch f.Kind {
	case KindInt8:
		var v uint8
		v, err = r.ReadUint8()
		scalar = int8(v)
	case KindUint8:
		scalar, err = r.ReadUint8()
	case KindInt16:
		var v uint16
		v, err = r.ReadUint16()
		scalar = int16(v)
	case KindUint16:
		scalar, err = r.ReadUint16()
	case KindInt32:
		var v uint32
		v, err = r.ReadUint32()
		scalar = int32(v)
	case KindUint32:
		scalar, err = r.ReadUint32()
	case KindInt64:
		var v uint64
		v, err = r.ReadUint64()
		scalar = int64(v)
	case KindUint64:
		scalar, err = r.ReadUint64()
	case KindInt128, KindUint128:
		var lo, hi uint64
		lo, hi, err = r.ReadUint128()
		scalar = [2]uint64{lo, hi}
	case KindInt256, KindUint256:
		scalar, err = r.ReadUint256()
	case KindFloat32:
		scalar, err = r.ReadFloat32()
	case KindFloat64, KindLongDouble:
		scalar, err = r.ReadFloat64()
	case KindChar:
		scalar, err = r.ReadChar()
	case KindString:
		scalar, err = r.ReadString()
	case KindFixedString:
		scalar, err = r.ReadFixedString(f.Width)
	case KindMAC:
		scalar, err = r.ReadMAC()
	case KindIP4:
		scalar, err = r.ReadIP4()
	case KindIP6:
		scalar, err = r.ReadIP6()
	case KindIPX:
		scalar, err = r.ReadIPX()
	case KindTimestamp:
		scalar, err = r.ReadTimestamp()
	case KindDuration:
		scalar, err = r.ReadDuration()
	case KindFlowDirection:
		scalar, err = r.ReadFlowDirection()
	default:
		return Value{Field: f}, fmt.Errorf("record: unknown leaf kind %d", f.Kind)
	}
	return Value{Field: f, Scalar: scalar}, err
}
