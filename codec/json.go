package codec

import (
	"io"

	"github.com/bgpfix/flowan/record"
)

// WriteJSON renders one decoded row as a single JSON object, keyed by the
// schema-derived field names (spec §4.C "JSON mode emits one object per
// flow").
func WriteJSON(w io.Writer, values []record.Value, opts Options) error {
	dst := []byte{'{'}
	first := true
	for _, v := range values {
		if opts.SelectKeys != nil && !opts.SelectKeys[v.Field.Name] {
			continue
		}
		if opts.SuppressEmptyRepeating && v.Field.Repeating && len(v.Elems) == 0 {
			continue
		}
		if !first {
			dst = append(dst, ',')
		}
		first = false
		dst = append(dst, '"')
		dst = append(dst, Sanitize(v.Field.Name)...)
		dst = append(dst, `":`...)
		dst = appendJSONValue(dst, v, opts)
	}
	dst = append(dst, '}', '\n')
	_, err := w.Write(dst)
	return err
}

func appendJSONValue(dst []byte, v record.Value, opts Options) []byte {
	f := v.Field
	if f.Repeating {
		dst = append(dst, '[')
		for i, e := range v.Elems {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendJSONScalarOrCompound(dst, e, opts)
		}
		return append(dst, ']')
	}
	return appendJSONScalarOrCompound(dst, v, opts)
}

func appendJSONScalarOrCompound(dst []byte, v record.Value, opts Options) []byte {
	f := v.Field
	if f.Kind == record.KindCompound {
		dst = append(dst, '{')
		for i, c := range v.Children {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = append(dst, '"')
			dst = append(dst, Sanitize(c.Field.Name)...)
			dst = append(dst, `":`...)
			dst = appendJSONValue(dst, c, opts)
		}
		return append(dst, '}')
	}

	switch f.Kind {
	case record.KindString, record.KindFixedString:
		return append(dst, quoteJSON(Sanitize(v.Scalar.(string)))...)
	case record.KindMAC, record.KindIP4,
		record.KindIP6, record.KindIPX, record.KindTimestamp, record.KindDuration,
		record.KindChar:
		return append(dst, quoteJSON(Sanitize(textScalar(v, opts)))...)
	default:
		return append(dst, textScalar(v, opts)...)
	}
}
