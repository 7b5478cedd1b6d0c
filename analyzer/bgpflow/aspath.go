package bgpflow

const (
	asPathSegSet       = 1
	asPathSegSequence  = 2
)

// ASPathSegment is one parsed AS_PATH / AS4_PATH segment.
type ASPathSegment struct {
	Type byte // asPathSegSet or asPathSegSequence
	ASNs []uint32
}

// ASPathAnalysis is the result of walking a parsed AS_PATH for one UPDATE,
// per spec §4.F "During AS-path walking, detect and count...".
type ASPathAnalysis struct {
	Prepends int
	Loop     bool
	Private  bool
	LastSegIsSequence bool
}

// parseASPath decodes the raw AS_PATH attribute value, auto-detecting
// 2-byte vs 4-byte AS encoding by dry-running the segment list against the
// declared attribute length and falling back to 4-byte on mismatch (spec
// §4.F "auto-detect 16-bit vs 32-bit AS by dry-running the segment list;
// on mismatch treat as 32-bit").
func parseASPath(v []byte) ([]ASPathSegment, bool) {
	if segs, ok := tryParseASPath(v, 2); ok {
		return segs, false
	}
	segs, _ := tryParseASPath(v, 4)
	return segs, true
}

func tryParseASPath(v []byte, asWidth int) ([]ASPathSegment, bool) {
	var segs []ASPathSegment
	i := 0
	for i < len(v) {
		if i+2 > len(v) {
			return nil, false
		}
		typ := v[i]
		count := int(v[i+1])
		i += 2
		need := count * asWidth
		if i+need > len(v) {
			return nil, false
		}
		seg := ASPathSegment{Type: typ}
		for j := 0; j < count; j++ {
			off := i + j*asWidth
			var asn uint32
			if asWidth == 2 {
				asn = uint32(v[off])<<8 | uint32(v[off+1])
			} else {
				asn = uint32(v[off])<<24 | uint32(v[off+1])<<16 | uint32(v[off+2])<<8 | uint32(v[off+3])
			}
			seg.ASNs = append(seg.ASNs, asn)
		}
		segs = append(segs, seg)
		i += need
	}
	return segs, true
}

// analyzeASPath walks segs looking for prepends (a repeated AS within a
// SEQUENCE segment), routing loops (localAS present anywhere), and private
// or reserved ASNs.
func analyzeASPath(segs []ASPathSegment, localAS uint32) ASPathAnalysis {
	var out ASPathAnalysis
	for _, seg := range segs {
		if seg.Type == asPathSegSequence {
			out.LastSegIsSequence = true
		} else {
			out.LastSegIsSequence = false
		}
		var prev uint32
		havePrev := false
		for _, asn := range seg.ASNs {
			if asn == localAS {
				out.Loop = true
			}
			if isPrivateASN(asn) {
				out.Private = true
			}
			if seg.Type == asPathSegSequence {
				if havePrev && asn == prev {
					out.Prepends++
				}
				prev, havePrev = asn, true
			}
		}
	}
	return out
}

// originAS returns the AS that originated the route: the last AS in the
// final SEQUENCE segment of the AS_PATH (or, for an AS_SET, one of its
// members), or 0 if the path is empty.
func originAS(segs []ASPathSegment) uint32 {
	if len(segs) == 0 {
		return 0
	}
	last := segs[len(segs)-1]
	if len(last.ASNs) == 0 {
		return 0
	}
	return last.ASNs[len(last.ASNs)-1]
}
