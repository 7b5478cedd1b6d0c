package bgpflow

import (
	"net/netip"
	"time"

	"github.com/bgpfix/flowan/internal/tbuf"
)

const (
	attrOrigin          = 1
	attrASPath          = 2
	attrNextHop         = 3
	attrMultiExitDisc   = 4
	attrLocalPref       = 5
	attrAtomicAggregate = 6
	attrAggregator      = 7
	attrCommunities     = 8
	attrOriginatorID    = 9
	attrClusterList     = 10
	attrAS4Path         = 17
	attrAS4Aggregator   = 18

	attrFlagOptional = 0x80
	attrFlagExtLen   = 0x10
)

// updateWork is the per-record workspace accumulated while parsing one
// UPDATE's path attributes (spec §4.F "accumulating a per-record workspace").
type updateWork struct {
	origin       OriginType
	haveOrigin   bool
	asPath       []ASPathSegment
	as4Path      []ASPathSegment
	nextHop      netip.Addr
	med          uint32
	localPref    uint32
	atomicAggreg bool
	communities  []uint32
}

func (f *Flow) handleUpdate(body []byte, now time.Time) {
	buf := tbuf.NewBuf(body)

	wrLen, ok := buf.ReadU16()
	if !ok {
		f.flag(StatSnaplen, "update: short withdrawn length")
		return
	}
	withdrawnBytes, ok := buf.ReadN(int(wrLen))
	if !ok {
		f.flag(StatSnaplen, "update: truncated withdrawn routes")
		return
	}
	withdrawn := f.parsePrefixList(withdrawnBytes)

	palLen, ok := buf.ReadU16()
	if !ok {
		f.flag(StatSnaplen, "update: short path-attr length")
		return
	}
	attrBytes, ok := buf.ReadN(int(palLen))
	if !ok {
		f.flag(StatSnaplen, "update: truncated path attributes")
		return
	}
	work := f.parseAttrs(attrBytes)

	nlriBytes := buf.Bytes()[buf.Tell():]
	advertised := f.parsePrefixList(nlriBytes)

	for _, p := range withdrawn {
		f.RIB.Withdraw(p)
		if isBogon(p) {
			f.flag(StatBogon, "withdrawn prefix in bogon range")
		}
	}

	segs := work.asPath
	if len(work.as4Path) > 0 {
		segs = work.as4Path
	}
	analysis := analyzeASPath(segs, f.Local.ASN)
	if analysis.Prepends > 0 {
		f.flag(StatPrepend, "as-path prepend detected")
	}
	if analysis.Loop {
		f.flag(StatLoop, "as-path loop: local as present")
	}
	if analysis.Private {
		f.flag(StatPrivate, "as-path contains private/reserved asn")
	}
	for _, c := range work.communities {
		if isBlackholeCommunity(c) {
			f.flag(StatBlackhole, "blackhole community observed")
		}
	}

	orig := originAS(segs)
	for _, p := range advertised {
		if p.Bits() > 24 {
			f.flag(StatSpecPref, "prefix length > 24")
		}
		if p.Bits() < 8 {
			f.flag(StatLSpecPref, "prefix length < 8")
		}
		if isBogon(p) {
			f.flag(StatBogon, "advertised prefix in bogon range")
		}

		cand := RouteEntry{
			Prefix:    p,
			OriginAS:  orig,
			ASPath:    flattenASPath(segs),
			MED:       work.med,
			LocalPref: work.localPref,
			Origin:    work.origin,
		}
		if rec, isMOAS := f.RIB.Advertise(cand, analysis.LastSegIsSequence); isMOAS {
			rec.FlowNo = f.FIndex
			rec.PacketNo = f.PacketNo
			rec.RecordNo = f.RecordNo
			f.Stat |= StatMOAS
			if f.Sink != nil {
				f.Sink.MOAS(rec)
			}
		}
	}
}

func flattenASPath(segs []ASPathSegment) []uint32 {
	var out []uint32
	for _, s := range segs {
		out = append(out, s.ASNs...)
	}
	return out
}

// parsePrefixList parses a length-prefixed list of {mask, prefix} entries
// (spec §4.F withdrawn routes / NLRI). Entries with mask > 32 set InvMask
// and the remaining entries in this list are abandoned (fatal for this
// record only, not the packet).
func (f *Flow) parsePrefixList(v []byte) []netip.Prefix {
	buf := tbuf.NewBuf(v)
	var out []netip.Prefix
	for buf.Left() > 0 {
		mask, ok := buf.ReadU8()
		if !ok {
			return out
		}
		if mask > 32 {
			f.flag(StatInvMask, "prefix mask > 32")
			return out
		}
		nbytes := (int(mask) + 7) / 8
		raw, ok := buf.ReadN(nbytes)
		if !ok {
			return out
		}
		var addr [4]byte
		copy(addr[:], raw)
		p := netip.PrefixFrom(netip.AddrFrom4(addr), int(mask))
		out = append(out, p)
	}
	return out
}

// parseAttrs walks the UPDATE's path attributes, recognizing the subset
// named in spec §4.F and ignoring (but correctly skipping) any other
// attribute by its declared length.
func (f *Flow) parseAttrs(v []byte) updateWork {
	var w updateWork
	buf := tbuf.NewBuf(v)
	for buf.Left() >= 3 {
		flags, ok := buf.ReadU8()
		if !ok {
			break
		}
		code, ok := buf.ReadU8()
		if !ok {
			break
		}

		var length int
		if flags&attrFlagExtLen != 0 {
			l16, ok := buf.ReadU16()
			if !ok {
				break
			}
			length = int(l16)
		} else {
			l8, ok := buf.ReadU8()
			if !ok {
				break
			}
			length = int(l8)
		}

		val, ok := buf.ReadN(length)
		if !ok {
			break
		}

		switch code {
		case attrOrigin:
			if len(val) == 1 {
				w.origin = OriginType(val[0])
				w.haveOrigin = true
			}
		case attrASPath:
			w.asPath, _ = parseASPath(val)
		case attrAS4Path:
			w.as4Path, _ = tryParseASPathOrEmpty(val)
		case attrNextHop:
			if len(val) == 4 {
				w.nextHop = netip.AddrFrom4([4]byte(val))
			} else {
				f.flag(StatNonIPv4NH, "next_hop attribute not 4 bytes")
			}
		case attrMultiExitDisc:
			if len(val) == 4 {
				w.med = be32(val)
			}
		case attrLocalPref:
			if len(val) == 4 {
				w.localPref = be32(val)
			}
		case attrAtomicAggregate:
			w.atomicAggreg = true
		case attrCommunities:
			for i := 0; i+4 <= len(val); i += 4 {
				w.communities = append(w.communities, be32(val[i:i+4]))
			}
		case attrAggregator, attrAS4Aggregator, attrOriginatorID, attrClusterList:
			// recognized but not required for routing-table semantics
		}
	}
	return w
}

func tryParseASPathOrEmpty(v []byte) ([]ASPathSegment, bool) {
	segs, ok := tryParseASPath(v, 4)
	return segs, ok
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
