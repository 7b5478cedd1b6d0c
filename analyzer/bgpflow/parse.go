package bgpflow

import (
	"bytes"
	"net/netip"
	"time"

	"github.com/bgpfix/flowan/caps"
	"github.com/bgpfix/flowan/internal/tbuf"
)

var marker16 = bytes.Repeat([]byte{0xff}, 16)

const (
	minRecordLen = 19
	maxRecordLen = 4096

	msgOpen         = 1
	msgUpdate       = 2
	msgNotification = 3
	msgKeepalive    = 4
	msgRouteRefresh = 5
)

// Feed processes one packet's worth of bytes on the flow, framing and
// dispatching every complete BGP record found (spec §4.F "Every packet on
// such a flow is treated as a stream of BGP records; the parser loops
// while >= 19 bytes remain").
func (f *Flow) Feed(payload []byte, now time.Time) {
	f.PacketNo++

	data := payload
	if len(f.pending) > 0 {
		data = append(append([]byte(nil), f.pending...), payload...)
		f.pending = nil
	}

	buf := tbuf.NewBuf(data)
	for buf.Left() >= minRecordLen {
		start := buf.Tell()
		if !f.syncMarker(buf) {
			f.flag(StatConnSync, "marker not found, aborting packet")
			return
		}

		length, ok := buf.ReadU16()
		if !ok {
			f.flag(StatSnaplen, "short length field")
			return
		}
		if length < minRecordLen || int(length) > maxRecordLen {
			f.flag(StatBadLen, "record length out of range")
			return // fatal for this packet only
		}

		typ, ok := buf.ReadU8()
		if !ok {
			f.flag(StatSnaplen, "short type field")
			return
		}

		bodyLen := int(length) - 19
		if buf.Left() < bodyLen {
			// not enough bytes yet for this record: stash from the marker
			// onward and wait for the next packet.
			f.pending = append([]byte(nil), buf.Bytes()[start:]...)
			return
		}
		body, _ := buf.ReadN(bodyLen)

		f.RecordNo++
		if typ < 1 || typ > 5 {
			f.flag(StatBadType, "unknown record type")
			continue // skip body, resume at next record
		}

		switch typ {
		case msgOpen:
			f.Opens.Observe(now)
			f.handleOpen(body)
		case msgUpdate:
			f.Updates.Observe(now)
			f.handleUpdate(body, now)
		case msgNotification:
			f.handleNotification(body)
		case msgKeepalive:
			f.Keepalives.Observe(now)
			if length != 19 {
				f.flag(StatBadLen, "keepalive length != 19")
			}
		case msgRouteRefresh:
			f.handleRouteRefresh(body)
		}
	}

	if buf.Left() > 0 {
		f.pending = append([]byte(nil), buf.Bytes()[buf.Tell():]...)
	}
}

// syncMarker verifies the 16-byte all-0xFF marker at the cursor; if absent,
// it scans forward for the next occurrence via memmem (spec §4.F).
func (f *Flow) syncMarker(buf *tbuf.Buf) bool {
	if peek, ok := buf.PeekN(16); ok && bytes.Equal(peek, marker16) {
		buf.SkipN(16)
		return true
	}
	if !buf.Memmem(marker16) {
		return false
	}
	f.Stat |= StatConnSync
	buf.SkipN(16)
	return true
}

func (f *Flow) handleOpen(body []byte) {
	buf := tbuf.NewBuf(body)

	version, ok := buf.ReadU8()
	if !ok {
		f.flag(StatSnaplen, "open: short")
		return
	}
	if version != 4 {
		f.flag(StatVersion, "open: version != 4")
	}

	asn, ok := buf.ReadU16()
	if !ok {
		f.flag(StatSnaplen, "open: short asn")
		return
	}
	hold, ok := buf.ReadU16()
	if !ok {
		f.flag(StatSnaplen, "open: short holdtime")
		return
	}
	if hold == 1 || hold == 2 {
		f.flag(StatHoldTime, "open: reserved hold time value")
	}

	idBytes, ok := buf.ReadN(4)
	if !ok {
		f.flag(StatSnaplen, "open: short identifier")
		return
	}
	id := netip.AddrFrom4([4]byte(idBytes))

	f.Local.ASN = uint32(asn)
	f.Local.HoldTime = hold
	f.Local.Identifier = id
	f.Local.Caps = make(map[caps.Code]bool)

	if f.Opposite != nil {
		f.Opposite.Remote = f.Local
	}

	paramsLen, ok := buf.ReadU8()
	if ok && paramsLen > 0 {
		params, _ := buf.ReadN(int(paramsLen))
		f.parseOpenParams(params)
	}
}

// parseOpenParams walks optional parameters, understanding only
// capability parameters (type 2), per spec §4.F.
func (f *Flow) parseOpenParams(params []byte) {
	buf := tbuf.NewBuf(params)
	for buf.Left() >= 2 {
		ptyp, _ := buf.ReadU8()
		plen, _ := buf.ReadU8()
		pval, ok := buf.ReadN(int(plen))
		if !ok {
			return
		}
		if ptyp != 2 { // PARAM_CAPS
			continue
		}
		f.parseCaps(pval)
	}
}

func (f *Flow) parseCaps(pval []byte) {
	buf := tbuf.NewBuf(pval)
	for buf.Left() >= 2 {
		cc, _ := buf.ReadU8()
		clen, _ := buf.ReadU8()
		cval, ok := buf.ReadN(int(clen))
		if !ok {
			return
		}
		code := caps.Code(cc)
		f.Local.Caps[code] = true

		switch code {
		case caps.CAP_AS4:
			if len(cval) == 4 {
				as4 := uint32(cval[0])<<24 | uint32(cval[1])<<16 | uint32(cval[2])<<8 | uint32(cval[3])
				f.Local.Use32bit = true
				if as4 != f.Local.ASN && f.Local.ASN != 23456 {
					f.flag(StatASMismatch, "as4 capability disagrees with 2-byte asn")
				}
				f.Local.ASN = as4
			}
		case caps.CAP_ADDPATH:
			f.Local.AddPath = true
		case caps.CAP_GRACEFUL_RESTART, caps.CAP_DYNAMIC, caps.CAP_MULTISESSION,
			caps.CAP_ENHANCED_ROUTE_REFRESH, caps.CAP_LLGR, caps.CAP_FQDN:
			// recognized, no further flow-state effect beyond the caps set
		}
	}
}

func (f *Flow) handleNotification(body []byte) {
	buf := tbuf.NewBuf(body)
	if buf.Left() < 2 {
		f.flag(StatSnaplen, "notification: short")
		return
	}
	buf.ReadU8() // code
	buf.ReadU8() // subcode
}

func (f *Flow) handleRouteRefresh(body []byte) {
	buf := tbuf.NewBuf(body)
	if buf.Left() < 4 {
		f.flag(StatSnaplen, "route-refresh: short")
		return
	}
	buf.ReadU16() // afi
	buf.ReadU8()  // reserved/subtype
	buf.ReadU8()  // safi
	// any trailing ORF entries are skipped, not interpreted
}
