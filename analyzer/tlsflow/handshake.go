package tlsflow

import (
	"time"

	"github.com/bgpfix/flowan/internal/tbuf"
)

const (
	extServerName          = 0
	extSignatureAlgorithms = 13
	extUseSRTP             = 14
	extHeartbeat           = 15
	extALPN                = 16
	extStatusRequestV2     = 17 // ALPS uses a private codepoint in practice; tracked generically
	extSupportedGroups     = 10
	extECPointFormats      = 11
	extSupportedVersions   = 43
	extRenegotiationInfo   = 0xff01
	extNPN                 = 0x3374 // draft NPN extension codepoint
)

func isGREASE(v uint16) bool {
	return v&0x0f0f == 0x0a0a
}

// parseHello parses a ClientHello or ServerHello body into a Hello (spec
// §4.H "ClientHello / ServerHello"). Only the first Hello of each side is
// kept, per "Only the first ClientHello/ServerHello is fingerprinted per
// flow".
func (f *Flow) parseHello(msg []byte, isClient bool, recordVersion uint16) {
	if isClient && f.ClientHelloSeen {
		return
	}
	if !isClient && f.ServerHelloSeen {
		return
	}

	buf := tbuf.NewBuf(msg)
	h := &Hello{IsClient: isClient, RecordVersion: recordVersion}

	version, ok := buf.ReadU16()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	h.HandshakeVersion = version

	random, ok := buf.ReadN(32)
	if !ok {
		f.Stat |= StatSnap
		return
	}
	copy(h.Random[:], random)
	if allEqual(random, 0x00) || allEqual(random, 0xff) {
		f.Stat |= StatRandAllZeroOrOne
	}
	checkGMTUnixTime(random[:4], &f.Stat)

	sidLen, ok := buf.ReadU8()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	if !buf.SkipN(int(sidLen)) {
		f.Stat |= StatSnap
		return
	}
	h.SessionIDLen = int(sidLen)
	if isClient && sidLen > 0 {
		f.Stat |= StatRenegotiation
	}

	if f.IsDTLS {
		cookieLen, ok := buf.ReadU8()
		if !ok {
			f.Stat |= StatSnap
			return
		}
		if !buf.SkipN(int(cookieLen)) {
			f.Stat |= StatSnap
			return
		}
	}

	if isClient {
		csLen, ok := buf.ReadU16()
		if !ok {
			f.Stat |= StatSnap
			return
		}
		cs, ok := buf.ReadN(int(csLen))
		if !ok {
			f.Stat |= StatSnap
			return
		}
		for i := 0; i+2 <= len(cs); i += 2 {
			h.Ciphers = append(h.Ciphers, be16(cs[i:i+2]))
		}
	} else {
		cs, ok := buf.ReadN(2)
		if !ok {
			f.Stat |= StatSnap
			return
		}
		h.Ciphers = []uint16{be16(cs)}
	}

	compLen, ok := buf.ReadU8()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	comp, ok := buf.ReadN(int(compLen))
	if !ok {
		f.Stat |= StatSnap
		return
	}
	for _, c := range comp {
		if c == 1 { // DEFLATE
			h.CompressionDeflate = true
			f.Stat |= StatCompr | StatVulnBreach | StatVulnCrime
		}
	}

	if buf.Left() >= 2 {
		extLen, ok := buf.ReadU16()
		if ok {
			ext, ok := buf.ReadN(int(extLen))
			if ok {
				f.parseExtensions(h, ext)
			}
		}
	}

	h.NegotiatedVersion = h.HandshakeVersion
	if len(h.SupportedVersions) > 0 {
		for _, v := range h.SupportedVersions {
			if !isGREASE(v) {
				h.NegotiatedVersion = v
				break
			}
		}
	}

	if isClient {
		f.ClientHelloSeen = true
		f.ClientHello = h
	} else {
		f.ServerHelloSeen = true
		f.ServerHello = h
	}

	f.computeFingerprints()
}

func allEqual(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}

// checkGMTUnixTime flags implausible gmt_unix_time values (spec §4.H).
func checkGMTUnixTime(b []byte, stat *Stat) {
	secs := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	t := time.Unix(int64(secs), 0).UTC()
	now := time.Now().UTC()
	if t.Before(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) {
		*stat |= StatSTime
	}
	if t.After(now.Add(24 * time.Hour)) {
		*stat |= StatRTime
	}
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

// parseExtensions walks the extension list, recognizing the subset named
// in spec §4.H and never overrunning a declared extension's span.
func (f *Flow) parseExtensions(h *Hello, ext []byte) {
	buf := tbuf.NewBuf(ext)
	for buf.Left() >= 4 {
		etype, ok := buf.ReadU16()
		if !ok {
			return
		}
		elen, ok := buf.ReadU16()
		if !ok {
			return
		}
		data, ok := buf.ReadN(int(elen))
		if !ok {
			f.Stat |= StatSnap
			return
		}

		h.Extensions = append(h.Extensions, etype)

		switch etype {
		case extServerName:
			h.SNI = parseSNI(data)
		case extSignatureAlgorithms:
			h.SignatureAlgorithms = parseUint16List2Byte(data)
		case extUseSRTP:
			h.UseSRTP = true
			f.Stat |= StatRTP
		case extALPN, extNPN, extStatusRequestV2:
			h.ALPN = append(h.ALPN, parseALPN(data)...)
		case extSupportedVersions:
			h.SupportedVersions = parseSupportedVersions(data, h.IsClient)
		case extRenegotiationInfo:
			h.RenegotiationInfo = true
			f.Stat |= StatRenegotiation
		case extSupportedGroups:
			h.SupportedGroups = parseUint16List2Byte(data)
		case extECPointFormats:
			h.ECPointFormats = parseECPointFormats(data)
		case extHeartbeat:
			// recognized, no per-hello effect beyond presence in Extensions
		}
	}
}

func parseSNI(data []byte) string {
	buf := tbuf.NewBuf(data)
	if _, ok := buf.ReadU16(); !ok { // server_name_list length
		return ""
	}
	for buf.Left() >= 3 {
		typ, _ := buf.ReadU8()
		nlen, ok := buf.ReadU16()
		if !ok {
			return ""
		}
		name, ok := buf.ReadN(int(nlen))
		if !ok {
			return ""
		}
		if typ == 0 { // host_name
			return string(name)
		}
	}
	return ""
}

func parseALPN(data []byte) []string {
	buf := tbuf.NewBuf(data)
	if _, ok := buf.ReadU16(); !ok { // protocol name list length
		return nil
	}
	var out []string
	for buf.Left() > 0 {
		plen, ok := buf.ReadU8()
		if !ok {
			return out
		}
		name, ok := buf.ReadN(int(plen))
		if !ok {
			return out
		}
		out = append(out, string(name))
	}
	return out
}

func parseSupportedVersions(data []byte, isClient bool) []uint16 {
	buf := tbuf.NewBuf(data)
	var out []uint16
	if isClient {
		n, ok := buf.ReadU8()
		if !ok {
			return nil
		}
		vals, ok := buf.ReadN(int(n))
		if !ok {
			return nil
		}
		for i := 0; i+2 <= len(vals); i += 2 {
			v := be16(vals[i : i+2])
			if !isGREASE(v) {
				out = append(out, v)
			}
		}
	} else {
		v, ok := buf.ReadU16()
		if ok {
			out = append(out, v)
		}
	}
	return out
}

func parseUint16List2Byte(data []byte) []uint16 {
	buf := tbuf.NewBuf(data)
	n, ok := buf.ReadU16()
	if !ok {
		return nil
	}
	vals, ok := buf.ReadN(int(n))
	if !ok {
		return nil
	}
	var out []uint16
	for i := 0; i+2 <= len(vals); i += 2 {
		out = append(out, be16(vals[i:i+2]))
	}
	return out
}

func parseECPointFormats(data []byte) []byte {
	buf := tbuf.NewBuf(data)
	n, ok := buf.ReadU8()
	if !ok {
		return nil
	}
	vals, _ := buf.ReadN(int(n))
	return vals
}
