package tlsflow

import "github.com/bgpfix/flowan/internal/tbuf"

const maxRecordLen = 1<<14 + 1<<10 // spec §4.H "length (2; <= 2^14 + 2^10)"

// Feed parses every TLS/DTLS record in payload, dispatching to the
// appropriate per-record action (spec §4.H "Dispatch" / "Record layer").
func (f *Flow) Feed(payload []byte) {
	if len(payload) == 0 {
		return
	}

	if !isRecordType(payload[0]) {
		if f.DetectOpenVPN(payload) {
			return
		}
		f.tryTLSFallback(payload)
		return
	}

	buf := tbuf.NewBuf(payload)
	for buf.Left() > 0 {
		if !f.parseOneRecord(buf) {
			return
		}
	}
}

func isRecordType(b byte) bool {
	return b >= 20 && b <= 24
}

// tryTLSFallback handles the SSLv2 record format: 2-byte length (high bit
// = no-padding), 1-byte message type, 2-byte version (spec §4.H).
func (f *Flow) tryTLSFallback(payload []byte) {
	buf := tbuf.NewBuf(payload)
	lenField, ok := buf.ReadU16()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	noPadding := lenField&0x8000 != 0
	_ = noPadding

	if _, ok := buf.ReadU8(); !ok { // message type
		f.Stat |= StatSnap
		return
	}
	if _, ok := buf.ReadU16(); !ok { // version
		f.Stat |= StatSnap
		return
	}

	f.Stat |= StatWeakProto
}

func (f *Flow) parseOneRecord(buf *tbuf.Buf) bool {
	typ, ok := buf.ReadU8()
	if !ok {
		f.Stat |= StatSnap
		return false
	}
	version, ok := buf.ReadU16()
	if !ok {
		f.Stat |= StatSnap
		return false
	}

	if f.IsDTLS {
		if !buf.SkipU64() { // epoch(2) + sequence(6)
			f.Stat |= StatSnap
			return false
		}
	}

	length, ok := buf.ReadU16()
	if !ok {
		f.Stat |= StatSnap
		return false
	}
	if int(length) > maxRecordLen {
		f.Stat |= StatRecTooLong
		return false
	}

	body, ok := buf.ReadN(int(length))
	if !ok {
		f.Stat |= StatSnap
		return false
	}

	if len(f.recordVersions) > 0 && !f.versionSeen(version) {
		f.Stat |= StatVersionMismatch
	}
	f.observeRecordVersion(version)

	switch RecordType(typ) {
	case RecordChangeCipherSpec:
		f.handleChangeCipherSpec(body)
	case RecordAlert:
		f.handleAlert(body)
	case RecordHandshake:
		f.handleHandshakeRecord(body, version)
	case RecordAppData:
		// nothing to mine
	case RecordHeartbeat:
		f.handleHeartbeat(body, int(length))
	default:
		f.Stat |= StatMalformed
	}
	return true
}

func (f *Flow) versionSeen(v uint16) bool {
	for _, seen := range f.recordVersions {
		if seen == v {
			return true
		}
	}
	return false
}

func (f *Flow) handleChangeCipherSpec(body []byte) {
	if len(body) != 1 || body[0] != 0x01 {
		f.Stat |= StatMalformed
	}
}

func (f *Flow) handleAlert(body []byte) {
	if len(body) < 2 {
		f.Stat |= StatSnap
		return
	}
	level, desc := body[0], body[1]
	if int(desc) < 64 {
		f.AlertBag |= 1 << uint(desc)
	}
	if level == 2 { // fatal
		f.Stat |= StatAlertFatal
	}
}

func (f *Flow) handleHeartbeat(body []byte, recordLen int) {
	buf := tbuf.NewBuf(body)
	typ, ok := buf.ReadU8()
	if !ok || (typ != 1 && typ != 2) {
		f.Stat |= StatMalformed
		return
	}
	plen, ok := buf.ReadU16()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	if int(plen) > recordLen {
		f.Stat |= StatVulnHeart // Heartbleed pattern
		return
	}
	if !buf.SkipN(int(plen)) {
		f.Stat |= StatSnap
		return
	}
	padding := buf.Left()
	if padding < 16 {
		f.Stat |= StatMalformed
	}
}

// handleHandshakeRecord iterates the (possibly multiple) handshake
// messages a single record may carry (spec §4.H "a record may contain
// multiple messages; iterate while bytes remain").
func (f *Flow) handleHandshakeRecord(body []byte, recordVersion uint16) {
	buf := tbuf.NewBuf(body)
	for buf.Left() > 0 {
		typ, ok := buf.ReadU8()
		if !ok {
			f.Stat |= StatSnap
			return
		}
		length, ok := buf.ReadU24()
		if !ok {
			f.Stat |= StatSnap
			return
		}

		if f.IsDTLS {
			if !buf.SkipN(2 + 3 + 3) { // message_seq, fragment_offset, fragment_length
				f.Stat |= StatSnap
				return
			}
		}

		msg, ok := buf.ReadN(int(length))
		if !ok {
			f.Stat |= StatSnap
			return
		}

		f.handshakeVersions = appendUnique(f.handshakeVersions, recordVersion)

		switch HandshakeType(typ) {
		case HandshakeClientHello:
			f.parseHello(msg, true, recordVersion)
		case HandshakeServerHello:
			f.parseHello(msg, false, recordVersion)
		case HandshakeHelloVerifyRequest:
			f.parseHelloVerifyRequest(msg)
		case HandshakeCertificate:
			f.parseCertificateMessage(msg)
		}
	}
}

func appendUnique(list []uint16, v uint16) []uint16 {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func (f *Flow) parseHelloVerifyRequest(msg []byte) {
	buf := tbuf.NewBuf(msg)
	if _, ok := buf.ReadU16(); !ok { // version
		f.Stat |= StatSnap
		return
	}
	cookieLen, ok := buf.ReadU8()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	if !buf.SkipN(int(cookieLen)) {
		f.Stat |= StatSnap
	}
}
