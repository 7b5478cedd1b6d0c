package quicflow

import "github.com/bgpfix/flowan/internal/tbuf"

// ReadVarint decodes a QUIC variable-length integer (spec §4.G "2-bit
// length class in the top bits, remaining value in host-order 6/14/30/62
// bits"). quic-go's own varint decoder lives in its unexported internal/
// package and cannot be imported, so this is hand-written against RFC 9000
// §16.
func ReadVarint(buf *tbuf.Buf) (uint64, bool) {
	first, ok := buf.PeekU8()
	if !ok {
		return 0, false
	}
	length := 1 << (first >> 6)

	raw, ok := buf.ReadN(length)
	if !ok {
		return 0, false
	}

	v := uint64(raw[0] & 0x3f)
	for i := 1; i < length; i++ {
		v = v<<8 | uint64(raw[i])
	}
	return v, true
}

const (
	framePadding        = 0x00
	framePing           = 0x01
	frameAck            = 0x02
	frameAckECN         = 0x03
	frameResetStream    = 0x04
	frameStopSending    = 0x05
	frameCrypto         = 0x06
	frameNewToken       = 0x07
	frameStreamLo       = 0x08
	frameStreamHi       = 0x0f
	frameMaxData        = 0x10
	frameMaxStreamData  = 0x11
	frameMaxStreamsBidi = 0x12
	frameMaxStreamsUni  = 0x13
	frameDataBlocked    = 0x14
	frameStreamBlocked  = 0x15
	frameStreamsBlockedBidi = 0x16
	frameStreamsBlockedUni  = 0x17
	frameNewConnID      = 0x18
	frameRetireConnID   = 0x19
	framePathChallenge  = 0x1a
	framePathResponse   = 0x1b
	frameConnCloseQUIC  = 0x1c
	frameConnCloseApp   = 0x1d
	frameHandshakeDone  = 0x1e
)

// CryptoFrame is a decrypted CRYPTO frame's {offset, data}.
type CryptoFrame struct {
	Offset uint64
	Data   []byte
}

// ExtractCryptoFrames walks a decrypted Initial/Handshake payload frame by
// frame, skipping everything that is not CRYPTO, and returns every CRYPTO
// frame found (spec §4.G "Frame skipping").
func ExtractCryptoFrames(payload []byte) []CryptoFrame {
	buf := tbuf.NewBuf(payload)
	var out []CryptoFrame

	for buf.Left() > 0 {
		typ, ok := buf.PeekU8()
		if !ok {
			break
		}

		if typ == framePadding {
			buf.SkipU8()
			for {
				b, ok := buf.PeekU8()
				if !ok || b != framePadding {
					break
				}
				buf.SkipU8()
			}
			continue
		}

		ftype, ok := ReadVarint(buf)
		if !ok {
			break
		}

		switch {
		case ftype == frameCrypto:
			off, ok := ReadVarint(buf)
			if !ok {
				return out
			}
			length, ok := ReadVarint(buf)
			if !ok {
				return out
			}
			data, ok := buf.ReadN(int(length))
			if !ok {
				return out
			}
			out = append(out, CryptoFrame{Offset: off, Data: data})

		case ftype == framePing || ftype == frameHandshakeDone:
			// no payload

		case ftype == frameAck || ftype == frameAckECN:
			if !skipAckFrame(buf, ftype == frameAckECN) {
				return out
			}

		case ftype == frameResetStream:
			skipVarints(buf, 3)
		case ftype == frameStopSending:
			skipVarints(buf, 2)
		case ftype == frameNewToken:
			length, ok := ReadVarint(buf)
			if !ok || !buf.SkipN(int(length)) {
				return out
			}
		case ftype >= frameStreamLo && ftype <= frameStreamHi:
			if !skipStreamFrame(buf, byte(ftype)) {
				return out
			}
		case ftype == frameMaxData, ftype == frameDataBlocked:
			skipVarints(buf, 1)
		case ftype == frameMaxStreamData, ftype == frameStreamBlocked:
			skipVarints(buf, 2)
		case ftype == frameMaxStreamsBidi, ftype == frameMaxStreamsUni,
			ftype == frameStreamsBlockedBidi, ftype == frameStreamsBlockedUni:
			skipVarints(buf, 1)
		case ftype == frameNewConnID:
			if !skipNewConnID(buf) {
				return out
			}
		case ftype == frameRetireConnID:
			skipVarints(buf, 1)
		case ftype == framePathChallenge, ftype == framePathResponse:
			buf.SkipN(8)
		case ftype == frameConnCloseQUIC, ftype == frameConnCloseApp:
			if !skipConnClose(buf, ftype == frameConnCloseQUIC) {
				return out
			}
		default:
			// unknown frame type: cannot safely continue parsing
			return out
		}
	}
	return out
}

func skipVarints(buf *tbuf.Buf, n int) bool {
	for i := 0; i < n; i++ {
		if _, ok := ReadVarint(buf); !ok {
			return false
		}
	}
	return true
}

func skipAckFrame(buf *tbuf.Buf, ecn bool) bool {
	if !skipVarints(buf, 2) { // largest acknowledged, ack delay
		return false
	}
	rangeCount, ok := ReadVarint(buf)
	if !ok {
		return false
	}
	if _, ok := ReadVarint(buf); !ok { // first ack range
		return false
	}
	for i := uint64(0); i < rangeCount; i++ {
		if !skipVarints(buf, 2) { // gap, ack range length
			return false
		}
	}
	if ecn {
		if !skipVarints(buf, 3) { // ECT0, ECT1, ECN-CE counts
			return false
		}
	}
	return true
}

func skipStreamFrame(buf *tbuf.Buf, typ byte) bool {
	if _, ok := ReadVarint(buf); !ok { // stream ID
		return false
	}
	if typ&0x04 != 0 { // OFF bit
		if _, ok := ReadVarint(buf); !ok {
			return false
		}
	}
	if typ&0x02 != 0 { // LEN bit
		length, ok := ReadVarint(buf)
		if !ok {
			return false
		}
		return buf.SkipN(int(length))
	}
	// no length: consumes the rest of the packet
	return buf.SkipN(buf.Left())
}

func skipNewConnID(buf *tbuf.Buf) bool {
	if !skipVarints(buf, 2) { // sequence number, retire prior to
		return false
	}
	length, ok := buf.ReadU8()
	if !ok {
		return false
	}
	if !buf.SkipN(int(length)) {
		return false
	}
	return buf.SkipN(16) // stateless reset token
}

func skipConnClose(buf *tbuf.Buf, quicLayer bool) bool {
	if _, ok := ReadVarint(buf); !ok { // error code
		return false
	}
	if quicLayer {
		if _, ok := ReadVarint(buf); !ok { // frame type
			return false
		}
	}
	length, ok := ReadVarint(buf)
	if !ok {
		return false
	}
	return buf.SkipN(int(length))
}
