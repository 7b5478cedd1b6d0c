// Package quicflow implements QUIC long/short header parsing, Initial-
// secret derivation and AEAD-AES-128-GCM decryption of Initial packets,
// exposing the decrypted CRYPTO-frame payload for TLS analysis (spec §4.G).
package quicflow

import (
	"errors"
	"time"

	"github.com/bgpfix/flowan/internal/tbuf"
)

var (
	ErrTooShort     = errors.New("quicflow: packet too short for a header")
	ErrNotQUIC      = errors.New("quicflow: fixed bit not set, not a QUIC packet")
	ErrShortHeader  = errors.New("quicflow: short header, cannot recover version/cids")
)

// PacketType is the 2-bit long-header type field.
type PacketType byte

const (
	PacketInitial PacketType = iota
	PacketZeroRTT
	PacketHandshake
	PacketRetry
)

// Header is a parsed QUIC long-header packet (spec §4.G "Record {srcCID,
// dstCID, origCID (Retry only), first-client DCID}").
type Header struct {
	IsLong   bool
	Type     PacketType
	Version  uint32
	DCID     []byte
	SCID     []byte
	RestOff  int // offset in the original buffer where the rest (length + pn) begins
}

// firstSeenEpoch is the spec's "first-seen >= 2015-01-01" QUIC flow
// classification floor (spec §4.G).
var firstSeenEpoch = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// LooksLikeQUIC applies the flow-classification heuristic: UDP src/dst 443
// or 4433, first packet seen on/after 2015-01-01, and the first byte's
// fixed bit (0x40) set.
func LooksLikeQUIC(srcPort, dstPort uint16, firstSeen time.Time, firstByte byte) bool {
	if srcPort != 443 && srcPort != 4433 && dstPort != 443 && dstPort != 4433 {
		return false
	}
	if firstSeen.Before(firstSeenEpoch) {
		return false
	}
	return firstByte&0x40 != 0
}

// ParseLongHeader parses a long-header packet's invariant fields (type,
// version, DCID, SCID). The high bit of the first byte must be set to
// reach this parser; a clear high bit means a short header, which this
// package does not decrypt (spec §4.G "one packet may carry one record").
func ParseLongHeader(pkt []byte) (*Header, error) {
	buf := tbuf.NewBuf(pkt)
	first, ok := buf.ReadU8()
	if !ok {
		return nil, ErrTooShort
	}
	if first&0x40 == 0 {
		return nil, ErrNotQUIC
	}
	if first&0x80 == 0 {
		return nil, ErrShortHeader
	}

	version, ok := buf.ReadU32()
	if !ok {
		return nil, ErrTooShort
	}

	h := &Header{IsLong: true, Version: version}
	if version == 0 {
		h.Type = PacketRetry // version negotiation, treated as unparseable beyond this
	} else {
		h.Type = PacketType((first >> 4) & 0x3)
	}

	dcidLen, ok := buf.ReadU8()
	if !ok {
		return nil, ErrTooShort
	}
	dcid, ok := buf.ReadN(int(dcidLen))
	if !ok {
		return nil, ErrTooShort
	}
	h.DCID = dcid

	scidLen, ok := buf.ReadU8()
	if !ok {
		return nil, ErrTooShort
	}
	scid, ok := buf.ReadN(int(scidLen))
	if !ok {
		return nil, ErrTooShort
	}
	h.SCID = scid

	h.RestOff = buf.Tell()
	return h, nil
}
