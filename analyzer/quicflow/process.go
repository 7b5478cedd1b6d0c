package quicflow

import (
	"github.com/bgpfix/flowan/internal/tbuf"
)

// longHeaderFirstByteMask selects the low four bits of byte 0 of a
// long-header packet, the bits that header protection masks (RFC 9001
// §5.4.1 "header protection").
const longHeaderFirstByteMask = 0x0f

// ProcessInitial runs the full Initial-packet pipeline described in spec
// §4.G: parse the long header, derive Initial secrets from
// firstClientDCID, remove header protection, AEAD-decrypt the payload,
// and extract its CRYPTO frames. isFromClient selects which derived
// key/iv/hp triple decrypts this packet (spec: client and server use
// distinct derived secrets from the same Initial secret).
func ProcessInitial(pkt []byte, firstClientDCID []byte, isFromClient bool) (h *Header, crypto []CryptoFrame, err error) {
	h, err = ParseLongHeader(pkt)
	if err != nil {
		return nil, nil, err
	}
	if h.Type != PacketInitial {
		return h, nil, nil
	}

	buf := tbuf.NewBuf(pkt)
	if !buf.SeekSet(h.RestOff) {
		return h, nil, ErrTooShort
	}
	length, ok := ReadVarint(buf)
	if !ok {
		return h, nil, ErrTooShort
	}
	pnOffset := buf.Tell()

	secrets, err := DeriveInitialSecrets(h.Version, firstClientDCID)
	if err != nil {
		return h, nil, err
	}

	hpKey, key, iv := secrets.ServerHP, secrets.ServerKey, secrets.ServerIV
	if isFromClient {
		hpKey, key, iv = secrets.ClientHP, secrets.ClientKey, secrets.ClientIV
	}

	pktCopy := append([]byte(nil), pkt...)
	pnLen, err := RemoveHeaderProtection(pktCopy, pnOffset, hpKey, longHeaderFirstByteMask)
	if err != nil {
		return h, nil, err
	}

	pnBytes, ok := tbuf.NewBuf(pktCopy[pnOffset:]).PeekN(pnLen)
	if !ok {
		return h, nil, ErrTooShort
	}
	var pktNum uint64
	for _, b := range pnBytes {
		pktNum = pktNum<<8 | uint64(b)
	}

	payloadStart := pnOffset + pnLen
	payloadLen := int(length) - pnLen
	if payloadLen < 0 || payloadStart+payloadLen > len(pktCopy) {
		return h, nil, ErrTooShort
	}

	aad := pktCopy[:payloadStart]
	ciphertext := pktCopy[payloadStart : payloadStart+payloadLen]

	plaintext, err := DecryptInitial(key, iv, pktNum, aad, ciphertext)
	if err != nil {
		return h, nil, err
	}

	return h, ExtractCryptoFrames(plaintext), nil
}
