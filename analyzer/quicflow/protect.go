package quicflow

import (
	"crypto/aes"
	"errors"
)

var ErrShortSample = errors.New("quicflow: not enough bytes for a header-protection sample")

// RemoveHeaderProtection implements spec §4.G's unmasking: a 16-byte
// AES-ECB-encrypted sample starting at pnOffset+4 yields a 5-byte mask;
// mask[0]'s low 4 (long header) or 5 (short header) bits are XORed into
// the first flag byte, and mask[1:1+pnLen] are XORed into the packet
// number bytes. hpKey is the direction's "quic hp" key.
//
// pkt is mutated in place. firstByteMask selects which bits of mask[0] to
// apply (0x0f for long headers, 0x1f for short), matching RFC 9001 §5.4.1.
func RemoveHeaderProtection(pkt []byte, pnOffset int, hpKey [16]byte, firstByteMask byte) (pnLen int, err error) {
	sampleOff := pnOffset + 4
	if sampleOff+16 > len(pkt) {
		return 0, ErrShortSample
	}
	sample := pkt[sampleOff : sampleOff+16]

	block, err := aes.NewCipher(hpKey[:])
	if err != nil {
		return 0, err
	}
	var mask [16]byte
	block.Encrypt(mask[:], sample)

	pkt[0] ^= mask[0] & firstByteMask
	pnLen = int(pkt[0]&0x03) + 1

	for i := 0; i < pnLen; i++ {
		pkt[pnOffset+i] ^= mask[1+i]
	}
	return pnLen, nil
}
