package quicflow

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

var ErrDecryptFailed = errors.New("quicflow: AEAD_AES_128_GCM authentication failed")

// DecryptInitial decrypts an Initial packet's payload in place, given the
// reconstructed clear header (used as Additional Authenticated Data), the
// unmasked packet number, and the direction's Initial AEAD key/IV (spec
// §4.G "AEAD nonce = IV XOR (packet-number padded right-aligned)").
//
// Any failure here (unsupported version upstream, short payload, tag
// mismatch) is non-fatal for the flow: callers should simply suppress TLS
// analysis for this packet, per spec.
func DecryptInitial(key [16]byte, iv [12]byte, pktNum uint64, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, err
	}

	nonce := iv
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pktNum >> (8 * i))
	}

	plain, err := gcm.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
