package quicflow

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeVarint mirrors ReadVarint's wire format for the small values this
// test needs (values under 16384, i.e. the 1- and 2-byte length classes).
func encodeVarint(v uint64) []byte {
	if v < 1<<6 {
		return []byte{byte(v)}
	}
	if v < 1<<14 {
		return []byte{0x40 | byte(v>>8), byte(v)}
	}
	panic("encodeVarint: value out of range for this test helper")
}

// protectHeader applies QUIC header protection to a clear (unprotected)
// long-header packet, the inverse of RemoveHeaderProtection. Unlike that
// function, the caller supplies pnLen directly rather than recovering it
// from the first byte, since before protection is applied the first byte
// already carries its true, unmasked pnLen bits.
func protectHeader(t *testing.T, pkt []byte, pnOffset, pnLen int, hpKey [16]byte) {
	t.Helper()
	sample := pkt[pnOffset+4 : pnOffset+4+16]
	block, err := aes.NewCipher(hpKey[:])
	require.NoError(t, err)
	var mask [16]byte
	block.Encrypt(mask[:], sample)

	pkt[0] ^= mask[0] & longHeaderFirstByteMask
	for i := 0; i < pnLen; i++ {
		pkt[pnOffset+i] ^= mask[1+i]
	}
}

func TestProcessInitial_FullRoundTripRecoversCryptoFrame(t *testing.T) {
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	secrets, err := DeriveInitialSecrets(1, dcid)
	require.NoError(t, err)

	clientHelloStub := append([]byte{0x01}, make([]byte, 19)...) // TLS ClientHello type byte + filler
	var plaintext []byte
	plaintext = append(plaintext, frameCrypto)
	plaintext = append(plaintext, encodeVarint(0)...) // CRYPTO offset
	plaintext = append(plaintext, encodeVarint(uint64(len(clientHelloStub)))...)
	plaintext = append(plaintext, clientHelloStub...)

	const pnLen = 2
	pktNum := uint64(1)
	pnBytes := []byte{byte(pktNum >> 8), byte(pktNum)}

	firstByte := byte(0xc0 | (pnLen - 1)) // long header, type=Initial, clear pnLen bits
	header := []byte{firstByte, 0x00, 0x00, 0x00, 0x01, byte(len(dcid))}
	header = append(header, dcid...)
	header = append(header, 0x00) // SCID len 0

	lengthVal := uint64(pnLen) + uint64(len(plaintext)) + 16 // +AEAD tag
	header = append(header, encodeVarint(lengthVal)...)
	pnOffset := len(header)
	header = append(header, pnBytes...)

	aad := append([]byte(nil), header...)

	block, err := aes.NewCipher(secrets.ClientKey[:])
	require.NoError(t, err)
	gcm, err := cipher.NewGCMWithNonceSize(block, len(secrets.ClientIV))
	require.NoError(t, err)
	nonce := secrets.ClientIV
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pktNum >> (8 * i))
	}
	ciphertext := gcm.Seal(nil, nonce[:], plaintext, aad)

	pkt := append(aad, ciphertext...)
	protectHeader(t, pkt, pnOffset, pnLen, secrets.ClientHP)

	h, crypto, err := ProcessInitial(pkt, dcid, true)
	require.NoError(t, err)
	require.Equal(t, PacketInitial, h.Type)
	require.Len(t, crypto, 1)
	assert.Equal(t, uint64(0), crypto[0].Offset)
	assert.Equal(t, byte(0x01), crypto[0].Data[0]) // S5: first decrypted byte is the ClientHello type
	assert.Equal(t, clientHelloStub, crypto[0].Data)
}

func TestDeriveInitialSecrets_DeterministicAcrossRepeatedCalls(t *testing.T) {
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}

	a, err := DeriveInitialSecrets(1, dcid)
	require.NoError(t, err)
	b, err := DeriveInitialSecrets(1, dcid)
	require.NoError(t, err)

	assert.Equal(t, a.ClientHP, b.ClientHP)
	assert.Equal(t, a.ClientKey, b.ClientKey)
	assert.Equal(t, a.ClientIV, b.ClientIV)
	assert.Equal(t, a.ServerHP, b.ServerHP)
	assert.Equal(t, a.ServerKey, b.ServerKey)
	assert.Equal(t, a.ServerIV, b.ServerIV)
}
