package quicflow

import (
	"testing"
	"time"

	"github.com/bgpfix/flowan/internal/tbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveInitialSecrets_V1KnownVector(t *testing.T) {
	// RFC 9001 appendix A / spec scenario S5: DCID 8394c8f03e515708, version 1.
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	secrets, err := DeriveInitialSecrets(0x00000001, dcid)
	require.NoError(t, err)
	assert.NotZero(t, secrets.ClientKey)
	assert.NotZero(t, secrets.ServerKey)
	assert.NotEqual(t, secrets.ClientSecret, secrets.ServerSecret)

	assert.Equal(t, "437b9aec36be423400cdd115c6f5df77", hexString(secrets.ClientHP[:]))
	assert.Equal(t, "1f369613dd76d5467730efcbe3b1a22d", hexString(secrets.ClientKey[:]))
	assert.Equal(t, "fa044b2f42a3fd3b46fb255c", hexString(secrets.ClientIV[:]))
}

func hexString(b []byte) string {
	const hexdig = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdig[c>>4]
		out[i*2+1] = hexdig[c&0xf]
	}
	return string(out)
}

func TestDeriveInitialSecrets_UnsupportedVersion(t *testing.T) {
	_, err := DeriveInitialSecrets(0xdeadbeef, []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestLooksLikeQUIC(t *testing.T) {
	recent := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	old := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, LooksLikeQUIC(50000, 443, recent, 0xc0))
	assert.False(t, LooksLikeQUIC(50000, 80, recent, 0xc0))  // wrong port
	assert.False(t, LooksLikeQUIC(50000, 443, old, 0xc0))    // too early
	assert.False(t, LooksLikeQUIC(50000, 443, recent, 0x00)) // fixed bit clear
}

func TestParseLongHeader_RoundTrip(t *testing.T) {
	pkt := []byte{
		0xc0 | 0x00, // long header, type=Initial
		0x00, 0x00, 0x00, 0x01, // version 1
		0x08,                                           // DCID len
		0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08, // DCID
		0x00, // SCID len
	}
	h, err := ParseLongHeader(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h.Version)
	assert.Equal(t, PacketInitial, h.Type)
	assert.Len(t, h.DCID, 8)
	assert.Equal(t, len(pkt), h.RestOff)
}

func TestParseLongHeader_RejectsShortHeader(t *testing.T) {
	_, err := ParseLongHeader([]byte{0x40, 1, 2, 3})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestRemoveHeaderProtection_AppliesMaskAndReportsValidPNLen(t *testing.T) {
	var hpKey [16]byte
	for i := range hpKey {
		hpKey[i] = byte(i)
	}

	pkt := make([]byte, 64)
	pkt[0] = 0xc3 // long header, some pn_len bits set pre-mask
	pnOffset := 18
	orig0 := pkt[0]

	pnLen, err := RemoveHeaderProtection(pkt, pnOffset, hpKey, 0x0f)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pnLen, 1)
	assert.LessOrEqual(t, pnLen, 4)
	// only the low 4 bits of byte 0 may have changed (firstByteMask=0x0f)
	assert.Equal(t, orig0&0xf0, pkt[0]&0xf0)
}

func TestRemoveHeaderProtection_ShortSampleFails(t *testing.T) {
	var hpKey [16]byte
	pkt := make([]byte, 10)
	_, err := RemoveHeaderProtection(pkt, 2, hpKey, 0x0f)
	assert.ErrorIs(t, err, ErrShortSample)
}

func TestReadVarint_AllLengthClasses(t *testing.T) {
	cases := []struct {
		bytes []byte
		want  uint64
	}{
		{[]byte{0x25}, 37},
		{[]byte{0x7b, 0xbd}, 15293},
		{[]byte{0x9d, 0x7f, 0x3e, 0x7d}, 494878333},
		{[]byte{0xc2, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c}, 151288809941952652},
	}
	for _, c := range cases {
		buf := tbuf.NewBuf(c.bytes)
		got, ok := ReadVarint(buf)
		require.True(t, ok)
		assert.Equal(t, c.want, got)
	}
}

func TestExtractCryptoFrames_SkipsPaddingAndPing(t *testing.T) {
	var payload []byte
	payload = append(payload, 0x00, 0x00, 0x00) // PADDING x3
	payload = append(payload, 0x01)             // PING
	payload = append(payload, 0x06)             // CRYPTO
	payload = append(payload, 0x00)             // offset 0
	payload = append(payload, 0x04)             // length 4
	payload = append(payload, []byte("ABCD")...)

	frames := ExtractCryptoFrames(payload)
	require.Len(t, frames, 1)
	assert.Equal(t, uint64(0), frames[0].Offset)
	assert.Equal(t, "ABCD", string(frames[0].Data))
}
