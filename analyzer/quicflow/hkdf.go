package quicflow

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/hkdf"
)

const initialSecretLen = 32 // SHA-256 output size

// Salt table (spec §6 "QUIC HKDF salts (exhaustive)"). Real wire version
// numbers for each IETF draft are 0xff0000NN where NN is the draft number;
// v1 (0x00000001) shares the final draft-33/34 salt since RFC 9001 froze
// the value used in those drafts.
var salts = map[uint32][]byte{
	0xff000014: mustHex("ef4fb0abb47470c41befcf8031334fae485e09a0"), // draft-20
	0xff000015: mustHex("7fbcdb0e7c66bbe9193a96cd21519ebd7a02644a"), // draft-21
	0xff000016: mustHex("7fbcdb0e7c66bbe9193a96cd21519ebd7a02644a"), // draft-22
	0xff000017: mustHex("c3eef712c72ebb5a11a7d2432bb46365bef9f502"), // draft-23
	0xff000018: mustHex("c3eef712c72ebb5a11a7d2432bb46365bef9f502"), // draft-24
	0xff000019: mustHex("c3eef712c72ebb5a11a7d2432bb46365bef9f502"), // draft-25
	0xff00001a: mustHex("c3eef712c72ebb5a11a7d2432bb46365bef9f502"), // draft-26
	0xff00001b: mustHex("c3eef712c72ebb5a11a7d2432bb46365bef9f502"), // draft-27
	0xff00001c: mustHex("c3eef712c72ebb5a11a7d2432bb46365bef9f502"), // draft-28
	0xff00001d: mustHex("afbfec289993d24c9e9786f19c6111e04390a899"), // draft-29
	0xff00001e: mustHex("afbfec289993d24c9e9786f19c6111e04390a899"), // draft-30
	0xff00001f: mustHex("afbfec289993d24c9e9786f19c6111e04390a899"), // draft-31
	0xff000020: mustHex("afbfec289993d24c9e9786f19c6111e04390a899"), // draft-32
	0xff000021: mustHex("38762cf7f55934b34d179ae6a4c80cadccbb7f0a"), // draft-33
	0xff000022: mustHex("38762cf7f55934b34d179ae6a4c80cadccbb7f0a"), // draft-34
	0x00000001: mustHex("38762cf7f55934b34d179ae6a4c80cadccbb7f0a"), // v1
	0x6b3343cf: mustHex("0dede3def700a6db819381be6e269dcbf9bd2ed9"), // v2
}

func mustHex(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := range b {
		hi := hexDigit(s[i*2])
		lo := hexDigit(s[i*2+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexDigit(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

var ErrUnsupportedVersion = errors.New("quicflow: unsupported quic version, no initial salt")

// InitialSecrets holds the derived per-direction Initial keys for one
// connection (spec §4.G).
type InitialSecrets struct {
	ClientSecret, ServerSecret [initialSecretLen]byte
	ClientKey, ServerKey       [16]byte // AEAD_AES_128_GCM key
	ClientIV, ServerIV         [12]byte // AEAD nonce base
	ClientHP, ServerHP         [16]byte // header-protection key
}

// DeriveInitialSecrets computes both directions' Initial secrets and their
// derived hp/key/iv material from the first client DCID (spec §4.G
// "Derive an initial secret = HKDF-Extract(salt_for_version,
// first_client_dcid)").
func DeriveInitialSecrets(version uint32, firstClientDCID []byte) (*InitialSecrets, error) {
	salt, ok := salts[version]
	if !ok {
		return nil, ErrUnsupportedVersion
	}

	initialSecret := hkdfExtract(salt, firstClientDCID)

	var s InitialSecrets
	s.ClientSecret = expandLabel32(initialSecret, "client in")
	s.ServerSecret = expandLabel32(initialSecret, "server in")

	s.ClientKey = expandLabel16(s.ClientSecret[:], "quic key")
	s.ServerKey = expandLabel16(s.ServerSecret[:], "quic key")
	s.ClientIV = expandLabel12(s.ClientSecret[:], "quic iv")
	s.ServerIV = expandLabel12(s.ServerSecret[:], "quic iv")
	s.ClientHP = expandLabel16(s.ClientSecret[:], "quic hp")
	s.ServerHP = expandLabel16(s.ServerSecret[:], "quic hp")

	return &s, nil
}

func hkdfExtract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// hkdfExpandLabel implements TLS 1.3's HKDF-Expand-Label (RFC 8446 §7.1)
// with an empty Context, as QUIC's key schedule uses it (spec §4.G,
// prefix "tls13 ").
func hkdfExpandLabel(secret []byte, label string, length int) []byte {
	full := "tls13 " + label
	hkdfLabel := make([]byte, 0, 3+len(full))
	hkdfLabel = append(hkdfLabel, byte(length>>8), byte(length))
	hkdfLabel = append(hkdfLabel, byte(len(full)))
	hkdfLabel = append(hkdfLabel, full...)
	hkdfLabel = append(hkdfLabel, 0) // empty Context

	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, secret, hkdfLabel)
	r.Read(out)
	return out
}

func expandLabel32(secret []byte, label string) (out [32]byte) {
	copy(out[:], hkdfExpandLabel(secret, label, 32))
	return out
}
func expandLabel16(secret []byte, label string) (out [16]byte) {
	copy(out[:], hkdfExpandLabel(secret, label, 16))
	return out
}
func expandLabel12(secret []byte, label string) (out [12]byte) {
	copy(out[:], hkdfExpandLabel(secret, label, 12))
	return out
}
