package tlsflow

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// computeFingerprints builds JA3 and JA4 once the ClientHello is seen, and
// JA3S and JA4S once the ServerHello is seen, each side independently (spec §4.H "JA3 / JA4
// fingerprint families").
func (f *Flow) computeFingerprints() {
	if f.ClientHello != nil && f.JA3 == "" {
		f.JA3 = ja3String(f.ClientHello)
		if f.JA3 == "" {
			f.Stat |= StatJA3Fail
		}
	}
	if f.ServerHello != nil && f.JA3S == "" {
		f.JA3S = ja3sString(f.ServerHello)
	}
	if f.ClientHello != nil && f.JA4 == "" {
		f.computeJA4()
	}
	if f.ServerHello != nil && f.JA4S == "" {
		f.JA4S = ja4sString(f.ServerHello)
	}
}

func stripGREASE16(in []uint16) []uint16 {
	out := make([]uint16, 0, len(in))
	for _, v := range in {
		if !isGREASE(v) {
			out = append(out, v)
		}
	}
	return out
}

func joinU16Dec(vals []uint16) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = strconv.Itoa(int(v))
	}
	return strings.Join(s, "-")
}

func joinBytesDec(vals []byte) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = strconv.Itoa(int(v))
	}
	return strings.Join(s, "-")
}

// ja3String builds the canonical JA3 input and returns its MD5 hex digest
// (spec scenario S3).
func ja3String(h *Hello) string {
	ciphers := stripGREASE16(h.Ciphers)
	exts := stripGREASE16(h.Extensions)
	groups := stripGREASE16(h.SupportedGroups)

	raw := fmt.Sprintf("%d,%s,%s,%s,%s",
		h.HandshakeVersion,
		joinU16Dec(ciphers),
		joinU16Dec(exts),
		joinU16Dec(groups),
		joinBytesDec(h.ECPointFormats),
	)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ja3sString(h *Hello) string {
	exts := stripGREASE16(h.Extensions)
	cipher := uint16(0)
	if len(h.Ciphers) > 0 {
		cipher = h.Ciphers[0]
	}
	raw := fmt.Sprintf("%d,%d,%s", h.HandshakeVersion, cipher, joinU16Dec(exts))
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ja4Version maps a TLS/SSL wire version to its two-character JA4 code.
func ja4Version(v uint16) string {
	switch v {
	case 0x0304:
		return "13"
	case 0x0303:
		return "12"
	case 0x0302:
		return "11"
	case 0x0301:
		return "10"
	case 0x0300:
		return "s3"
	case 0x0002:
		return "s2"
	case 0xfefd:
		return "d2" // DTLS 1.2
	case 0xfeff:
		return "d1" // DTLS 1.0
	default:
		return "00"
	}
}

func ja4ALPNChars(alpn []string) string {
	if len(alpn) == 0 {
		return "00"
	}
	first := alpn[0]
	if first == "" {
		return "00"
	}
	runes := []rune(first)
	if len(runes) == 1 {
		return string(runes[0]) + string(runes[0])
	}
	return string(runes[0]) + string(runes[len(runes)-1])
}

// computeJA4 builds JA4/JA4_a/JA4_b/JA4_c/JA4_o/JA4_r/JA4_ro (spec scenario
// S4, whose JA4_a fixture is "t12d020300").
func (f *Flow) computeJA4() {
	h := f.ClientHello

	proto := "t"
	// Always "t": Flow carries no QUIC marker, and CRYPTO payload handed
	// over by quicflow goes through Feed like any other L7 bytes.

	version := h.NegotiatedVersion
	if version == 0 {
		version = h.HandshakeVersion
	}

	sniFlag := "i"
	if h.SNI != "" {
		sniFlag = "d"
	}

	ciphers := stripGREASE16(h.Ciphers)
	exts := stripGREASE16(h.Extensions)

	cipherCount := len(ciphers)
	if cipherCount > 99 {
		cipherCount = 99
	}
	extCount := len(exts)
	if extCount > 99 {
		extCount = 99
	}

	alpnChars := ja4ALPNChars(h.ALPN)

	ja4a := fmt.Sprintf("%s%s%s%02d%02d%s", proto, ja4Version(version), sniFlag, cipherCount, extCount, alpnChars)
	f.JA4_a = ja4a

	sortedCiphers := append([]uint16(nil), ciphers...)
	sort.Slice(sortedCiphers, func(i, j int) bool { return sortedCiphers[i] < sortedCiphers[j] })

	f.JA4_b = hexList12(sortedCiphers)
	f.JA4_o = hexList12(ciphers) // original order, unsorted

	// extensions excluding SNI(0) and ALPN(16), sorted for JA4_c / JA4,
	// original order for JA4_ro.
	var filtered []uint16
	for _, e := range exts {
		if e == extServerName || e == extALPN {
			continue
		}
		filtered = append(filtered, e)
	}
	sortedExts := append([]uint16(nil), filtered...)
	sort.Slice(sortedExts, func(i, j int) bool { return sortedExts[i] < sortedExts[j] })

	sigAlgs := hexList4Joined(h.SignatureAlgorithms)

	f.JA4_c = sha256Trunc12(hexList4Joined(sortedExts)+"_"+sigAlgs, true)
	jA4cRaw := hexList4JoinedDash(sortedExts) + "_" + hexList4JoinedDash(h.SignatureAlgorithms)

	f.JA4 = ja4a + "_" + f.JA4_b + "_" + f.JA4_c

	// raw (_r) variants keep the literal hex lists instead of hashing them.
	f.JA4_r = ja4a + "_" + hexList4JoinedDash(sortedCiphers) + "_" + jA4cRaw

	var filteredOrig []uint16
	for _, e := range exts {
		if e == extServerName || e == extALPN {
			continue
		}
		filteredOrig = append(filteredOrig, e)
	}
	rawOrig := hexList4JoinedDash(ciphers) + "_" + hexList4JoinedDash(filteredOrig) + "_" + hexList4JoinedDash(h.SignatureAlgorithms)
	f.JA4_ro = ja4a + "_" + rawOrig

	if len(ciphers) == 0 && len(exts) == 0 {
		f.Stat |= StatJA4Fail
	}
}

func ja4sString(h *Hello) string {
	proto := "t"
	version := ja4Version(h.NegotiatedVersion)
	extCount := len(h.Extensions)
	if extCount > 99 {
		extCount = 99
	}
	alpnChars := ja4ALPNChars(h.ALPN)
	a := fmt.Sprintf("%s%s%02d%s", proto, version, extCount, alpnChars)

	cipher := uint16(0)
	if len(h.Ciphers) > 0 {
		cipher = h.Ciphers[0]
	}
	b := sha256Trunc12(fmt.Sprintf("%04x", cipher), false)
	c := sha256Trunc12(hexList4Joined(h.Extensions), false)
	return a + "_" + b + "_" + c
}

func hexList4Joined(vals []uint16) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = fmt.Sprintf("%04x", v)
	}
	return strings.Join(s, ",")
}

func hexList4JoinedDash(vals []uint16) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = fmt.Sprintf("%04x", v)
	}
	return strings.Join(s, "-")
}

func hexList12(vals []uint16) string {
	return sha256Trunc12(hexList4Joined(vals), len(vals) == 0)
}

// sha256Trunc12 returns the first 12 hex chars of sha256(input), or 12
// zeroes when empty and zeroForEmpty is set (JA4's documented convention
// for an empty cipher/extension list).
func sha256Trunc12(input string, zeroForEmpty bool) string {
	if input == "" && zeroForEmpty {
		return "000000000000"
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:12]
}
