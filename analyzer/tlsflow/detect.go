package tlsflow

import (
	"crypto/rsa"
	"crypto/x509"
	"regexp"

	"github.com/bgpfix/flowan/internal/tbuf"
)

var torSNIRegexp = regexp.MustCompile(`^www\.[a-z2-7]{4,25}\.com$`)
var torCertCNRegexp = regexp.MustCompile(`^www\.[a-z2-7]{8,20}\.(net|com)$`)

// DetectOpenVPN inspects one non-handshake L7 payload for the OpenVPN
// control-channel framing (spec §4.H "OpenVPN detector"): a 2-byte length
// equal to the L7 length minus 2, an opcode in the high 5 bits of the next
// byte, and a 64-bit session id.
func (f *Flow) DetectOpenVPN(payload []byte) bool {
	if len(payload) < 11 {
		return false
	}
	buf := tbuf.NewBuf(payload)
	length, ok := buf.ReadU16()
	if !ok || int(length) != len(payload)-2 {
		return false
	}
	opByte, ok := buf.ReadU8()
	if !ok {
		return false
	}
	opcode := opByte >> 3
	if opcode == 0 || opcode > 13 {
		return false
	}
	sessionID, ok := buf.ReadU64()
	if !ok {
		return false
	}
	f.OpenVPNSessionID = sessionID
	f.Stat |= StatOpenVPN
	return true
}

// detectTor applies the certificate-shape half of the Tor heuristic (spec
// §4.H "Tor detector"): a small self-signed RSA key, a UTC-midnight
// NotBefore, a CN matching the hidden Tor naming pattern, and no
// extensions beyond what a minimal self-signed leaf needs.
func (f *Flow) detectTor(cert *x509.Certificate) {
	if f.TorFlag {
		return
	}

	if !torCertCNRegexp.MatchString(cert.Subject.CommonName) {
		f.maybeDetectTorFromSNI()
		return
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || pub.N.BitLen() > 1024 {
		f.maybeDetectTorFromSNI()
		return
	}

	selfSigned := cert.Subject.CommonName == cert.Issuer.CommonName
	midnight := cert.NotBefore.UTC().Hour() == 0 && cert.NotBefore.UTC().Minute() == 0 && cert.NotBefore.UTC().Second() == 0
	fewExtensions := len(cert.Extensions) <= 3

	if selfSigned && midnight && fewExtensions {
		f.TorFlag = true
		f.Stat |= StatTor
	} else {
		f.maybeDetectTorFromSNI()
	}
}

// maybeDetectTorFromSNI applies the SNI-only fallback half of the Tor
// heuristic. Its only caller is detectTor, when a parsed certificate does
// not match the Tor shape; a Flow that never presents a certificate is not
// checked against the SNI pattern.
func (f *Flow) maybeDetectTorFromSNI() {
	if f.TorFlag || f.ClientHello == nil {
		return
	}
	if torSNIRegexp.MatchString(f.ClientHello.SNI) {
		f.TorFlag = true
		f.Stat |= StatTor
	}
}
