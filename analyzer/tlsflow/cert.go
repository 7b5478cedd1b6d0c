package tlsflow

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"

	"github.com/bgpfix/flowan/internal/tbuf"
)

// parseCertificateMessage mines the first certificate of the chain carried
// in a Certificate handshake message (spec §4.H "Certificate — only the
// first certificate of the chain is parsed"). Subsequent certs in the same
// message are skipped without inspection.
func (f *Flow) parseCertificateMessage(msg []byte) {
	if f.Cert != nil {
		return
	}

	buf := tbuf.NewBuf(msg)

	listLen, ok := buf.ReadU24()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	if int(listLen) > buf.Left() {
		f.Stat |= StatMalformed
		return
	}

	certLen, ok := buf.ReadU24()
	if !ok {
		f.Stat |= StatSnap
		return
	}
	der, ok := buf.ReadN(int(certLen))
	if !ok {
		f.Stat |= StatSnap
		return
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		f.Stat |= StatMalformed
		return
	}

	info := &CertInfo{
		Version:         cert.Version,
		SubjectCN:       cert.Subject.CommonName,
		IssuerCN:        cert.Issuer.CommonName,
		SerialHex:       hex.EncodeToString(cert.SerialNumber.Bytes()),
		SigAlgOID:       cert.SignatureAlgorithm.String(),
		NotBefore:       cert.NotBefore.UTC().Format("2006-01-02T15:04:05Z"),
		NotAfter:        cert.NotAfter.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if len(cert.Subject.Organization) > 0 {
		info.SubjectO = cert.Subject.Organization[0]
	}
	if len(cert.Subject.OrganizationalUnit) > 0 {
		info.SubjectOU = cert.Subject.OrganizationalUnit[0]
	}
	if len(cert.Subject.Locality) > 0 {
		info.SubjectL = cert.Subject.Locality[0]
	}
	if len(cert.Subject.Province) > 0 {
		info.SubjectST = cert.Subject.Province[0]
	}
	if len(cert.Subject.Country) > 0 {
		info.SubjectC = cert.Subject.Country[0]
	}
	if len(cert.Issuer.Organization) > 0 {
		info.IssuerO = cert.Issuer.Organization[0]
	}
	if len(cert.Issuer.OrganizationalUnit) > 0 {
		info.IssuerOU = cert.Issuer.OrganizationalUnit[0]
	}
	if len(cert.Issuer.Locality) > 0 {
		info.IssuerL = cert.Issuer.Locality[0]
	}
	if len(cert.Issuer.Province) > 0 {
		info.IssuerST = cert.Issuer.Province[0]
	}
	if len(cert.Issuer.Country) > 0 {
		info.IssuerC = cert.Issuer.Country[0]
	}

	sum := sha1.Sum(der)
	info.FingerprintSHA1 = hex.EncodeToString(sum[:])

	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		info.PublicKeyType = "RSA"
		info.PublicKeyBits = pub.N.BitLen()
		if info.PublicKeyBits < 1024 {
			info.WeakKey = true
			f.Stat |= StatWeakKey
		}
	case *ecdsa.PublicKey:
		info.PublicKeyType = "ECDSA"
		info.PublicKeyBits = pub.Curve.Params().BitSize
		if info.PublicKeyBits < 224 {
			info.WeakKey = true
			f.Stat |= StatWeakKey
		}
	default:
		info.PublicKeyType = "unknown"
	}

	f.Cert = info
	f.detectTor(cert)
}
