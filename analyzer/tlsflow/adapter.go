package tlsflow

import (
	"github.com/bgpfix/flowan/analyzer"
	"github.com/bgpfix/flowan/analyzer/quicflow"
	"github.com/bgpfix/flowan/record"
)

// Adapter wires tlsflow.Flow into the analyzer.Analyzer lifecycle
// contract. It depends on quicflow.Adapter: when a flow's L7 payload was
// already consumed as QUIC, the ClientHello/ServerHello instead arrives as
// quicflow's decrypted Initial CRYPTO-frame payload for the same packet
// (spec §4.I "the TLS analyzer depends on the QUIC analyzer").
type Adapter struct {
	quic  *quicflow.Adapter // nil when running without QUIC support
	flows map[analyzer.FlowIndex]*Flow
}

// NewAdapter returns a ready-to-register Adapter. Pass the quicflow
// Adapter registered in the same Runtime, or nil if this deployment never
// carries TLS over QUIC.
func NewAdapter(quic *quicflow.Adapter) *Adapter {
	return &Adapter{
		quic:  quic,
		flows: make(map[analyzer.FlowIndex]*Flow),
	}
}

func (a *Adapter) Name() string        { return "tlsflow" }
func (a *Adapter) Version() string     { return "1.0.0" }
func (a *Adapter) CoreVersion() string { return "1.0" }

func (a *Adapter) Depends() []string {
	if a.quic != nil {
		return []string{"quicflow"}
	}
	return nil
}

func (a *Adapter) Init() error { return nil }

func (a *Adapter) PrintHeader() *record.Schema {
	s := record.NewSchema()
	s.Add("tls_stat", "TLS status/anomaly bitset", record.KindUint64, false)
	s.Add("tls_sni", "ClientHello server_name", record.KindString, false)
	s.Add("tls_ja3", "JA3 client fingerprint", record.KindFixedString, false).Width = 32
	s.Add("tls_ja3s", "JA3S server fingerprint", record.KindFixedString, false).Width = 32
	s.Add("tls_ja4", "JA4 client fingerprint", record.KindString, false)
	s.Add("tls_ja4s", "JA4S server fingerprint", record.KindString, false)
	s.Add("tls_cert_subject_cn", "first certificate subject CN", record.KindString, false)
	s.Add("tls_cert_fingerprint_sha1", "first certificate SHA-1 fingerprint", record.KindFixedString, false).Width = 40
	s.Add("tls_openvpn", "OpenVPN control channel detected", record.KindUint8, false)
	s.Add("tls_tor", "Tor heuristic matched", record.KindUint8, false)
	return s
}

func (a *Adapter) OnNewFlow(pkt *analyzer.PacketView, flow *analyzer.FlowView, idx analyzer.FlowIndex) {
	a.flows[idx] = &Flow{IsDTLS: flow.L4Proto == 17} // UDP carries DTLS/QUIC-embedded TLS
}

func (a *Adapter) OnLayer4(pkt *analyzer.PacketView, flow *analyzer.FlowView, idx analyzer.FlowIndex) {
	f, ok := a.flows[idx]
	if !ok {
		return
	}

	if a.quic != nil {
		if crypto := a.quic.LastCrypto(idx); len(crypto) > 0 {
			f.Feed(crypto)
			return
		}
	}

	if len(pkt.L7) > 0 {
		f.Feed(pkt.L7)
	}
}

func (a *Adapter) OnFlowTerminate(idx analyzer.FlowIndex, out *record.Buffer) {
	f, ok := a.flows[idx]
	if !ok {
		return
	}
	defer delete(a.flows, idx)

	out.WriteUint64(uint64(f.Stat))

	sni := ""
	if f.ClientHello != nil {
		sni = f.ClientHello.SNI
	}
	out.WriteString(sni)

	out.WriteFixedString(f.JA3, 32)
	out.WriteFixedString(f.JA3S, 32)
	out.WriteString(f.JA4)
	out.WriteString(f.JA4S)

	cn := ""
	fp := ""
	if f.Cert != nil {
		cn = f.Cert.SubjectCN
		fp = f.Cert.FingerprintSHA1
	}
	out.WriteString(cn)
	out.WriteFixedString(fp, 40)

	out.WriteUint8(boolByte(f.Stat&StatOpenVPN != 0))
	out.WriteUint8(boolByte(f.TorFlag))
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (a *Adapter) Finalize() {}

var _ analyzer.Analyzer = (*Adapter)(nil)
